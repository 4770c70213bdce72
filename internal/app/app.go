// Package app wires the daemon together: wallet session, ledger client,
// replay engine, settlement orchestrator, chat hub, stores, and the HTTP
// surface.
package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"conflux/internal/chat"
	cfg "conflux/internal/config"
	"conflux/internal/ledger"
	"conflux/internal/logger"
	"conflux/internal/replay"
	"conflux/internal/settle"
	"conflux/internal/store"
	"conflux/internal/store/cyclelog"
	"conflux/internal/store/gormstore"
	api "conflux/internal/transport/http/api"
	"conflux/internal/wallet"

	"golang.org/x/sync/errgroup"
)

// App owns the orchestration runtime. Build it with NewApp, drive it with Run.
type App struct {
	cfg       *cfg.Config
	server    *api.Server
	engine    *replay.Engine
	orch      *settle.Orchestrator
	hub       *chat.Hub
	responder *chat.Responder
	wallet    *wallet.Manager
	ledger    *ledger.Client
	storeDB   *gormstore.GormStore
	cycleLog  *cyclelog.Store

	seqMu      sync.Mutex
	seqCycleID string
	seq        int
}

// NewApp builds the application from config without starting anything.
func NewApp(c *cfg.Config) (*App, error) {
	if c == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(c.App.LogLevel)
	return buildAppWithWire(context.Background(), c)
}

// Run serves HTTP until ctx is cancelled, then tears the runtime down.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.responder != nil {
		a.responder.Greet()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	err := group.Wait()
	a.engine.Stop()
	a.wallet.Disconnect()
	if a.cycleLog != nil {
		_ = a.cycleLog.Close()
	}
	if a.storeDB != nil {
		_ = a.storeDB.Close()
	}
	return err
}

// onReplayLine feeds each replayed line into the chat and the archive.
func (a *App) onReplayLine(cycleID, line string) {
	a.hub.Publish(chat.SenderAgent, cycleID, line)
	if a.cycleLog == nil {
		return
	}
	a.seqMu.Lock()
	if a.seqCycleID != cycleID {
		a.seqCycleID = cycleID
		a.seq = 0
	}
	seq := a.seq
	a.seq++
	a.seqMu.Unlock()
	if err := a.cycleLog.AppendLine(context.Background(), cycleID, seq, line); err != nil {
		logger.Warnf("app: cycle log append failed: %v", err)
	}
}

// onReplayComplete is the settlement trigger: exactly one attempt per
// completed cycle, and only when the session ended ahead.
func (a *App) onReplayComplete(cycleID string, lines []string) {
	total, ok := replay.CycleTotal(lines)
	if !ok {
		a.hub.Publish(chat.SenderSystem, cycleID, "Cycle complete. Nothing to settle.")
		return
	}
	amount, err := ledger.ToSmallestUnit(total, a.cfg.Chain.DenomDecimals)
	if err != nil {
		logger.Errorf("app: profit %v does not convert to %s: %v", total, a.cfg.Chain.Denom, err)
		return
	}
	if !a.orch.Reset(cycleID) {
		logger.Warnf("app: settlement already in flight, cycle %s skipped", cycleID)
		return
	}
	if !a.orch.Trigger(context.Background(), amount) {
		logger.Warnf("app: settlement trigger refused for cycle %s", cycleID)
	}
}

// onSettleEvent mirrors every settlement transition into the chat and the DB.
func (a *App) onSettleEvent(evt settle.Event) {
	if evt.Message != "" {
		a.hub.Publish(chat.SenderSystem, evt.CycleID, evt.Message)
	}
	if a.storeDB == nil {
		return
	}
	rec := store.SettlementRecord{
		CycleID: evt.CycleID,
		State:   evt.State.String(),
	}
	if evt.Err != nil {
		rec.FailureReason = evt.Err.Error()
	}
	if evt.Result != nil {
		rec.TotalProfit = strconv.FormatUint(evt.Result.TotalProfitRecorded, 10)
		rec.CallerShare = strconv.FormatUint(evt.Result.CallerShare, 10)
		rec.SettledAt = evt.Result.SettledAt
		rec.Distribution = make([]string, len(evt.Result.Distribution))
		for i, share := range evt.Result.Distribution {
			rec.Distribution[i] = strconv.FormatUint(share, 10)
		}
	}
	if err := a.storeDB.UpsertSettlement(context.Background(), rec); err != nil {
		logger.Warnf("app: settlement record write failed: %v", err)
	}
}

// profitReport answers the chat's profit command from the latest settled
// cycle plus the caller's on-chain contribution score.
func (a *App) profitReport(ctx context.Context) (string, error) {
	res, ok := a.orch.LastResult()
	if !ok {
		return `No settled trading cycle yet. Say "execute trade" to start one.`, nil
	}
	decimals := a.cfg.Chain.DenomDecimals
	denom := a.cfg.Chain.Denom
	reply := fmt.Sprintf("Cycle %s settled: total profit %s %s, your share %s %s.",
		res.CycleID,
		ledger.FromSmallestUnit(res.TotalProfitRecorded, decimals), denom,
		ledger.FromSmallestUnit(res.CallerShare, decimals), denom)
	score, err := a.ledger.ContributionScore(ctx)
	if err != nil {
		logger.Warnf("profit report: contribution score query failed: %v", err)
		return reply, nil
	}
	return fmt.Sprintf("%s Contribution score: %d.", reply, score), nil
}

// Engine exposes the replay engine, mainly for test harnesses.
func (a *App) Engine() *replay.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Package settle drives the post-replay settlement chain: record the cycle's
// total profit, wait out the ledger's settling delay, then read back the
// computed distribution. The chain runs at most once per replay cycle.
package settle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"conflux/internal/logger"
	"conflux/internal/pkg/clock"
	"conflux/internal/wallet"
)

// State is the orchestrator's position in the settlement chain.
type State int

const (
	Idle State = iota
	Submitting
	AwaitingDistribution
	Settled
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case AwaitingDistribution:
		return "awaiting_distribution"
	case Settled:
		return "settled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Ledger is the slice of the ledger client the orchestrator needs.
type Ledger interface {
	RecordTotalProfit(ctx context.Context, total uint64) (wallet.TxOutcome, error)
	ProfitDistribution(ctx context.Context) ([]uint64, error)
}

// Result is what one settled cycle produced.
type Result struct {
	CycleID             string
	TotalProfitRecorded uint64
	Distribution        []uint64
	CallerShare         uint64
	SettledAt           time.Time
}

// Event reports a state transition for UI progress.
type Event struct {
	CycleID string
	State   State
	Message string
	Result  *Result
	Err     error
}

// Orchestrator serializes the settlement chain. Trigger is edge-triggered:
// it only fires from Idle, so duplicate completion signals within one cycle
// are ignored.
type Orchestrator struct {
	ledger  Ledger
	delay   time.Duration
	clk     clock.Clock
	onEvent func(Event)

	mu      sync.Mutex
	state   State
	cycleID string
	last    *Result
}

type Config struct {
	Ledger Ledger
	// Delay between recording total profit and querying the distribution.
	// A fixed pause, not a consistency guarantee; see package docs.
	Delay   time.Duration
	Clock   clock.Clock
	OnEvent func(Event)
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("settle orchestrator requires a ledger")
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Orchestrator{
		ledger:  cfg.Ledger,
		delay:   cfg.Delay,
		clk:     cfg.Clock,
		onEvent: cfg.OnEvent,
	}, nil
}

// State returns the current chain state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastResult returns the most recently settled cycle, if any.
func (o *Orchestrator) LastResult() (Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Result{}, false
	}
	return *o.last, true
}

// Reset returns the machine to Idle so a new cycle can trigger it. It
// refuses while a chain is in flight: the pending chain must resolve to
// Settled or Failed first.
func (o *Orchestrator) Reset(cycleID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case Submitting, AwaitingDistribution:
		logger.Warnf("settle: reset refused, chain for cycle %s still in flight", o.cycleID)
		return false
	}
	o.state = Idle
	o.cycleID = cycleID
	return true
}

// Trigger starts the settlement chain for the current cycle with the given
// total (smallest unit). Returns false if the machine is not Idle; only the
// first completion edge of a cycle wins.
func (o *Orchestrator) Trigger(ctx context.Context, total uint64) bool {
	o.mu.Lock()
	if o.state != Idle {
		o.mu.Unlock()
		return false
	}
	o.state = Submitting
	cycleID := o.cycleID
	o.mu.Unlock()

	o.emit(Event{CycleID: cycleID, State: Submitting,
		Message: fmt.Sprintf("Recording total profit %d on the ledger...", total)})
	go o.run(ctx, cycleID, total)
	return true
}

func (o *Orchestrator) run(ctx context.Context, cycleID string, total uint64) {
	outcome, err := o.ledger.RecordTotalProfit(ctx, total)
	if err != nil {
		o.fail(cycleID, fmt.Errorf("recording total profit: %w", err))
		return
	}
	o.setState(AwaitingDistribution)
	o.emit(Event{CycleID: cycleID, State: AwaitingDistribution,
		Message: fmt.Sprintf("Profit recorded (tx %s). Calculating distribution...", outcome.Hash)})

	// Give the ledger time to settle the write before reading it back.
	select {
	case <-ctx.Done():
		o.fail(cycleID, fmt.Errorf("settlement cancelled: %w", ctx.Err()))
		return
	case <-o.clk.After(o.delay):
	}

	shares, err := o.ledger.ProfitDistribution(ctx)
	if err != nil {
		o.fail(cycleID, fmt.Errorf("querying profit distribution: %w", err))
		return
	}
	result := &Result{
		CycleID:             cycleID,
		TotalProfitRecorded: total,
		Distribution:        shares,
		SettledAt:           o.clk.Now(),
	}
	if len(shares) > 0 {
		result.CallerShare = shares[0]
	}

	o.mu.Lock()
	o.state = Settled
	o.last = result
	o.mu.Unlock()

	logger.Infof("settle: cycle %s settled, share=%d of total=%d", cycleID, result.CallerShare, total)
	o.emit(Event{CycleID: cycleID, State: Settled,
		Message: fmt.Sprintf("Distribution calculated. Your share: %d", result.CallerShare),
		Result:  result})
}

func (o *Orchestrator) fail(cycleID string, err error) {
	o.setState(Failed)
	logger.Errorf("settle: cycle %s failed: %v", cycleID, err)
	o.emit(Event{CycleID: cycleID, State: Failed,
		Message: "Settlement failed. Start a new trade cycle to retry.", Err: err})
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) emit(evt Event) {
	if o.onEvent != nil {
		o.onEvent(evt)
	}
}

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"conflux/internal/chat"
	cfg "conflux/internal/config"
	"conflux/internal/ledger"
	"conflux/internal/logger"
	"conflux/internal/modelstore"
	"conflux/internal/pkg/clock"
	"conflux/internal/replay"
	"conflux/internal/settle"
	"conflux/internal/store"
	"conflux/internal/store/cyclelog"
	"conflux/internal/store/gormstore"
	"conflux/internal/tradelog"
	api "conflux/internal/transport/http/api"
	"conflux/internal/wallet"
	"conflux/internal/wallet/bridge"
)

// AppBuilder assembles an App step by step. The fn fields exist so tests can
// swap individual stages for fakes.
type AppBuilder struct {
	cfg *cfg.Config

	locatorFn  func(cfg.ChainConfig) (wallet.Locator, error)
	queriesFn  func(cfg.ChainConfig) (ledger.QueryTransport, error)
	tradeLogFn func(cfg.TradeLogConfig) (tradelog.Source, error)
	storeFn    func(cfg.StoreConfig) (*gormstore.GormStore, error)
	clk        clock.Clock
}

type AppBuilderOption func(*AppBuilder)

// WithClock overrides the runtime clock, for deterministic tests.
func WithClock(clk clock.Clock) AppBuilderOption {
	return func(b *AppBuilder) { b.clk = clk }
}

// WithLocator overrides the wallet capability locator.
func WithLocator(fn func(cfg.ChainConfig) (wallet.Locator, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.locatorFn = fn }
}

// WithQueryTransport overrides the ledger read path.
func WithQueryTransport(fn func(cfg.ChainConfig) (ledger.QueryTransport, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.queriesFn = fn }
}

// WithTradeLogSource overrides the trade log producer client.
func WithTradeLogSource(fn func(cfg.TradeLogConfig) (tradelog.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.tradeLogFn = fn }
}

// WithStore overrides the persistence layer.
func WithStore(fn func(cfg.StoreConfig) (*gormstore.GormStore, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.storeFn = fn }
}

func NewAppBuilder(c *cfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        c,
		locatorFn:  buildBridgeLocator,
		queriesFn:  buildLCDTransport,
		tradeLogFn: buildTradeLogClient,
		storeFn:    buildGormStore,
		clk:        clock.Real{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build constructs the full runtime graph.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	c := b.cfg
	if c == nil {
		return nil, fmt.Errorf("nil config")
	}

	locator, err := b.locatorFn(c.Chain)
	if err != nil {
		return nil, fmt.Errorf("wallet bridge: %w", err)
	}
	walletMgr, err := wallet.NewManager(wallet.ManagerConfig{
		Locator:      locator,
		ChainID:      c.Chain.ChainID,
		PollInterval: time.Duration(c.Chain.ConnectPollMillis) * time.Millisecond,
		PollTimeout:  time.Duration(c.Chain.ConnectTimeoutSecs) * time.Second,
		Clock:        b.clk,
	})
	if err != nil {
		return nil, err
	}

	queries, err := b.queriesFn(c.Chain)
	if err != nil {
		return nil, fmt.Errorf("lcd transport: %w", err)
	}
	ledgerClient, err := ledger.NewClient(ledger.ClientConfig{
		Sessions:         walletMgr,
		Queries:          queries,
		ContractAddress:  c.Chain.ContractAddress,
		CodeHash:         c.Chain.ContractCodeHash,
		ValidateMessages: c.Chain.ValidateMessages,
	})
	if err != nil {
		return nil, err
	}

	gormStore, err := b.storeFn(c.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	var cycleLog *cyclelog.Store
	if gormStore != nil {
		cycleLog, err = cyclelog.New(c.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("cycle log: %w", err)
		}
		// Share the gorm connection so both stores sit in one lock domain.
		if sqlDB, dbErr := gormStore.SQLDB(); dbErr == nil {
			if err := cycleLog.UseExternalDB(sqlDB); err != nil {
				return nil, fmt.Errorf("cycle log: %w", err)
			}
		}
	}

	hub := chat.NewHub()
	app := &App{
		cfg:      c,
		orch:     nil,
		hub:      hub,
		wallet:   walletMgr,
		ledger:   ledgerClient,
		storeDB:  gormStore,
		cycleLog: cycleLog,
	}
	if gormStore != nil {
		hub.SetObserver(func(m chat.Message) {
			rec := store.ChatRecord{
				MessageID: m.ID,
				CycleID:   m.CycleID,
				Sender:    string(m.Sender),
				Content:   m.Content,
				Timestamp: m.Timestamp,
			}
			if err := gormStore.SaveChatMessage(context.Background(), rec); err != nil {
				logger.Warnf("app: chat transcript write failed: %v", err)
			}
		})
	}

	orch, err := settle.New(settle.Config{
		Ledger:  ledgerClient,
		Delay:   time.Duration(c.Settle.DistributionDelaySecs) * time.Second,
		Clock:   b.clk,
		OnEvent: app.onSettleEvent,
	})
	if err != nil {
		return nil, err
	}
	app.orch = orch

	tradeSource, err := b.tradeLogFn(c.TradeLog)
	if err != nil {
		return nil, fmt.Errorf("trade log client: %w", err)
	}
	engine, err := replay.NewEngine(replay.Config{
		Source:     tradeSource,
		Tick:       time.Duration(c.TradeLog.TickMillis) * time.Millisecond,
		Clock:      b.clk,
		OnLine:     app.onReplayLine,
		OnComplete: app.onReplayComplete,
	})
	if err != nil {
		return nil, err
	}
	app.engine = engine
	app.responder = chat.NewResponder(hub, engine.StartCycle)
	app.responder.SetGreeting(c.App.GreetingMsg)
	app.responder.SetProfitReporter(app.profitReport)

	router := &api.Router{
		Wallet:     walletMgr,
		Ledger:     ledgerClient,
		Trade:      engine,
		Settlement: orch,
		ChatHub:    hub,
		Responder:  app.responder,
		CycleLog:   cycleLog,
		Decimals:   c.Chain.DenomDecimals,
	}
	if gormStore != nil {
		router.Settlements = gormStore
		router.ChatLog = gormStore
	}
	if base := strings.TrimSpace(c.Drive.BaseURL); base != "" {
		router.Drive = modelstore.NewClient(modelstore.Config{
			BaseURL: base,
			APIKey:  c.Drive.APIKey,
			Timeout: time.Duration(c.Drive.RequestTimeoutSecs) * time.Second,
		})
	}
	server, err := api.NewServer(c.App.HTTPAddr, router)
	if err != nil {
		return nil, err
	}
	app.server = server

	logger.Infof("app: built for chain %s, contract %s", c.Chain.ChainID, c.Chain.ContractAddress)
	return app, nil
}

func buildBridgeLocator(chain cfg.ChainConfig) (wallet.Locator, error) {
	return bridge.New(bridge.Config{
		BaseURL: chain.BridgeURL,
		Timeout: time.Duration(chain.RequestTimeoutSecs) * time.Second,
	})
}

func buildLCDTransport(chain cfg.ChainConfig) (ledger.QueryTransport, error) {
	return ledger.NewLCDClient(ledger.LCDConfig{
		BaseURL: chain.LCDURL,
		Timeout: time.Duration(chain.RequestTimeoutSecs) * time.Second,
	})
}

func buildTradeLogClient(tl cfg.TradeLogConfig) (tradelog.Source, error) {
	return tradelog.New(tradelog.Config{
		BaseURL: tl.BaseURL,
		Timeout: time.Duration(tl.RequestTimeoutSecs) * time.Second,
	})
}

func buildGormStore(st cfg.StoreConfig) (*gormstore.GormStore, error) {
	if strings.TrimSpace(st.Path) == "" {
		return nil, nil
	}
	return gormstore.NewGormStore(st.Path)
}

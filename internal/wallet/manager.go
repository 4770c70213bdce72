package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"conflux/internal/logger"
	"conflux/internal/pkg/clock"
)

// Manager is the single writer of the process-wide wallet session.
type Manager struct {
	locator      Locator
	chainID      string
	pollInterval time.Duration
	pollTimeout  time.Duration
	clk          clock.Clock

	mu      sync.RWMutex
	session Session
}

// ManagerConfig wires a Manager. Zero durations fall back to 50ms polling
// with a 10s cap, matching the original capability-detection loop but with
// the unbounded wait fixed.
type ManagerConfig struct {
	Locator      Locator
	ChainID      string
	PollInterval time.Duration
	PollTimeout  time.Duration
	Clock        clock.Clock
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Locator == nil {
		return nil, fmt.Errorf("wallet manager requires a capability locator")
	}
	if strings.TrimSpace(cfg.ChainID) == "" {
		return nil, fmt.Errorf("wallet manager requires a chain id")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Manager{
		locator:      cfg.Locator,
		chainID:      cfg.ChainID,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		clk:          cfg.Clock,
	}, nil
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Connect discovers the wallet capability, requests chain authorization and
// binds the first account. On any failure the previous (disconnected) session
// is left untouched and the error is returned for a single user-visible
// notice.
func (m *Manager) Connect(ctx context.Context) (Session, error) {
	cap, err := m.awaitCapability(ctx)
	if err != nil {
		return Session{}, err
	}
	if err := cap.Enable(ctx, m.chainID); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrAuthorizationDenied, err)
	}
	signer, err := cap.OfflineSigner(m.chainID)
	if err != nil {
		return Session{}, fmt.Errorf("obtaining offline signer: %w", err)
	}
	accounts, err := signer.Accounts(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("listing wallet accounts: %w", err)
	}
	if len(accounts) == 0 {
		return Session{}, ErrNoAccounts
	}
	sess := Session{
		Address:   accounts[0].Address,
		ChainID:   m.chainID,
		Signer:    signer,
		Connected: true,
	}
	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()
	logger.Infof("wallet connected: %s (chain=%s)", sess.Address, m.chainID)
	return sess, nil
}

// Disconnect resets the session. Calling it while already disconnected is a
// no-op.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	was := m.session.Connected
	m.session = Session{}
	m.mu.Unlock()
	if was {
		logger.Infof("wallet disconnected")
	}
}

// awaitCapability polls the locator at a fixed interval until the capability
// appears, the bounded window elapses, or ctx is cancelled.
func (m *Manager) awaitCapability(ctx context.Context) (Capability, error) {
	deadline := m.clk.Now().Add(m.pollTimeout)
	for {
		if cap, ok := m.locator.Capability(ctx); ok {
			return cap, nil
		}
		if !m.clk.Now().Before(deadline) {
			return nil, ErrWalletUnavailable
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, ctx.Err())
		case <-m.clk.After(m.pollInterval):
		}
	}
}

package wallet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSigner struct {
	accounts    []Account
	accountsErr error
}

func (f *fakeSigner) Accounts(ctx context.Context) ([]Account, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeSigner) SignAndBroadcast(ctx context.Context, req TxRequest) (TxOutcome, error) {
	return TxOutcome{}, errors.New("not used")
}

type fakeCapability struct {
	enableErr error
	signer    Signer
}

func (f *fakeCapability) Enable(ctx context.Context, chainID string) error { return f.enableErr }

func (f *fakeCapability) OfflineSigner(chainID string) (Signer, error) { return f.signer, nil }

func (f *fakeCapability) EncryptionUtils(chainID string) (EncryptionUtils, error) {
	return nil, nil
}

type fakeLocator struct {
	cap       Capability
	readyFrom int32
	calls     int32
}

func (f *fakeLocator) Capability(ctx context.Context) (Capability, bool) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.cap == nil || n < f.readyFrom {
		return nil, false
	}
	return f.cap, true
}

func newTestManager(t *testing.T, loc Locator) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		Locator:      loc,
		ChainID:      "pulsar-3",
		PollInterval: time.Millisecond,
		PollTimeout:  30 * time.Millisecond,
	})
	require.NoError(t, err)
	return m
}

func TestConnectBindsFirstAccount(t *testing.T) {
	signer := &fakeSigner{accounts: []Account{{Address: "secret1alice"}, {Address: "secret1bob"}}}
	loc := &fakeLocator{cap: &fakeCapability{signer: signer}}
	m := newTestManager(t, loc)

	sess, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, sess.Connected)
	assert.Equal(t, "secret1alice", sess.Address)
	assert.Equal(t, sess, m.Session())
}

func TestConnectWaitsForCapability(t *testing.T) {
	signer := &fakeSigner{accounts: []Account{{Address: "secret1alice"}}}
	loc := &fakeLocator{cap: &fakeCapability{signer: signer}, readyFrom: 4}
	m := newTestManager(t, loc)

	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&loc.calls), int32(4))
}

func TestConnectWalletNeverAppears(t *testing.T) {
	m := newTestManager(t, &fakeLocator{})

	_, err := m.Connect(context.Background())
	require.ErrorIs(t, err, ErrWalletUnavailable)
	assert.False(t, m.Session().Connected)
}

func TestConnectAuthorizationDenied(t *testing.T) {
	loc := &fakeLocator{cap: &fakeCapability{enableErr: errors.New("request rejected")}}
	m := newTestManager(t, loc)

	_, err := m.Connect(context.Background())
	require.ErrorIs(t, err, ErrAuthorizationDenied)
	assert.False(t, m.Session().Connected)
}

func TestConnectNoAccounts(t *testing.T) {
	loc := &fakeLocator{cap: &fakeCapability{signer: &fakeSigner{}}}
	m := newTestManager(t, loc)

	_, err := m.Connect(context.Background())
	require.ErrorIs(t, err, ErrNoAccounts)
	assert.False(t, m.Session().Connected)
}

func TestConnectFailureKeepsPriorSessionDisconnected(t *testing.T) {
	loc := &fakeLocator{cap: &fakeCapability{signer: &fakeSigner{accountsErr: errors.New("rpc down")}}}
	m := newTestManager(t, loc)

	_, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, Session{}, m.Session())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	signer := &fakeSigner{accounts: []Account{{Address: "secret1alice"}}}
	m := newTestManager(t, &fakeLocator{cap: &fakeCapability{signer: signer}})

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	m.Disconnect()
	assert.Equal(t, Session{}, m.Session())

	m.Disconnect()
	assert.Equal(t, Session{}, m.Session())
}

func TestConnectHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newTestManager(t, &fakeLocator{})

	_, err := m.Connect(ctx)
	require.ErrorIs(t, err, ErrWalletUnavailable)
}

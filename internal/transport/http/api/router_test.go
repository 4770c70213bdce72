package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"conflux/internal/chat"
	"conflux/internal/ledger"
	"conflux/internal/replay"
	"conflux/internal/settle"
	"conflux/internal/store"
	"conflux/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubWallet struct {
	session    wallet.Session
	connectErr error
}

func (s *stubWallet) Connect(ctx context.Context) (wallet.Session, error) {
	if s.connectErr != nil {
		return wallet.Session{}, s.connectErr
	}
	return s.session, nil
}
func (s *stubWallet) Disconnect()             { s.session = wallet.Session{} }
func (s *stubWallet) Session() wallet.Session { return s.session }

type stubLedger struct {
	lastDeposit uint64
	lastScore   uint64
	lastCID     string
	execErr     error
	score       uint64
	shares      []uint64
	cid         string
}

func (s *stubLedger) outcome() (wallet.TxOutcome, error) {
	if s.execErr != nil {
		return wallet.TxOutcome{}, s.execErr
	}
	return wallet.TxOutcome{Hash: "ABC123", GasUsed: 55_000}, nil
}

func (s *stubLedger) Deposit(ctx context.Context, amount uint64) (wallet.TxOutcome, error) {
	s.lastDeposit = amount
	return s.outcome()
}
func (s *stubLedger) RecordContributionScore(ctx context.Context, score uint64) (wallet.TxOutcome, error) {
	s.lastScore = score
	return s.outcome()
}
func (s *stubLedger) DistributeProfit(ctx context.Context) (wallet.TxOutcome, error) {
	return s.outcome()
}
func (s *stubLedger) SetModelReference(ctx context.Context, cid string) (wallet.TxOutcome, error) {
	s.lastCID = cid
	return s.outcome()
}
func (s *stubLedger) ContributionScore(ctx context.Context) (uint64, error) { return s.score, nil }
func (s *stubLedger) ProfitDistribution(ctx context.Context) ([]uint64, error) {
	return s.shares, nil
}
func (s *stubLedger) ModelReference(ctx context.Context) (string, error) { return s.cid, nil }

type stubTrade struct {
	cycleID  string
	startErr error
	snapshot replay.Snapshot
}

func (s *stubTrade) StartCycle(ctx context.Context) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	return s.cycleID, nil
}
func (s *stubTrade) Snapshot() replay.Snapshot { return s.snapshot }

type stubSettlement struct {
	state  settle.State
	result settle.Result
	has    bool
}

func (s *stubSettlement) State() settle.State { return s.state }
func (s *stubSettlement) LastResult() (settle.Result, bool) {
	return s.result, s.has
}

func newTestServer(t *testing.T, r *Router) *httptest.Server {
	t.Helper()
	if r.Decimals == 0 {
		r.Decimals = 6
	}
	srv, err := NewServer(":0", r)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestWalletConnectReturnsSession(t *testing.T) {
	w := &stubWallet{session: wallet.Session{Address: "secret1abc", ChainID: "pulsar-3"}}
	ts := newTestServer(t, &Router{Wallet: w, Ledger: &stubLedger{}, Trade: &stubTrade{}, Settlement: &stubSettlement{}})

	status, body := doJSON(t, http.MethodPost, ts.URL+"/api/wallet/connect", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "secret1abc", gjson.Get(body, "address").String())
	assert.Equal(t, "pulsar-3", gjson.Get(body, "chain_id").String())
}

type failingChatLog struct{}

func (failingChatLog) SaveChatMessage(ctx context.Context, rec store.ChatRecord) error { return nil }
func (failingChatLog) RecentChatMessages(ctx context.Context, limit int) ([]store.ChatRecord, error) {
	return nil, errors.New("database is locked")
}

func TestChatHistoryFallsBackToHubWhenStoreFails(t *testing.T) {
	hub := chat.NewHub()
	hub.Publish(chat.SenderAgent, "", "Agent online. Trading parameters active. How can I assist you?")
	ts := newTestServer(t, &Router{
		Wallet: &stubWallet{}, Ledger: &stubLedger{},
		Trade: &stubTrade{}, Settlement: &stubSettlement{},
		ChatHub: hub, Responder: chat.NewResponder(hub, nil),
		ChatLog: failingChatLog{},
	})

	status, body := doJSON(t, http.MethodGet, ts.URL+"/api/chat/history", "")
	assert.Equal(t, http.StatusOK, status)
	messages := gjson.Get(body, "messages").Array()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Get("content").String(), "Agent online")
}

func TestWalletSessionReportsConnectedFlag(t *testing.T) {
	// A populated address with Connected false must still read as
	// disconnected; the flag is authoritative, not the address.
	w := &stubWallet{session: wallet.Session{Address: "secret1abc", ChainID: "pulsar-3", Connected: false}}
	ts := newTestServer(t, &Router{Wallet: w, Ledger: &stubLedger{}, Trade: &stubTrade{}, Settlement: &stubSettlement{}})

	status, body := doJSON(t, http.MethodGet, ts.URL+"/api/wallet/session", "")
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, gjson.Get(body, "connected").Bool())

	w.session.Connected = true
	_, body = doJSON(t, http.MethodGet, ts.URL+"/api/wallet/session", "")
	assert.True(t, gjson.Get(body, "connected").Bool())
}

func TestWalletConnectErrorMapping(t *testing.T) {
	cases := map[error]int{
		wallet.ErrWalletUnavailable:   http.StatusServiceUnavailable,
		wallet.ErrAuthorizationDenied: http.StatusForbidden,
		wallet.ErrNoAccounts:          http.StatusFailedDependency,
		errors.New("something broke"): http.StatusInternalServerError,
	}
	for connectErr, want := range cases {
		ts := newTestServer(t, &Router{
			Wallet: &stubWallet{connectErr: connectErr}, Ledger: &stubLedger{},
			Trade: &stubTrade{}, Settlement: &stubSettlement{},
		})
		status, _ := doJSON(t, http.MethodPost, ts.URL+"/api/wallet/connect", "")
		assert.Equal(t, want, status, "error %v", connectErr)
	}
}

func TestDepositConvertsDisplayAmount(t *testing.T) {
	led := &stubLedger{}
	ts := newTestServer(t, &Router{Wallet: &stubWallet{}, Ledger: led, Trade: &stubTrade{}, Settlement: &stubSettlement{}})

	status, body := doJSON(t, http.MethodPost, ts.URL+"/api/ledger/deposit", `{"amount":"5220.9"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(5_220_900_000), led.lastDeposit)
	assert.Equal(t, "ABC123", gjson.Get(body, "tx_hash").String())
}

func TestDepositRejectsBadAmount(t *testing.T) {
	ts := newTestServer(t, &Router{Wallet: &stubWallet{}, Ledger: &stubLedger{}, Trade: &stubTrade{}, Settlement: &stubSettlement{}})

	for _, body := range []string{``, `{}`, `{"amount":"not-a-number"}`} {
		status, _ := doJSON(t, http.MethodPost, ts.URL+"/api/ledger/deposit", body)
		assert.Equal(t, http.StatusBadRequest, status, "body %q", body)
	}
}

func TestLedgerErrorsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ledger.ErrNotConnected, http.StatusConflict},
		{&ledger.ContractError{Code: 5, Hash: "DEAD", Reason: "insufficient funds"}, http.StatusUnprocessableEntity},
		{&ledger.TransportError{Op: "deposit", Err: errors.New("timeout")}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		ts := newTestServer(t, &Router{
			Wallet: &stubWallet{}, Ledger: &stubLedger{execErr: tc.err},
			Trade: &stubTrade{}, Settlement: &stubSettlement{},
		})
		status, _ := doJSON(t, http.MethodPost, ts.URL+"/api/ledger/deposit", `{"amount":"1"}`)
		assert.Equal(t, tc.want, status, "error %v", tc.err)
	}
}

func TestQueryDistributionIncludesDisplayUnits(t *testing.T) {
	led := &stubLedger{shares: []uint64{120, 60, 0}}
	ts := newTestServer(t, &Router{Wallet: &stubWallet{}, Ledger: led, Trade: &stubTrade{}, Settlement: &stubSettlement{}})

	status, body := doJSON(t, http.MethodGet, ts.URL+"/api/ledger/distribution", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(120), gjson.Get(body, "shares.0").Int())
	assert.Equal(t, "0.00012", gjson.Get(body, "shares_display.0").String())
}

func TestTradeStartAndReplaySnapshot(t *testing.T) {
	trade := &stubTrade{
		cycleID:  "cycle-7",
		snapshot: replay.Snapshot{CycleID: "cycle-7", Lines: 12, Cursor: 4},
	}
	ts := newTestServer(t, &Router{Wallet: &stubWallet{}, Ledger: &stubLedger{}, Trade: trade, Settlement: &stubSettlement{}})

	status, body := doJSON(t, http.MethodPost, ts.URL+"/api/trade/start", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cycle-7", gjson.Get(body, "cycle_id").String())

	status, body = doJSON(t, http.MethodGet, ts.URL+"/api/trade/replay", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(4), gjson.Get(body, "cursor").Int())
	assert.False(t, gjson.Get(body, "completed").Bool())
}

func TestTradeStartFailureIsBadGateway(t *testing.T) {
	trade := &stubTrade{startErr: errors.New("producer unreachable")}
	ts := newTestServer(t, &Router{Wallet: &stubWallet{}, Ledger: &stubLedger{}, Trade: trade, Settlement: &stubSettlement{}})

	status, _ := doJSON(t, http.MethodPost, ts.URL+"/api/trade/start", "")
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestSettlementStatusIncludesLastResult(t *testing.T) {
	sett := &stubSettlement{
		state: settle.Settled,
		result: settle.Result{
			CycleID:             "cycle-1",
			TotalProfitRecorded: 5_220_900_000,
			Distribution:        []uint64{120, 60},
			CallerShare:         120,
			SettledAt:           time.Now().UTC(),
		},
		has: true,
	}
	ts := newTestServer(t, &Router{Wallet: &stubWallet{}, Ledger: &stubLedger{}, Trade: &stubTrade{}, Settlement: sett})

	status, body := doJSON(t, http.MethodGet, ts.URL+"/api/settlement/status", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "settled", gjson.Get(body, "state").String())
	assert.Equal(t, int64(5_220_900_000), gjson.Get(body, "last_result.total_profit").Int())
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &Router{Wallet: &stubWallet{}, Ledger: &stubLedger{}, Trade: &stubTrade{}, Settlement: &stubSettlement{}})
	status, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", gjson.Get(body, "status").String())
}

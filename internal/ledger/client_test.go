package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"conflux/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticSessions struct {
	sess wallet.Session
}

func (s *staticSessions) Session() wallet.Session { return s.sess }

type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) Accounts(ctx context.Context) ([]wallet.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]wallet.Account), args.Error(1)
}

func (m *MockSigner) SignAndBroadcast(ctx context.Context, req wallet.TxRequest) (wallet.TxOutcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(wallet.TxOutcome), args.Error(1)
}

type fakeQueries struct {
	data json.RawMessage
	err  error
	last json.RawMessage
}

func (f *fakeQueries) SmartQuery(ctx context.Context, contract, codeHash string, query json.RawMessage) (json.RawMessage, error) {
	f.last = query
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func newTestClient(t *testing.T, signer wallet.Signer, queries QueryTransport) *Client {
	t.Helper()
	sess := wallet.Session{}
	if signer != nil {
		sess = wallet.Session{Address: "secret1alice", Signer: signer, Connected: true}
	}
	if queries == nil {
		queries = &fakeQueries{}
	}
	c, err := NewClient(ClientConfig{
		Sessions:         &staticSessions{sess: sess},
		Queries:          queries,
		ContractAddress:  "secret15hfa4y3skxyc0kpy9hy0m3gwlvhcv7ftet9ctq",
		CodeHash:         "11f591e2f9cebdc743915c1e92be82a9b256d527a31a914fc807063fa111c0c5",
		ValidateMessages: true,
	})
	require.NoError(t, err)
	return c
}

func TestDepositPayloadIsVerbatim(t *testing.T) {
	signer := new(MockSigner)
	var captured wallet.TxRequest
	signer.On("SignAndBroadcast", mock.Anything, mock.MatchedBy(func(req wallet.TxRequest) bool {
		captured = req
		return true
	})).Return(wallet.TxOutcome{Hash: "ABC123", Code: 0}, nil)

	c := newTestClient(t, signer, nil)
	out, err := c.Deposit(context.Background(), 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", out.Hash)

	assert.JSONEq(t, `{"deposit":{"amount":1000000}}`, string(captured.Msg))
	assert.Equal(t, GasExecute, captured.GasLimit)
	assert.Equal(t, "secret1alice", captured.Sender)
	signer.AssertExpectations(t)
}

func TestExecuteFailsFastWhenDisconnected(t *testing.T) {
	c := newTestClient(t, nil, nil)

	_, err := c.Deposit(context.Background(), 100)
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = c.RecordTotalProfit(context.Background(), 100)
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = c.DistributeProfit(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = c.RecordContributionScore(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestContractRejectionIsTyped(t *testing.T) {
	signer := new(MockSigner)
	signer.On("SignAndBroadcast", mock.Anything, mock.Anything).
		Return(wallet.TxOutcome{Hash: "DEAD", Code: 5, RawLog: "Score must be between 0 and 10"}, nil)

	c := newTestClient(t, signer, nil)
	_, err := c.RecordContributionScore(context.Background(), 99)
	var cerr *ContractError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, uint32(5), cerr.Code)
	assert.Contains(t, cerr.Reason, "between 0 and 10")
}

func TestBroadcastFailureIsTransport(t *testing.T) {
	signer := new(MockSigner)
	signer.On("SignAndBroadcast", mock.Anything, mock.Anything).
		Return(wallet.TxOutcome{}, errors.New("connection refused"))

	c := newTestClient(t, signer, nil)
	_, err := c.Deposit(context.Background(), 1)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestEveryActionEnvelopePassesSchema(t *testing.T) {
	signer := new(MockSigner)
	signer.On("SignAndBroadcast", mock.Anything, mock.Anything).
		Return(wallet.TxOutcome{Hash: "OK"}, nil)
	c := newTestClient(t, signer, nil)
	ctx := context.Background()

	_, err := c.Deposit(ctx, 25)
	assert.NoError(t, err)
	_, err = c.RecordContributionScore(ctx, 7)
	assert.NoError(t, err)
	_, err = c.RecordTotalProfit(ctx, 5220)
	assert.NoError(t, err)
	_, err = c.DistributeProfit(ctx)
	assert.NoError(t, err)
	_, err = c.SetModelReference(ctx, "bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq")
	assert.NoError(t, err)
}

func TestSetModelReferenceRejectsEmptyCID(t *testing.T) {
	c := newTestClient(t, new(MockSigner), nil)
	_, err := c.SetModelReference(context.Background(), "   ")
	require.Error(t, err)
}

func TestContributionScoreQuery(t *testing.T) {
	queries := &fakeQueries{data: json.RawMessage(`7`)}
	c := newTestClient(t, new(MockSigner), queries)

	score, err := c.ContributionScore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), score)
	assert.JSONEq(t, `{"get_contribution_score":{"sender":"secret1alice"}}`, string(queries.last))
}

func TestContributionScoreRequiresSession(t *testing.T) {
	c := newTestClient(t, nil, &fakeQueries{data: json.RawMessage(`7`)})
	_, err := c.ContributionScore(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestProfitDistributionFirstElementIsCallerShare(t *testing.T) {
	queries := &fakeQueries{data: json.RawMessage(`[5220, 120, 0]`)}
	c := newTestClient(t, new(MockSigner), queries)

	shares, err := c.ProfitDistribution(context.Background())
	require.NoError(t, err)
	require.Len(t, shares, 3)
	assert.Equal(t, uint64(5220), shares[0])
}

func TestQueryDecodeFailureIsNotZero(t *testing.T) {
	queries := &fakeQueries{data: json.RawMessage(`{"unexpected":"shape"}`)}
	c := newTestClient(t, new(MockSigner), queries)

	_, err := c.ProfitDistribution(context.Background())
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
}

func TestQueryTransportFailurePropagates(t *testing.T) {
	queries := &fakeQueries{err: &TransportError{Op: "smart query", Err: errors.New("timeout")}}
	c := newTestClient(t, new(MockSigner), queries)

	_, err := c.ModelReference(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestModelReferenceQuery(t *testing.T) {
	queries := &fakeQueries{data: json.RawMessage(`"bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq"`)}
	c := newTestClient(t, new(MockSigner), queries)

	cid, err := c.ModelReference(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bafkreibm6jg3ux5qumhcn2b3flc3tyu6dmlb4xa7u5bf44yegnrjhc4yeq", cid)
	assert.JSONEq(t, `{"get_global_model_c_i_d":{}}`, string(queries.last))
}

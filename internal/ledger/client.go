// Package ledger is the typed facade over the profit-sharing contract. One
// method per contract action and query; execute calls go through the current
// wallet session, queries through the chain's LCD endpoint.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"conflux/internal/logger"
	"conflux/internal/wallet"
)

// Client sequences contract calls for a single deployed contract instance.
// It re-reads the session per call, so a disconnect immediately takes effect.
type Client struct {
	sessions  wallet.SessionSource
	queries   QueryTransport
	contract  string
	codeHash  string
	validator *msgValidator
}

type ClientConfig struct {
	Sessions        wallet.SessionSource
	Queries         QueryTransport
	ContractAddress string
	CodeHash        string
	// ValidateMessages enables schema validation of outgoing envelopes.
	ValidateMessages bool
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("ledger client requires a session source")
	}
	if cfg.Queries == nil {
		return nil, fmt.Errorf("ledger client requires a query transport")
	}
	if strings.TrimSpace(cfg.ContractAddress) == "" {
		return nil, fmt.Errorf("ledger client requires a contract address")
	}
	if strings.TrimSpace(cfg.CodeHash) == "" {
		return nil, fmt.Errorf("ledger client requires the contract code hash")
	}
	c := &Client{
		sessions: cfg.Sessions,
		queries:  cfg.Queries,
		contract: cfg.ContractAddress,
		codeHash: cfg.CodeHash,
	}
	if cfg.ValidateMessages {
		v, err := newMsgValidator()
		if err != nil {
			return nil, err
		}
		c.validator = v
	}
	return c, nil
}

// Deposit submits amount in the ledger's smallest unit.
func (c *Client) Deposit(ctx context.Context, amount uint64) (wallet.TxOutcome, error) {
	return c.execute(ctx, Deposit{Amount: amount})
}

// RecordContributionScore records the caller's contribution score.
func (c *Client) RecordContributionScore(ctx context.Context, score uint64) (wallet.TxOutcome, error) {
	sess := c.sessions.Session()
	if !sess.Connected {
		return wallet.TxOutcome{}, ErrNotConnected
	}
	return c.execute(ctx, RecordContribution{Sender: sess.Address, Score: score})
}

// RecordTotalProfit records the cycle's aggregate profit (smallest unit).
func (c *Client) RecordTotalProfit(ctx context.Context, total uint64) (wallet.TxOutcome, error) {
	return c.execute(ctx, RecordTotalProfit{TotalProfit: total})
}

// DistributeProfit asks the contract to compute and log per-participant
// shares.
func (c *Client) DistributeProfit(ctx context.Context) (wallet.TxOutcome, error) {
	return c.execute(ctx, DistributeProfit{})
}

// SetModelReference publishes the CID of a new global model artifact.
func (c *Client) SetModelReference(ctx context.Context, cid string) (wallet.TxOutcome, error) {
	if strings.TrimSpace(cid) == "" {
		return wallet.TxOutcome{}, fmt.Errorf("model cid must not be empty")
	}
	return c.execute(ctx, SetModelReference{CID: cid})
}

func (c *Client) execute(ctx context.Context, action Action) (wallet.TxOutcome, error) {
	sess := c.sessions.Session()
	if !sess.Connected || sess.Signer == nil {
		return wallet.TxOutcome{}, ErrNotConnected
	}
	msg, err := marshalAction(action)
	if err != nil {
		return wallet.TxOutcome{}, err
	}
	if c.validator != nil {
		if err := c.validator.validateExecute(msg); err != nil {
			return wallet.TxOutcome{}, err
		}
	}
	outcome, err := sess.Signer.SignAndBroadcast(ctx, wallet.TxRequest{
		Sender:          sess.Address,
		ContractAddress: c.contract,
		CodeHash:        c.codeHash,
		Msg:             msg,
		GasLimit:        action.gasLimit(),
	})
	if err != nil {
		return wallet.TxOutcome{}, &TransportError{Op: action.actionName(), Err: err}
	}
	if outcome.Code != 0 {
		return outcome, &ContractError{Code: outcome.Code, Hash: outcome.Hash, Reason: outcome.RawLog}
	}
	logger.Debugf("ledger %s accepted: tx=%s gas=%d", action.actionName(), outcome.Hash, outcome.GasUsed)
	return outcome, nil
}

// ContributionScore reads the caller's raw on-chain score. The address comes
// from the current session; a disconnected session fails fast.
func (c *Client) ContributionScore(ctx context.Context) (uint64, error) {
	sess := c.sessions.Session()
	if !sess.Connected {
		return 0, ErrNotConnected
	}
	var score uint64
	if err := c.query(ctx, ContributionScore{Sender: sess.Address}, &score); err != nil {
		return 0, err
	}
	return score, nil
}

// ProfitDistribution reads the per-participant share list. The first element
// is the caller's share. An empty list is a legitimate result and is distinct
// from a failed query.
func (c *Client) ProfitDistribution(ctx context.Context) ([]uint64, error) {
	var shares []uint64
	if err := c.query(ctx, ProfitDistribution{}, &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// ModelReference reads the current global model CID.
func (c *Client) ModelReference(ctx context.Context) (string, error) {
	var cid string
	if err := c.query(ctx, ModelReference{}, &cid); err != nil {
		return "", err
	}
	return cid, nil
}

func (c *Client) query(ctx context.Context, q Query, out any) error {
	envelope, err := marshalQuery(q)
	if err != nil {
		return err
	}
	if c.validator != nil {
		if err := c.validator.validateQuery(envelope); err != nil {
			return err
		}
	}
	data, err := c.queries.SmartQuery(ctx, c.contract, c.codeHash, envelope)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Op: q.queryName(), Err: err}
	}
	return nil
}

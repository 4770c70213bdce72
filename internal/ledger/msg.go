package ledger

import (
	"encoding/json"
	"fmt"
)

// Gas ceilings per operation kind. These mirror the deployed automation flow
// and are deliberately not user input.
const (
	GasExecute     uint64 = 100_000
	GasInstantiate uint64 = 400_000
	GasStoreCode   uint64 = 4_000_000
)

// Action is a closed variant over every state-changing contract call. Each
// variant marshals into the contract's snake_case envelope, e.g.
// {"deposit":{"amount":25}}. The unexported method keeps the set closed.
type Action interface {
	actionName() string
	gasLimit() uint64
}

// Deposit adds amount (smallest unit) to the aggregate pool.
type Deposit struct {
	Amount uint64 `json:"amount"`
}

func (Deposit) actionName() string { return "deposit" }
func (Deposit) gasLimit() uint64   { return GasExecute }

// RecordContribution stores a participant's contribution score. The contract
// rejects scores above 10.
type RecordContribution struct {
	Sender string `json:"sender"`
	Score  uint64 `json:"score"`
}

func (RecordContribution) actionName() string { return "record_contribution" }
func (RecordContribution) gasLimit() uint64   { return GasExecute }

// RecordTotalProfit overwrites the aggregate profit figure for the cycle.
type RecordTotalProfit struct {
	TotalProfit uint64 `json:"total_profit"`
}

func (RecordTotalProfit) actionName() string { return "record_total_profit" }
func (RecordTotalProfit) gasLimit() uint64   { return GasExecute }

// DistributeProfit asks the contract to compute per-participant shares.
type DistributeProfit struct{}

func (DistributeProfit) actionName() string { return "distribute_profit" }
func (DistributeProfit) gasLimit() uint64   { return GasExecute }

// SetModelReference points the contract at a new global model artifact.
// The odd field casing in the wire name comes from the contract's serde
// rename of SetGlobalModelCID.
type SetModelReference struct {
	CID string `json:"cid"`
}

func (SetModelReference) actionName() string { return "set_global_model_c_i_d" }
func (SetModelReference) gasLimit() uint64   { return GasExecute }

// Query is the closed variant over every read-only contract call.
type Query interface {
	queryName() string
}

// ContributionScore reads the caller-scoped score.
type ContributionScore struct {
	Sender string `json:"sender"`
}

func (ContributionScore) queryName() string { return "get_contribution_score" }

// ProfitDistribution reads the per-participant share list; the first element
// is the caller's share.
type ProfitDistribution struct{}

func (ProfitDistribution) queryName() string { return "get_profit_distribution" }

// ModelReference reads the current global model CID.
type ModelReference struct{}

func (ModelReference) queryName() string { return "get_global_model_c_i_d" }

func marshalAction(a Action) (json.RawMessage, error) {
	if a == nil {
		return nil, fmt.Errorf("nil action")
	}
	raw, err := json.Marshal(map[string]Action{a.actionName(): a})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", a.actionName(), err)
	}
	return raw, nil
}

func marshalQuery(q Query) (json.RawMessage, error) {
	if q == nil {
		return nil, fmt.Errorf("nil query")
	}
	raw, err := json.Marshal(map[string]Query{q.queryName(): q})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", q.queryName(), err)
	}
	return raw, nil
}

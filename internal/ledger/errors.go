package ledger

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an execute call is attempted without a
// live wallet session. No network I/O happens in that case.
var ErrNotConnected = errors.New("no wallet session connected")

// ContractError is the ledger's own rejection of an otherwise well-formed
// transaction (non-zero tx code).
type ContractError struct {
	Code   uint32
	Hash   string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract rejected tx %s (code=%d): %s", e.Hash, e.Code, e.Reason)
}

// TransportError wraps network or RPC failures so callers can tell them
// apart from contract-level rejections.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger transport failure in %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means the response shape was not what the contract is known to
// return. It is deliberately distinct from a legitimate zero-valued result.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

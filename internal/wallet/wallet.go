// Package wallet owns the wallet session lifecycle. The wallet extension
// itself is an external capability; this package only discovers it, asks it
// for authorization, and publishes the resulting signing identity.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrWalletUnavailable means the capability never appeared within the
	// bounded polling window.
	ErrWalletUnavailable = errors.New("wallet capability unavailable")
	// ErrAuthorizationDenied means the user rejected the chain enable prompt.
	ErrAuthorizationDenied = errors.New("wallet authorization denied")
	// ErrNoAccounts means the signer reported an empty account list.
	ErrNoAccounts = errors.New("wallet returned no accounts")
)

// Account is one signing identity exposed by the wallet.
type Account struct {
	Address string `json:"address"`
}

// TxRequest is a fully-formed contract call handed to the wallet for signing
// and broadcast. Msg is the plaintext contract message envelope.
type TxRequest struct {
	Sender          string          `json:"sender"`
	ContractAddress string          `json:"contract_address"`
	CodeHash        string          `json:"code_hash"`
	Msg             json.RawMessage `json:"msg"`
	GasLimit        uint64          `json:"gas_limit"`
	Funds           string          `json:"funds,omitempty"`
}

// TxOutcome is the broadcast result. Code 0 means the ledger accepted the
// transaction; anything else carries the contract's rejection in RawLog.
type TxOutcome struct {
	Hash    string `json:"txhash"`
	Code    uint32 `json:"code"`
	RawLog  string `json:"raw_log"`
	GasUsed uint64 `json:"gas_used,string"`
}

// Signer is the account-bound signing transport obtained from the capability.
type Signer interface {
	Accounts(ctx context.Context) ([]Account, error)
	SignAndBroadcast(ctx context.Context, req TxRequest) (TxOutcome, error)
}

// EncryptionUtils is the capability's contract-message encryption surface.
// The daemon never holds encryption keys; payloads that must be sealed for
// the contract go through the capability side.
type EncryptionUtils interface {
	Encrypt(ctx context.Context, codeHash string, msg json.RawMessage) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext, nonce []byte) ([]byte, error)
}

// Capability is the external wallet extension surface.
type Capability interface {
	Enable(ctx context.Context, chainID string) error
	OfflineSigner(chainID string) (Signer, error)
	EncryptionUtils(chainID string) (EncryptionUtils, error)
}

// Locator reports whether the capability is currently present. The browser
// original polls window.keplr; the daemon polls the bridge the extension
// registers against.
type Locator interface {
	Capability(ctx context.Context) (Capability, bool)
}

// Session is the authenticated binding between the local user and a ledger
// signing identity. The zero value is the disconnected state.
type Session struct {
	Address   string
	ChainID   string
	Signer    Signer
	Connected bool
}

// SessionSource is the read-only view handed to every other component.
// Callers must re-read per operation rather than caching the signer.
type SessionSource interface {
	Session() Session
}

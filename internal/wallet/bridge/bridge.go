// Package bridge implements the wallet capability against the local signing
// bridge that the browser extension registers with. The daemon never sees key
// material: signing and broadcast happen on the far side of the bridge.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"conflux/internal/wallet"
)

// Client talks to the signing bridge over HTTP. It implements wallet.Locator
// and, once the bridge reports ready, wallet.Capability.
type Client struct {
	baseURL string
	http    *http.Client
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("bridge base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Capability reports whether the extension is currently attached to the
// bridge. A refused connection or non-200 simply means "not yet".
func (c *Client) Capability(ctx context.Context) (wallet.Capability, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capability", nil)
	if err != nil {
		return nil, false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	return c, true
}

func (c *Client) Enable(ctx context.Context, chainID string) error {
	body, _ := json.Marshal(map[string]string{"chain_id": chainID})
	resp, err := c.post(ctx, "/enable", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusForbidden:
		return fmt.Errorf("user rejected chain enable for %s", chainID)
	default:
		return fmt.Errorf("bridge enable returned status %d", resp.StatusCode)
	}
}

func (c *Client) OfflineSigner(chainID string) (wallet.Signer, error) {
	if strings.TrimSpace(chainID) == "" {
		return nil, fmt.Errorf("chain id is required")
	}
	return &signer{client: c, chainID: chainID}, nil
}

type signer struct {
	client  *Client
	chainID string
}

func (s *signer) Accounts(ctx context.Context) ([]wallet.Account, error) {
	url := fmt.Sprintf("%s/accounts?chain_id=%s", s.client.baseURL, s.chainID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge accounts returned status %d", resp.StatusCode)
	}
	var accounts []wallet.Account
	if err := json.NewDecoder(resp.Body).Decode(&accounts); err != nil {
		return nil, fmt.Errorf("decoding bridge accounts: %w", err)
	}
	return accounts, nil
}

func (s *signer) SignAndBroadcast(ctx context.Context, txReq wallet.TxRequest) (wallet.TxOutcome, error) {
	payload := struct {
		ChainID string `json:"chain_id"`
		wallet.TxRequest
	}{ChainID: s.chainID, TxRequest: txReq}
	body, err := json.Marshal(payload)
	if err != nil {
		return wallet.TxOutcome{}, err
	}
	resp, err := s.client.post(ctx, "/sign-broadcast", body)
	if err != nil {
		return wallet.TxOutcome{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return wallet.TxOutcome{}, fmt.Errorf("bridge broadcast returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var outcome wallet.TxOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return wallet.TxOutcome{}, fmt.Errorf("decoding broadcast outcome: %w", err)
	}
	return outcome, nil
}

// EncryptionUtils returns the bridge's sealing surface for chainID. The
// extension side holds the consensus IO key; the daemon only relays bytes.
func (c *Client) EncryptionUtils(chainID string) (wallet.EncryptionUtils, error) {
	if strings.TrimSpace(chainID) == "" {
		return nil, fmt.Errorf("chain id is required")
	}
	return &encryptionUtils{client: c, chainID: chainID}, nil
}

type encryptionUtils struct {
	client  *Client
	chainID string
}

func (u *encryptionUtils) Encrypt(ctx context.Context, codeHash string, msg json.RawMessage) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"chain_id":  u.chainID,
		"code_hash": codeHash,
		"msg":       msg,
	})
	if err != nil {
		return nil, err
	}
	resp, err := u.client.post(ctx, "/encrypt", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge encrypt returned status %d", resp.StatusCode)
	}
	var out struct {
		Ciphertext []byte `json:"ciphertext"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding encrypt response: %w", err)
	}
	return out.Ciphertext, nil
}

func (u *encryptionUtils) Decrypt(ctx context.Context, ciphertext, nonce []byte) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"chain_id":   u.chainID,
		"ciphertext": ciphertext,
		"nonce":      nonce,
	})
	if err != nil {
		return nil, err
	}
	resp, err := u.client.post(ctx, "/decrypt", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge decrypt returned status %d", resp.StatusCode)
	}
	var out struct {
		Plaintext []byte `json:"plaintext"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding decrypt response: %w", err)
	}
	return out.Plaintext, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

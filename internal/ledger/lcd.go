package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// QueryTransport performs read-only contract queries. Split out so tests can
// substitute a canned transport.
type QueryTransport interface {
	SmartQuery(ctx context.Context, contract, codeHash string, query json.RawMessage) (json.RawMessage, error)
}

// LCDClient queries contract state through the chain's LCD REST endpoint.
// Queries are unsigned; only execute calls go through the wallet.
type LCDClient struct {
	baseURL string
	http    *http.Client
}

type LCDConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewLCDClient(cfg LCDConfig) (*LCDClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("lcd base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LCDClient{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type lcdQueryResponse struct {
	Data json.RawMessage `json:"data"`
}

func (c *LCDClient) SmartQuery(ctx context.Context, contract, codeHash string, query json.RawMessage) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/compute/v1beta1/query/%s", c.baseURL, url.PathEscape(contract))
	encoded := base64.StdEncoding.EncodeToString(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?query="+url.QueryEscape(encoded), nil)
	if err != nil {
		return nil, &TransportError{Op: "smart query", Err: err}
	}
	if codeHash != "" {
		req.Header.Set("X-Code-Hash", codeHash)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "smart query", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Op: "smart query", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Op:  "smart query",
			Err: fmt.Errorf("lcd returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	var parsed lcdQueryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &DecodeError{Op: "smart query", Err: err}
	}
	if len(parsed.Data) == 0 {
		return nil, &DecodeError{Op: "smart query", Err: fmt.Errorf("response missing data field")}
	}
	return parsed.Data, nil
}

// Package tradelog is the gateway to the external trade-log producer: a
// plain HTTP service that starts an agent run and exposes its output as an
// ordered list of lines.
package tradelog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Source is what the replay engine consumes.
type Source interface {
	// StartTrade asks the producer to begin a fresh run. Safe to call once
	// per user command.
	StartTrade(ctx context.Context) error
	// FetchLogs returns the producer's output so far, in emission order.
	FetchLogs(ctx context.Context) ([]string, error)
}

// Client talks to the producer over HTTP.
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
		return nil, fmt.Errorf("trade log base url is required")
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

func (c *Client) StartTrade(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/start-trade", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("starting trade run: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trade log producer returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) FetchLogs(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/logs", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching trade logs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trade log producer returned status %d", resp.StatusCode)
	}
	var lines []string
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		return nil, fmt.Errorf("decoding trade logs: %w", err)
	}
	return lines, nil
}

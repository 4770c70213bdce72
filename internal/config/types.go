package config

import "strings"

// Config is the top-level configuration for the conflux daemon.
type Config struct {
	App      AppConfig      `toml:"app"`
	Chain    ChainConfig    `toml:"chain"`
	TradeLog TradeLogConfig `toml:"tradelog"`
	Settle   SettleConfig   `toml:"settle"`
	Store    StoreConfig    `toml:"store"`
	Drive    DriveConfig    `toml:"drive"`
	Agent    AgentConfig    `toml:"agent"`
}

type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	HTTPAddr    string `toml:"http_addr"`
	LogPath     string `toml:"log_path"`
	ChatLog     string `toml:"chat_log_path"`
	ChatDump    bool   `toml:"chat_dump"`
	GreetingMsg string `toml:"greeting"`
}

// ChainConfig describes how to reach the ledger and the deployed contract.
type ChainConfig struct {
	ChainID            string `toml:"chain_id"`
	LCDURL             string `toml:"lcd_url"`
	ContractAddress    string `toml:"contract_address"`
	ContractCodeHash   string `toml:"contract_code_hash"`
	BridgeURL          string `toml:"bridge_url"`
	ConnectPollMillis  int    `toml:"connect_poll_millis"`
	ConnectTimeoutSecs int    `toml:"connect_timeout_seconds"`
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"`
	Denom              string `toml:"denom"`
	DenomDecimals      int    `toml:"denom_decimals"`
	ValidateMessages   bool   `toml:"validate_messages"`
}

// TradeLogConfig points at the external trade-log producer.
type TradeLogConfig struct {
	BaseURL            string `toml:"base_url"`
	TickMillis         int    `toml:"tick_millis"`
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"`
}

type SettleConfig struct {
	DistributionDelaySecs int `toml:"distribution_delay_seconds"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// DriveConfig describes the content-addressed model store service.
type DriveConfig struct {
	BaseURL            string `toml:"base_url"`
	APIKey             string `toml:"api_key"`
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"`
}

// AgentConfig configures the demo trade-log producer (conflux-agentd).
type AgentConfig struct {
	HTTPAddr       string  `toml:"http_addr"`
	MarketRESTURL  string  `toml:"market_rest_url"`
	Symbol         string  `toml:"symbol"`
	Interval       string  `toml:"interval"`
	HistoryLimit   int     `toml:"history_limit"`
	InitialBalance float64 `toml:"initial_balance"`
	ScenarioPath   string  `toml:"scenario_path"`
}

// keySet tracks the field paths explicitly present in the config files, so
// defaulting never overrides a deliberate zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the defaulting rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

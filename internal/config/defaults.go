package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9991"
	defaultAppLogPath  = "/data/logs/conflux-live.log"
	defaultAppChatLog  = "/data/logs/conflux-chat.log"
	defaultGreeting    = "Agent online. Trading parameters active. How can I assist you?"

	defaultChainID          = "pulsar-3"
	defaultChainLCD         = "https://pulsar.lcd.secretnodes.com"
	defaultBridgeURL        = "http://127.0.0.1:8559"
	defaultConnectPollMs    = 50
	defaultConnectTimeout   = 10
	defaultRequestTimeout   = 15
	defaultDenom            = "uscrt"
	defaultDenomDecimals    = 6
	defaultTradeLogURL      = "http://127.0.0.1:5000"
	defaultTradeLogTickMs   = 200
	defaultSettleDelaySecs  = 5
	defaultStorePath        = "/data/db/conflux.db"
	defaultDriveTimeout     = 60
	defaultAgentHTTPAddr    = ":5000"
	defaultAgentMarketREST  = "https://fapi.binance.com"
	defaultAgentSymbol      = "BTCUSDT"
	defaultAgentInterval    = "1h"
	defaultAgentHistory     = 500
	defaultAgentInitBalance = 100000
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Chain.applyDefaults(keys)
	c.TradeLog.applyDefaults(keys)
	c.Settle.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Drive.applyDefaults(keys)
	c.Agent.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.chat_log_path", &a.ChatLog, defaultAppChatLog),
		stringFieldDefault("app.greeting", &a.GreetingMsg, defaultGreeting),
	)
}

func (c *ChainConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("chain.chain_id", &c.ChainID, defaultChainID),
		stringFieldDefault("chain.lcd_url", &c.LCDURL, defaultChainLCD),
		stringFieldDefault("chain.bridge_url", &c.BridgeURL, defaultBridgeURL),
		stringFieldDefault("chain.denom", &c.Denom, defaultDenom),
		fieldDefault{
			key:   "chain.connect_poll_millis",
			need:  func() bool { return c.ConnectPollMillis <= 0 },
			apply: func() { c.ConnectPollMillis = defaultConnectPollMs },
		},
		fieldDefault{
			key:   "chain.connect_timeout_seconds",
			need:  func() bool { return c.ConnectTimeoutSecs <= 0 },
			apply: func() { c.ConnectTimeoutSecs = defaultConnectTimeout },
		},
		fieldDefault{
			key:   "chain.request_timeout_seconds",
			need:  func() bool { return c.RequestTimeoutSecs <= 0 },
			apply: func() { c.RequestTimeoutSecs = defaultRequestTimeout },
		},
		fieldDefault{
			key:   "chain.denom_decimals",
			need:  func() bool { return c.DenomDecimals <= 0 },
			apply: func() { c.DenomDecimals = defaultDenomDecimals },
		},
	)
}

func (t *TradeLogConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("tradelog.base_url", &t.BaseURL, defaultTradeLogURL),
		fieldDefault{
			key:   "tradelog.tick_millis",
			need:  func() bool { return t.TickMillis <= 0 },
			apply: func() { t.TickMillis = defaultTradeLogTickMs },
		},
		fieldDefault{
			key:   "tradelog.request_timeout_seconds",
			need:  func() bool { return t.RequestTimeoutSecs <= 0 },
			apply: func() { t.RequestTimeoutSecs = defaultRequestTimeout },
		},
	)
}

func (s *SettleConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "settle.distribution_delay_seconds",
			need:  func() bool { return s.DistributionDelaySecs <= 0 },
			apply: func() { s.DistributionDelaySecs = defaultSettleDelaySecs },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (d *DriveConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "drive.request_timeout_seconds",
			need:  func() bool { return d.RequestTimeoutSecs <= 0 },
			apply: func() { d.RequestTimeoutSecs = defaultDriveTimeout },
		},
	)
}

func (a *AgentConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("agent.http_addr", &a.HTTPAddr, defaultAgentHTTPAddr),
		stringFieldDefault("agent.market_rest_url", &a.MarketRESTURL, defaultAgentMarketREST),
		stringFieldDefault("agent.symbol", &a.Symbol, defaultAgentSymbol),
		stringFieldDefault("agent.interval", &a.Interval, defaultAgentInterval),
		fieldDefault{
			key:   "agent.history_limit",
			need:  func() bool { return a.HistoryLimit <= 0 },
			apply: func() { a.HistoryLimit = defaultAgentHistory },
		},
		fieldDefault{
			key:   "agent.initial_balance",
			need:  func() bool { return a.InitialBalance <= 0 },
			apply: func() { a.InitialBalance = defaultAgentInitBalance },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

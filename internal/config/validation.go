package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	if err := c.Chain.validate(); err != nil {
		return err
	}
	if err := c.TradeLog.validate(); err != nil {
		return err
	}
	if err := c.Agent.validate(); err != nil {
		return err
	}
	return nil
}

func (c *ChainConfig) validate() error {
	if strings.TrimSpace(c.ChainID) == "" {
		return fmt.Errorf("chain.chain_id must not be empty")
	}
	if err := checkURL("chain.lcd_url", c.LCDURL); err != nil {
		return err
	}
	if err := checkURL("chain.bridge_url", c.BridgeURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.ContractAddress) == "" {
		return fmt.Errorf("chain.contract_address must not be empty")
	}
	if strings.TrimSpace(c.ContractCodeHash) == "" {
		return fmt.Errorf("chain.contract_code_hash must not be empty")
	}
	if c.DenomDecimals > 18 {
		return fmt.Errorf("chain.denom_decimals must be <= 18")
	}
	return nil
}

func (t *TradeLogConfig) validate() error {
	return checkURL("tradelog.base_url", t.BaseURL)
}

func (a *AgentConfig) validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return fmt.Errorf("agent.symbol must not be empty")
	}
	return checkURL("agent.market_rest_url", a.MarketRESTURL)
}

func checkURL(key, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not a valid URL: %q", key, raw)
	}
	return nil
}

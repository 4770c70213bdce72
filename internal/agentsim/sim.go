package agentsim

import (
	"context"
	"fmt"

	"conflux/internal/logger"

	talib "github.com/markcheno/go-talib"
)

// SimulatorConfig tunes the demo strategy.
type SimulatorConfig struct {
	Symbol         string
	Interval       string
	History        int
	InitialBalance float64
	RSIPeriod      int
	Overbought     float64
	Oversold       float64
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
}

func (c SimulatorConfig) withDefaults() SimulatorConfig {
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	if c.Interval == "" {
		c.Interval = "1h"
	}
	if c.History <= 0 {
		c.History = 200
	}
	if c.InitialBalance <= 0 {
		c.InitialBalance = 10_000
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.Overbought <= 0 {
		c.Overbought = 70
	}
	if c.Oversold <= 0 {
		c.Oversold = 30
	}
	if c.MACDFast <= 0 {
		c.MACDFast = 12
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = 26
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = 9
	}
	return c
}

// Simulator walks candle history with an RSI/MACD strategy and reports the
// session as log lines.
type Simulator struct {
	cfg    SimulatorConfig
	source MarketSource
	cache  *CandleCache
}

func NewSimulator(cfg SimulatorConfig, source MarketSource, cache *CandleCache) *Simulator {
	if cache == nil {
		cache = NewCandleCache()
	}
	return &Simulator{cfg: cfg.withDefaults(), source: source, cache: cache}
}

// Run executes one full session and returns its log lines.
func (s *Simulator) Run(ctx context.Context) ([]string, error) {
	cfg := s.cfg
	candles, err := s.cache.Get(ctx, cfg.Symbol, cfg.Interval)
	if err == nil && len(candles) >= cfg.History {
		logger.Debugf("agentsim: %s/%s served from cache (%d candles)", cfg.Symbol, cfg.Interval, len(candles))
	} else {
		candles, err = s.source.FetchHistory(ctx, cfg.Symbol, cfg.Interval, cfg.History)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s history: %w", cfg.Symbol, cfg.Interval, err)
		}
		_ = s.cache.Put(ctx, cfg.Symbol, cfg.Interval, candles, cfg.History)
	}

	warmup := cfg.MACDSlow + cfg.MACDSignal
	if len(candles) <= warmup {
		return nil, fmt.Errorf("not enough candles for %s: need >%d, got %d", cfg.Symbol, warmup, len(candles))
	}

	prices := closes(candles)
	rsi := talib.Rsi(prices, cfg.RSIPeriod)
	_, _, hist := talib.Macd(prices, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)

	var lines []string
	emit := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	emit("Loading global model...")
	emit("Price Statistics:")
	emit("Starting price: $%.2f", prices[warmup])
	emit("Ending price: $%.2f", prices[len(prices)-1])
	emit("Price change: %.2f%%", (prices[len(prices)-1]/prices[warmup]-1)*100)
	emit("Simulating trades on test data...")

	balance := cfg.InitialBalance
	positions := 0
	day := 0
	for i := warmup; i < len(prices); i++ {
		price := prices[i]
		action := decide(rsi[i], hist[i], hist[i-1], cfg)
		switch action {
		case "buy":
			if balance >= price {
				balance -= price
				positions++
			} else {
				action = "hold"
			}
		case "sell":
			if positions > 0 {
				balance += price
				positions--
			} else {
				action = "hold"
			}
		}
		day++
		portfolio := balance + float64(positions)*price
		if day%10 == 0 {
			emit("Day %d: Action=%s, Price=$%.2f, RSI=%.2f, Portfolio=$%.2f",
				day, action, price, rsi[i], portfolio)
		}
	}

	finalPrice := prices[len(prices)-1]
	finalPortfolio := balance + float64(positions)*finalPrice
	roi := (finalPortfolio - cfg.InitialBalance) / cfg.InitialBalance * 100

	emit("Trading Simulation Results:")
	emit("Initial Balance: $%.2f", cfg.InitialBalance)
	emit("Final Balance: $%.2f", balance)
	emit("Final Positions: %d", positions)
	emit("Final Portfolio Value: $%.2f", finalPortfolio)
	emit("Return on Investment: %.2f%%", roi)

	logger.Infof("agentsim: session done, %d lines, roi=%.2f%%", len(lines), roi)
	return lines, nil
}

// decide maps the indicators onto buy/sell/hold. RSI extremes dominate; a
// MACD histogram sign flip acts as the momentum trigger in between.
func decide(rsi, hist, prevHist float64, cfg SimulatorConfig) string {
	switch {
	case rsi < cfg.Oversold:
		return "buy"
	case rsi > cfg.Overbought:
		return "sell"
	case hist > 0 && prevHist <= 0:
		return "buy"
	case hist < 0 && prevHist >= 0:
		return "sell"
	default:
		return "hold"
	}
}

package agentsim

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"conflux/internal/replay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	candles []Candle
	err     error
	calls   int
}

func (f *fakeMarket) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

// syntheticCandles builds a slow sine wave so RSI actually reaches both
// extremes over the run.
func syntheticCandles(n int) []Candle {
	out := make([]Candle, n)
	for i := range out {
		price := 100 + 40*math.Sin(float64(i)/8)
		out[i] = Candle{
			OpenTime:  int64(i) * 3_600_000,
			CloseTime: int64(i+1)*3_600_000 - 1,
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}

func TestRunProducesParsableSession(t *testing.T) {
	market := &fakeMarket{candles: syntheticCandles(200)}
	sim := NewSimulator(SimulatorConfig{InitialBalance: 10_000}, market, nil)

	lines, err := sim.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, lines)

	assert.Equal(t, "Loading global model...", lines[0])
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "Initial Balance: $10000.00")
	assert.Contains(t, joined, "Final Portfolio Value: $")
	assert.Contains(t, joined, "Return on Investment: ")

	// The replay side must be able to read a profit figure out of the
	// session whenever the run ends ahead.
	if total, ok := replay.CycleTotal(lines); ok {
		assert.Greater(t, total, 0.0)
	}
}

func TestRunRejectsShortHistory(t *testing.T) {
	market := &fakeMarket{candles: syntheticCandles(20)}
	sim := NewSimulator(SimulatorConfig{}, market, nil)
	_, err := sim.Run(context.Background())
	assert.Error(t, err)
}

func TestRunSurfacesSourceFailure(t *testing.T) {
	market := &fakeMarket{err: errors.New("dns failure")}
	sim := NewSimulator(SimulatorConfig{}, market, nil)
	_, err := sim.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history")
}

func TestRunServesSecondSessionFromCache(t *testing.T) {
	market := &fakeMarket{candles: syntheticCandles(200)}
	cache := NewCandleCache()
	sim := NewSimulator(SimulatorConfig{History: 200}, market, cache)

	_, err := sim.Run(context.Background())
	require.NoError(t, err)
	_, err = sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, market.calls)
}

func TestDecideThresholds(t *testing.T) {
	cfg := SimulatorConfig{}.withDefaults()
	assert.Equal(t, "buy", decide(25, -1, -1, cfg))
	assert.Equal(t, "sell", decide(75, 1, 1, cfg))
	assert.Equal(t, "buy", decide(50, 0.5, -0.5, cfg), "bullish histogram flip")
	assert.Equal(t, "sell", decide(50, -0.5, 0.5, cfg), "bearish histogram flip")
	assert.Equal(t, "hold", decide(50, 1, 1, cfg))
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"name: demo\nlines:\n  - \"Initial Balance: $100.00\"\n  - \"Final Portfolio Value: $150.00\"\n"), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", sc.Name)
	require.Len(t, sc.Lines, 2)

	total, ok := replay.CycleTotal(sc.Lines)
	require.True(t, ok)
	assert.InDelta(t, 50.0, total, 1e-9)
}

func TestLoadScenarioRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: empty\nlines: []\n"), 0o644))
	_, err := LoadScenario(path)
	assert.Error(t, err)
}

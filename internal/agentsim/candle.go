// Package agentsim is the demo trading agent behind the trade-log producer:
// it pulls candles, runs an indicator strategy over them, and reports the
// session as the plain log lines the replay engine feeds into the chat.
package agentsim

import (
	"context"
	"errors"
	"sync"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

func closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// CandleCache keeps recent candles per symbol/interval so repeated session
// starts do not refetch the whole history.
type CandleCache struct {
	shards []candleShard
}

type candleShard struct {
	mu   sync.RWMutex
	data map[string][]Candle
}

const defaultShardCount = 32

func NewCandleCache() *CandleCache {
	out := &CandleCache{shards: make([]candleShard, defaultShardCount)}
	for i := range out.shards {
		out.shards[i] = candleShard{data: make(map[string][]Candle)}
	}
	return out
}

func cacheKey(symbol, interval string) string { return symbol + "@" + interval }

func (s *CandleCache) shardFor(key string) *candleShard {
	idx := hashKey(key) % uint32(len(s.shards))
	return &s.shards[idx]
}

func (s *CandleCache) Put(ctx context.Context, symbol, interval string, ks []Candle, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval are required")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 100
	}
	k := cacheKey(symbol, interval)
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur := sh.data[k]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	sh.data[k] = cur
	return nil
}

func (s *CandleCache) Get(ctx context.Context, symbol, interval string) ([]Candle, error) {
	k := cacheKey(symbol, interval)
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	cur := sh.data[k]
	out := make([]Candle, len(cur))
	copy(out, cur)
	return out, nil
}

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

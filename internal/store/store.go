// Package store supplies historical candles to the pipeline and the
// backtester. The Postgres store is the source of truth, the Redis
// layer is a read-through cache in front of it, and the memory store
// backs tests and offline runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"smc-signal-engine/internal/market"
)

// ErrNoData means the store holds nothing for the requested range.
var ErrNoData = errors.New("store: no candles in range")

// CandleStore serves closed candles for a symbol and timeframe, open
// time ascending, within [start, end] unix millis inclusive.
type CandleStore interface {
	Candles(ctx context.Context, symbol string, tf market.Timeframe, start, end int64) ([]market.Candle, error)
}

// MemoryStore keeps candles in process. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	candles map[string][]market.Candle // keyed symbol|timeframe, kept sorted
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{candles: make(map[string][]market.Candle)}
}

func seriesKey(symbol string, tf market.Timeframe) string {
	return symbol + "|" + string(tf)
}

// Put inserts candles, replacing any candle that shares an open time.
func (s *MemoryStore) Put(symbol string, tf market.Timeframe, candles []market.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := seriesKey(symbol, tf)
	merged := s.candles[key]
	byOpen := make(map[int64]market.Candle, len(merged)+len(candles))
	for _, c := range merged {
		byOpen[c.OpenTime] = c
	}
	for _, c := range candles {
		byOpen[c.OpenTime] = c
	}
	out := make([]market.Candle, 0, len(byOpen))
	for _, c := range byOpen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	s.candles[key] = out
}

// Candles returns the stored candles inside [start, end].
func (s *MemoryStore) Candles(_ context.Context, symbol string, tf market.Timeframe, start, end int64) ([]market.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.candles[seriesKey(symbol, tf)]
	lo := sort.Search(len(all), func(i int) bool { return all[i].OpenTime >= start })
	hi := sort.Search(len(all), func(i int) bool { return all[i].OpenTime > end })
	if lo >= hi {
		return nil, fmt.Errorf("%w: %s %s [%d,%d]", ErrNoData, symbol, tf, start, end)
	}
	out := make([]market.Candle, hi-lo)
	copy(out, all[lo:hi])
	return out, nil
}

// Gap is a hole in a candle sequence: the expected open time that is
// missing and how many bars are absent.
type Gap struct {
	ExpectedOpen int64
	MissingBars  int
}

// CheckGaps verifies that candles form a contiguous sequence for the
// timeframe. Candles must already be sorted by open time.
func CheckGaps(candles []market.Candle, tf market.Timeframe) []Gap {
	step := tf.Millis()
	if step <= 0 || len(candles) < 2 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(candles); i++ {
		diff := candles[i].OpenTime - candles[i-1].OpenTime
		if diff > step {
			gaps = append(gaps, Gap{
				ExpectedOpen: candles[i-1].OpenTime + step,
				MissingBars:  int(diff/step) - 1,
			})
		}
	}
	return gaps
}

// Package cache memoizes per-window computation results so a window is
// analyzed once no matter how many stages or goroutines ask for it.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Memo couples a bounded LRU with request coalescing: concurrent
// callers of the same key share one computation, and completed results
// stay around until evicted.
type Memo struct {
	entries *lru.Cache[string, any]
	group   singleflight.Group
}

// NewMemo builds a memo holding at most maxEntries results.
func NewMemo(maxEntries int) (*Memo, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	entries, err := lru.New[string, any](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Memo{entries: entries}, nil
}

// Key builds the canonical memo key for one computation over one
// bounded window: the last bar's open time plus the bar count pin the
// window exactly.
func Key(symbol, timeframe string, lastOpen int64, bars int, kind string) string {
	return fmt.Sprintf("%s|%s|%d|%d|%s", symbol, timeframe, lastOpen, bars, kind)
}

// Do returns the cached value for key or runs compute exactly once,
// even under concurrent callers, and caches the result. Errors are not
// cached; a failed computation retries on the next call.
func (m *Memo) Do(key string, compute func() (any, error)) (any, error) {
	if v, ok := m.entries.Get(key); ok {
		return v, nil
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.entries.Get(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		m.entries.Add(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Len reports how many results are currently held.
func (m *Memo) Len() int { return m.entries.Len() }

// Purge drops every entry.
func (m *Memo) Purge() { m.entries.Purge() }

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
)

// CachedStore is a Redis read-through in front of another CandleStore.
// Cache trouble degrades to the backing store rather than failing the
// read; ErrNoData from the backing store is never cached.
type CachedStore struct {
	client  *redis.Client
	backing CandleStore
	ttl     time.Duration
	log     zerolog.Logger
}

// NewCachedStore wires a Redis client over the backing store.
func NewCachedStore(ctx context.Context, addr string, db int, backing CandleStore, ttl time.Duration, log zerolog.Logger) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{client: client, backing: backing, ttl: ttl, log: log}, nil
}

// Close releases the Redis client.
func (s *CachedStore) Close() error { return s.client.Close() }

func cacheKey(symbol string, tf market.Timeframe, start, end int64) string {
	return fmt.Sprintf("candles:%s:%s:%d:%d", symbol, tf, start, end)
}

// Candles serves from Redis when possible and falls through to the
// backing store, populating the cache on the way back.
func (s *CachedStore) Candles(ctx context.Context, symbol string, tf market.Timeframe, start, end int64) ([]market.Candle, error) {
	key := cacheKey(symbol, tf, start, end)

	payload, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var candles []market.Candle
		if jsonErr := json.Unmarshal(payload, &candles); jsonErr == nil {
			return candles, nil
		}
		// Corrupt entry: drop it and fall through.
		s.client.Del(ctx, key)
	} else if err != redis.Nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis read failed, using backing store")
	}

	candles, err := s.backing.Candles(ctx, symbol, tf, start, end)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(candles); jsonErr == nil {
		if setErr := s.client.Set(ctx, key, payload, s.ttl).Err(); setErr != nil {
			s.log.Warn().Err(setErr).Str("key", key).Msg("redis write failed")
		}
	}
	return candles, nil
}

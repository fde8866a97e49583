package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
)

// PostgresStore reads and writes candle history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore connects a pool against the DSN and verifies it.
func NewPostgresStore(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	log.Info().Msg("connected to postgres candle store")
	return &PostgresStore{pool: pool, log: log}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the candle table and its index.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(8) NOT NULL,
			open_time BIGINT NOT NULL,
			open DECIMAL(20, 8) NOT NULL,
			high DECIMAL(20, 8) NOT NULL,
			low DECIMAL(20, 8) NOT NULL,
			close DECIMAL(20, 8) NOT NULL,
			volume DECIMAL(24, 8) NOT NULL,
			close_time BIGINT NOT NULL,
			taker_buy_volume DECIMAL(24, 8) NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, timeframe, open_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candles_lookup
			ON candles(symbol, timeframe, open_time)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// InsertCandles upserts a batch, last write winning on conflicts.
func (s *PostgresStore) InsertCandles(ctx context.Context, symbol string, tf market.Timeframe, candles []market.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(
			`INSERT INTO candles
				(symbol, timeframe, open_time, open, high, low, close, volume, close_time, taker_buy_volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (symbol, timeframe, open_time) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
				close = EXCLUDED.close, volume = EXCLUDED.volume,
				close_time = EXCLUDED.close_time, taker_buy_volume = EXCLUDED.taker_buy_volume`,
			symbol, string(tf), c.OpenTime, c.Open, c.High, c.Low, c.Close,
			c.Volume, c.CloseTime, c.TakerBuyVolume,
		)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range candles {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("store: insert candles: %w", err)
		}
	}
	return nil
}

// Candles returns stored candles in [start, end], open time ascending.
func (s *PostgresStore) Candles(ctx context.Context, symbol string, tf market.Timeframe, start, end int64) ([]market.Candle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT open_time, open, high, low, close, volume, close_time, taker_buy_volume
		 FROM candles
		 WHERE symbol = $1 AND timeframe = $2 AND open_time BETWEEN $3 AND $4
		 ORDER BY open_time ASC`,
		symbol, string(tf), start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query candles: %w", err)
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close,
			&c.Volume, &c.CloseTime, &c.TakerBuyVolume); err != nil {
			return nil, fmt.Errorf("store: scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read candles: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s %s [%d,%d]", ErrNoData, symbol, tf, start, end)
	}
	return out, nil
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/api"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/pipeline"
	"smc-signal-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	candles, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store init failed")
	}
	defer cleanup()

	pipe, err := pipeline.New(*cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline init failed")
	}

	jobs := backtest.NewManager(*cfg, pipe, logger)
	server := api.NewServer(*cfg, pipe, candles, jobs, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}

// buildStore wires the candle store. Postgres backs it when a DSN is
// configured, Redis fronts it when an address is configured, and the
// in-memory store serves as the fallback for local runs.
func buildStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.CandleStore, func(), error) {
	cleanup := func() {}

	var backing store.CandleStore
	if cfg.Store.PostgresDSN != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Store.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		backing = pg
		cleanup = pg.Close
	} else {
		logger.Warn().Msg("no postgres dsn configured, using in-memory candle store")
		backing = store.NewMemoryStore()
	}

	if cfg.Store.RedisAddr == "" {
		return backing, cleanup, nil
	}

	ttl := time.Duration(cfg.Store.CacheTTLSec) * time.Second
	cached, err := store.NewCachedStore(ctx, cfg.Store.RedisAddr, cfg.Store.RedisDB, backing, ttl, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	pgCleanup := cleanup
	cleanup = func() {
		cached.Close()
		pgCleanup()
	}
	return cached, cleanup, nil
}

// Command backtest runs a walk-forward backtest over a candle CSV and
// prints the result tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/pipeline"
	"smc-signal-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	symbol := flag.String("symbol", "BTCUSDT", "symbol the candles belong to")
	timeframe := flag.String("timeframe", "1h", "bar interval of the candles")
	csvPath := flag.String("csv", "", "path to the candle CSV (required)")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -csv candles.csv [-symbol BTCUSDT] [-timeframe 1h]")
		os.Exit(2)
	}
	tf := market.Timeframe(*timeframe)
	if _, err := tf.Duration(); err != nil {
		fatal(err)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		fatal(err)
	}
	logger := logging.New(cfg.Logging)

	candles, err := store.ReadCSV(*csvPath)
	if err != nil {
		fatal(err)
	}
	logger.Info().Int("bars", len(candles)).Str("symbol", *symbol).Msg("candles loaded")
	if gaps := store.CheckGaps(candles, tf); len(gaps) > 0 {
		missing := 0
		for _, g := range gaps {
			missing += g.MissingBars
		}
		logger.Warn().Int("gaps", len(gaps)).Int("missingBars", missing).
			Msg("candle history has gaps, results may be skewed")
	}

	pipe, err := pipeline.New(*cfg, logger)
	if err != nil {
		fatal(err)
	}

	engine := backtest.NewEngine(*cfg, pipe, logger, func(p backtest.Progress) {
		logger.Info().Str("state", string(p.State)).Int("window", p.Window).
			Float64("percent", p.Percent).Msg("progress")
	})

	result, err := engine.Run(context.Background(), *symbol, tf, candles)
	if err != nil {
		fatal(err)
	}
	fmt.Println(backtest.Report(result))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

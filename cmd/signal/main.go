// Command signal evaluates the last bar of a candle CSV and prints the
// signal, corrections and trade plan.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"smc-signal-engine/config"
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
	higherPath := flag.String("higher-csv", "", "optional higher timeframe CSV for confirmation")
	higherTF := flag.String("higher-timeframe", "4h", "bar interval of the higher timeframe CSV")
	equity := flag.Float64("equity", 10000, "account equity for position sizing")
	asJSON := flag.Bool("json", false, "emit the full evaluation as JSON")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: signal -csv candles.csv [-symbol BTCUSDT] [-timeframe 1h]")
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
	task := pipeline.Task{
		Series: market.NewSeries(*symbol, string(tf), candles),
		Equity: *equity,
	}
	if *higherPath != "" {
		htf := market.Timeframe(*higherTF)
		if _, err := htf.Duration(); err != nil {
			fatal(err)
		}
		higher, err := store.ReadCSV(*higherPath)
		if err != nil {
			fatal(err)
		}
		hs := market.NewSeries(*symbol, string(htf), higher)
		task.Higher = &hs
	}

	pipe, err := pipeline.New(*cfg, logger)
	if err != nil {
		fatal(err)
	}
	eval, err := pipe.Evaluate(context.Background(), task, nil)
	if err != nil {
		fatal(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(eval); err != nil {
			fatal(err)
		}
		return
	}

	sig := eval.Signal
	fmt.Printf("%s %s  %s  confidence %.1f  rule %s\n",
		sig.Symbol, sig.Timeframe, sig.Direction, sig.Confidence, sig.Rule)
	for _, r := range sig.Reasons {
		fmt.Printf("  - %s\n", r)
	}
	if eval.Validated.WasCorrected {
		fmt.Printf("  raw call was %s at confidence %.1f\n",
			eval.Validated.Raw.Direction, eval.Validated.Raw.Confidence)
	}
	for _, c := range eval.Validated.Issues {
		fmt.Printf("  corrected: %s\n", c)
	}
	if eval.Plan != nil {
		p := eval.Plan
		fmt.Printf("plan: entry %.4f stop %.4f (%s) target %.4f (%s) qty %.6f rr %.2f\n",
			p.Entry, p.StopLoss, p.StopBasis, p.TakeProfit, p.TargetBasis, p.Quantity, p.RiskReward)
	} else if eval.PlanErr != nil {
		fmt.Printf("no trade: %v\n", eval.PlanErr)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

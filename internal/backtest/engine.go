// Package backtest replays the full signal pipeline over history in
// walk-forward folds. The model is retrained per fold on its train
// slice only, and every evaluation sees a series truncated at its bar,
// so nothing downstream can read the future.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/ml"
	"smc-signal-engine/internal/pipeline"
	"smc-signal-engine/internal/signal"
)

// State names the phase a run is in.
type State string

const (
	StateIdle        State = "idle"
	StateTraining    State = "training"
	StateEvaluating  State = "evaluating"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Progress is one status update of a running backtest.
type Progress struct {
	State        State   `json:"state"`
	Window       int     `json:"window"`
	TotalWindows int     `json:"totalWindows"`
	Percent      float64 `json:"percent"`
	Message      string  `json:"message,omitempty"`
}

// Engine runs walk-forward backtests through a pipeline.
type Engine struct {
	cfg      config.BacktestConfig
	clsCfg   config.ClassifierConfig
	pipe     *pipeline.Pipeline
	log      zerolog.Logger
	progress func(Progress)

	// warmupBars is the history the first evaluated bar of any slice
	// needs before indicators are meaningful.
	warmupBars int
}

// NewEngine wires a backtest engine. progress may be nil.
func NewEngine(cfg config.Config, pipe *pipeline.Pipeline, log zerolog.Logger, progress func(Progress)) *Engine {
	if progress == nil {
		progress = func(Progress) {}
	}
	warmup := cfg.Indicators.MACDSlow + cfg.Indicators.MACDSig + cfg.Indicators.OBLookback
	return &Engine{
		cfg:        cfg.Backtest,
		clsCfg:     cfg.Classifier,
		pipe:       pipe,
		log:        log,
		progress:   progress,
		warmupBars: warmup,
	}
}

// Run walks the candles fold by fold and aggregates the out-of-sample
// results. Candles must be sorted by open time.
func (e *Engine) Run(ctx context.Context, symbol string, tf market.Timeframe, candles []market.Candle) (*Result, error) {
	windows, err := SplitWindows(len(candles), e.cfg.TrainBars, e.cfg.TestBars, e.cfg.StepBars)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("backtest: no walk-forward windows over %d bars", len(candles))
	}

	full := market.NewSeries(symbol, string(tf), candles)
	result := newResult(symbol, string(tf))
	equity := e.cfg.InitialEquity

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.report(StateTraining, w.Index, len(windows), fmt.Sprintf("training window %d", w.Index))
		model := e.trainModel(ctx, full, w)

		e.report(StateEvaluating, w.Index, len(windows), fmt.Sprintf("evaluating window %d", w.Index))
		windowEquity, trades, err := e.runWindow(ctx, full, w, model, equity, result)
		if err != nil {
			return nil, err
		}
		equity = windowEquity

		wr := WindowResult{
			Window:    w.Index,
			TrainBars: w.TrainEnd - w.TrainStart,
			TestBars:  w.TestEnd - w.TestStart,
			Trades:    len(trades),
			ModelUsed: model != nil,
		}
		wins := 0
		for _, t := range trades {
			wr.NetProfit += t.ProfitLoss
			if t.ProfitLoss > 0 {
				wins++
			}
		}
		if len(trades) > 0 {
			wr.WinRate = float64(wins) / float64(len(trades)) * 100
		}
		result.Windows = append(result.Windows, wr)
		metrics.BacktestWindows.Inc()
	}

	e.report(StateAggregating, len(windows), len(windows), "aggregating")
	result.finalize(e.cfg.InitialEquity, equity)
	e.report(StateDone, len(windows), len(windows), "done")
	return result, nil
}

// trainModel builds barrier labels and features from the train slice
// only and fits the model. A nil return means the fold runs rule-only.
func (e *Engine) trainModel(ctx context.Context, full market.Series, w Window) signal.Model {
	labelCfg := ml.LabelConfig{
		TakeProfitATR: e.clsCfg.LabelTPATRMult,
		StopLossATR:   e.clsCfg.LabelSLATRMult,
		HorizonBars:   e.clsCfg.LabelHorizonBars,
	}
	// Labels resolve against the train view, so a horizon near the
	// boundary cannot peek into the test slice.
	trainView := full.Truncate(w.TrainEnd)

	var X [][]float64
	var y []ml.Label
	for i := w.TrainStart + e.warmupBars; i < w.TrainEnd-labelCfg.HorizonBars; i++ {
		if ctx.Err() != nil {
			return nil
		}
		view := full.Truncate(i + 1)
		eval, err := e.pipe.Evaluate(ctx, pipeline.Task{Series: view, Equity: e.cfg.InitialEquity}, nil)
		if err != nil || !eval.Snapshot.Ready {
			continue
		}
		label, ok := ml.BarrierLabel(trainView, i, eval.Snapshot.ATR, labelCfg)
		if !ok {
			continue
		}
		X = append(X, eval.Features)
		y = append(y, label)
	}

	if len(X) < e.cfg.MinTrainBars {
		e.log.Info().Int("samples", len(X)).Int("window", w.Index).
			Msg("too few training samples, running rule-only")
		return nil
	}

	clf := ml.NewClassifier(ml.GBDTConfig{
		Trees:        e.clsCfg.Trees,
		MaxDepth:     e.clsCfg.MaxDepth,
		LearningRate: e.clsCfg.LearningRate,
		MinLeaf:      e.clsCfg.MinLeaf,
	}, e.log)
	if err := clf.Fit(X, y, e.clsCfg.CalibrationSplit); err != nil {
		e.log.Warn().Err(err).Int("window", w.Index).Msg("model fit failed, running rule-only")
		return nil
	}
	return clf
}

// runWindow simulates the test slice of one fold. Entries open at the
// signal bar's close; exits fill at the barrier price when a later bar
// crosses it, the stop winning ties.
func (e *Engine) runWindow(ctx context.Context, full market.Series, w Window, model signal.Model, equity float64, result *Result) (float64, []Trade, error) {
	var open *Trade
	var openBar int
	var trades []Trade

	closeTrade := func(t *Trade, exitPrice float64, exitTime time.Time, reason string) {
		t.ExitPrice = exitPrice
		t.ExitTime = exitTime
		t.ExitReason = reason

		diff := exitPrice - t.EntryPrice
		if t.Side == string(signal.Sell) {
			diff = t.EntryPrice - exitPrice
		}
		gross := diff * t.Quantity
		fees := (t.EntryPrice + exitPrice) * t.Quantity * e.cfg.FeePercent / 100
		t.ProfitLoss = gross - fees
		if t.EntryPrice > 0 {
			t.PLPercent = diff / t.EntryPrice * 100
		}
		equity += t.ProfitLoss
		result.recordTrade(*t, equity)
		trades = append(trades, *t)
		metrics.BacktestTrades.Inc()
	}

	for i := w.TestStart; i < w.TestEnd; i++ {
		if err := ctx.Err(); err != nil {
			return equity, trades, err
		}
		c := full.At(i)

		if open != nil {
			if price, reason, hit := exitCheck(open, c, i-openBar, e.cfg.MaxHoldingBars); hit {
				closeTrade(open, price, c.Time(), reason)
				open = nil
			}
		}
		if open != nil || i == w.TestEnd-1 {
			continue
		}

		view := full.Truncate(i + 1)
		eval, err := e.pipe.Evaluate(ctx, pipeline.Task{Series: view, Equity: equity}, model)
		if err != nil {
			e.log.Debug().Err(err).Int("bar", i).Msg("evaluation failed, skipping bar")
			continue
		}
		sig := eval.Signal
		if sig.Direction == signal.Wait || sig.Confidence < e.cfg.MinConfidence || eval.Plan == nil {
			continue
		}

		open = &Trade{
			Symbol:     full.Symbol(),
			Side:       string(sig.Direction),
			Rule:       sig.Rule,
			EntryTime:  c.Time(),
			EntryPrice: eval.Plan.Entry,
			StopLoss:   eval.Plan.StopLoss,
			TakeProfit: eval.Plan.TakeProfit,
			Quantity:   eval.Plan.Quantity,
			Confidence: sig.Confidence,
			Window:     w.Index,
		}
		openBar = i
	}

	if open != nil {
		last := full.At(w.TestEnd - 1)
		closeTrade(open, last.Close, last.Time(), "window_end")
	}
	return equity, trades, nil
}

// exitCheck resolves whether the candle closes the trade. When both
// barriers sit inside one bar the stop fills first.
func exitCheck(t *Trade, c market.Candle, heldBars, maxHolding int) (float64, string, bool) {
	if t.Side == string(signal.Buy) {
		if c.Low <= t.StopLoss {
			return t.StopLoss, "stop_loss", true
		}
		if c.High >= t.TakeProfit {
			return t.TakeProfit, "take_profit", true
		}
	} else {
		if c.High >= t.StopLoss {
			return t.StopLoss, "stop_loss", true
		}
		if c.Low <= t.TakeProfit {
			return t.TakeProfit, "take_profit", true
		}
	}
	if heldBars >= maxHolding {
		return c.Close, "timeout", true
	}
	return 0, "", false
}

func (e *Engine) report(state State, window, total int, msg string) {
	percent := 0.0
	if total > 0 {
		percent = float64(window) / float64(total) * 100
	}
	e.progress(Progress{State: state, Window: window, TotalWindows: total, Percent: percent, Message: msg})
}

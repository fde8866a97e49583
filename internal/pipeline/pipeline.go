// Package pipeline wires the stages together: structural analysis,
// indicator snapshot, confluence, classification, validation and risk
// planning, all reading one bounded candle window. One bad symbol or
// bar never takes down the rest of a batch.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/cache"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/indicator"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/ml"
	"smc-signal-engine/internal/risk"
	"smc-signal-engine/internal/signal"
	"smc-signal-engine/internal/validator"
)

// Task is one evaluation request: a bounded series, an optional higher
// timeframe view of the same symbol, and the equity risk sizing works
// from.
type Task struct {
	Series market.Series
	Higher *market.Series
	Equity float64
}

// Evaluation is everything one pass produced for one bar. Signal is
// the corrected signal; Validated keeps the raw classifier output and
// the correction record next to it.
type Evaluation struct {
	Signal     signal.Signal
	Validated  validator.ValidatedSignal
	Plan       *risk.Plan
	PlanErr    error
	Snapshot   indicator.Snapshot
	Zones      []analysis.StructuralZone
	Structure  analysis.MarketStructure
	Confluence *confluence.Score
	Features   []float64
}

// Result pairs a task with its outcome in a batch run.
type Result struct {
	Symbol string
	Eval   *Evaluation
	Err    error
}

// Pipeline holds the configured stages. It carries no per-evaluation
// state, so one instance serves concurrent callers.
type Pipeline struct {
	cfg config.Config

	orderBlocks *analysis.OrderBlockDetector
	fvgs        *analysis.FVGDetector
	structure   *analysis.StructureAnalyzer
	profile     *analysis.ProfileBuilder
	delta       *analysis.DeltaAnalyzer
	scorer      *confluence.Scorer
	table       *signal.Table
	validator   *validator.Validator
	riskManager *risk.Manager

	indicatorCfg indicator.Config
	memo         *cache.Memo
	log          zerolog.Logger
}

// New builds a pipeline from the config tree.
func New(cfg config.Config, log zerolog.Logger) (*Pipeline, error) {
	memo, err := cache.NewMemo(cfg.Cache.MaxEntries)
	if err != nil {
		return nil, err
	}

	ind := indicator.DefaultConfig()
	ind.RSIPeriod = cfg.Indicators.RSIPeriod
	ind.ATRPeriod = cfg.Indicators.ATRPeriod
	ind.MACDFast = cfg.Indicators.MACDFast
	ind.MACDSlow = cfg.Indicators.MACDSlow
	ind.MACDSignal = cfg.Indicators.MACDSig
	ind.BBPeriod = cfg.Indicators.BBPeriod

	return &Pipeline{
		cfg: cfg,
		orderBlocks: analysis.NewOrderBlockDetector(analysis.OrderBlockConfig{
			MinCandles:      cfg.Indicators.OBMinCandles,
			MaxCandles:      cfg.Indicators.OBMaxCandles,
			ImpulsePercent:  cfg.Indicators.OBImpulsePercent,
			Lookback:        cfg.Indicators.OBLookback,
			RangeMultiplier: cfg.Indicators.OBRangeMultiplier,
		}),
		fvgs: analysis.NewFVGDetector(analysis.FVGConfig{
			MinGapPercent: cfg.Indicators.FVGMinGapPercent,
			ExpiryBars:    cfg.Indicators.FVGMaxAgeBars,
		}),
		structure: analysis.NewStructureAnalyzer(analysis.StructureConfig{
			SwingLookback: cfg.Indicators.SwingLookback,
		}),
		profile: analysis.NewProfileBuilder(analysis.ProfileConfig{
			Bins:             cfg.Indicators.ProfileBins,
			ValueAreaPercent: cfg.Indicators.ValueAreaPercent,
			HVNMultiplier:    cfg.Indicators.HVNMultiplier,
			LVNMultiplier:    cfg.Indicators.LVNMultiplier,
		}),
		delta: analysis.NewDeltaAnalyzer(analysis.DeltaConfig{
			DivergenceLookback: cfg.Indicators.DeltaLookback,
		}),
		scorer: confluence.NewScorer(
			cfg.Confluence.ProximityPercent,
			cfg.Confluence.MinTypeCount,
			cfg.Confluence.HigherTFWeight,
		),
		table: signal.DefaultTable(signal.RulesConfig{
			Oversold:    cfg.Classifier.Oversold,
			Overbought:  cfg.Classifier.Overbought,
			ExtremeLow:  cfg.Classifier.ExtremeOversold,
			ExtremeHigh: cfg.Classifier.ExtremeOverbought,
		}),
		validator: validator.New(validator.Config{
			OversoldRSI:        cfg.Validator.OversoldRSI,
			OverboughtRSI:      cfg.Validator.OverboughtRSI,
			InversionPenalty:   cfg.Validator.InversionPenalty,
			InversionFloor:     cfg.Validator.InversionFloor,
			MACDPenalty:        cfg.Validator.MACDPenalty,
			MACDEpsilon:        cfg.Validator.MACDEpsilon,
			NeutralRSILow:      cfg.Validator.NeutralRSILow,
			NeutralRSIHigh:     cfg.Validator.NeutralRSIHigh,
			NeutralCeiling:     cfg.Validator.NeutralCeiling,
			NeutralTrigger:     cfg.Validator.NeutralTrigger,
			ExtremeMovePercent: cfg.Validator.ExtremeMovePercent,
			LowVolumeRatio:     cfg.Validator.LowVolumeRatio,
			LowVolumeScale:     cfg.Validator.LowVolumeScale,
		}),
		riskManager: risk.NewManager(risk.Config{
			RiskPerTrade:      cfg.Risk.RiskPerTrade,
			MaxPositionFrac:   cfg.Risk.MaxPositionFrac,
			MinRiskReward:     cfg.Risk.MinRiskReward,
			StopATRMult:       cfg.Risk.StopATRMult,
			TargetRRFallback:  cfg.Risk.TargetRRFallback,
			StopBufferPercent: cfg.Risk.StopBufferPercent,
		}),
		indicatorCfg: ind,
		memo:         memo,
		log:          log,
	}, nil
}

// Evaluate runs every stage for the last bar of the task's series. The
// model may be nil for rule-only classification.
func (p *Pipeline) Evaluate(ctx context.Context, task Task, model signal.Model) (*Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	series := task.Series
	last, ok := series.Last()
	if !ok {
		return nil, fmt.Errorf("pipeline: empty series for %s", series.Symbol())
	}

	zones := p.zonesFor(series)
	structure := p.structureFor(series)
	snap := p.snapshotFor(series)
	deltaRead, deltaReady := p.delta.Analyze(series)

	in := confluence.Input{
		Price:       last.Close,
		Timeframe:   series.Timeframe(),
		Zones:       zones,
		Structure:   structure,
		Delta:       deltaRead,
		DeltaReady:  deltaReady,
		VolumeRatio: snap.VolumeRatio,
	}
	if task.Higher != nil {
		higher := *task.Higher
		in.Zones = append(in.Zones, p.zonesFor(higher)...)
		in.HigherTrend = p.structureFor(higher).Trend
		in.HasHigherTF = true
	}
	score := p.scorer.Calculate(in)

	sigCtx := signal.Context{
		Snapshot:   snap,
		Confluence: score,
		Structure:  structure,
		Delta:      deltaRead,
		DeltaReady: deltaReady,
	}
	features := ml.Features(ml.FeatureInput{
		Snapshot:   snap,
		Structure:  structure,
		Delta:      deltaRead,
		DeltaReady: deltaReady,
		Confluence: score,
	})

	classifier, err := signal.NewClassifier(p.table, model,
		p.cfg.Classifier.RuleWeight, p.cfg.Classifier.ModelWeight, p.log)
	if err != nil {
		return nil, err
	}
	raw := classifier.Classify(series.Symbol(), series.Timeframe(), last.Close, last.Time(), sigCtx, features)

	validated := p.validator.Validate(raw, snap)
	corrected := validated.Signal

	eval := &Evaluation{
		Signal:     corrected,
		Validated:  validated,
		Snapshot:   snap,
		Zones:      in.Zones,
		Structure:  structure,
		Confluence: score,
		Features:   features,
	}
	if corrected.Direction != signal.Wait {
		plan, planErr := p.riskManager.Plan(corrected, snap, in.Zones, task.Equity)
		if planErr != nil {
			eval.PlanErr = planErr
		} else {
			eval.Plan = &plan
		}
	}
	return eval, nil
}

// EvaluateBatch fans tasks out with bounded parallelism. Failures stay
// scoped to their task; every other result still comes back.
func (p *Pipeline) EvaluateBatch(ctx context.Context, tasks []Task, model signal.Model, parallelism int) []Result {
	if parallelism <= 0 {
		parallelism = 4
	}
	results := make([]Result, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			eval, err := p.Evaluate(gctx, task, model)
			results[i] = Result{Symbol: task.Series.Symbol(), Eval: eval, Err: err}
			if err != nil && gctx.Err() == nil {
				p.log.Error().Err(err).Str("symbol", task.Series.Symbol()).Msg("evaluation failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// zonesFor detects and memoizes structural zones for one bounded
// window. The key includes the window end, so a longer view of the same
// symbol never reuses a shorter view's zones.
func (p *Pipeline) zonesFor(series market.Series) []analysis.StructuralZone {
	key := windowKey(series, "zones")
	v, err := p.memo.Do(key, func() (any, error) {
		zones := p.orderBlocks.Detect(series)
		zones = append(zones, p.fvgs.Detect(series)...)
		if profile, ok := p.profile.Build(series.Tail(p.cfg.Indicators.ProfileWindowBars)); ok {
			zones = append(zones, profile.Nodes...)
		}
		return zones, nil
	})
	if err != nil {
		return nil
	}
	return v.([]analysis.StructuralZone)
}

func (p *Pipeline) structureFor(series market.Series) analysis.MarketStructure {
	key := windowKey(series, "structure")
	v, _ := p.memo.Do(key, func() (any, error) {
		return p.structure.Analyze(series), nil
	})
	return v.(analysis.MarketStructure)
}

func (p *Pipeline) snapshotFor(series market.Series) indicator.Snapshot {
	key := windowKey(series, "snapshot")
	v, _ := p.memo.Do(key, func() (any, error) {
		return indicator.Compute(series, p.indicatorCfg), nil
	})
	return v.(indicator.Snapshot)
}

func windowKey(series market.Series, kind string) string {
	last, _ := series.Last()
	return cache.Key(series.Symbol(), series.Timeframe(), last.OpenTime, series.Len(), kind)
}

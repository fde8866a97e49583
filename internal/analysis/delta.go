package analysis

import (
	"math"

	"smc-signal-engine/internal/market"
)

// DeltaConfig controls buy/sell pressure analysis.
type DeltaConfig struct {
	DivergenceLookback int     // bars compared for price/delta divergence
	AbsorptionRatio    float64 // |avg delta| vs avg range needed for absorption
	AbsorptionTravel   float64 // max price travel, in average ranges, during absorption
}

// DeltaRead is the aggregate order flow picture of the window tail.
type DeltaRead struct {
	Cumulative float64  // running delta over the whole window
	Recent     float64  // delta over the divergence lookback
	Divergence ZoneSide // bullish when price falls but delta rises, and vice versa; empty when none
	Absorption bool     // heavy one-sided flow without matching price travel
}

// DeltaAnalyzer derives directional pressure from per-candle delta.
type DeltaAnalyzer struct {
	cfg DeltaConfig
}

func NewDeltaAnalyzer(cfg DeltaConfig) *DeltaAnalyzer {
	if cfg.DivergenceLookback <= 0 {
		cfg.DivergenceLookback = 5
	}
	if cfg.AbsorptionRatio <= 0 {
		cfg.AbsorptionRatio = 2.0
	}
	if cfg.AbsorptionTravel <= 0 {
		cfg.AbsorptionTravel = 0.5
	}
	return &DeltaAnalyzer{cfg: cfg}
}

// Analyze reads delta over the series. It needs at least twice the
// divergence lookback to have a prior stretch to compare against.
func (a *DeltaAnalyzer) Analyze(series market.Series) (DeltaRead, bool) {
	n := series.Len()
	lb := a.cfg.DivergenceLookback
	if n < 2*lb {
		return DeltaRead{}, false
	}

	var read DeltaRead
	for i := 0; i < n; i++ {
		read.Cumulative += series.At(i).Delta()
	}
	for i := n - lb; i < n; i++ {
		read.Recent += series.At(i).Delta()
	}

	// Divergence: compare price change and delta sum over the last
	// lookback bars against each other.
	priceChange := series.At(n-1).Close - series.At(n-lb).Close
	switch {
	case priceChange < 0 && read.Recent > 0:
		read.Divergence = SideBullish
	case priceChange > 0 && read.Recent < 0:
		read.Divergence = SideBearish
	}

	// Absorption: heavy one-sided delta while price barely travels.
	avgRange := 0.0
	for i := n - lb; i < n; i++ {
		avgRange += series.At(i).Range()
	}
	avgRange /= float64(lb)
	travel := math.Abs(series.At(n-1).Close - series.At(n-lb).Open)
	if avgRange > 0 {
		avgDelta := math.Abs(read.Recent) / float64(lb)
		if avgDelta > avgRange*a.cfg.AbsorptionRatio && travel < avgRange*a.cfg.AbsorptionTravel {
			read.Absorption = true
		}
	}
	return read, true
}

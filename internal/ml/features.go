// Package ml trains and serves the probabilistic half of the
// classifier: gradient boosted trees over bar features, with isotonic
// calibration on a held-out slice so the emitted probabilities are
// usable as confidence.
package ml

import (
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/indicator"
)

// FeatureNames lists the model inputs in vector order. Training and
// serving both build vectors through Features, so the order is fixed in
// one place.
var FeatureNames = []string{
	"rsi",
	"rsi_slope",
	"macd_hist",
	"macd_hist_slope",
	"atr_pct",
	"ema_spread_pct",
	"bollinger_position",
	"volume_ratio",
	"price_change_24h",
	"delta_recent_norm",
	"delta_cumulative_sign",
	"trend",
	"zone_bias",
	"confluence_total",
}

// FeatureInput is everything a feature vector is derived from.
type FeatureInput struct {
	Snapshot   indicator.Snapshot
	Structure  analysis.MarketStructure
	Delta      analysis.DeltaRead
	DeltaReady bool
	Confluence *confluence.Score
}

// Features flattens the bar state into the model's input vector.
func Features(in FeatureInput) []float64 {
	s := in.Snapshot
	v := make([]float64, 0, len(FeatureNames))

	v = append(v, s.RSI)
	v = append(v, s.RSI-s.RSIPrev)
	v = append(v, s.MACDHist)
	v = append(v, s.MACDHist-s.MACDHistPrev)
	v = append(v, ratioOrZero(s.ATR, s.Price)*100)
	v = append(v, ratioOrZero(s.EMAFast-s.EMASlow, s.Price)*100)
	v = append(v, bollingerPosition(s))
	v = append(v, s.VolumeRatio)
	v = append(v, s.PriceChange24h)

	if in.DeltaReady {
		v = append(v, ratioOrZero(in.Delta.Recent, absf(in.Delta.Cumulative)+1))
		v = append(v, signOf(in.Delta.Cumulative))
	} else {
		v = append(v, 0, 0)
	}

	v = append(v, trendValue(in.Structure.Trend))

	if in.Confluence != nil {
		v = append(v, zoneBias(in.Confluence))
		v = append(v, in.Confluence.TotalScore)
	} else {
		v = append(v, 0, 0)
	}
	return v
}

// bollingerPosition maps price inside the bands to -1..1.
func bollingerPosition(s indicator.Snapshot) float64 {
	half := (s.BollingerUpper - s.BollingerLower) / 2
	if half <= 0 {
		return 0
	}
	pos := (s.Price - s.BollingerMid) / half
	if pos > 1.5 {
		pos = 1.5
	}
	if pos < -1.5 {
		pos = -1.5
	}
	return pos
}

func zoneBias(score *confluence.Score) float64 {
	switch score.Direction {
	case analysis.SideBullish:
		return score.ZoneProximity
	case analysis.SideBearish:
		return -score.ZoneProximity
	default:
		return 0
	}
}

func trendValue(t analysis.Trend) float64 {
	switch t {
	case analysis.TrendUp:
		return 1
	case analysis.TrendDown:
		return -1
	default:
		return 0
	}
}

func ratioOrZero(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func signOf(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package ml

import (
	"smc-signal-engine/internal/market"
)

// Label is the barrier outcome of a bar, encoded in class-index order.
type Label int

const (
	LabelSellWin Label = 0 // lower barrier hit first
	LabelNoTrade Label = 1 // neither barrier hit within the horizon
	LabelBuyWin  Label = 2 // upper barrier hit first
)

// LabelConfig holds the barrier geometry. Barriers are placed in ATR
// multiples around the entry close; the horizon caps how long price has
// to reach one.
type LabelConfig struct {
	TakeProfitATR float64
	StopLossATR   float64
	HorizonBars   int
}

// DefaultLabelConfig matches the classifier's trade geometry.
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{TakeProfitATR: 2.5, StopLossATR: 1.5, HorizonBars: 4}
}

// BarrierLabel resolves the label for the bar at index i using only
// candles that come after it. series must extend past i; atr is the ATR
// at bar i. The second return is false when the horizon runs past the
// end of the series, which means the bar cannot be labeled yet.
func BarrierLabel(series market.Series, i int, atr float64, cfg LabelConfig) (Label, bool) {
	if atr <= 0 || i < 0 || i+cfg.HorizonBars >= series.Len() {
		return LabelNoTrade, false
	}
	entry := series.At(i).Close
	upper := entry + atr*cfg.TakeProfitATR
	lower := entry - atr*cfg.StopLossATR

	for j := i + 1; j <= i+cfg.HorizonBars; j++ {
		c := series.At(j)
		hitUpper := c.High >= upper
		hitLower := c.Low <= lower
		switch {
		case hitUpper && hitLower:
			// Both barriers inside one bar: resolve by which side the
			// bar opened closer to, the conservative tie going down.
			if c.Open-lower <= upper-c.Open {
				return LabelSellWin, true
			}
			return LabelBuyWin, true
		case hitUpper:
			return LabelBuyWin, true
		case hitLower:
			return LabelSellWin, true
		}
	}
	return LabelNoTrade, true
}

package analysis

import (
	"smc-signal-engine/internal/market"
)

// FVGConfig controls fair value gap detection.
type FVGConfig struct {
	MinGapPercent float64 // minimum gap width relative to price
	ExpiryBars    int     // bars after which an untouched gap expires
}

// FVGDetector finds three-candle imbalances. A bullish gap exists when
// candle[i-2].High < candle[i].Low with the middle candle driving the
// displacement; bearish is the mirror.
type FVGDetector struct {
	cfg FVGConfig
}

func NewFVGDetector(cfg FVGConfig) *FVGDetector {
	if cfg.MinGapPercent <= 0 {
		cfg.MinGapPercent = 0.1
	}
	if cfg.ExpiryBars <= 0 {
		cfg.ExpiryBars = 50
	}
	return &FVGDetector{cfg: cfg}
}

// Detect scans the series for gaps and settles each one's lifecycle
// against the candles that followed it.
func (d *FVGDetector) Detect(series market.Series) []StructuralZone {
	n := series.Len()
	if n < 3 {
		return nil
	}

	var zones []StructuralZone
	for i := 2; i < n; i++ {
		first := series.At(i - 2)
		middle := series.At(i - 1)
		third := series.At(i)

		if middle.Close <= 0 {
			continue
		}

		// Bullish: gap between the first high and the third low.
		if third.Low > first.High && middle.IsBullish() {
			gapPct := (third.Low - first.High) / middle.Close * 100
			if gapPct >= d.cfg.MinGapPercent {
				zone := StructuralZone{
					ID:         zoneID(KindFairValueGap, series.Symbol(), series.Timeframe(), i-1),
					Kind:       KindFairValueGap,
					Side:       SideBullish,
					Timeframe:  series.Timeframe(),
					Low:        first.High,
					High:       third.Low,
					OriginTime: middle.Time(),
					OriginBar:  i - 1,
					Strength:   gapStrength(gapPct, d.cfg.MinGapPercent),
					State:      StateActive,
				}
				d.walkForward(series, &zone, i+1)
				zones = append(zones, zone)
			}
		}

		// Bearish: gap between the first low and the third high.
		if third.High < first.Low && !middle.IsBullish() {
			gapPct := (first.Low - third.High) / middle.Close * 100
			if gapPct >= d.cfg.MinGapPercent {
				zone := StructuralZone{
					ID:         zoneID(KindFairValueGap, series.Symbol(), series.Timeframe(), i-1),
					Kind:       KindFairValueGap,
					Side:       SideBearish,
					Timeframe:  series.Timeframe(),
					Low:        third.High,
					High:       first.Low,
					OriginTime: middle.Time(),
					OriginBar:  i - 1,
					Strength:   gapStrength(gapPct, d.cfg.MinGapPercent),
					State:      StateActive,
				}
				d.walkForward(series, &zone, i+1)
				zones = append(zones, zone)
			}
		}
	}
	return zones
}

// walkForward marks the gap filled when price trades back through its
// midpoint and expired when it stays untouched past the expiry window.
func (d *FVGDetector) walkForward(series market.Series, zone *StructuralZone, from int) {
	mid := zone.Mid()
	for i := from; i < series.Len(); i++ {
		if i-zone.OriginBar > d.cfg.ExpiryBars {
			zone.transition(StateExpired)
			return
		}
		c := series.At(i)
		if zone.Side == SideBullish && c.Low <= mid {
			zone.transition(StateFilled)
			return
		}
		if zone.Side == SideBearish && c.High >= mid {
			zone.transition(StateFilled)
			return
		}
	}
}

func gapStrength(gapPct, minPct float64) float64 {
	// Scale so a gap at the threshold scores 0.3 and 4x threshold
	// saturates at 1.0.
	return clamp01(0.3 + 0.7*(gapPct-minPct)/(3*minPct))
}

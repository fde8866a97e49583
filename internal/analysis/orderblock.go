package analysis

import (
	"smc-signal-engine/internal/market"
)

// OrderBlockConfig controls order block detection.
type OrderBlockConfig struct {
	MinCandles      int     // minimum candles in the consolidation
	MaxCandles      int     // maximum candles in the consolidation
	ImpulsePercent  float64 // minimum impulse move away from the block
	Lookback        int     // bars searched for the impulse
	RangeMultiplier float64 // consolidation range cap vs average bar range
}

// OrderBlockDetector finds consolidation zones that immediately precede
// an impulsive directional move. The consolidation's high/low becomes the
// zone; a close through the far boundary invalidates it, a revisit
// without invalidation fills it.
type OrderBlockDetector struct {
	cfg OrderBlockConfig
}

// NewOrderBlockDetector validates the config and builds a detector.
func NewOrderBlockDetector(cfg OrderBlockConfig) *OrderBlockDetector {
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = 3
	}
	if cfg.MaxCandles < cfg.MinCandles {
		cfg.MaxCandles = cfg.MinCandles + 2
	}
	if cfg.ImpulsePercent <= 0 {
		cfg.ImpulsePercent = 1.5
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 20
	}
	if cfg.RangeMultiplier <= 0 {
		cfg.RangeMultiplier = 1.5
	}
	return &OrderBlockDetector{cfg: cfg}
}

// Detect returns all order blocks visible in the series, each carried
// forward through later candles to its current lifecycle state.
func (d *OrderBlockDetector) Detect(series market.Series) []StructuralZone {
	n := series.Len()
	if n < d.cfg.Lookback+d.cfg.MaxCandles {
		return nil
	}

	avgRange := averageRange(series)
	avgClose := averageClose(series)
	if avgClose <= 0 {
		return nil
	}
	avgRangePct := avgRange / avgClose * 100

	var zones []StructuralZone
	for i := d.cfg.MaxCandles; i < n-1; i++ {
		// Impulse window: bars after i, capped at the series bound.
		impulseEnd := i + d.cfg.Lookback
		if impulseEnd >= n {
			impulseEnd = n - 1
		}
		if impulseEnd <= i {
			continue
		}

		entry := series.At(i).Close
		if entry <= 0 {
			continue
		}

		hi, lo := extremes(series, i+1, impulseEnd)
		upPct := (hi - entry) / entry * 100
		downPct := (entry - lo) / entry * 100

		var side ZoneSide
		switch {
		case upPct >= d.cfg.ImpulsePercent && upPct >= downPct:
			side = SideBullish
		case downPct >= d.cfg.ImpulsePercent:
			side = SideBearish
		default:
			continue
		}

		zone, ok := d.consolidationBefore(series, i, side, avgRangePct)
		if !ok {
			continue
		}

		zone.ID = zoneID(KindOrderBlock, series.Symbol(), series.Timeframe(), i)
		zone.Timeframe = series.Timeframe()
		d.walkForward(series, &zone, i+1)

		// Collapse overlapping duplicates from adjacent start bars.
		if len(zones) > 0 {
			prev := &zones[len(zones)-1]
			if prev.Side == zone.Side && overlaps(prev.Low, prev.High, zone.Low, zone.High) {
				continue
			}
		}
		zones = append(zones, zone)
	}
	return zones
}

// consolidationBefore checks the candles right before the impulse for a
// tight sideways range and returns it as a zone when found.
func (d *OrderBlockDetector) consolidationBefore(series market.Series, impulseStart int, side ZoneSide, avgRangePct float64) (StructuralZone, bool) {
	start := impulseStart - d.cfg.MaxCandles
	if start < 0 {
		start = 0
	}
	if impulseStart-start < d.cfg.MinCandles {
		return StructuralZone{}, false
	}

	hi, lo := extremes(series, start, impulseStart-1)
	mean := 0.0
	for i := start; i < impulseStart; i++ {
		mean += series.At(i).Close
	}
	mean /= float64(impulseStart - start)
	if mean <= 0 {
		return StructuralZone{}, false
	}

	rangePct := (hi - lo) / mean * 100
	if rangePct > avgRangePct*d.cfg.RangeMultiplier {
		return StructuralZone{}, false // too volatile to be a consolidation
	}

	strength := 1.0 - rangePct/(avgRangePct*d.cfg.RangeMultiplier)
	return StructuralZone{
		Kind:       KindOrderBlock,
		Side:       side,
		Low:        lo,
		High:       hi,
		OriginTime: series.At(impulseStart).Time(),
		OriginBar:  impulseStart,
		Strength:   clamp01(0.4 + 0.6*strength),
		State:      StateActive,
	}, true
}

// walkForward replays candles after the block's origin and settles the
// lifecycle state: a close through the far boundary invalidates, a
// revisit without invalidation fills.
func (d *OrderBlockDetector) walkForward(series market.Series, zone *StructuralZone, from int) {
	for i := from; i < series.Len(); i++ {
		c := series.At(i)
		if zone.Side == SideBullish {
			if c.Close < zone.Low {
				zone.transition(StateInvalidated)
				return
			}
			if c.Low <= zone.High && zone.State == StateActive && i > zone.OriginBar+1 {
				zone.transition(StateFilled)
			}
		} else {
			if c.Close > zone.High {
				zone.transition(StateInvalidated)
				return
			}
			if c.High >= zone.Low && zone.State == StateActive && i > zone.OriginBar+1 {
				zone.transition(StateFilled)
			}
		}
	}
}

func averageRange(series market.Series) float64 {
	n := series.Len()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += series.At(i).Range()
	}
	return sum / float64(n)
}

func averageClose(series market.Series) float64 {
	n := series.Len()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += series.At(i).Close
	}
	return sum / float64(n)
}

func extremes(series market.Series, from, to int) (hi, lo float64) {
	hi = series.At(from).High
	lo = series.At(from).Low
	for i := from + 1; i <= to; i++ {
		c := series.At(i)
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	return hi, lo
}

func overlaps(aLow, aHigh, bLow, bHigh float64) bool {
	return aLow <= bHigh && bLow <= aHigh
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

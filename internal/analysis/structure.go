package analysis

import (
	"time"

	"smc-signal-engine/internal/market"
)

// Trend is the prevailing market structure direction.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// StructureEventKind distinguishes continuation breaks from reversals.
type StructureEventKind string

const (
	EventBOS   StructureEventKind = "break_of_structure"
	EventCHoCH StructureEventKind = "change_of_character"
)

// SwingPoint is a confirmed local extreme. A swing at bar i is only
// confirmed once Lookback bars have printed on both sides, so its
// ConfirmedBar is always later than Bar.
type SwingPoint struct {
	Bar          int
	ConfirmedBar int
	Price        float64
	Time         time.Time
	IsHigh       bool
}

// StructureEvent records a close through a confirmed swing level.
type StructureEvent struct {
	Kind      StructureEventKind
	Bar       int
	Price     float64
	Level     float64 // the swing level that broke
	Time      time.Time
	Direction ZoneSide // bullish for upside breaks
}

// MarketStructure is the full structural read of a series.
type MarketStructure struct {
	Trend       Trend
	Swings      []SwingPoint
	Events      []StructureEvent
	LastHigh    *SwingPoint
	LastLow     *SwingPoint
	RecentCHoCH bool // a change of character within the tail window
}

// StructureConfig controls swing confirmation.
type StructureConfig struct {
	SwingLookback int // bars on each side needed to confirm a swing
	RecentWindow  int // bars treated as "recent" for CHoCH flagging
}

// StructureAnalyzer tracks swing points and classifies breaks of them.
type StructureAnalyzer struct {
	cfg StructureConfig
}

func NewStructureAnalyzer(cfg StructureConfig) *StructureAnalyzer {
	if cfg.SwingLookback <= 0 {
		cfg.SwingLookback = 5
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 10
	}
	return &StructureAnalyzer{cfg: cfg}
}

// Analyze builds the structural state of the series. Swings confirm
// only after SwingLookback future bars print, and break events are
// evaluated from the confirmation bar onward, never from the swing bar
// itself.
func (a *StructureAnalyzer) Analyze(series market.Series) MarketStructure {
	n := series.Len()
	lb := a.cfg.SwingLookback
	ms := MarketStructure{Trend: TrendNeutral}
	if n < 2*lb+1 {
		return ms
	}

	ms.Swings = a.findSwings(series)
	if len(ms.Swings) == 0 {
		return ms
	}

	// Replay bar by bar, holding the most recent confirmed swing high
	// and low, and classify each close through one of them.
	trend := TrendNeutral
	var lastHigh, lastLow *SwingPoint
	nextSwing := 0
	for bar := 0; bar < n; bar++ {
		for nextSwing < len(ms.Swings) && ms.Swings[nextSwing].ConfirmedBar == bar {
			s := ms.Swings[nextSwing]
			if s.IsHigh {
				cp := s
				lastHigh = &cp
			} else {
				cp := s
				lastLow = &cp
			}
			nextSwing++
		}

		c := series.At(bar)
		if lastHigh != nil && c.Close > lastHigh.Price {
			kind := EventCHoCH
			if trend == TrendUp {
				kind = EventBOS
			}
			ms.Events = append(ms.Events, StructureEvent{
				Kind:      kind,
				Bar:       bar,
				Price:     c.Close,
				Level:     lastHigh.Price,
				Time:      c.Time(),
				Direction: SideBullish,
			})
			trend = TrendUp
			lastHigh = nil
		}
		if lastLow != nil && c.Close < lastLow.Price {
			kind := EventCHoCH
			if trend == TrendDown {
				kind = EventBOS
			}
			ms.Events = append(ms.Events, StructureEvent{
				Kind:      kind,
				Bar:       bar,
				Price:     c.Close,
				Level:     lastLow.Price,
				Time:      c.Time(),
				Direction: SideBearish,
			})
			trend = TrendDown
			lastLow = nil
		}
	}

	ms.Trend = trend
	for i := len(ms.Swings) - 1; i >= 0; i-- {
		s := ms.Swings[i]
		if s.IsHigh && ms.LastHigh == nil {
			cp := s
			ms.LastHigh = &cp
		}
		if !s.IsHigh && ms.LastLow == nil {
			cp := s
			ms.LastLow = &cp
		}
		if ms.LastHigh != nil && ms.LastLow != nil {
			break
		}
	}
	for i := len(ms.Events) - 1; i >= 0; i-- {
		ev := ms.Events[i]
		if ev.Bar < n-a.cfg.RecentWindow {
			break
		}
		if ev.Kind == EventCHoCH {
			ms.RecentCHoCH = true
			break
		}
	}
	return ms
}

func (a *StructureAnalyzer) findSwings(series market.Series) []SwingPoint {
	n := series.Len()
	lb := a.cfg.SwingLookback
	var swings []SwingPoint
	for i := lb; i < n-lb; i++ {
		c := series.At(i)
		isHigh, isLow := true, true
		for j := i - lb; j <= i+lb; j++ {
			if j == i {
				continue
			}
			other := series.At(j)
			if other.High >= c.High {
				isHigh = false
			}
			if other.Low <= c.Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			swings = append(swings, SwingPoint{
				Bar: i, ConfirmedBar: i + lb, Price: c.High, Time: c.Time(), IsHigh: true,
			})
		}
		if isLow {
			swings = append(swings, SwingPoint{
				Bar: i, ConfirmedBar: i + lb, Price: c.Low, Time: c.Time(), IsHigh: false,
			})
		}
	}
	return swings
}

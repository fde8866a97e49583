package confluence

import (
	"testing"

	"smc-signal-engine/internal/analysis"
)

func zone(kind analysis.ZoneKind, side analysis.ZoneSide, low, high, strength float64, tf string) analysis.StructuralZone {
	return analysis.StructuralZone{
		ID:        string(kind) + "_test",
		Kind:      kind,
		Side:      side,
		Low:       low,
		High:      high,
		Strength:  strength,
		State:     analysis.StateActive,
		Timeframe: tf,
	}
}

func TestCalculate_RequiresKindDiversity(t *testing.T) {
	s := NewScorer(0.5, 2, 1.5)

	in := Input{
		Price:     100,
		Timeframe: "1h",
		Zones: []analysis.StructuralZone{
			zone(analysis.KindOrderBlock, analysis.SideBullish, 99.8, 100.2, 0.9, "1h"),
		},
	}
	if got := s.Calculate(in).ZoneProximity; got != 0 {
		t.Errorf("single-kind cluster scored %v, want 0", got)
	}

	in.Zones = append(in.Zones,
		zone(analysis.KindFairValueGap, analysis.SideBullish, 99.7, 100.1, 0.6, "1h"))
	score := s.Calculate(in)
	if score.ZoneProximity <= 0 {
		t.Errorf("two-kind cluster scored %v, want > 0", score.ZoneProximity)
	}
	if score.Direction != analysis.SideBullish {
		t.Errorf("direction = %s, want bullish", score.Direction)
	}
}

func TestCalculate_IgnoresInactiveZones(t *testing.T) {
	s := NewScorer(0.5, 2, 1.5)
	dead := zone(analysis.KindOrderBlock, analysis.SideBullish, 99.8, 100.2, 0.9, "1h")
	dead.State = analysis.StateInvalidated
	in := Input{
		Price:     100,
		Timeframe: "1h",
		Zones: []analysis.StructuralZone{
			dead,
			zone(analysis.KindFairValueGap, analysis.SideBullish, 99.7, 100.1, 0.6, "1h"),
		},
	}
	if got := s.Calculate(in).ZoneProximity; got != 0 {
		t.Errorf("invalidated zone contributed, proximity = %v, want 0", got)
	}
}

func TestZoneProximity_MonotonicInTolerance(t *testing.T) {
	zones := []analysis.StructuralZone{
		zone(analysis.KindOrderBlock, analysis.SideBullish, 99.9, 100.1, 0.8, "1h"),
		zone(analysis.KindFairValueGap, analysis.SideBullish, 99.3, 99.6, 0.5, "1h"),
		zone(analysis.KindProfileNode, analysis.SideBullish, 98.5, 98.9, 0.7, "1h"),
		zone(analysis.KindOrderBlock, analysis.SideBullish, 97.0, 97.5, 0.9, "1h"),
	}

	prev := -1.0
	for _, tol := range []float64{0.1, 0.5, 1.0, 2.0, 4.0} {
		s := NewScorer(tol, 2, 1.5)
		got := s.Calculate(Input{Price: 100, Timeframe: "1h", Zones: zones}).ZoneProximity
		if got < prev {
			t.Errorf("tolerance %v%%: proximity %v dropped below %v", tol, got, prev)
		}
		prev = got
	}
}

func TestCalculate_HigherTimeframeWeighs(t *testing.T) {
	base := []analysis.StructuralZone{
		zone(analysis.KindOrderBlock, analysis.SideBullish, 99.8, 100.2, 0.5, "1h"),
		zone(analysis.KindFairValueGap, analysis.SideBullish, 99.7, 100.1, 0.5, "1h"),
	}
	lifted := []analysis.StructuralZone{
		zone(analysis.KindOrderBlock, analysis.SideBullish, 99.8, 100.2, 0.5, "4h"),
		zone(analysis.KindFairValueGap, analysis.SideBullish, 99.7, 100.1, 0.5, "1h"),
	}

	s := NewScorer(0.5, 2, 1.5)
	same := s.Calculate(Input{Price: 100, Timeframe: "1h", Zones: base}).ZoneProximity
	higher := s.Calculate(Input{Price: 100, Timeframe: "1h", Zones: lifted}).ZoneProximity
	if higher <= same {
		t.Errorf("higher timeframe zone scored %v, want above %v", higher, same)
	}
}

func TestTrendScore_CHoCHDampens(t *testing.T) {
	s := NewScorer(0.5, 2, 1.5)
	steady := Input{Structure: analysis.MarketStructure{Trend: analysis.TrendUp}}
	choppy := Input{Structure: analysis.MarketStructure{Trend: analysis.TrendUp, RecentCHoCH: true}}
	if a, b := s.trendScore(steady, analysis.SideBullish), s.trendScore(choppy, analysis.SideBullish); b >= a {
		t.Errorf("recent CHoCH score %v, want below steady %v", b, a)
	}
}

func TestSetWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights [4]float64
		wantErr bool
	}{
		{"valid", [4]float64{0.4, 0.25, 0.2, 0.15}, false},
		{"under", [4]float64{0.2, 0.2, 0.2, 0.2}, true},
		{"over", [4]float64{0.5, 0.4, 0.3, 0.2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(0.5, 2, 1.5)
			err := s.SetWeights(tt.weights[0], tt.weights[1], tt.weights[2], tt.weights[3])
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// Package confluence scores how strongly independent structural reads
// agree at the current price. Zones from every timeframe are clustered
// around price; a cluster only counts when distinct zone kinds overlap.
package confluence

import (
	"fmt"
	"math"

	"smc-signal-engine/internal/analysis"
)

// Score is the aggregated agreement of structure around the current price.
type Score struct {
	// Individual components (0.0 to 1.0)
	ZoneProximity      float64
	TrendAlignment     float64
	VolumeConfirmation float64
	DeltaConfirmation  float64

	// Composite
	TotalScore float64
	Grade      string // "A+", "A", "B+", "B", "C", "D", "F"

	Direction  analysis.ZoneSide
	Clusters   []Cluster
	Reasoning  []string
	Confidence string // "Very High" down to "Very Low"
}

// Cluster is a group of active zones whose ranges sit within the
// proximity tolerance of the evaluation price.
type Cluster struct {
	Side     analysis.ZoneSide
	Zones    []analysis.StructuralZone
	Kinds    map[analysis.ZoneKind]bool
	Strength float64 // timeframe-weighted sum of zone strengths
}

// KindCount returns the number of distinct zone kinds in the cluster.
func (c Cluster) KindCount() int { return len(c.Kinds) }

// Scorer clusters zones around price and blends the structural
// components into a single score.
type Scorer struct {
	proximityPercent float64 // tolerance around price, percent
	minTypeCount     int     // distinct kinds required for a cluster to score
	higherTFWeight   float64 // strength multiplier for higher timeframe zones

	zoneWeight   float64
	trendWeight  float64
	volumeWeight float64
	deltaWeight  float64

	minScore float64
}

// NewScorer creates a scorer with default weights.
func NewScorer(proximityPercent float64, minTypeCount int, higherTFWeight float64) *Scorer {
	if proximityPercent <= 0 {
		proximityPercent = 0.5
	}
	if minTypeCount <= 0 {
		minTypeCount = 2
	}
	if higherTFWeight < 1 {
		higherTFWeight = 1.5
	}
	return &Scorer{
		proximityPercent: proximityPercent,
		minTypeCount:     minTypeCount,
		higherTFWeight:   higherTFWeight,
		zoneWeight:       0.40, // structure at price carries the most weight
		trendWeight:      0.25,
		volumeWeight:     0.20,
		deltaWeight:      0.15,
		minScore:         0.70,
	}
}

// Input carries everything the scorer reads for one evaluation bar.
type Input struct {
	Price       float64
	Timeframe   string // the evaluation timeframe
	Zones       []analysis.StructuralZone
	Structure   analysis.MarketStructure
	Delta       analysis.DeltaRead
	DeltaReady  bool
	VolumeRatio float64 // current volume vs rolling average
	HigherTrend analysis.Trend
	HasHigherTF bool
}

// Calculate clusters the active zones around price and blends the
// components. Filled, invalidated and expired zones never contribute.
func (s *Scorer) Calculate(in Input) *Score {
	score := &Score{Reasoning: make([]string, 0)}

	bull, bear := s.cluster(in)
	score.Clusters = appendNonEmpty(nil, bull, bear)

	bullStrength := clusterScore(bull, s.minTypeCount)
	bearStrength := clusterScore(bear, s.minTypeCount)
	switch {
	case bullStrength > bearStrength:
		score.Direction = analysis.SideBullish
		score.ZoneProximity = bullStrength
	case bearStrength > bullStrength:
		score.Direction = analysis.SideBearish
		score.ZoneProximity = bearStrength
	}
	if score.ZoneProximity > 0 {
		score.Reasoning = append(score.Reasoning,
			fmt.Sprintf("%s zone cluster at price (%d kinds)", score.Direction, pickCluster(bull, bear, score.Direction).KindCount()))
	}

	score.TrendAlignment = s.trendScore(in, score.Direction)
	if score.TrendAlignment > 0.8 {
		score.Reasoning = append(score.Reasoning, "Strong trend alignment")
	} else if score.TrendAlignment > 0.6 {
		score.Reasoning = append(score.Reasoning, "Moderate trend alignment")
	}

	score.VolumeConfirmation = volumeScore(in.VolumeRatio)
	if in.VolumeRatio > 1.5 {
		score.Reasoning = append(score.Reasoning,
			fmt.Sprintf("High volume confirmation (%.1fx average)", in.VolumeRatio))
	}

	score.DeltaConfirmation = deltaScore(in, score.Direction)
	if in.DeltaReady && in.Delta.Divergence == score.Direction && score.Direction != "" {
		score.Reasoning = append(score.Reasoning, "Order flow divergence supports direction")
	}
	if in.DeltaReady && in.Delta.Absorption {
		score.Reasoning = append(score.Reasoning, "Absorption detected")
	}

	score.TotalScore = score.ZoneProximity*s.zoneWeight +
		score.TrendAlignment*s.trendWeight +
		score.VolumeConfirmation*s.volumeWeight +
		score.DeltaConfirmation*s.deltaWeight
	score.Grade = scoreToGrade(score.TotalScore)
	score.Confidence = scoreToConfidence(score.TotalScore)
	return score
}

// cluster splits the active zones near price into one bullish and one
// bearish cluster. A zone is near price when price sits inside the zone
// or within the proximity tolerance of its closest edge.
func (s *Scorer) cluster(in Input) (bull, bear Cluster) {
	bull = Cluster{Side: analysis.SideBullish, Kinds: make(map[analysis.ZoneKind]bool)}
	bear = Cluster{Side: analysis.SideBearish, Kinds: make(map[analysis.ZoneKind]bool)}
	if in.Price <= 0 {
		return bull, bear
	}
	tol := in.Price * s.proximityPercent / 100

	for _, z := range in.Zones {
		if !z.Active() {
			continue
		}
		if distanceToZone(in.Price, z) > tol {
			continue
		}
		w := z.Strength
		if z.Timeframe != "" && z.Timeframe != in.Timeframe {
			w *= s.higherTFWeight
		}
		switch z.Side {
		case analysis.SideBullish:
			bull.Zones = append(bull.Zones, z)
			bull.Kinds[z.Kind] = true
			bull.Strength += w
		case analysis.SideBearish:
			bear.Zones = append(bear.Zones, z)
			bear.Kinds[z.Kind] = true
			bear.Strength += w
		}
	}
	return bull, bear
}

func (s *Scorer) trendScore(in Input, dir analysis.ZoneSide) float64 {
	if dir == "" {
		return 0.5
	}
	want := analysis.TrendUp
	if dir == analysis.SideBearish {
		want = analysis.TrendDown
	}
	score := 0.5
	if in.Structure.Trend == want {
		score = 0.85
		if in.HasHigherTF && in.HigherTrend == want {
			score = 1.0
		}
	} else if in.Structure.Trend != analysis.TrendNeutral {
		score = 0.2
	}
	if in.Structure.RecentCHoCH {
		// A fresh change of character makes any trend read less reliable.
		score *= 0.8
	}
	return score
}

func deltaScore(in Input, dir analysis.ZoneSide) float64 {
	if !in.DeltaReady || dir == "" {
		return 0.5
	}
	score := 0.5
	if in.Delta.Divergence == dir {
		score += 0.3
	} else if in.Delta.Divergence != "" {
		score -= 0.2
	}
	aligned := (dir == analysis.SideBullish && in.Delta.Recent > 0) ||
		(dir == analysis.SideBearish && in.Delta.Recent < 0)
	if aligned {
		score += 0.2
	}
	if in.Delta.Absorption {
		score += 0.1
	}
	return clampUnit(score)
}

func volumeScore(ratio float64) float64 {
	switch {
	case ratio <= 0:
		return 0.5 // no data, neutral
	case ratio > 2.0:
		return 1.0
	case ratio > 1.5:
		return 0.85
	case ratio > 1.2:
		return 0.7
	case ratio < 0.8:
		return 0.3
	default:
		return 0.5
	}
}

// clusterScore maps a cluster to 0..1. Clusters below the kind
// diversity floor score zero no matter how strong a single kind is.
func clusterScore(c Cluster, minKinds int) float64 {
	if c.KindCount() < minKinds {
		return 0
	}
	// 1 - e^-x saturates smoothly as stacked strength grows.
	return clampUnit(1 - math.Exp(-c.Strength))
}

func distanceToZone(price float64, z analysis.StructuralZone) float64 {
	if z.Contains(price) {
		return 0
	}
	if price < z.Low {
		return z.Low - price
	}
	return price - z.High
}

func pickCluster(bull, bear Cluster, dir analysis.ZoneSide) Cluster {
	if dir == analysis.SideBearish {
		return bear
	}
	return bull
}

func appendNonEmpty(out []Cluster, clusters ...Cluster) []Cluster {
	for _, c := range clusters {
		if len(c.Zones) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func scoreToGrade(score float64) string {
	switch {
	case score >= 0.90:
		return "A+"
	case score >= 0.85:
		return "A"
	case score >= 0.75:
		return "B+"
	case score >= 0.70:
		return "B"
	case score >= 0.60:
		return "C"
	case score >= 0.50:
		return "D"
	default:
		return "F"
	}
}

func scoreToConfidence(score float64) string {
	switch {
	case score >= 0.85:
		return "Very High"
	case score >= 0.75:
		return "High"
	case score >= 0.60:
		return "Medium"
	case score >= 0.45:
		return "Low"
	default:
		return "Very Low"
	}
}

// ShouldTrade reports whether the score clears the minimum bar.
func (s *Scorer) ShouldTrade(score *Score) bool {
	return score.TotalScore >= s.minScore
}

// SetMinimumScore adjusts the minimum required score.
func (s *Scorer) SetMinimumScore(min float64) { s.minScore = min }

// SetWeights replaces the component weights. They must sum to 1.0.
func (s *Scorer) SetWeights(zone, trend, volume, delta float64) error {
	total := zone + trend + volume + delta
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("weights must sum to 1.0, got %.2f", total)
	}
	s.zoneWeight = zone
	s.trendWeight = trend
	s.volumeWeight = volume
	s.deltaWeight = delta
	return nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package risk turns a validated signal into a trade plan: structural
// stop, target, and size. It rejects what it cannot price safely
// instead of guessing.
package risk

import (
	"errors"
	"fmt"
	"math"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/indicator"
	"smc-signal-engine/internal/signal"
)

var (
	// ErrNoTrade means the signal is WAIT or otherwise untradeable.
	ErrNoTrade = errors.New("risk: signal is not tradeable")
	// ErrDegenerateStop means no stop could be placed on the correct side.
	ErrDegenerateStop = errors.New("risk: degenerate stop placement")
	// ErrInsufficientRR means reward does not justify the risk.
	ErrInsufficientRR = errors.New("risk: risk-reward below minimum")
)

// Config holds sizing and placement parameters.
type Config struct {
	RiskPerTrade      float64 // equity fraction risked per trade
	MaxPositionFrac   float64 // notional cap as an equity fraction
	MinRiskReward     float64 // plans below this are rejected
	StopATRMult       float64 // ATR fallback stop distance
	TargetRRFallback  float64 // target distance when no structure offers one
	StopBufferPercent float64 // buffer past the structural level, percent of price
}

// DefaultConfig returns the production risk parameters.
func DefaultConfig() Config {
	return Config{
		RiskPerTrade:      0.01,
		MaxPositionFrac:   0.25,
		MinRiskReward:     1.5,
		StopATRMult:       1.5,
		TargetRRFallback:  2.0,
		StopBufferPercent: 0.1,
	}
}

// Plan is a fully priced trade: where to enter, where the idea is
// wrong, where to take profit, and how much to carry.
type Plan struct {
	Symbol      string           `json:"symbol"`
	Direction   signal.Direction `json:"direction"`
	Entry       float64          `json:"entry"`
	StopLoss    float64          `json:"stopLoss"`
	TakeProfit  float64          `json:"takeProfit"`
	Quantity    float64          `json:"quantity"`
	RiskAmount  float64          `json:"riskAmount"`
	RiskReward  float64          `json:"riskReward"`
	StopBasis   string           `json:"stopBasis"`   // "structural" or "atr"
	TargetBasis string           `json:"targetBasis"` // "structural" or "rr_fallback"
}

// Manager prices signals into plans. Stateless and safe for concurrent
// use.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Plan builds a trade plan for the signal or explains why there is
// none. Zones feed structural stop and target placement; the ATR is the
// fallback when no structure is usable.
func (m *Manager) Plan(sig signal.Signal, snap indicator.Snapshot, zones []analysis.StructuralZone, equity float64) (Plan, error) {
	if sig.Direction == signal.Wait {
		return Plan{}, ErrNoTrade
	}
	if equity <= 0 {
		return Plan{}, fmt.Errorf("%w: non-positive equity %.2f", ErrNoTrade, equity)
	}
	entry := sig.Price
	if entry <= 0 {
		return Plan{}, fmt.Errorf("%w: non-positive entry price", ErrNoTrade)
	}

	plan := Plan{Symbol: sig.Symbol, Direction: sig.Direction, Entry: entry}
	buffer := entry * m.cfg.StopBufferPercent / 100

	plan.StopLoss, plan.StopBasis = m.placeStop(sig.Direction, entry, buffer, snap, zones)
	if plan.StopLoss <= 0 {
		return Plan{}, ErrDegenerateStop
	}
	stopDist := math.Abs(entry - plan.StopLoss)
	if stopDist <= 0 {
		return Plan{}, ErrDegenerateStop
	}

	plan.TakeProfit, plan.TargetBasis = m.placeTarget(sig.Direction, entry, stopDist, zones)
	plan.RiskReward = math.Abs(plan.TakeProfit-entry) / stopDist
	if plan.RiskReward < m.cfg.MinRiskReward {
		return Plan{}, fmt.Errorf("%w: %.2f < %.2f", ErrInsufficientRR, plan.RiskReward, m.cfg.MinRiskReward)
	}

	// Confidence scales the size: a 60-confidence call carries 60% of
	// the full risk budget.
	confFrac := sig.Confidence / 100
	if confFrac > 1 {
		confFrac = 1
	}
	if confFrac < 0 {
		confFrac = 0
	}
	plan.Quantity = equity * m.cfg.RiskPerTrade * confFrac / stopDist
	if maxNotional := equity * m.cfg.MaxPositionFrac; plan.Quantity*entry > maxNotional {
		plan.Quantity = maxNotional / entry
	}
	plan.RiskAmount = plan.Quantity * stopDist
	return plan, nil
}

// placeStop prefers the far boundary of the nearest active supporting
// zone, buffered; without structure it falls back to an ATR distance.
func (m *Manager) placeStop(dir signal.Direction, entry, buffer float64, snap indicator.Snapshot, zones []analysis.StructuralZone) (float64, string) {
	if dir == signal.Buy {
		best := 0.0
		for _, z := range zones {
			if !z.Active() || z.Side != analysis.SideBullish {
				continue
			}
			level := z.Low - buffer
			if level < entry && level > best {
				best = level
			}
		}
		if best > 0 {
			return best, "structural"
		}
		if snap.Ready && snap.ATR > 0 {
			return entry - snap.ATR*m.cfg.StopATRMult, "atr"
		}
		return 0, ""
	}

	best := math.Inf(1)
	for _, z := range zones {
		if !z.Active() || z.Side != analysis.SideBearish {
			continue
		}
		level := z.High + buffer
		if level > entry && level < best {
			best = level
		}
	}
	if !math.IsInf(best, 1) {
		return best, "structural"
	}
	if snap.Ready && snap.ATR > 0 {
		return entry + snap.ATR*m.cfg.StopATRMult, "atr"
	}
	return 0, ""
}

// placeTarget aims at the nearest opposing structure past the entry.
// Targets are honest: a close opposing zone stays the target and the
// plan fails the risk-reward check rather than pretending the zone is
// not there. Without structure the fallback multiple of the stop
// distance applies.
func (m *Manager) placeTarget(dir signal.Direction, entry, stopDist float64, zones []analysis.StructuralZone) (float64, string) {
	if dir == signal.Buy {
		best := math.Inf(1)
		for _, z := range zones {
			if !z.Active() || z.Side != analysis.SideBearish {
				continue
			}
			if z.Low > entry && z.Low < best {
				best = z.Low
			}
		}
		if !math.IsInf(best, 1) {
			return best, "structural"
		}
		return entry + stopDist*m.cfg.TargetRRFallback, "rr_fallback"
	}

	best := 0.0
	for _, z := range zones {
		if !z.Active() || z.Side != analysis.SideBullish {
			continue
		}
		if z.High < entry && z.High > best {
			best = z.High
		}
	}
	if best > 0 {
		return best, "structural"
	}
	return entry - stopDist*m.cfg.TargetRRFallback, "rr_fallback"
}

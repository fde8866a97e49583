// Package analysis detects structural price primitives from candle
// series: order blocks, fair value gaps, market structure, volume
// profile, and order-flow delta. Every detector reads only the bounded
// series it is handed; missing history yields empty results.
package analysis

import (
	"fmt"
	"time"
)

// ZoneKind identifies which primitive produced a structural zone.
type ZoneKind string

const (
	KindOrderBlock   ZoneKind = "order_block"
	KindFairValueGap ZoneKind = "fair_value_gap"
	KindProfileNode  ZoneKind = "profile_node"
)

// ZoneSide is the direction a zone argues for.
type ZoneSide string

const (
	SideBullish ZoneSide = "bullish"
	SideBearish ZoneSide = "bearish"
)

// ZoneState is the lifecycle state of a structural zone. Transitions are
// one-way: an invalidated, filled or expired zone never becomes active
// again.
type ZoneState string

const (
	StateActive      ZoneState = "active"
	StateFilled      ZoneState = "filled"
	StateInvalidated ZoneState = "invalidated"
	StateExpired     ZoneState = "expired"
)

// StructuralZone is a price range produced by one of the detectors.
// Created by the indicator engine, mutated only by later candles crossing
// its range, never by downstream stages.
type StructuralZone struct {
	ID         string    `json:"id"`
	Kind       ZoneKind  `json:"kind"`
	Side       ZoneSide  `json:"side"`
	Low        float64   `json:"low"`
	High       float64   `json:"high"`
	OriginTime time.Time `json:"originTime"`
	OriginBar  int       `json:"originBar"`
	Strength   float64   `json:"strength"` // 0..1
	State      ZoneState `json:"state"`
	Timeframe  string    `json:"timeframe"`
}

// Contains reports whether price sits inside the zone's range.
func (z StructuralZone) Contains(price float64) bool {
	return price >= z.Low && price <= z.High
}

// Mid returns the midpoint of the zone.
func (z StructuralZone) Mid() float64 { return (z.Low + z.High) / 2 }

// Width returns the price span of the zone.
func (z StructuralZone) Width() float64 { return z.High - z.Low }

// Active reports whether the zone can still contribute to confluence.
func (z StructuralZone) Active() bool { return z.State == StateActive }

// transition moves the zone to a terminal state. Terminal states stick:
// attempting to leave one is ignored so the one-way invariant holds even
// against buggy callers.
func (z *StructuralZone) transition(next ZoneState) {
	if z.State != StateActive {
		return
	}
	z.State = next
}

func zoneID(kind ZoneKind, symbol, timeframe string, bar int) string {
	return fmt.Sprintf("%s_%s_%s_%d", kind, symbol, timeframe, bar)
}

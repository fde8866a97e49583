package signal

import (
	"smc-signal-engine/internal/analysis"
)

// RulesConfig holds the thresholds the default table is built from.
type RulesConfig struct {
	Oversold    float64 // RSI below this supports longs
	Overbought  float64 // RSI above this supports shorts
	ExtremeLow  float64 // deeply oversold, reversal territory
	ExtremeHigh float64 // deeply overbought
}

// DefaultRulesConfig mirrors the classifier defaults.
func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		Oversold:    30,
		Overbought:  70,
		ExtremeLow:  20,
		ExtremeHigh: 80,
	}
}

// DefaultTable builds the production rule table. Order matters:
// extreme reversals fire regardless of trend, with momentum agreement
// ranking above the bare extreme; then neutral-zone momentum
// crossovers; then trend-with-momentum continuations. Zone bounce,
// structure break, and order-flow rules pick up what those miss.
func DefaultTable(cfg RulesConfig) *Table {
	return NewTable([]Rule{
		{
			Name: "extreme_oversold_momentum",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Snapshot.RSI <= cfg.ExtremeLow &&
					ctx.Snapshot.MACDHist > 0
			},
			Then: Outcome{Direction: Buy, Confidence: 85},
		},
		{
			Name: "extreme_oversold",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Snapshot.RSI <= cfg.ExtremeLow
			},
			Then: Outcome{Direction: Buy, Confidence: 75},
		},
		{
			Name: "extreme_overbought_momentum",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Snapshot.RSI >= cfg.ExtremeHigh &&
					ctx.Snapshot.MACDHist < 0
			},
			Then: Outcome{Direction: Sell, Confidence: 85},
		},
		{
			Name: "extreme_overbought",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Snapshot.RSI >= cfg.ExtremeHigh
			},
			Then: Outcome{Direction: Sell, Confidence: 75},
		},
		{
			Name: "neutral_bullish_cross",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Snapshot.BullishCross() &&
					ctx.Snapshot.RSI > cfg.Oversold && ctx.Snapshot.RSI < cfg.Overbought
			},
			Then: Outcome{Direction: Buy, Confidence: 65},
		},
		{
			Name: "neutral_bearish_cross",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Snapshot.BearishCross() &&
					ctx.Snapshot.RSI > cfg.Oversold && ctx.Snapshot.RSI < cfg.Overbought
			},
			Then: Outcome{Direction: Sell, Confidence: 65},
		},
		{
			Name: "trend_momentum_buy",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Structure.Trend == analysis.TrendUp &&
					ctx.Snapshot.MomentumPositive()
			},
			Then: Outcome{Direction: Buy, Confidence: 55},
		},
		{
			Name: "trend_momentum_sell",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Structure.Trend == analysis.TrendDown &&
					!ctx.Snapshot.MomentumPositive()
			},
			Then: Outcome{Direction: Sell, Confidence: 55},
		},
		{
			Name: "oversold_zone_bounce",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Snapshot.RSI < cfg.Oversold &&
					clusterSide(ctx) == analysis.SideBullish
			},
			Then: Outcome{Direction: Buy, Confidence: 60},
		},
		{
			Name: "overbought_zone_fade",
			When: func(ctx Context) bool {
				return ctx.Snapshot.Ready && ctx.Snapshot.RSI > cfg.Overbought &&
					clusterSide(ctx) == analysis.SideBearish
			},
			Then: Outcome{Direction: Sell, Confidence: 60},
		},
		{
			Name: "bullish_structure_break",
			When: func(ctx Context) bool {
				return lastBreak(ctx, analysis.SideBullish) && ctx.Snapshot.BullishCross()
			},
			Then: Outcome{Direction: Buy, Confidence: 55},
		},
		{
			Name: "bearish_structure_break",
			When: func(ctx Context) bool {
				return lastBreak(ctx, analysis.SideBearish) && ctx.Snapshot.BearishCross()
			},
			Then: Outcome{Direction: Sell, Confidence: 55},
		},
		{
			Name: "absorption_reversal_buy",
			When: func(ctx Context) bool {
				return ctx.DeltaReady && ctx.Delta.Absorption && bullishDivergence(ctx)
			},
			Then: Outcome{Direction: Buy, Confidence: 55},
		},
		{
			Name: "absorption_reversal_sell",
			When: func(ctx Context) bool {
				return ctx.DeltaReady && ctx.Delta.Absorption && bearishDivergence(ctx)
			},
			Then: Outcome{Direction: Sell, Confidence: 55},
		},
	})
}

func bullishDivergence(ctx Context) bool {
	return ctx.DeltaReady && ctx.Delta.Divergence == analysis.SideBullish
}

func bearishDivergence(ctx Context) bool {
	return ctx.DeltaReady && ctx.Delta.Divergence == analysis.SideBearish
}

func clusterSide(ctx Context) analysis.ZoneSide {
	if ctx.Confluence == nil || ctx.Confluence.ZoneProximity <= 0 {
		return ""
	}
	return ctx.Confluence.Direction
}

func lastBreak(ctx Context, side analysis.ZoneSide) bool {
	evs := ctx.Structure.Events
	if len(evs) == 0 {
		return false
	}
	return evs[len(evs)-1].Direction == side
}

package backtest

import (
	"math"
	"time"
)

// Trade is one simulated round trip.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // "BUY" or "SELL"
	Rule       string    `json:"rule"` // the rule that produced the entry
	EntryTime  time.Time `json:"entryTime"`
	ExitTime   time.Time `json:"exitTime"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	StopLoss   float64   `json:"stopLoss"`
	TakeProfit float64   `json:"takeProfit"`
	Quantity   float64   `json:"quantity"`
	ProfitLoss float64   `json:"profitLoss"`
	PLPercent  float64   `json:"plPercent"`
	Confidence float64   `json:"confidence"`
	ExitReason string    `json:"exitReason"` // "stop_loss", "take_profit", "timeout", "window_end"
	Window     int       `json:"window"`
}

// EquityPoint is the account balance after a trade closes.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// RuleStats aggregates outcomes per entry rule.
type RuleStats struct {
	Rule        string  `json:"rule"`
	TotalTrades int     `json:"totalTrades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"winRate"`
	NetProfit   float64 `json:"netProfit"`
}

// WindowResult is the out-of-sample outcome of one walk-forward window.
type WindowResult struct {
	Window    int     `json:"window"`
	TrainBars int     `json:"trainBars"`
	TestBars  int     `json:"testBars"`
	Trades    int     `json:"trades"`
	WinRate   float64 `json:"winRate"`
	NetProfit float64 `json:"netProfit"`
	ModelUsed bool    `json:"modelUsed"` // false when training data was too thin
}

// Result is the aggregate of every walk-forward window.
type Result struct {
	Symbol        string                `json:"symbol"`
	Timeframe     string                `json:"timeframe"`
	TotalTrades   int                   `json:"totalTrades"`
	WinningTrades int                   `json:"winningTrades"`
	LosingTrades  int                   `json:"losingTrades"`
	WinRate       float64               `json:"winRate"`
	TotalProfit   float64               `json:"totalProfit"`
	TotalLoss     float64               `json:"totalLoss"`
	NetProfit     float64               `json:"netProfit"`
	ROI           float64               `json:"roi"`
	MaxDrawdown   float64               `json:"maxDrawdown"`
	AverageWin    float64               `json:"averageWin"`
	AverageLoss   float64               `json:"averageLoss"`
	ProfitFactor  float64               `json:"profitFactor"`
	SharpeRatio   float64               `json:"sharpeRatio"`
	FinalEquity   float64               `json:"finalEquity"`
	Trades        []Trade               `json:"trades"`
	EquityCurve   []EquityPoint         `json:"equityCurve"`
	Windows       []WindowResult        `json:"windows"`
	RuleStats     map[string]*RuleStats `json:"ruleStats"`
}

func newResult(symbol, timeframe string) *Result {
	return &Result{
		Symbol:    symbol,
		Timeframe: timeframe,
		Trades:    make([]Trade, 0),
		RuleStats: make(map[string]*RuleStats),
	}
}

func (r *Result) recordTrade(t Trade, equity float64) {
	r.Trades = append(r.Trades, t)
	r.EquityCurve = append(r.EquityCurve, EquityPoint{Timestamp: t.ExitTime, Equity: equity})

	stats, ok := r.RuleStats[t.Rule]
	if !ok {
		stats = &RuleStats{Rule: t.Rule}
		r.RuleStats[t.Rule] = stats
	}
	stats.TotalTrades++
	if t.ProfitLoss > 0 {
		stats.Wins++
	} else {
		stats.Losses++
	}
	stats.NetProfit += t.ProfitLoss
	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
}

// finalize computes the aggregate metrics once every window has run.
func (r *Result) finalize(initialEquity, finalEquity float64) {
	r.TotalTrades = len(r.Trades)
	r.FinalEquity = finalEquity

	for _, t := range r.Trades {
		if t.ProfitLoss > 0 {
			r.WinningTrades++
			r.TotalProfit += t.ProfitLoss
		} else {
			r.LosingTrades++
			r.TotalLoss += math.Abs(t.ProfitLoss)
		}
	}
	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}
	if r.WinningTrades > 0 {
		r.AverageWin = r.TotalProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = r.TotalLoss / float64(r.LosingTrades)
	}
	r.NetProfit = finalEquity - initialEquity
	if initialEquity > 0 {
		r.ROI = r.NetProfit / initialEquity * 100
	}
	if r.TotalLoss > 0 {
		r.ProfitFactor = r.TotalProfit / r.TotalLoss
	}
	r.MaxDrawdown = maxDrawdown(r.EquityCurve)
	r.SharpeRatio = sharpeRatio(r.Trades)
}

func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpeRatio is the per-trade return over its deviation, risk-free
// rate taken as zero.
func sharpeRatio(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	mean := 0.0
	for _, t := range trades {
		mean += t.PLPercent
	}
	mean /= float64(len(trades))

	variance := 0.0
	for _, t := range trades {
		d := t.PLPercent - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(trades)))
	if std == 0 {
		return 0
	}
	return mean / std
}

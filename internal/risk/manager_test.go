package risk

import (
	"errors"
	"math"
	"testing"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/indicator"
	"smc-signal-engine/internal/signal"
)

func buySignal(price float64) signal.Signal {
	return signal.Signal{Symbol: "BTCUSDT", Direction: signal.Buy, Confidence: 75, Price: price}
}

func activeZone(side analysis.ZoneSide, low, high float64) analysis.StructuralZone {
	return analysis.StructuralZone{
		Kind: analysis.KindOrderBlock, Side: side, Low: low, High: high,
		Strength: 0.7, State: analysis.StateActive,
	}
}

func TestPlan_StructuralStopAndTarget(t *testing.T) {
	m := NewManager(DefaultConfig())
	zones := []analysis.StructuralZone{
		activeZone(analysis.SideBullish, 98, 99),   // stop basis
		activeZone(analysis.SideBearish, 106, 107), // target basis
	}
	snap := indicator.Snapshot{Ready: true, ATR: 1.0}

	plan, err := m.Plan(buySignal(100), snap, zones, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if plan.StopBasis != "structural" {
		t.Errorf("stop basis = %s, want structural", plan.StopBasis)
	}
	wantStop := 98 - 100*0.1/100
	if math.Abs(plan.StopLoss-wantStop) > 1e-9 {
		t.Errorf("stop = %v, want %v", plan.StopLoss, wantStop)
	}
	if plan.TargetBasis != "structural" || plan.TakeProfit != 106 {
		t.Errorf("target = %v (%s), want 106 structural", plan.TakeProfit, plan.TargetBasis)
	}
	if plan.RiskReward < DefaultConfig().MinRiskReward {
		t.Errorf("rr = %v below minimum", plan.RiskReward)
	}
}

func TestPlan_ATRFallbackStop(t *testing.T) {
	m := NewManager(DefaultConfig())
	snap := indicator.Snapshot{Ready: true, ATR: 2.0}

	plan, err := m.Plan(buySignal(100), snap, nil, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if plan.StopBasis != "atr" || plan.StopLoss != 97 {
		t.Errorf("stop = %v (%s), want 97 atr", plan.StopLoss, plan.StopBasis)
	}
	if plan.TargetBasis != "rr_fallback" || plan.TakeProfit != 106 {
		t.Errorf("target = %v (%s), want 106 rr_fallback", plan.TakeProfit, plan.TargetBasis)
	}
}

func TestPlan_RiskNeverExceedsBudget(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)
	equity := 10000.0
	snap := indicator.Snapshot{Ready: true, ATR: 2.0}

	plan, err := m.Plan(buySignal(100), snap, nil, equity)
	if err != nil {
		t.Fatal(err)
	}
	loss := plan.Quantity * math.Abs(plan.Entry-plan.StopLoss)
	if loss > equity*cfg.RiskPerTrade+1e-9 {
		t.Errorf("worst-case loss %v exceeds budget %v", loss, equity*cfg.RiskPerTrade)
	}
	if notional := plan.Quantity * plan.Entry; notional > equity*cfg.MaxPositionFrac+1e-9 {
		t.Errorf("notional %v exceeds cap %v", notional, equity*cfg.MaxPositionFrac)
	}
}

func TestPlan_NotionalCapShrinksRisk(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)
	// Tight stop makes the unconstrained size enormous.
	snap := indicator.Snapshot{Ready: true, ATR: 0.05}

	plan, err := m.Plan(buySignal(100), snap, nil, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if notional := plan.Quantity * plan.Entry; math.Abs(notional-10000*cfg.MaxPositionFrac) > 1e-6 {
		t.Errorf("notional = %v, want capped at %v", notional, 10000*cfg.MaxPositionFrac)
	}
	if plan.RiskAmount >= 10000*cfg.RiskPerTrade {
		t.Errorf("risk amount %v should shrink with the capped size", plan.RiskAmount)
	}
}

func TestPlan_ConfidenceScalesSize(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)
	equity := 10000.0
	snap := indicator.Snapshot{Ready: true, ATR: 0.5}
	at := func(conf float64) Plan {
		sig := signal.Signal{Symbol: "BTCUSDT", Direction: signal.Buy, Confidence: conf, Price: 10}
		plan, err := m.Plan(sig, snap, nil, equity)
		if err != nil {
			t.Fatal(err)
		}
		return plan
	}

	full := at(100)
	half := at(50)
	if math.Abs(half.Quantity-full.Quantity/2) > 1e-9 {
		t.Errorf("quantity at 50 = %v, want half of %v", half.Quantity, full.Quantity)
	}
	wantRisk := equity * cfg.RiskPerTrade * 0.5
	if math.Abs(half.RiskAmount-wantRisk) > 1e-9 {
		t.Errorf("risk amount = %v, want %v", half.RiskAmount, wantRisk)
	}
	if over := at(150); over.Quantity != full.Quantity {
		t.Errorf("quantity at 150 = %v, confidence factor must clamp at 1", over.Quantity)
	}
}

func TestPlan_Rejections(t *testing.T) {
	m := NewManager(DefaultConfig())
	snap := indicator.Snapshot{Ready: true, ATR: 2.0}

	tests := []struct {
		name    string
		sig     signal.Signal
		snap    indicator.Snapshot
		zones   []analysis.StructuralZone
		equity  float64
		wantErr error
	}{
		{
			name: "wait signal", sig: signal.Signal{Direction: signal.Wait, Price: 100},
			snap: snap, equity: 10000, wantErr: ErrNoTrade,
		},
		{
			name: "zero equity", sig: buySignal(100),
			snap: snap, equity: 0, wantErr: ErrNoTrade,
		},
		{
			name: "no stop possible", sig: buySignal(100),
			snap: indicator.Snapshot{}, equity: 10000, wantErr: ErrDegenerateStop,
		},
		{
			name: "opposing structure too close kills rr", sig: buySignal(100),
			snap: indicator.Snapshot{Ready: true, ATR: 2.0},
			zones: []analysis.StructuralZone{
				activeZone(analysis.SideBearish, 103, 104),
			},
			equity: 10000, wantErr: ErrInsufficientRR,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Plan(tt.sig, tt.snap, tt.zones, tt.equity)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

package validator

import (
	"reflect"
	"testing"

	"smc-signal-engine/internal/indicator"
	"smc-signal-engine/internal/signal"
)

func sig(dir signal.Direction, conf float64) signal.Signal {
	return signal.Signal{Symbol: "BTCUSDT", Timeframe: "1h", Direction: dir, Confidence: conf}
}

func TestValidate_Corrections(t *testing.T) {
	v := New(DefaultConfig())

	tests := []struct {
		name          string
		in            signal.Signal
		snap          indicator.Snapshot
		wantDir       signal.Direction
		wantConf      float64
		wantCorrected bool
	}{
		{
			name:    "sell into oversold inverts to buy",
			in:      sig(signal.Sell, 80),
			snap:    indicator.Snapshot{Ready: true, RSI: 28, VolumeRatio: 1},
			wantDir: signal.Buy, wantConf: 60, wantCorrected: true,
		},
		{
			name:    "inversion never drops below the floor",
			in:      sig(signal.Sell, 40),
			snap:    indicator.Snapshot{Ready: true, RSI: 28, VolumeRatio: 1},
			wantDir: signal.Buy, wantConf: 30, wantCorrected: true,
		},
		{
			name:    "buy into overbought inverts to sell",
			in:      sig(signal.Buy, 80),
			snap:    indicator.Snapshot{Ready: true, RSI: 82, VolumeRatio: 1},
			wantDir: signal.Sell, wantConf: 60, wantCorrected: true,
		},
		{
			name:    "sell against positive MACD momentum penalized without inversion",
			in:      sig(signal.Sell, 70),
			snap:    indicator.Snapshot{Ready: true, RSI: 60, MACDHist: 0.001, VolumeRatio: 1},
			wantDir: signal.Sell, wantConf: 50, wantCorrected: true,
		},
		{
			name:    "buy against negative MACD momentum penalized without inversion",
			in:      sig(signal.Buy, 70),
			snap:    indicator.Snapshot{Ready: true, RSI: 60, MACDHist: -0.01, VolumeRatio: 1},
			wantDir: signal.Buy, wantConf: 50, wantCorrected: true,
		},
		{
			name:    "overconfident in neutral RSI band capped",
			in:      sig(signal.Buy, 85),
			snap:    indicator.Snapshot{Ready: true, RSI: 52, VolumeRatio: 1},
			wantDir: signal.Buy, wantConf: 50, wantCorrected: true,
		},
		{
			name:    "extreme 24h crash forces wait",
			in:      sig(signal.Buy, 90),
			snap:    indicator.Snapshot{Ready: true, RSI: 40, PriceChange24h: -35, VolumeRatio: 1},
			wantDir: signal.Wait, wantConf: 0, wantCorrected: true,
		},
		{
			name:    "thin volume scales confidence",
			in:      sig(signal.Buy, 80),
			snap:    indicator.Snapshot{Ready: true, RSI: 60, VolumeRatio: 0.2},
			wantDir: signal.Buy, wantConf: 40, wantCorrected: true,
		},
		{
			name:    "clean buy untouched",
			in:      sig(signal.Buy, 75),
			snap:    indicator.Snapshot{Ready: true, RSI: 60, MACDHist: 0.001, VolumeRatio: 1.2},
			wantDir: signal.Buy, wantConf: 75, wantCorrected: false,
		},
		{
			name:    "clean sell untouched",
			in:      sig(signal.Sell, 75),
			snap:    indicator.Snapshot{Ready: true, RSI: 60, MACDHist: -0.001, VolumeRatio: 1.2},
			wantDir: signal.Sell, wantConf: 75, wantCorrected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := v.Validate(tt.in, tt.snap)
			if out.Signal.Direction != tt.wantDir {
				t.Errorf("direction = %s, want %s", out.Signal.Direction, tt.wantDir)
			}
			if out.Signal.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", out.Signal.Confidence, tt.wantConf)
			}
			if out.WasCorrected != tt.wantCorrected {
				t.Errorf("wasCorrected = %v, want %v", out.WasCorrected, tt.wantCorrected)
			}
			if out.WasCorrected != (len(out.Issues) > 0) {
				t.Errorf("wasCorrected = %v with %d issues", out.WasCorrected, len(out.Issues))
			}
		})
	}
}

func TestValidate_KeepsRawSignal(t *testing.T) {
	v := New(DefaultConfig())
	in := sig(signal.Sell, 80)
	out := v.Validate(in, indicator.Snapshot{Ready: true, RSI: 28, VolumeRatio: 1})

	if out.Raw.Direction != signal.Sell || out.Raw.Confidence != 80 {
		t.Errorf("raw = %s/%v, want the uncorrected SELL at 80", out.Raw.Direction, out.Raw.Confidence)
	}
	if out.Signal.Direction != signal.Buy {
		t.Errorf("corrected direction = %s, want BUY", out.Signal.Direction)
	}
	if !out.WasCorrected {
		t.Error("wasCorrected = false after an inversion")
	}
}

func TestValidate_Idempotent(t *testing.T) {
	v := New(DefaultConfig())

	snaps := []indicator.Snapshot{
		{Ready: true, RSI: 28, VolumeRatio: 1},
		{Ready: true, RSI: 82, VolumeRatio: 1},
		{Ready: true, RSI: 60, MACDHist: 0.001, VolumeRatio: 1},
		{Ready: true, RSI: 60, MACDHist: -0.002, VolumeRatio: 1},
		{Ready: true, RSI: 52, VolumeRatio: 1},
		{Ready: true, RSI: 40, PriceChange24h: -40, VolumeRatio: 1},
		{Ready: true, RSI: 60, VolumeRatio: 0.2},
		{Ready: true, RSI: 28, MACDHist: 0.002, PriceChange24h: -5, VolumeRatio: 0.1},
	}
	for _, snap := range snaps {
		for _, dir := range []signal.Direction{signal.Buy, signal.Sell} {
			once := v.Validate(sig(dir, 85), snap)
			twice := v.Validate(once.Signal, snap)
			if !reflect.DeepEqual(once.Signal, twice.Signal) {
				t.Errorf("snap %+v dir %s: second pass changed signal\nonce:  %+v\ntwice: %+v",
					snap, dir, once.Signal, twice.Signal)
			}
			if twice.WasCorrected || len(twice.Issues) != 0 {
				t.Errorf("snap %+v dir %s: second pass applied %v", snap, dir, twice.Issues)
			}
		}
	}
}

func TestValidate_NotReadySnapshotPassesThrough(t *testing.T) {
	v := New(DefaultConfig())
	in := sig(signal.Sell, 80)
	out := v.Validate(in, indicator.Snapshot{})
	if out.Signal.Direction != signal.Sell || out.Signal.Confidence != 80 ||
		out.WasCorrected || len(out.Issues) != 0 {
		t.Errorf("got %+v, want untouched signal", out)
	}
}

package market

import "testing"

func testCandles(n int) []Candle {
	candles := make([]Candle, n)
	for i := range candles {
		base := 100.0 + float64(i)
		candles[i] = Candle{
			OpenTime:  int64(i) * 3600_000,
			Open:      base,
			High:      base + 1,
			Low:       base - 1,
			Close:     base + 0.5,
			Volume:    1000,
			CloseTime: int64(i+1)*3600_000 - 1,
		}
	}
	return candles
}

func TestSeries_TruncateBoundsAccess(t *testing.T) {
	s := NewSeries("BTCUSDT", "1h", testCandles(10))
	view := s.Truncate(5)

	if view.Len() != 5 {
		t.Fatalf("expected len 5, got %d", view.Len())
	}

	last, ok := view.Last()
	if !ok {
		t.Fatal("expected a last candle")
	}
	if last.OpenTime != 4*3600_000 {
		t.Errorf("expected last candle at index 4, got open time %d", last.OpenTime)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic when reading past the evaluation bound")
		}
	}()
	_ = view.At(5)
}

func TestSeries_TruncateNeverWidens(t *testing.T) {
	s := NewSeries("BTCUSDT", "1h", testCandles(10))
	view := s.Truncate(3)

	widened := view.Truncate(8)
	if widened.Len() != 3 {
		t.Errorf("truncate must not widen a view: got len %d", widened.Len())
	}
}

func TestSeries_FutureMutationInvariance(t *testing.T) {
	candles := testCandles(20)
	s := NewSeries("BTCUSDT", "1h", candles)
	view := s.Truncate(10)

	before := view.Closes()

	// Mutating candles after the evaluation bound must not change anything
	// the view can produce.
	for i := 10; i < 20; i++ {
		candles[i].Close = -999
		candles[i].High = -999
		candles[i].Low = -999
	}

	after := view.Closes()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("close at %d changed from %f to %f after future mutation", i, before[i], after[i])
		}
	}
}

func TestSeries_Tail(t *testing.T) {
	s := NewSeries("ETHUSDT", "15m", testCandles(10))

	tail := s.Tail(4)
	if tail.Len() != 4 {
		t.Fatalf("expected len 4, got %d", tail.Len())
	}
	if tail.At(0).OpenTime != 6*3600_000 {
		t.Errorf("expected tail to start at index 6, got open time %d", tail.At(0).OpenTime)
	}

	whole := s.Tail(100)
	if whole.Len() != 10 {
		t.Errorf("tail larger than series should return the series, got len %d", whole.Len())
	}
}

func TestCandle_Delta(t *testing.T) {
	tests := []struct {
		name   string
		candle Candle
		want   float64
	}{
		{
			name:   "taker split exact",
			candle: Candle{High: 110, Low: 90, Close: 100, Volume: 1000, TakerBuyVolume: 700},
			want:   400, // 700 buy - 300 sell
		},
		{
			name:   "estimated from close at high",
			candle: Candle{High: 110, Low: 90, Close: 110, Volume: 1000},
			want:   1000,
		},
		{
			name:   "estimated from close at low",
			candle: Candle{High: 110, Low: 90, Close: 90, Volume: 1000},
			want:   -1000,
		},
		{
			name:   "flat candle",
			candle: Candle{High: 100, Low: 100, Close: 100, Volume: 1000},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.candle.Delta(); got != tt.want {
				t.Errorf("Delta() = %f, want %f", got, tt.want)
			}
		})
	}
}

package ml

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
)

func bar(o, h, l, c float64, i int) market.Candle {
	return market.Candle{
		OpenTime: int64(i) * 3600_000, Open: o, High: h, Low: l, Close: c, Volume: 10,
	}
}

func TestBarrierLabel(t *testing.T) {
	cfg := LabelConfig{TakeProfitATR: 2.5, StopLossATR: 1.5, HorizonBars: 4}
	atr := 2.0 // upper 105, lower 97 around a 100 entry

	tests := []struct {
		name   string
		after  []market.Candle
		want   Label
		wantOK bool
	}{
		{
			name: "upper barrier first",
			after: []market.Candle{
				bar(100, 102, 99, 101, 1),
				bar(101, 106, 100, 105, 2),
				bar(105, 105, 104, 104, 3),
				bar(104, 105, 103, 104, 4),
			},
			want: LabelBuyWin, wantOK: true,
		},
		{
			name: "lower barrier first",
			after: []market.Candle{
				bar(100, 101, 96.5, 97, 1),
				bar(97, 106, 96, 105, 2),
				bar(105, 105, 104, 104, 3),
				bar(104, 105, 103, 104, 4),
			},
			want: LabelSellWin, wantOK: true,
		},
		{
			name: "neither barrier inside horizon",
			after: []market.Candle{
				bar(100, 102, 99, 101, 1),
				bar(101, 103, 100, 102, 2),
				bar(102, 103, 100, 101, 3),
				bar(101, 102, 99, 100, 4),
			},
			want: LabelNoTrade, wantOK: true,
		},
		{
			name: "both barriers one bar resolves to nearer side",
			after: []market.Candle{
				bar(100, 106, 96, 100, 1),
				bar(100, 101, 99, 100, 2),
				bar(100, 101, 99, 100, 3),
				bar(100, 101, 99, 100, 4),
			},
			want: LabelSellWin, wantOK: true,
		},
		{
			name: "both barriers equidistant from open goes down",
			after: []market.Candle{
				bar(101, 106, 96, 100, 1),
				bar(100, 101, 99, 100, 2),
				bar(100, 101, 99, 100, 3),
				bar(100, 101, 99, 100, 4),
			},
			want: LabelSellWin, wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := append([]market.Candle{bar(100, 101, 99, 100, 0)}, tt.after...)
			got, ok := BarrierLabel(market.NewSeries("X", "1h", candles), 0, atr, cfg)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("label = %v ok=%v, want %v ok=%v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBarrierLabel_HorizonPastSeriesEnd(t *testing.T) {
	candles := []market.Candle{bar(100, 101, 99, 100, 0), bar(100, 101, 99, 100, 1)}
	if _, ok := BarrierLabel(market.NewSeries("X", "1h", candles), 0, 2.0, DefaultLabelConfig()); ok {
		t.Error("expected unlabelable when horizon runs past the series")
	}
}

func separableSet(n int, rng *rand.Rand) ([][]float64, []int) {
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		x := rng.Float64()*6 - 3
		noise := rng.Float64()*0.2 - 0.1
		X[i] = []float64{x, noise}
		switch {
		case x < -1:
			y[i] = 0
		case x > 1:
			y[i] = 2
		default:
			y[i] = 1
		}
	}
	return X, y
}

func TestGBDT_LearnsSeparableClasses(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	X, y := separableSet(300, rng)

	g := NewGBDT(GBDTConfig{Trees: 25, MaxDepth: 3, LearningRate: 0.3, MinLeaf: 5}, 3)
	if err := g.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		x    float64
		want int
	}{
		{-2.5, 0},
		{0, 1},
		{2.5, 2},
	}
	for _, tt := range tests {
		proba, err := g.PredictProba([]float64{tt.x, 0})
		if err != nil {
			t.Fatal(err)
		}
		best := 0
		for k := 1; k < 3; k++ {
			if proba[k] > proba[best] {
				best = k
			}
		}
		if best != tt.want {
			t.Errorf("x=%v: predicted class %d (%v), want %d", tt.x, best, proba, tt.want)
		}
	}
}

func TestGBDT_RejectsBadInput(t *testing.T) {
	g := NewGBDT(DefaultGBDTConfig(), 3)
	if err := g.Fit(nil, nil); err == nil {
		t.Error("expected error on empty set")
	}
	if _, err := g.PredictProba([]float64{1}); err == nil {
		t.Error("expected error before fit")
	}
}

func TestIsotonic_MonotoneInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	scores := make([]float64, 200)
	outcomes := make([]float64, 200)
	for i := range scores {
		scores[i] = rng.Float64()
		// Outcome probability rises with score, with noise.
		if rng.Float64() < scores[i] {
			outcomes[i] = 1
		}
	}

	iso, err := FitIsotonic(scores, outcomes)
	if err != nil {
		t.Fatal(err)
	}
	prev := -1.0
	for s := 0.0; s <= 1.0; s += 0.01 {
		v := iso.Transform(s)
		if v < prev {
			t.Fatalf("transform(%v) = %v dropped below %v", s, v, prev)
		}
		if v < 0 || v > 1 {
			t.Fatalf("transform(%v) = %v outside [0,1]", s, v)
		}
		prev = v
	}
}

func TestClassifier_FitAndPredict(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	X, raw := separableSet(400, rng)
	y := make([]Label, len(raw))
	for i, v := range raw {
		y[i] = Label(v)
	}

	c := NewClassifier(GBDTConfig{Trees: 25, MaxDepth: 3, LearningRate: 0.3, MinLeaf: 5}, zerolog.Nop())
	if err := c.Fit(X, y, 0.2); err != nil {
		t.Fatal(err)
	}
	if !c.Trained() {
		t.Fatal("expected trained")
	}

	proba, err := c.PredictProba([]float64{2.5, 0})
	if err != nil {
		t.Fatal(err)
	}
	sum := proba[0] + proba[1] + proba[2]
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("probabilities sum to %v, want 1", sum)
	}
	if proba[2] < proba[0] || proba[2] < proba[1] {
		t.Errorf("proba = %v, want buy-win class dominant at x=2.5", proba)
	}
}

func TestFeatures_WidthMatchesNames(t *testing.T) {
	v := Features(FeatureInput{})
	if len(v) != len(FeatureNames) {
		t.Errorf("vector width %d, feature names %d", len(v), len(FeatureNames))
	}
}

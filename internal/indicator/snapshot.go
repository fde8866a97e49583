// Package indicator computes oscillator, momentum and volatility state
// for one evaluation bar. All series math is delegated to go-talib; this
// package only assembles the decision-time snapshot the classifier,
// validator and risk manager consume.
package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"smc-signal-engine/internal/market"
)

// Snapshot is the oscillator/momentum/volatility state at the last bar of
// a series. Zero-valued fields with Ready=false mean the series was too
// short; callers treat that as a non-contributing input, not an error.
type Snapshot struct {
	Ready bool

	Price          float64
	RSI            float64
	RSIPrev        float64
	MACD           float64
	MACDSignal     float64
	MACDHist       float64
	MACDHistPrev   float64
	ATR            float64
	EMAFast        float64
	EMASlow        float64
	BollingerUpper float64
	BollingerMid   float64
	BollingerLower float64

	VolumeRatio    float64 // last bar volume vs rolling average
	PriceChange24h float64 // percent move over the trailing day
}

// Config holds the indicator lookbacks.
type Config struct {
	RSIPeriod  int
	ATRPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	EMAFast    int
	EMASlow    int
	BBPeriod   int
	VolumeSMA  int
	BarsPerDay int
}

// DefaultConfig returns the standard lookbacks for a 1h series.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:  14,
		ATRPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		EMAFast:    20,
		EMASlow:    50,
		BBPeriod:   20,
		VolumeSMA:  20,
		BarsPerDay: 24,
	}
}

// Compute assembles a Snapshot from the last bar of the series. A series
// shorter than the slowest lookback yields Ready=false.
func Compute(series market.Series, cfg Config) Snapshot {
	n := series.Len()
	required := maxInt(cfg.MACDSlow+cfg.MACDSignal, cfg.EMASlow, cfg.BBPeriod, cfg.RSIPeriod+1, cfg.ATRPeriod+1)
	if n < required {
		return Snapshot{}
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()

	snap := Snapshot{Ready: true, Price: closes[n-1]}

	rsi := talib.Rsi(closes, cfg.RSIPeriod)
	snap.RSI = lastValid(rsi)
	snap.RSIPrev = lastValidBefore(rsi, len(rsi)-1)

	macd, signal, hist := talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	snap.MACD = lastValid(macd)
	snap.MACDSignal = lastValid(signal)
	snap.MACDHist = lastValid(hist)
	snap.MACDHistPrev = lastValidBefore(hist, len(hist)-1)

	snap.ATR = lastValid(talib.Atr(highs, lows, closes, cfg.ATRPeriod))
	snap.EMAFast = lastValid(talib.Ema(closes, cfg.EMAFast))
	snap.EMASlow = lastValid(talib.Ema(closes, cfg.EMASlow))

	upper, mid, lower := talib.BBands(closes, cfg.BBPeriod, 2, 2, talib.SMA)
	snap.BollingerUpper = lastValid(upper)
	snap.BollingerMid = lastValid(mid)
	snap.BollingerLower = lastValid(lower)

	snap.VolumeRatio = volumeRatio(volumes, cfg.VolumeSMA)
	snap.PriceChange24h = priceChange(closes, cfg.BarsPerDay)

	return snap
}

// MomentumPositive reports whether the MACD histogram confirms upside
// momentum at the snapshot bar.
func (s Snapshot) MomentumPositive() bool { return s.MACDHist > 0 }

// BullishCross reports a MACD histogram sign flip from negative to
// positive at the snapshot bar, BearishCross the symmetric flip.
func (s Snapshot) BullishCross() bool { return s.MACDHistPrev <= 0 && s.MACDHist > 0 }

func (s Snapshot) BearishCross() bool { return s.MACDHistPrev >= 0 && s.MACDHist < 0 }

func volumeRatio(volumes []float64, period int) float64 {
	n := len(volumes)
	if n == 0 {
		return 0
	}
	if period > n {
		period = n
	}
	sum := 0.0
	for i := n - period; i < n; i++ {
		sum += volumes[i]
	}
	avg := sum / float64(period)
	if avg <= 0 {
		return 0
	}
	return volumes[n-1] / avg
}

func priceChange(closes []float64, bars int) float64 {
	n := len(closes)
	if n == 0 || bars <= 0 {
		return 0
	}
	ref := 0
	if n > bars {
		ref = n - 1 - bars
	}
	if closes[ref] == 0 {
		return 0
	}
	return (closes[n-1] - closes[ref]) / closes[ref] * 100
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func lastValidBefore(series []float64, end int) float64 {
	for i := end - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func maxInt(values ...int) int {
	out := 0
	for _, v := range values {
		if v > out {
			out = v
		}
	}
	return out
}

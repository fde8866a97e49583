package market

import "fmt"

// Series is a read-only view over a candle sequence, bounded at an
// evaluation index. Every stage of the pipeline receives a Series rather
// than a raw slice, so candles after the evaluation bar are structurally
// unreachable: the view physically cannot hand them out.
type Series struct {
	symbol    string
	timeframe string
	candles   []Candle // backing array, never exposed beyond end
	end       int      // exclusive upper bound
}

// NewSeries builds a Series over all of candles. The slice is not copied;
// callers must not mutate it afterwards.
func NewSeries(symbol, timeframe string, candles []Candle) Series {
	return Series{symbol: symbol, timeframe: timeframe, candles: candles, end: len(candles)}
}

// Symbol returns the instrument symbol the series belongs to.
func (s Series) Symbol() string { return s.symbol }

// Timeframe returns the bar interval of the series, e.g. "1h".
func (s Series) Timeframe() string { return s.timeframe }

// Len returns the number of reachable candles.
func (s Series) Len() int { return s.end }

// At returns the candle at index i. It panics on out-of-range access the
// same way a slice would; indices at or beyond the evaluation bound are
// out of range by construction.
func (s Series) At(i int) Candle {
	if i < 0 || i >= s.end {
		panic(fmt.Sprintf("market: series index %d out of range [0,%d)", i, s.end))
	}
	return s.candles[i]
}

// Last returns the most recent reachable candle and false when empty.
func (s Series) Last() (Candle, bool) {
	if s.end == 0 {
		return Candle{}, false
	}
	return s.candles[s.end-1], true
}

// Truncate returns a Series bounded at end (exclusive). The result can
// only shrink: asking for more candles than the receiver holds yields the
// receiver unchanged, never a wider view.
func (s Series) Truncate(end int) Series {
	if end > s.end {
		end = s.end
	}
	if end < 0 {
		end = 0
	}
	out := s
	out.end = end
	return out
}

// Tail returns a Series covering the last n candles.
func (s Series) Tail(n int) Series {
	if n >= s.end {
		return s
	}
	out := s
	out.candles = s.candles[s.end-n : s.end]
	out.end = n
	return out
}

// Closes copies out the close prices of all reachable candles.
func (s Series) Closes() []float64 {
	out := make([]float64, s.end)
	for i := 0; i < s.end; i++ {
		out[i] = s.candles[i].Close
	}
	return out
}

// Highs copies out the high prices of all reachable candles.
func (s Series) Highs() []float64 {
	out := make([]float64, s.end)
	for i := 0; i < s.end; i++ {
		out[i] = s.candles[i].High
	}
	return out
}

// Lows copies out the low prices of all reachable candles.
func (s Series) Lows() []float64 {
	out := make([]float64, s.end)
	for i := 0; i < s.end; i++ {
		out[i] = s.candles[i].Low
	}
	return out
}

// Volumes copies out the volumes of all reachable candles.
func (s Series) Volumes() []float64 {
	out := make([]float64, s.end)
	for i := 0; i < s.end; i++ {
		out[i] = s.candles[i].Volume
	}
	return out
}

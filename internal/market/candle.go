package market

import "time"

// Candle represents a single OHLCV bar. Immutable once produced.
type Candle struct {
	OpenTime       int64   `json:"openTime"` // unix millis
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Close          float64 `json:"close"`
	Volume         float64 `json:"volume"`
	CloseTime      int64   `json:"closeTime"`
	TakerBuyVolume float64 `json:"takerBuyVolume,omitempty"`
}

// Time returns the candle open time as time.Time.
func (c Candle) Time() time.Time {
	return time.Unix(c.OpenTime/1000, (c.OpenTime%1000)*int64(time.Millisecond))
}

// Range returns the high-low span of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// Delta returns signed volume for the bar: buy-initiated minus
// sell-initiated. When the feed carries taker buy volume that split is
// exact; otherwise it is estimated from where the close sits in the
// candle's range.
func (c Candle) Delta() float64 {
	if c.TakerBuyVolume > 0 && c.TakerBuyVolume <= c.Volume {
		return c.TakerBuyVolume - (c.Volume - c.TakerBuyVolume)
	}
	r := c.Range()
	if r <= 0 {
		return 0
	}
	buyFraction := (c.Close - c.Low) / r
	return c.Volume * (2*buyFraction - 1)
}

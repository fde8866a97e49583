package market

import (
	"fmt"
	"time"
)

// Timeframe represents a chart bar interval.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Duration returns the bar length of the timeframe.
func (tf Timeframe) Duration() (time.Duration, error) {
	switch tf {
	case TF1m:
		return time.Minute, nil
	case TF5m:
		return 5 * time.Minute, nil
	case TF15m:
		return 15 * time.Minute, nil
	case TF1h:
		return time.Hour, nil
	case TF4h:
		return 4 * time.Hour, nil
	case TF1d:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("market: unknown timeframe %q", tf)
	}
}

// Millis returns the bar length in milliseconds, 0 for unknown timeframes.
func (tf Timeframe) Millis() int64 {
	d, err := tf.Duration()
	if err != nil {
		return 0
	}
	return d.Milliseconds()
}

// BarsPerDay returns how many bars of this timeframe fit in 24 hours.
func (tf Timeframe) BarsPerDay() int {
	d, err := tf.Duration()
	if err != nil || d <= 0 {
		return 0
	}
	return int(24 * time.Hour / d)
}

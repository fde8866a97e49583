package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"smc-signal-engine/internal/market"
)

// ReadCSV loads candles from a flat file. Columns:
// openTime(ms),open,high,low,close,volume[,closeTime,takerBuyVolume].
// A single header row is tolerated.
func ReadCSV(path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var candles []market.Candle
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 6 {
			return nil, fmt.Errorf("store: line %d: want at least 6 columns, got %d", line, len(rec))
		}
		if line == 1 {
			if _, err := strconv.ParseInt(rec[0], 10, 64); err != nil {
				continue // header row
			}
		}

		var c market.Candle
		if c.OpenTime, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
			return nil, fmt.Errorf("store: line %d: open time: %w", line, err)
		}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for i, dst := range fields {
			if *dst, err = strconv.ParseFloat(rec[i+1], 64); err != nil {
				return nil, fmt.Errorf("store: line %d: column %d: %w", line, i+2, err)
			}
		}
		if len(rec) > 6 {
			if c.CloseTime, err = strconv.ParseInt(rec[6], 10, 64); err != nil {
				return nil, fmt.Errorf("store: line %d: close time: %w", line, err)
			}
		}
		if len(rec) > 7 {
			if c.TakerBuyVolume, err = strconv.ParseFloat(rec[7], 64); err != nil {
				return nil, fmt.Errorf("store: line %d: taker buy volume: %w", line, err)
			}
		}
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("store: %s holds no candles", path)
	}
	return candles, nil
}

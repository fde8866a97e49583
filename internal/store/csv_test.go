package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeTemp(t, "openTime,open,high,low,close,volume,closeTime,takerBuyVolume\n"+
		"1000,100,101,99,100.5,12,1999,7\n"+
		"2000,100.5,102,100,101.5,15\n")

	candles, err := ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles", len(candles))
	}
	first := candles[0]
	if first.OpenTime != 1000 || first.Close != 100.5 || first.CloseTime != 1999 || first.TakerBuyVolume != 7 {
		t.Errorf("first candle parsed as %+v", first)
	}
	if candles[1].TakerBuyVolume != 0 {
		t.Errorf("short row should leave taker buy volume unset, got %v", candles[1].TakerBuyVolume)
	}
}

func TestReadCSV_NoHeader(t *testing.T) {
	path := writeTemp(t, "1000,100,101,99,100.5,12\n")
	candles, err := ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles", len(candles))
	}
}

func TestReadCSV_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"too few columns", "1000,100,101\n"},
		{"bad price", "1000,abc,101,99,100.5,12\n"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(writeTemp(t, tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/pipeline"
	"smc-signal-engine/internal/store"
)

func testServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	pipe, err := pipeline.New(*cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	mem := store.NewMemoryStore()
	jobs := backtest.NewManager(*cfg, pipe, zerolog.Nop())
	return NewServer(*cfg, pipe, mem, jobs, zerolog.Nop()), mem
}

func seedCandles(t *testing.T, mem *store.MemoryStore, symbol string, n int) {
	t.Helper()
	base := time.Now().Add(-time.Duration(n) * time.Hour).UnixMilli()
	candles := make([]market.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		drift := 0.3 * math.Sin(float64(i)/7)
		open := price
		close := price + drift
		candles[i] = market.Candle{
			OpenTime:  base + int64(i)*3600_000,
			Open:      open,
			High:      math.Max(open, close) + 0.2,
			Low:       math.Min(open, close) - 0.2,
			Close:     close,
			Volume:    10,
			CloseTime: base + int64(i+1)*3600_000 - 1,
		}
		price = close
	}
	mem.Put(symbol, market.TF1h, candles)
}

func TestHandleHealth(t *testing.T) {
	s, _ := testServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}

func TestHandleGetSignal(t *testing.T) {
	s, mem := testServer(t)
	seedCandles(t, mem, "BTCUSDT", 200)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"ok", "/api/signal?symbol=BTCUSDT&timeframe=1h", http.StatusOK},
		{"missing symbol", "/api/signal", http.StatusBadRequest},
		{"bad timeframe", "/api/signal?symbol=BTCUSDT&timeframe=7x", http.StatusBadRequest},
		{"unknown symbol", "/api/signal?symbol=NOPE&timeframe=1h", http.StatusNotFound},
		{"bad limit", "/api/signal?symbol=BTCUSDT&limit=0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, httptest.NewRequest("GET", tt.url, nil))
			if w.Code != tt.want {
				t.Fatalf("status %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/signal?symbol=BTCUSDT&timeframe=1h", nil))
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Signal struct {
				Direction  string  `json:"direction"`
				Confidence float64 `json:"confidence"`
			} `json:"signal"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatal("success flag not set")
	}
	switch resp.Data.Signal.Direction {
	case "BUY", "SELL", "WAIT":
	default:
		t.Fatalf("direction %q", resp.Data.Signal.Direction)
	}
	if resp.Data.Signal.Confidence < 0 || resp.Data.Signal.Confidence > 100 {
		t.Fatalf("confidence %v", resp.Data.Signal.Confidence)
	}
}

func TestHandleStartBacktest_Rejections(t *testing.T) {
	s, mem := testServer(t)
	seedCandles(t, mem, "BTCUSDT", 200) // far below one train+test window

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing fields", `{"symbol":"BTCUSDT"}`, http.StatusBadRequest},
		{"bad timeframe", `{"symbol":"BTCUSDT","timeframe":"7x","start":1,"end":2}`, http.StatusBadRequest},
		{"inverted range", `{"symbol":"BTCUSDT","timeframe":"1h","start":9,"end":2}`, http.StatusBadRequest},
		{"too few bars", `{"symbol":"BTCUSDT","timeframe":"1h","start":1,"end":99999999999999}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/backtest", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleJobs(t *testing.T) {
	s, _ := testServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/backtest/jobs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/backtest/jobs/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("get status %d", w.Code)
	}
}

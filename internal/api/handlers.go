package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/pipeline"
	"smc-signal-engine/internal/store"
)

const maxRequestBars = 5000

// handleGetSignal evaluates the latest bar of a symbol.
// GET /api/signal?symbol=BTCUSDT&timeframe=1h&limit=500&higher=4h
func (s *Server) handleGetSignal(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}
	tf := market.Timeframe(c.DefaultQuery("timeframe", "1h"))
	if _, err := tf.Duration(); err != nil {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe "+string(tf))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "500"))
	if err != nil || limit < 1 || limit > maxRequestBars {
		errorResponse(c, http.StatusBadRequest, "limit must be between 1 and 5000")
		return
	}
	equity, err := strconv.ParseFloat(c.DefaultQuery("equity", "0"), 64)
	if err != nil || equity < 0 {
		errorResponse(c, http.StatusBadRequest, "equity must be a non-negative number")
		return
	}
	if equity == 0 {
		equity = s.cfg.Backtest.InitialEquity
	}

	ctx := c.Request.Context()
	series, err := s.loadSeries(ctx, symbol, tf, limit)
	if err != nil {
		s.storeError(c, err)
		return
	}

	task := pipeline.Task{Series: series, Equity: equity}
	if higher := c.Query("higher"); higher != "" {
		htf := market.Timeframe(higher)
		if _, err := htf.Duration(); err != nil {
			errorResponse(c, http.StatusBadRequest, "unknown higher timeframe "+higher)
			return
		}
		higherSeries, err := s.loadSeries(ctx, symbol, htf, limit)
		if err == nil {
			task.Higher = &higherSeries
		} else if !errors.Is(err, store.ErrNoData) {
			s.storeError(c, err)
			return
		}
	}

	eval, err := s.pipe.Evaluate(ctx, task, nil)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "evaluation failed: "+err.Error())
		return
	}
	metrics.SignalsEvaluated.WithLabelValues(string(eval.Signal.Direction)).Inc()

	resp := gin.H{
		"signal":       eval.Signal,
		"rawSignal":    eval.Validated.Raw,
		"wasCorrected": eval.Validated.WasCorrected,
		"corrections":  eval.Validated.Issues,
		"confluence":   eval.Confluence,
		"zones":        eval.Zones,
	}
	if eval.Plan != nil {
		resp["plan"] = eval.Plan
	} else if eval.PlanErr != nil {
		resp["planError"] = eval.PlanErr.Error()
	}
	successResponse(c, resp)
}

// handleStartBacktest launches a walk-forward backtest job.
// POST /api/backtest
// Body: {"symbol": "BTCUSDT", "timeframe": "1h", "start": 1700000000000, "end": 1710000000000}
func (s *Server) handleStartBacktest(c *gin.Context) {
	var req struct {
		Symbol    string `json:"symbol" binding:"required"`
		Timeframe string `json:"timeframe" binding:"required"`
		Start     int64  `json:"start" binding:"required"`
		End       int64  `json:"end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	tf := market.Timeframe(req.Timeframe)
	if _, err := tf.Duration(); err != nil {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe "+req.Timeframe)
		return
	}
	if req.End <= req.Start {
		errorResponse(c, http.StatusBadRequest, "end must be after start")
		return
	}

	candles, err := s.candles.Candles(c.Request.Context(), req.Symbol, tf, req.Start, req.End)
	if err != nil {
		s.storeError(c, err)
		return
	}
	need := s.cfg.Backtest.TrainBars + s.cfg.Backtest.TestBars
	if len(candles) < need {
		errorResponse(c, http.StatusBadRequest,
			"range holds "+strconv.Itoa(len(candles))+" bars, need at least "+strconv.Itoa(need))
		return
	}
	if gaps := store.CheckGaps(candles, tf); len(gaps) > 0 {
		missing := 0
		for _, g := range gaps {
			missing += g.MissingBars
		}
		s.log.Warn().Str("symbol", req.Symbol).Int("gaps", len(gaps)).
			Int("missingBars", missing).Msg("candle history has gaps")
	}

	// The job outlives this request.
	job := s.jobs.Start(context.Background(), req.Symbol, tf, candles)
	c.JSON(http.StatusAccepted, gin.H{"success": true, "data": job})
}

// handleGetJob returns one job, including its result once finished.
// GET /api/backtest/jobs/:id
func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	successResponse(c, job)
}

// handleListJobs returns all jobs, newest first.
// GET /api/backtest/jobs
func (s *Server) handleListJobs(c *gin.Context) {
	successResponse(c, s.jobs.List())
}

func (s *Server) loadSeries(ctx context.Context, symbol string, tf market.Timeframe, bars int) (market.Series, error) {
	end := time.Now().UnixMilli()
	start := end - int64(bars)*tf.Millis()
	candles, err := s.candles.Candles(ctx, symbol, tf, start, end)
	if err != nil {
		return market.Series{}, err
	}
	return market.NewSeries(symbol, string(tf), candles), nil
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNoData) {
		errorResponse(c, http.StatusNotFound, "no candles stored for that range")
		return
	}
	metrics.CandleFetchErrors.Inc()
	s.log.Error().Err(err).Msg("candle load failed")
	errorResponse(c, http.StatusInternalServerError, "candle load failed")
}

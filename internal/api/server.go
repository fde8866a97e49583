// Package api exposes the signal and backtest services over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/pipeline"
	"smc-signal-engine/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        config.Config
	pipe       *pipeline.Pipeline
	candles    store.CandleStore
	jobs       *backtest.Manager
	log        zerolog.Logger
}

// NewServer builds the router and wires all handlers.
func NewServer(cfg config.Config, pipe *pipeline.Pipeline, candles store.CandleStore, jobs *backtest.Manager, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:  router,
		cfg:     cfg,
		pipe:    pipe,
		candles: candles,
		jobs:    jobs,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/signal", s.handleGetSignal)
		api.POST("/backtest", s.handleStartBacktest)
		api.GET("/backtest/jobs", s.handleListJobs)
		api.GET("/backtest/jobs/:id", s.handleGetJob)
	}

	s.router.GET("/ws/backtest/:id", s.handleBacktestWS)
}

// Start begins serving and blocks until the listener fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Server.Addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
	}
	s.log.Info().Str("addr", s.cfg.Server.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	successResponse(c, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

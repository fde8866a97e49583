package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/pipeline"
)

// Job is one backtest run tracked by the manager.
type Job struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	State     State     `json:"state"`
	Progress  Progress  `json:"progress"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Manager runs backtest jobs in the background and fans progress out to
// subscribers.
type Manager struct {
	cfg  config.Config
	pipe *pipeline.Pipeline
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
	subs map[string]map[chan Progress]struct{}
}

func NewManager(cfg config.Config, pipe *pipeline.Pipeline, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:  cfg,
		pipe: pipe,
		log:  log,
		jobs: make(map[string]*Job),
		subs: make(map[string]map[chan Progress]struct{}),
	}
}

// Start launches a backtest over the candles and returns immediately
// with a snapshot of the job record. Progress is observable via
// Subscribe and Get.
func (m *Manager) Start(ctx context.Context, symbol string, tf market.Timeframe, candles []market.Candle) Job {
	job := &Job{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Timeframe: string(tf),
		State:     StateIdle,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.subs[job.ID] = make(map[chan Progress]struct{})
	m.mu.Unlock()

	engine := NewEngine(m.cfg, m.pipe, m.log, func(p Progress) {
		m.publish(job.ID, p)
	})
	snapshot := *job

	go func() {
		m.log.Info().Str("job", job.ID).Str("symbol", symbol).
			Int("bars", len(candles)).Msg("backtest started")

		result, err := engine.Run(ctx, symbol, tf, candles)

		m.mu.Lock()
		job.UpdatedAt = time.Now()
		if err != nil {
			job.State = StateFailed
			job.Error = err.Error()
		} else {
			job.State = StateDone
			job.Result = result
		}
		final := job.Progress
		final.State = job.State
		job.Progress = final
		subs := m.subs[job.ID]
		delete(m.subs, job.ID)
		m.mu.Unlock()

		for ch := range subs {
			select {
			case ch <- final:
			default:
			}
			close(ch)
		}

		if err != nil {
			metrics.BacktestJobs.WithLabelValues(string(StateFailed)).Inc()
			m.log.Error().Err(err).Str("job", job.ID).Msg("backtest failed")
			return
		}
		metrics.BacktestJobs.WithLabelValues(string(StateDone)).Inc()
		m.log.Info().Str("job", job.ID).Int("trades", result.TotalTrades).
			Float64("netProfit", result.NetProfit).Msg("backtest finished")
	}()

	return snapshot
}

func (m *Manager) publish(id string, p Progress) {
	m.mu.Lock()
	if job, ok := m.jobs[id]; ok {
		job.State = p.State
		job.Progress = p
		job.UpdatedAt = time.Now()
	}
	subs := make([]chan Progress, 0, len(m.subs[id]))
	for ch := range m.subs[id] {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	for _, ch := range subs {
		// Slow subscribers drop updates rather than stall the run.
		select {
		case ch <- p:
		default:
		}
	}
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("backtest: job %s not found", id)
	}
	return *job, nil
}

// List returns snapshots of all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, *job)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Subscribe registers a progress channel for a running job. The channel
// is closed when the job finishes. The returned cancel func must be
// called if the subscriber leaves early.
func (m *Manager) Subscribe(id string) (<-chan Progress, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, nil, fmt.Errorf("backtest: job %s not found", id)
	}

	ch := make(chan Progress, 16)
	if job.State == StateDone || job.State == StateFailed {
		ch <- job.Progress
		close(ch)
		return ch, func() {}, nil
	}

	m.subs[id][ch] = struct{}{}
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if set, ok := m.subs[id]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
		}
	}
	return ch, cancel, nil
}

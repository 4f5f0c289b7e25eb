package api

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/garnizeh/talentflow/internal/config"
	"github.com/garnizeh/talentflow/internal/metrics"
)

// Simulator makes the in-process API behave like a remote one: every request
// waits a random latency and mutating requests fail at a configured rate
// before reaching their handler, so a failed write was never applied.
type Simulator struct {
	latencyMin  time.Duration
	latencyMax  time.Duration
	failureRate float64

	rand    func() float64
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metrics.Manager
}

type SimulatorOption func(*Simulator)

// WithRand replaces the source of uniform [0, 1) draws.
func WithRand(fn func() float64) SimulatorOption {
	return func(s *Simulator) { s.rand = fn }
}

// WithSleep replaces the latency wait, mostly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) SimulatorOption {
	return func(s *Simulator) { s.sleep = fn }
}

func WithSimulatorMetrics(m *metrics.Manager) SimulatorOption {
	return func(s *Simulator) { s.metrics = m }
}

func NewSimulator(cfg config.TransportConfig, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		latencyMin:  cfg.LatencyMin,
		latencyMax:  max(cfg.LatencyMax, cfg.LatencyMin),
		failureRate: cfg.FailureRate,
		rand:        rand.Float64,
		sleep:       sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Simulator) latency() time.Duration {
	span := s.latencyMax - s.latencyMin
	if span <= 0 {
		return s.latencyMin
	}
	return s.latencyMin + time.Duration(s.rand()*float64(span))
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (s *Simulator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := s.latency(); d > 0 {
			if err := s.sleep(r.Context(), d); err != nil {
				logger.Debug("client went away during simulated latency", slog.String("path", r.URL.Path))
				return
			}
		}

		if isMutation(r.Method) && s.failureRate > 0 && s.rand() < s.failureRate {
			s.metrics.RecordInjectedFailure(r.Method)
			logger.Warn("injected transport failure", slog.String("method", r.Method), slog.String("path", r.URL.Path))
			writeJSON(w, ErrorBody{Error: "simulated network failure", Retryable: true}, http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/talentflow/api"
	"github.com/garnizeh/talentflow/internal/config"
	"github.com/garnizeh/talentflow/internal/metrics"
)

func fixedRand(v float64) func() float64 { return func() float64 { return v } }

func TestSimulator_FailsMutationsBeforeHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	sim := api.NewSimulator(config.TransportConfig{FailureRate: 0.5},
		api.WithRand(fixedRand(0.1)),
		api.WithSimulatorMetrics(m))

	called := 0
	h := sim.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, "/api/jobs", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, method)
		assert.JSONEq(t, `{"error":"simulated network failure","retryable":true}`, w.Body.String())
	}
	assert.Zero(t, called, "a failed mutation never reaches the handler")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusOK, w.Code, "reads are never failed")
	assert.Equal(t, 1, called)

	n, err := testutil.GatherAndCount(reg, "talentflow_transport_injected_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSimulator_PassesAboveRate(t *testing.T) {
	sim := api.NewSimulator(config.TransportConfig{FailureRate: 0.1}, api.WithRand(fixedRand(0.1)))
	h := sim.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSimulator_Latency(t *testing.T) {
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	sim := api.NewSimulator(config.TransportConfig{LatencyMin: 200 * time.Millisecond, LatencyMax: 1200 * time.Millisecond},
		api.WithRand(fixedRand(0.5)),
		api.WithSleep(sleep))
	h := sim.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []time.Duration{700 * time.Millisecond}, slept)
}

func TestSimulator_ClientGoneDuringLatency(t *testing.T) {
	sim := api.NewSimulator(config.TransportConfig{LatencyMin: time.Hour, LatencyMax: time.Hour})
	called := false
	h := sim.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx))
	assert.False(t, called)
}

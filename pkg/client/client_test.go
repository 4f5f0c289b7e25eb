package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/talentflow/api"
	dbfs "github.com/garnizeh/talentflow/db"
	"github.com/garnizeh/talentflow/internal/config"
	"github.com/garnizeh/talentflow/internal/db"
	"github.com/garnizeh/talentflow/internal/metrics"
	"github.com/garnizeh/talentflow/pkg/client"
	"github.com/garnizeh/talentflow/pkg/models"
)

// draws replays vs and then keeps returning 0.99, i.e. "do not fail".
type draws struct {
	mu sync.Mutex
	vs []float64
}

func (d *draws) next() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.vs) == 0 {
		return 0.99
	}
	v := d.vs[0]
	d.vs = d.vs[1:]
	return v
}

func (d *draws) push(vs ...float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vs = append(d.vs, vs...)
}

// startServer runs the real API over an in-memory store with a 50% failure
// rate driven by d.
func startServer(t *testing.T, d *draws) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	conn, err := db.New(ctx, ":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, conn, dbfs.Migrations))

	cfg := config.Default()
	cfg.Transport = config.TransportConfig{FailureRate: 0.5}
	m := metrics.New(metrics.WithRegistry(prometheus.NewRegistry()))
	r, err := api.SetupRoutes(cfg, "test", "now", conn, m, api.WithRand(d.next))
	require.NoError(t, err)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return srv
}

func newClient(t *testing.T, srv *httptest.Server, retries int) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Retries = retries
	cfg.Backoff = time.Millisecond
	cfg.Actor = "Recruiter Bot"
	c, err := client.NewClient(cfg, srv.Client())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_RetriesInjectedFailures(t *testing.T) {
	d := &draws{}
	srv := startServer(t, d)
	c := newClient(t, srv, 3)
	ctx := context.Background()

	d.push(0.1, 0.2) // two injected failures, then success
	j, err := c.CreateJob(ctx, client.NewJob{Title: "Go Engineer"})
	require.NoError(t, err)
	assert.Equal(t, "go-engineer", j.Slug)

	page, err := c.ListJobs(ctx, client.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "failed attempts were never applied")
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	d := &draws{}
	srv := startServer(t, d)
	c := newClient(t, srv, 1)

	d.push(0.1, 0.1)
	_, err := c.CreateJob(context.Background(), client.NewJob{Title: "Go Engineer"})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrTransient)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.True(t, apiErr.Retryable)
}

func TestClient_EndToEnd(t *testing.T) {
	d := &draws{}
	srv := startServer(t, d)
	c := newClient(t, srv, 2)
	ctx := context.Background()

	var jobs []*models.Job
	for _, title := range []string{"A", "B", "C"} {
		j, err := c.CreateJob(ctx, client.NewJob{Title: title})
		require.NoError(t, err)
		jobs = append(jobs, j)
	}

	res, err := c.ReorderJob(ctx, jobs[2].ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{jobs[2].ID, jobs[0].ID, jobs[1].ID}, res.Current)

	_, err = c.ReorderJob(ctx, jobs[2].ID, 2, 1)
	assert.ErrorIs(t, err, client.ErrConflict)

	got, err := c.GetJob(ctx, jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Order)

	title := "A prime"
	got, err = c.UpdateJob(ctx, jobs[0].ID, models.JobPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "a-prime", got.Slug)

	cand, err := c.CreateCandidate(ctx, client.NewCandidate{Name: "Ada", Email: "ada@example.com", JobID: jobs[0].ID})
	require.NoError(t, err)

	stage, from := models.StageTech, models.StageApplied
	cand, err = c.UpdateCandidate(ctx, cand.ID, models.CandidatePatch{Stage: &stage, FromStage: &from})
	require.NoError(t, err)
	assert.Equal(t, models.StageTech, cand.Stage)

	_, err = c.AddNote(ctx, cand.ID, "fast learner")
	require.NoError(t, err)

	events, err := c.Timeline(ctx, cand.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	actors := map[string]int{}
	for _, e := range events {
		actors[e.CreatedBy]++
	}
	assert.Equal(t, map[string]int{"System": 1, "Recruiter Bot": 2}, actors)

	cands, err := c.ListCandidates(ctx, client.ListOptions{Stage: "tech", Search: "ada"})
	require.NoError(t, err)
	assert.Equal(t, 1, cands.Total)

	_, err = c.GetAssessment(ctx, jobs[0].ID)
	assert.ErrorIs(t, err, client.ErrNotFound)

	doc := []byte(`{"title": "Screen", "sections": [{"id": "s", "title": "S", "questions": [
		{"id": "years", "type": "numeric", "text": "Years", "required": true, "numericRange": {"min": 0, "max": 50}},
		{"id": "cv", "type": "file", "text": "CV"}
	]}]}`)
	a, created, err := c.PutAssessment(ctx, jobs[0].ID, doc)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = c.PutAssessment(ctx, jobs[0].ID, doc)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = c.Submit(ctx, jobs[0].ID, cand.ID, map[string]any{"years": 99})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.ErrorIs(t, err, client.ErrValidationFailed)
	assert.Equal(t, []client.FieldError{{QuestionID: "years", Message: "Max value is 50"}}, apiErr.Errors)

	resp, err := c.Submit(ctx, jobs[0].ID, cand.ID, map[string]any{"years": "7", "cv": "cv.pdf"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, resp.AssessmentID)
	assert.Equal(t, models.NumberAnswer(7), resp.Responses["years"])

	a, err = c.DeleteQuestion(ctx, jobs[0].ID, "cv")
	require.NoError(t, err)
	assert.Len(t, a.Sections[0].Questions, 1)

	_, err = c.CreateJob(ctx, client.NewJob{Title: ""})
	assert.ErrorIs(t, err, client.ErrInvalidInput)
}

func TestClient_DoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"conflict: stale order"}`))
	}))
	defer srv.Close()
	c := newClient(t, srv, 5)

	_, err := c.ReorderJob(context.Background(), "j1", 0, 1)
	assert.ErrorIs(t, err, client.ErrConflict)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_RetriesPlain5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"j1","title":"A","order":0}`))
	}))
	defer srv.Close()
	c := newClient(t, srv, 1)

	j, err := c.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "A", j.Title)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_CallerCancellationIsFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	cfg := client.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Retries = 100
	cfg.Backoff = time.Hour
	c, err := client.NewClient(cfg, srv.Client())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.GetJob(ctx, "j1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	cfg := client.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Retries = 0
	cfg.CircuitFailureThreshold = 2
	cfg.CircuitReset = time.Hour
	c, err := client.NewClient(cfg, srv.Client())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	for range 2 {
		_, err := c.GetJob(ctx, "j1")
		assert.ErrorIs(t, err, client.ErrTransient)
	}
	_, err = c.GetJob(ctx, "j1")
	assert.ErrorIs(t, err, client.ErrCircuitOpen)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c, err := client.NewClient(client.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.GetJob(context.Background(), "j1")
	assert.Error(t, err)

	_, err = client.NewClient(client.Config{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}

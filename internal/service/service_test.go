package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbfs "github.com/garnizeh/talentflow/db"
	"github.com/garnizeh/talentflow/internal/apperr"
	dbpkg "github.com/garnizeh/talentflow/internal/db"
	"github.com/garnizeh/talentflow/internal/metrics"
	"github.com/garnizeh/talentflow/internal/repository/sqlite"
	"github.com/garnizeh/talentflow/internal/service"
	"github.com/garnizeh/talentflow/pkg/models"
)

var t0 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

// fixture wires all three services to one in-memory store with a clock that
// advances a second per reading and sequential ids.
type fixture struct {
	jobs        *service.Jobs
	candidates  *service.Candidates
	assessments *service.Assessments
	reg         *prometheus.Registry
}

func newFixture(t *testing.T, extra ...service.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	d, err := dbpkg.New(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, dbpkg.Migrate(ctx, d, dbfs.Migrations))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := sqlite.New(d, logger)

	var (
		mu   sync.Mutex
		tick int
		seq  int
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return t0.Add(time.Duration(tick) * time.Second)
	}
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}

	reg := prometheus.NewRegistry()
	opts := append([]service.Option{
		service.WithClock(clock),
		service.WithIDGenerator(ids),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(metrics.WithRegistry(reg))),
	}, extra...)

	as, err := service.NewAssessments(store, opts...)
	require.NoError(t, err)
	return &fixture{
		jobs:        service.NewJobs(store, opts...),
		candidates:  service.NewCandidates(store, opts...),
		assessments: as,
		reg:         reg,
	}
}

func (f *fixture) addJobs(t *testing.T, titles ...string) []*models.Job {
	t.Helper()
	out := make([]*models.Job, 0, len(titles))
	for _, title := range titles {
		j, err := f.jobs.Create(context.Background(), service.NewJob{Title: title, Tags: []string{"go"}})
		require.NoError(t, err)
		out = append(out, j)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestSlugify(t *testing.T) {
	for in, want := range map[string]string{
		"Senior Go Engineer":     "senior-go-engineer",
		"  C++ / Rust  Dev ":     "c--rust-dev",
		"Front-end (React) 2025": "front-end-react-2025",
		"":                       "",
	} {
		assert.Equal(t, want, service.Slugify(in), in)
	}
}

func TestJobs_CreateAppendsAtEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	jobs := f.addJobs(t, "Backend Engineer", "Data Analyst")
	assert.Equal(t, 0, jobs[0].Order)
	assert.Equal(t, 1, jobs[1].Order)
	assert.Equal(t, "backend-engineer", jobs[0].Slug)
	assert.Equal(t, models.JobStatusActive, jobs[0].Status)

	j, err := f.jobs.Create(ctx, service.NewJob{Title: "  QA  ", Status: models.JobStatusArchived, Tags: []string{" qa ", "qa", "", "manual"}})
	require.NoError(t, err)
	assert.Equal(t, "QA", j.Title)
	assert.Equal(t, 2, j.Order)
	assert.Equal(t, []string{"qa", "manual"}, j.Tags)

	_, err = f.jobs.Create(ctx, service.NewJob{Title: "   "})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.jobs.Create(ctx, service.NewJob{Title: "x", Status: "paused"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestJobs_UpdateRederivesSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	j := f.addJobs(t, "Backend Engineer")[0]

	got, err := f.jobs.Update(ctx, j.ID, models.JobPatch{Title: ptr("Platform Engineer"), Status: ptr(models.JobStatusArchived)})
	require.NoError(t, err)
	assert.Equal(t, "platform-engineer", got.Slug)
	assert.Equal(t, models.JobStatusArchived, got.Status)
	assert.Equal(t, j.Order, got.Order)
	assert.True(t, got.UpdatedAt.After(j.UpdatedAt))

	_, err = f.jobs.Update(ctx, j.ID, models.JobPatch{Status: ptr(models.JobStatus("gone"))})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.jobs.Update(ctx, "missing", models.JobPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestJobs_ListFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobs := f.addJobs(t, "Go Engineer", "Data Analyst", "Go Tooling", "Designer")
	_, err := f.jobs.Update(ctx, jobs[3].ID, models.JobPatch{Status: ptr(models.JobStatusArchived)})
	require.NoError(t, err)

	page, err := f.jobs.List(ctx, service.JobQuery{Search: "go", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "Go Engineer", page.Data[0].Title)

	page, err = f.jobs.List(ctx, service.JobQuery{Status: "archived"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Designer", page.Data[0].Title)

	page, err = f.jobs.List(ctx, service.JobQuery{Sort: "title_asc", Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Go Tooling", page.Data[0].Title)

	_, err = f.jobs.List(ctx, service.JobQuery{Status: "open"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.jobs.List(ctx, service.JobQuery{Sort: "salary"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestJobs_Reorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobs := f.addJobs(t, "A", "B", "C", "D")

	res, err := f.jobs.Reorder(ctx, jobs[3].ID, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Job.Order)

	page, err := f.jobs.List(ctx, service.JobQuery{PageSize: 10})
	require.NoError(t, err)
	var titles []string
	for _, j := range page.Data {
		titles = append(titles, j.Title)
	}
	assert.Equal(t, []string{"D", "A", "B", "C"}, titles)

	_, err = f.jobs.Reorder(ctx, jobs[3].ID, 3, 1)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	n, err := testutil.GatherAndCount(f.reg, "talentflow_jobs_reordered_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCandidates_CreateWritesInitialEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJobs(t, "Backend")[0]

	c, err := f.candidates.Create(ctx, service.NewCandidate{Name: " Ada ", Email: "ada@example.com", JobID: job.ID})
	require.NoError(t, err)
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, models.StageApplied, c.Stage)

	events, err := f.candidates.Timeline(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventStageChange, events[0].Type)
	assert.Nil(t, events[0].From)
	assert.Equal(t, models.StageApplied, *events[0].To)
	assert.Equal(t, "System", events[0].CreatedBy)

	for name, in := range map[string]service.NewCandidate{
		"no name":     {Email: "a@b.c", JobID: job.ID},
		"bad email":   {Name: "x", Email: "not-an-email", JobID: job.ID},
		"no job":      {Name: "x", Email: "a@b.c"},
		"wrong stage": {Name: "x", Email: "a@b.c", JobID: job.ID, Stage: "limbo"},
	} {
		_, err := f.candidates.Create(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, name)
	}

	_, err = f.candidates.Create(ctx, service.NewCandidate{Name: "x", Email: "a@b.c", JobID: "missing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCandidates_StageChangeIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJobs(t, "Backend")[0]
	c, err := f.candidates.Create(ctx, service.NewCandidate{Name: "Ada", Email: "ada@example.com", JobID: job.ID})
	require.NoError(t, err)

	got, err := f.candidates.Update(ctx, c.ID, models.CandidatePatch{
		Stage:     ptr(models.StageScreen),
		FromStage: ptr(models.StageApplied),
		Phone:     ptr("555-0100"),
	}, "Grace")
	require.NoError(t, err)
	assert.Equal(t, models.StageScreen, got.Stage)
	assert.Equal(t, "555-0100", got.Phone)

	events, err := f.candidates.Timeline(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.StageApplied, *events[0].From)
	assert.Equal(t, models.StageScreen, *events[0].To)
	assert.Equal(t, "Grace", events[0].CreatedBy)

	// stale view: nothing is written, including the plain fields
	_, err = f.candidates.Update(ctx, c.ID, models.CandidatePatch{
		Stage:     ptr(models.StageTech),
		FromStage: ptr(models.StageApplied),
		Phone:     ptr("555-0199"),
	}, "")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	cur, err := f.candidates.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageScreen, cur.Stage)
	assert.Equal(t, "555-0100", cur.Phone)
	events, err = f.candidates.Timeline(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// same stage is a no-op
	_, err = f.candidates.Update(ctx, c.ID, models.CandidatePatch{Stage: ptr(models.StageScreen)}, "")
	require.NoError(t, err)
	events, err = f.candidates.Timeline(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	n, err := testutil.GatherAndCount(f.reg, "talentflow_candidates_stage_changes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCandidates_UpdateChecksJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobs := f.addJobs(t, "Backend", "Frontend")
	c, err := f.candidates.Create(ctx, service.NewCandidate{Name: "Ada", Email: "ada@example.com", JobID: jobs[0].ID})
	require.NoError(t, err)

	got, err := f.candidates.Update(ctx, c.ID, models.CandidatePatch{JobID: ptr(jobs[1].ID)}, "")
	require.NoError(t, err)
	assert.Equal(t, jobs[1].ID, got.JobID)

	_, err = f.candidates.Update(ctx, c.ID, models.CandidatePatch{JobID: ptr("missing")}, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.candidates.Update(ctx, "missing", models.CandidatePatch{Name: ptr("x")}, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.candidates.Update(ctx, c.ID, models.CandidatePatch{Email: ptr("nope")}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCandidates_ListAndNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJobs(t, "Backend")[0]
	for _, name := range []string{"Ada Lovelace", "Grace Hopper", "Alan Turing"} {
		_, err := f.candidates.Create(ctx, service.NewCandidate{Name: name, Email: "x@example.com", JobID: job.ID})
		require.NoError(t, err)
	}

	page, err := f.candidates.List(ctx, service.CandidateQuery{PageSize: service.DefaultCandidatePageSize})
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "Alan Turing", page.Data[0].Name, "newest first")

	page, err = f.candidates.List(ctx, service.CandidateQuery{Search: "GRACE"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)

	page, err = f.candidates.List(ctx, service.CandidateQuery{Stage: "hired"})
	require.NoError(t, err)
	assert.Empty(t, page.Data)

	page, err = f.candidates.List(ctx, service.CandidateQuery{Sort: "title_asc"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", page.Data[0].Name)
	id := page.Data[0].ID

	_, err = f.candidates.AddNote(ctx, id, "   ", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.candidates.AddNote(ctx, "missing", "hello", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	e, err := f.candidates.AddNote(ctx, id, "  strong systems background ", "")
	require.NoError(t, err)
	assert.Equal(t, "strong systems background", e.Note)
	assert.Equal(t, "HR Team", e.CreatedBy)

	events, err := f.candidates.Timeline(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventNote, events[0].Type)

	_, err = f.candidates.Timeline(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// Package seed loads a YAML fixture of jobs, candidates and assessments into
// an empty store in one transaction.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/internal/assessment"
	"github.com/garnizeh/talentflow/internal/service"
	"github.com/garnizeh/talentflow/internal/timeline"
	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/garnizeh/talentflow/pkg/repository"
)

// StageStep is the spacing between generated stage history events.
const StageStep = time.Hour

type Fixture struct {
	Jobs        []JobFixture        `yaml:"jobs"`
	Candidates  []CandidateFixture  `yaml:"candidates"`
	Assessments []AssessmentFixture `yaml:"assessments"`
}

type JobFixture struct {
	// Key lets candidates and assessments refer to the job; defaults to the slug.
	Key         string           `yaml:"key"`
	Title       string           `yaml:"title"`
	Status      models.JobStatus `yaml:"status"`
	Tags        []string         `yaml:"tags"`
	Description string           `yaml:"description"`
	CreatedAt   time.Time        `yaml:"createdAt"`
}

type CandidateFixture struct {
	Name      string       `yaml:"name"`
	Email     string       `yaml:"email"`
	Phone     string       `yaml:"phone"`
	Job       string       `yaml:"job"`
	Stage     models.Stage `yaml:"stage"`
	AppliedAt time.Time    `yaml:"appliedAt"`
	Notes     string       `yaml:"notes"`
	// RejectedAfter is the last stage reached before a rejection.
	RejectedAfter models.Stage `yaml:"rejectedAfter"`
}

type AssessmentFixture struct {
	Job         string `yaml:"job"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	// Sections keeps the document shape of the HTTP API and is checked
	// against the same schema.
	Sections []any `yaml:"sections"`
}

// Decode reads a fixture from r.
func Decode(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

func DecodeFile(path string) (*Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Summary reports what Apply wrote.
type Summary struct {
	Skipped     bool
	Jobs        int
	Candidates  int
	Events      int
	Assessments int
}

type Option func(*Seeder)

func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Seeder) { s.newID = gen }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Seeder) { s.logger = l }
}

type Seeder struct {
	store  repository.Store
	loader *assessment.Loader
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

func New(store repository.Store, opts ...Option) (*Seeder, error) {
	loader, err := assessment.NewLoader()
	if err != nil {
		return nil, err
	}
	s := &Seeder{
		store:  store,
		loader: loader,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  timeline.NewID,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return s, nil
}

// Apply validates f and bulk-adds it. A store that already holds jobs is left
// untouched and the summary is marked Skipped.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) (*Summary, error) {
	now := s.now().UTC().Truncate(time.Millisecond)

	jobs, keys, err := s.buildJobs(f.Jobs, now)
	if err != nil {
		return nil, err
	}
	cands, events, err := s.buildCandidates(f.Candidates, keys, now)
	if err != nil {
		return nil, err
	}
	as, err := s.buildAssessments(ctx, f.Assessments, keys, now)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		n, err := tx.CountJobs(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			sum.Skipped = true
			return nil
		}
		if err := tx.BulkAddJobs(ctx, jobs); err != nil {
			return err
		}
		if err := tx.BulkAddCandidates(ctx, cands); err != nil {
			return err
		}
		if err := tx.BulkAppendEvents(ctx, events); err != nil {
			return err
		}
		return tx.BulkAddAssessments(ctx, as)
	})
	if err != nil {
		return nil, fmt.Errorf("seed store: %w", err)
	}
	if sum.Skipped {
		s.logger.Info("store already has jobs, seed skipped")
		return sum, nil
	}

	sum.Jobs, sum.Candidates, sum.Events, sum.Assessments = len(jobs), len(cands), len(events), len(as)
	s.logger.Info("store seeded",
		slog.Int("jobs", sum.Jobs),
		slog.Int("candidates", sum.Candidates),
		slog.Int("events", sum.Events),
		slog.Int("assessments", sum.Assessments))
	return sum, nil
}

func (s *Seeder) buildJobs(in []JobFixture, now time.Time) ([]models.Job, map[string]string, error) {
	jobs := make([]models.Job, 0, len(in))
	keys := make(map[string]string, len(in))
	for i, jf := range in {
		title := strings.TrimSpace(jf.Title)
		if title == "" {
			return nil, nil, apperr.InvalidInput("jobs[%d]: title must not be empty", i)
		}
		status := jf.Status
		if status == "" {
			status = models.JobStatusActive
		}
		if !status.Valid() {
			return nil, nil, apperr.InvalidInput("jobs[%d]: unknown status %q", i, status)
		}
		slug := service.Slugify(title)
		key := jf.Key
		if key == "" {
			key = slug
		}
		if _, dup := keys[key]; dup {
			return nil, nil, apperr.InvalidInput("jobs[%d]: duplicate key %q", i, key)
		}

		created := orNow(jf.CreatedAt, now)
		tags := service.NormalizeTags(jf.Tags)
		j := models.Job{
			ID:          s.newID(),
			Title:       title,
			Slug:        slug,
			Status:      status,
			Tags:        tags,
			Order:       i,
			Description: jf.Description,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		keys[key] = j.ID
		jobs = append(jobs, j)
	}
	return jobs, keys, nil
}

func (s *Seeder) buildCandidates(in []CandidateFixture, keys map[string]string, now time.Time) ([]models.Candidate, []models.TimelineEvent, error) {
	cands := make([]models.Candidate, 0, len(in))
	var events []models.TimelineEvent
	for i, cf := range in {
		jobID, ok := keys[cf.Job]
		if !ok {
			return nil, nil, apperr.InvalidInput("candidates[%d]: unknown job %q", i, cf.Job)
		}
		if strings.TrimSpace(cf.Name) == "" {
			return nil, nil, apperr.InvalidInput("candidates[%d]: name is required", i)
		}
		email, err := service.CheckEmail(cf.Email)
		if err != nil {
			return nil, nil, fmt.Errorf("candidates[%d]: %w", i, err)
		}
		stage := cf.Stage
		if stage == "" {
			stage = models.StageApplied
		}
		path, err := History(stage, cf.RejectedAfter)
		if err != nil {
			return nil, nil, apperr.InvalidInput("candidates[%d]: %v", i, err)
		}

		applied := orNow(cf.AppliedAt, now)
		c := models.Candidate{
			ID:        s.newID(),
			Name:      strings.TrimSpace(cf.Name),
			Email:     email,
			Phone:     cf.Phone,
			JobID:     jobID,
			Stage:     stage,
			AppliedAt: applied,
			UpdatedAt: applied.Add(time.Duration(len(path)-1) * StageStep),
			Notes:     cf.Notes,
		}
		cands = append(cands, c)

		for k, st := range path {
			to := st
			e := models.TimelineEvent{
				ID:          s.newID(),
				CandidateID: c.ID,
				Type:        models.EventStageChange,
				To:          &to,
				CreatedAt:   applied.Add(time.Duration(k) * StageStep),
				CreatedBy:   timeline.SystemActor,
			}
			if k > 0 {
				from := path[k-1]
				e.From = &from
				e.CreatedBy = timeline.DefaultActor
			}
			events = append(events, e)
		}
	}
	return cands, events, nil
}

func (s *Seeder) buildAssessments(ctx context.Context, in []AssessmentFixture, keys map[string]string, now time.Time) ([]models.Assessment, error) {
	out := make([]models.Assessment, 0, len(in))
	seen := map[string]bool{}
	for i, af := range in {
		jobID, ok := keys[af.Job]
		if !ok {
			return nil, apperr.InvalidInput("assessments[%d]: unknown job %q", i, af.Job)
		}
		if seen[jobID] {
			return nil, apperr.InvalidInput("assessments[%d]: job %q already has an assessment", i, af.Job)
		}
		seen[jobID] = true

		sections := af.Sections
		if sections == nil {
			sections = []any{}
		}
		body, err := json.Marshal(map[string]any{
			"title":       af.Title,
			"description": af.Description,
			"sections":    sections,
		})
		if err != nil {
			return nil, fmt.Errorf("assessments[%d]: %w", i, err)
		}
		doc, err := s.loader.Decode(ctx, assessment.CurrentVersion, body)
		if err != nil {
			return nil, fmt.Errorf("assessments[%d]: %w", i, err)
		}
		normalized := assessment.Normalize(doc.Sections, s.newID)
		if err := assessment.Check(normalized); err != nil {
			return nil, fmt.Errorf("assessments[%d]: %w", i, err)
		}

		out = append(out, models.Assessment{
			ID:          s.newID(),
			JobID:       jobID,
			Title:       doc.Title,
			Description: doc.Description,
			Sections:    normalized,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out, nil
}

// History returns the stages a candidate passed through to reach stage,
// starting at applied. A rejection follows the pipeline up to rejectedAfter
// (applied when empty) and then moves to rejected.
func History(stage, rejectedAfter models.Stage) ([]models.Stage, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	last := stage
	if stage == models.StageRejected {
		last = rejectedAfter
		if last == "" {
			last = models.StageApplied
		}
		if !last.Valid() || last == models.StageRejected || last == models.StageHired {
			return nil, fmt.Errorf("cannot be rejected after %q", last)
		}
	} else if rejectedAfter != "" {
		return nil, fmt.Errorf("rejectedAfter is only valid for rejected candidates")
	}

	var path []models.Stage
	for _, st := range models.Stages {
		path = append(path, st)
		if st == last {
			break
		}
	}
	if stage == models.StageRejected {
		path = append(path, models.StageRejected)
	}
	return path, nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t.UTC().Truncate(time.Millisecond)
}

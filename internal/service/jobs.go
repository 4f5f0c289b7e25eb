package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/internal/ordering"
	"github.com/garnizeh/talentflow/internal/query"
	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/garnizeh/talentflow/pkg/repository"
)

const DefaultJobPageSize = 10

type Jobs struct {
	store  repository.Store
	engine *ordering.Engine
	opts   options
}

func NewJobs(store repository.Store, opts ...Option) *Jobs {
	o := buildOptions(opts)
	return &Jobs{
		store:  store,
		engine: ordering.New(store, ordering.WithClock(o.now), ordering.WithLogger(o.logger)),
		opts:   o,
	}
}

type JobQuery struct {
	Search   string
	Status   string
	Sort     string
	Page     int
	PageSize int
}

var jobSpec = query.Spec[models.Job]{
	SearchFields: func(j models.Job) []string { return []string{j.Title, j.Slug} },
	Title:        func(j models.Job) string { return j.Title },
	Date:         func(j models.Job) time.Time { return j.CreatedAt },
	Natural:      func(a, b models.Job) int { return a.Order - b.Order },
}

func (s *Jobs) List(ctx context.Context, q JobQuery) (*query.Page[models.Job], error) {
	sortKey, err := query.ParseSort(q.Sort)
	if err != nil {
		return nil, err
	}

	spec := jobSpec
	if q.Status != "" {
		status := models.JobStatus(q.Status)
		if !status.Valid() {
			return nil, apperr.InvalidInput("unknown job status %q", q.Status)
		}
		spec.Filter = func(j models.Job) bool { return j.Status == status }
	}

	var jobs []models.Job
	if err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		jobs, err = tx.ListJobs(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	page, size := pageDefaults(q.Page, q.PageSize, DefaultJobPageSize)
	return query.Run(jobs, spec, query.Params{Search: q.Search, Sort: sortKey, Page: page, PageSize: size})
}

func (s *Jobs) Get(ctx context.Context, id string) (*models.Job, error) {
	var job *models.Job
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		job, err = tx.GetJob(ctx, id)
		return err
	})
	return job, err
}

type NewJob struct {
	Title       string           `json:"title"`
	Status      models.JobStatus `json:"status,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Description string           `json:"description,omitempty"`
}

// Create appends the job at the end of the order index.
func (s *Jobs) Create(ctx context.Context, in NewJob) (*models.Job, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.InvalidInput("title must not be empty")
	}
	status := in.Status
	if status == "" {
		status = models.JobStatusActive
	}
	if !status.Valid() {
		return nil, apperr.InvalidInput("unknown job status %q", status)
	}

	now := s.opts.stamp()
	job := &models.Job{
		ID:          s.opts.newID(),
		Title:       title,
		Slug:        Slugify(title),
		Status:      status,
		Tags:        NormalizeTags(in.Tags),
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx = detach(ctx)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		n, err := tx.CountJobs(ctx)
		if err != nil {
			return err
		}
		job.Order = n
		return tx.AddJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("job created", slog.String("job_id", job.ID), slog.Int("order", job.Order))
	return job, nil
}

// Update applies a partial update. A new title re-derives the slug.
func (s *Jobs) Update(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.InvalidInput("title must not be empty")
		}
		slug := Slugify(title)
		patch.Title, patch.Slug = &title, &slug
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperr.InvalidInput("unknown job status %q", *patch.Status)
	}
	if patch.Tags != nil {
		tags := NormalizeTags(*patch.Tags)
		patch.Tags = &tags
	}

	ctx = detach(ctx)
	var job *models.Job
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		job, err = tx.UpdateJob(ctx, id, patch, s.opts.stamp())
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Reorder moves a job from the order the caller observed to toOrder.
func (s *Jobs) Reorder(ctx context.Context, id string, fromOrder, toOrder int) (*ordering.Result, error) {
	res, err := s.engine.Move(detach(ctx), id, fromOrder, toOrder)
	if err != nil {
		return nil, err
	}

	s.opts.metrics.RecordReorder()
	s.opts.logger.Info("job reordered", slog.String("job_id", id), slog.Int("from", fromOrder), slog.Int("to", toOrder))
	return res, nil
}

package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/internal/query"
	"github.com/garnizeh/talentflow/internal/timeline"
	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/garnizeh/talentflow/pkg/repository"
)

const DefaultCandidatePageSize = 50

type Candidates struct {
	store    repository.Store
	recorder *timeline.Recorder
	opts     options
}

func NewCandidates(store repository.Store, opts ...Option) *Candidates {
	o := buildOptions(opts)
	return &Candidates{store: store, recorder: o.recorder(), opts: o}
}

type CandidateQuery struct {
	Search   string
	Stage    string
	Sort     string
	Page     int
	PageSize int
}

// Natural candidate order is most recently applied first.
var candidateSpec = query.Spec[models.Candidate]{
	SearchFields: func(c models.Candidate) []string { return []string{c.Name, c.Email} },
	Title:        func(c models.Candidate) string { return c.Name },
	Date:         func(c models.Candidate) time.Time { return c.AppliedAt },
	Natural:      func(a, b models.Candidate) int { return b.AppliedAt.Compare(a.AppliedAt) },
}

func (s *Candidates) List(ctx context.Context, q CandidateQuery) (*query.Page[models.Candidate], error) {
	sortKey, err := query.ParseSort(q.Sort)
	if err != nil {
		return nil, err
	}

	spec := candidateSpec
	if q.Stage != "" {
		stage := models.Stage(q.Stage)
		if !stage.Valid() {
			return nil, apperr.InvalidInput("unknown stage %q", q.Stage)
		}
		spec.Filter = func(c models.Candidate) bool { return c.Stage == stage }
	}

	var cs []models.Candidate
	if err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		cs, err = tx.ListCandidates(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	page, size := pageDefaults(q.Page, q.PageSize, DefaultCandidatePageSize)
	return query.Run(cs, spec, query.Params{Search: q.Search, Sort: sortKey, Page: page, PageSize: size})
}

func (s *Candidates) Get(ctx context.Context, id string) (*models.Candidate, error) {
	var c *models.Candidate
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		c, err = tx.GetCandidate(ctx, id)
		return err
	})
	return c, err
}

type NewCandidate struct {
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Phone string       `json:"phone,omitempty"`
	JobID string       `json:"jobId"`
	Stage models.Stage `json:"stage,omitempty"`
	Notes string       `json:"notes,omitempty"`
}

// Create stores the candidate together with its initial stage event.
func (s *Candidates) Create(ctx context.Context, in NewCandidate) (*models.Candidate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidInput("name must not be empty")
	}
	email, err := CheckEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.JobID) == "" {
		return nil, apperr.InvalidInput("jobId must not be empty")
	}
	stage := in.Stage
	if stage == "" {
		stage = models.StageApplied
	}
	if !stage.Valid() {
		return nil, apperr.InvalidInput("unknown stage %q", stage)
	}

	now := s.opts.stamp()
	c := &models.Candidate{
		ID:        s.opts.newID(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(in.Phone),
		JobID:     in.JobID,
		Stage:     stage,
		AppliedAt: now,
		UpdatedAt: now,
		Notes:     in.Notes,
	}

	ctx = detach(ctx)
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetJob(ctx, c.JobID); err != nil {
			return err
		}
		if err := tx.AddCandidate(ctx, c); err != nil {
			return err
		}
		_, err := s.recorder.RecordInitial(ctx, tx, c)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("candidate created", slog.String("candidate_id", c.ID), slog.String("job_id", c.JobID))
	return c, nil
}

// Update applies the plain fields of patch and, when the stage changes,
// records the transition in the same transaction. Setting the stage to its
// current value writes no event.
func (s *Candidates) Update(ctx context.Context, id string, patch models.CandidatePatch, actor string) (*models.Candidate, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.InvalidInput("name must not be empty")
		}
		patch.Name = &name
	}
	if patch.Email != nil {
		email, err := CheckEmail(*patch.Email)
		if err != nil {
			return nil, err
		}
		patch.Email = &email
	}
	if patch.Stage != nil && !patch.Stage.Valid() {
		return nil, apperr.InvalidInput("unknown stage %q", *patch.Stage)
	}
	if patch.FromStage != nil && !patch.FromStage.Valid() {
		return nil, apperr.InvalidInput("unknown stage %q", *patch.FromStage)
	}

	stage, from := patch.Stage, patch.FromStage
	plain := patch
	plain.Stage, plain.FromStage = nil, nil

	ctx = detach(ctx)
	var (
		c       *models.Candidate
		changed bool
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetCandidate(ctx, id)
		if err != nil {
			return err
		}
		if stage != nil && from != nil && *from != cur.Stage {
			return apperr.Conflict("candidate %s is in stage %s, not %s", id, cur.Stage, *from)
		}
		if plain.JobID != nil {
			if _, err := tx.GetJob(ctx, *plain.JobID); err != nil {
				return err
			}
		}
		if hasPlainFields(plain) {
			if _, err := tx.UpdateCandidate(ctx, id, plain, s.opts.stamp()); err != nil {
				return err
			}
		}
		if stage != nil {
			if *stage != cur.Stage {
				if _, err := s.recorder.RecordStageChange(ctx, tx, id, from, *stage, actor); err != nil {
					return err
				}
				changed = true
			}
		}
		c, err = tx.GetCandidate(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.opts.metrics.RecordStageChange(string(c.Stage))
		s.opts.logger.Info("candidate stage changed", slog.String("candidate_id", id), slog.String("stage", string(c.Stage)))
	}
	return c, nil
}

func (s *Candidates) Timeline(ctx context.Context, id string) ([]models.TimelineEvent, error) {
	var events []models.TimelineEvent
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		events, err = s.recorder.List(ctx, tx, id)
		return err
	})
	return events, err
}

func (s *Candidates) AddNote(ctx context.Context, id, note, actor string) (*models.TimelineEvent, error) {
	ctx = detach(ctx)
	var e *models.TimelineEvent
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		e, err = s.recorder.RecordNote(ctx, tx, id, note, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func hasPlainFields(p models.CandidatePatch) bool {
	return p.Name != nil || p.Email != nil || p.Phone != nil || p.JobID != nil || p.Notes != nil
}

// CheckEmail trims email and rejects it unless it parses as an address.
func CheckEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperr.InvalidInput("email must not be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.InvalidInput("invalid email %q", email)
	}
	return email, nil
}

// Package timeline records candidate stage changes and notes as an
// append-only event log. Every stage change is written in the same
// transaction as the candidate's stage.
package timeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/garnizeh/talentflow/pkg/repository"
)

const (
	DefaultActor = "HR Team"
	SystemActor  = "System"
)

type Recorder struct {
	now   func() time.Time
	newID func() string
}

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(r *Recorder) { r.newID = gen }
}

func New(opts ...Option) *Recorder {
	r := &Recorder{
		now:   func() time.Time { return time.Now().UTC() },
		newID: NewID,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewID returns a time-ordered UUIDv7 string.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RecordStageChange appends a stage_change event and moves the candidate to
// `to`. When from is non-nil it must match the stored stage, otherwise the
// caller acted on a stale view and Conflict is returned without writing.
func (r *Recorder) RecordStageChange(ctx context.Context, tx repository.Tx, candidateID string, from *models.Stage, to models.Stage, actor string) (*models.TimelineEvent, error) {
	if !to.Valid() {
		return nil, apperr.InvalidInput("unknown stage %q", to)
	}

	c, err := tx.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if from != nil && *from != c.Stage {
		return nil, apperr.Conflict("candidate %s is in stage %s, not %s", candidateID, c.Stage, *from)
	}

	prior := c.Stage
	target := to
	e := &models.TimelineEvent{
		CandidateID: candidateID,
		Type:        models.EventStageChange,
		From:        &prior,
		To:          &target,
		CreatedBy:   actorOr(actor, DefaultActor),
	}
	if err := r.append(ctx, tx, e); err != nil {
		return nil, err
	}
	if err := tx.SetCandidateStage(ctx, candidateID, to, e.CreatedAt); err != nil {
		return nil, fmt.Errorf("set stage of candidate %s: %w", candidateID, err)
	}

	return e, nil
}

// RecordInitial writes the first stage event of a freshly added candidate.
// It carries no from stage.
func (r *Recorder) RecordInitial(ctx context.Context, tx repository.Tx, c *models.Candidate) (*models.TimelineEvent, error) {
	stage := c.Stage
	e := &models.TimelineEvent{
		CandidateID: c.ID,
		Type:        models.EventStageChange,
		To:          &stage,
		CreatedBy:   SystemActor,
	}
	if err := r.append(ctx, tx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *Recorder) RecordNote(ctx context.Context, tx repository.Tx, candidateID, text, actor string) (*models.TimelineEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.InvalidInput("note must not be empty")
	}
	if _, err := tx.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}

	e := &models.TimelineEvent{
		CandidateID: candidateID,
		Type:        models.EventNote,
		Note:        text,
		CreatedBy:   actorOr(actor, DefaultActor),
	}
	if err := r.append(ctx, tx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordAssessment notes that the candidate submitted an assessment.
func (r *Recorder) RecordAssessment(ctx context.Context, tx repository.Tx, candidateID, assessmentTitle, actor string) (*models.TimelineEvent, error) {
	if _, err := tx.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}

	e := &models.TimelineEvent{
		CandidateID: candidateID,
		Type:        models.EventAssessment,
		Note:        "Submitted assessment: " + assessmentTitle,
		CreatedBy:   actorOr(actor, SystemActor),
	}
	if err := r.append(ctx, tx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the candidate's events, most recent first.
func (r *Recorder) List(ctx context.Context, tx repository.Tx, candidateID string) ([]models.TimelineEvent, error) {
	if _, err := tx.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	return tx.ListEvents(ctx, candidateID)
}

// append stamps e and stores it. createdAt never goes below the candidate's
// latest event so the log stays causally ordered if the clock steps back.
func (r *Recorder) append(ctx context.Context, tx repository.Tx, e *models.TimelineEvent) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	latest, err := tx.LatestEvent(ctx, e.CandidateID)
	if err != nil {
		return err
	}
	if latest != nil && now.Before(latest.CreatedAt) {
		now = latest.CreatedAt
	}

	e.ID = r.newID()
	e.CreatedAt = now
	return tx.AppendEvent(ctx, e)
}

func actorOr(actor, fallback string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return fallback
}

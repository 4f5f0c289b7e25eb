package repository

import (
	"context"
	"time"

	"github.com/garnizeh/talentflow/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

// Store runs fn inside a transaction. Update commits when fn returns nil and
// rolls back on error or panic; View never commits writes. The Tx handed to
// fn is only valid for the duration of the call.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx groups the per-collection operations available inside a transaction.
type Tx interface {
	JobRepo
	CandidateRepo
	TimelineRepo
	AssessmentRepo
	ResponseRepo
}

type JobRepo interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	// ListJobs returns every job by ascending order.
	ListJobs(ctx context.Context) ([]models.Job, error)
	CountJobs(ctx context.Context) (int, error)
	AddJob(ctx context.Context, j *models.Job) error
	BulkAddJobs(ctx context.Context, jobs []models.Job) error
	// UpdateJob applies the non-nil fields of patch and sets updated.
	UpdateJob(ctx context.Context, id string, patch models.JobPatch, updated time.Time) (*models.Job, error)
	// JobsInOrderRange returns the jobs whose order lies in [lo, hi].
	JobsInOrderRange(ctx context.Context, lo, hi int) ([]models.Job, error)
	// SetJobOrder rewrites only the order column; updated is left alone.
	SetJobOrder(ctx context.Context, id string, order int) error
}

type CandidateRepo interface {
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	ListCandidates(ctx context.Context) ([]models.Candidate, error)
	AddCandidate(ctx context.Context, c *models.Candidate) error
	BulkAddCandidates(ctx context.Context, cs []models.Candidate) error
	// UpdateCandidate applies the non-stage fields of patch. Stage changes go
	// through SetCandidateStage so they are always paired with an event.
	UpdateCandidate(ctx context.Context, id string, patch models.CandidatePatch, updated time.Time) (*models.Candidate, error)
	SetCandidateStage(ctx context.Context, id string, stage models.Stage, updated time.Time) error
}

type TimelineRepo interface {
	// AppendEvent inserts e and sets its Seq.
	AppendEvent(ctx context.Context, e *models.TimelineEvent) error
	BulkAppendEvents(ctx context.Context, events []models.TimelineEvent) error
	// ListEvents returns a candidate's events newest first; equal timestamps
	// keep insertion order.
	ListEvents(ctx context.Context, candidateID string) ([]models.TimelineEvent, error)
	// LatestEvent returns nil, nil when the candidate has no events.
	LatestEvent(ctx context.Context, candidateID string) (*models.TimelineEvent, error)
	CountEvents(ctx context.Context, candidateID string) (int, error)
}

type AssessmentRepo interface {
	GetAssessmentByJob(ctx context.Context, jobID string) (*models.Assessment, error)
	// PutAssessment inserts a or replaces the assessment of a.JobID.
	PutAssessment(ctx context.Context, a *models.Assessment) error
	BulkAddAssessments(ctx context.Context, as []models.Assessment) error
}

type ResponseRepo interface {
	AddResponse(ctx context.Context, r *models.AssessmentResponse) error
	ListResponses(ctx context.Context, assessmentID string) ([]models.AssessmentResponse, error)
}

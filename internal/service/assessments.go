package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/internal/assessment"
	"github.com/garnizeh/talentflow/internal/timeline"
	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/garnizeh/talentflow/pkg/repository"
)

type Assessments struct {
	store    repository.Store
	loader   *assessment.Loader
	recorder *timeline.Recorder
	opts     options
}

func NewAssessments(store repository.Store, opts ...Option) (*Assessments, error) {
	loader, err := assessment.NewLoader()
	if err != nil {
		return nil, fmt.Errorf("load assessment schemas: %w", err)
	}
	o := buildOptions(opts)
	return &Assessments{store: store, loader: loader, recorder: o.recorder(), opts: o}, nil
}

func (s *Assessments) Get(ctx context.Context, jobID string) (*models.Assessment, error) {
	var a *models.Assessment
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		a, err = tx.GetAssessmentByJob(ctx, jobID)
		return err
	})
	return a, err
}

// Upsert replaces the assessment of jobID with the document in body. created
// reports whether no assessment existed before.
func (s *Assessments) Upsert(ctx context.Context, jobID string, body []byte) (a *models.Assessment, created bool, err error) {
	doc, err := s.loader.Decode(ctx, assessment.CurrentVersion, body)
	if err != nil {
		return nil, false, err
	}
	sections := assessment.Normalize(doc.Sections, s.opts.newID)
	if err := assessment.Check(sections); err != nil {
		return nil, false, err
	}

	now := s.opts.stamp()
	a = &models.Assessment{
		ID:          s.opts.newID(),
		JobID:       jobID,
		Title:       doc.Title,
		Description: doc.Description,
		Sections:    sections,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx = detach(ctx)
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetJob(ctx, jobID); err != nil {
			return err
		}
		prev, err := tx.GetAssessmentByJob(ctx, jobID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			created = true
		case err != nil:
			return err
		default:
			a.ID, a.CreatedAt = prev.ID, prev.CreatedAt
		}
		return tx.PutAssessment(ctx, a)
	})
	if err != nil {
		return nil, false, err
	}

	s.opts.logger.Info("assessment saved",
		slog.String("job_id", jobID),
		slog.Bool("created", created),
		slog.Int("questions", len(assessment.Flatten(a.Sections))))
	return a, created, nil
}

// DeleteQuestion removes a question and clears every condition that pointed
// at it.
func (s *Assessments) DeleteQuestion(ctx context.Context, jobID, questionID string) (*models.Assessment, error) {
	ctx = detach(ctx)
	var a *models.Assessment
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		a, err = tx.GetAssessmentByJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !assessment.DeleteQuestion(a, questionID) {
			return apperr.NotFound("question %s in assessment of job %s", questionID, jobID)
		}
		a.UpdatedAt = s.opts.stamp()
		return tx.PutAssessment(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

type Submission struct {
	CandidateID string                     `json:"candidateId"`
	Responses   map[string]json.RawMessage `json:"responses"`
}

// Submit validates the responses against the job's assessment and stores
// them along with an assessment timeline event. A rejected submission
// returns *apperr.ValidationError and writes nothing.
func (s *Assessments) Submit(ctx context.Context, jobID string, sub Submission, actor string) (*models.AssessmentResponse, error) {
	if sub.CandidateID == "" {
		return nil, apperr.InvalidInput("candidateId must not be empty")
	}

	var vopts []assessment.Option
	if s.opts.strictChoices {
		vopts = append(vopts, assessment.WithStrictChoices())
	}

	ctx = detach(ctx)
	var resp *models.AssessmentResponse
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		a, err := tx.GetAssessmentByJob(ctx, jobID)
		if err != nil {
			return err
		}
		if _, err := tx.GetCandidate(ctx, sub.CandidateID); err != nil {
			return err
		}

		v := assessment.Compile(assessment.Flatten(a.Sections), vopts...)
		answers, ferrs := v.ValidateRaw(sub.Responses)
		if err := assessment.AsError(ferrs); err != nil {
			return err
		}

		resp = &models.AssessmentResponse{
			ID:           s.opts.newID(),
			AssessmentID: a.ID,
			CandidateID:  sub.CandidateID,
			Responses:    answers,
			SubmittedAt:  s.opts.stamp(),
		}
		if err := tx.AddResponse(ctx, resp); err != nil {
			return err
		}
		_, err = s.recorder.RecordAssessment(ctx, tx, sub.CandidateID, a.Title, actor)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrValidationFailed) {
			s.opts.metrics.RecordSubmission("rejected")
		}
		return nil, err
	}

	s.opts.metrics.RecordSubmission("accepted")
	s.opts.logger.Info("assessment submitted", slog.String("job_id", jobID), slog.String("candidate_id", sub.CandidateID))
	return resp, nil
}

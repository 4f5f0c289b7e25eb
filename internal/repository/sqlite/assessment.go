package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
)

func (r *txRepo) GetAssessmentByJob(ctx context.Context, jobID string) (*models.Assessment, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT id, job_id, title, description, sections, created, updated FROM assessments WHERE job_id = ?`, jobID)

	var (
		a                models.Assessment
		sections         string
		created, updated int64
	)
	if err := row.Scan(&a.ID, &a.JobID, &a.Title, &a.Description, &sections, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("assessment for job %s", jobID)
		}

		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if err := json.Unmarshal([]byte(sections), &a.Sections); err != nil {
		return nil, fmt.Errorf("decode sections of assessment %s: %w", a.ID, err)
	}
	if a.Sections == nil {
		a.Sections = []models.Section{}
	}
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)

	return &a, nil
}

// PutAssessment keeps the stored id and created timestamp when the job
// already has an assessment.
func (r *txRepo) PutAssessment(ctx context.Context, a *models.Assessment) error {
	if a == nil {
		return fmt.Errorf("assessment is nil")
	}

	sections, err := marshalText(sectionsOrEmpty(a.Sections))
	if err != nil {
		return err
	}

	q := `INSERT INTO assessments (id, job_id, title, description, sections, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET title = excluded.title, description = excluded.description, sections = excluded.sections, updated = excluded.updated`
	if _, err := r.tx.ExecContext(ctx, q, a.ID, a.JobID, a.Title, a.Description, sections, millis(a.CreatedAt), millis(a.UpdatedAt)); err != nil {
		return fmt.Errorf("put assessment: %w", err)
	}

	return nil
}

func (r *txRepo) BulkAddAssessments(ctx context.Context, as []models.Assessment) error {
	for i := range as {
		if err := r.PutAssessment(ctx, &as[i]); err != nil {
			return err
		}
	}
	return nil
}

func sectionsOrEmpty(s []models.Section) []models.Section {
	if s == nil {
		return []models.Section{}
	}
	return s
}

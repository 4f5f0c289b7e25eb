package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
)

const candidateColumns = `id, name, email, phone, job_id, stage, notes, applied, updated`

func scanCandidate(s scanner) (*models.Candidate, error) {
	var (
		c                models.Candidate
		applied, updated int64
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.JobID, &c.Stage, &c.Notes, &applied, &updated); err != nil {
		return nil, err
	}
	c.AppliedAt = fromMillis(applied)
	c.UpdatedAt = fromMillis(updated)

	return &c, nil
}

func (r *txRepo) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("candidate %s", id)
		}

		return nil, fmt.Errorf("get candidate: %w", err)
	}

	return c, nil
}

// ListCandidates returns candidates in insertion order; callers sort.
func (r *txRepo) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+candidateColumns+` FROM candidates ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	out := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *c)
	}

	return out, rows.Err()
}

func (r *txRepo) AddCandidate(ctx context.Context, c *models.Candidate) error {
	if c == nil {
		return fmt.Errorf("candidate is nil")
	}

	return r.BulkAddCandidates(ctx, []models.Candidate{*c})
}

func (r *txRepo) BulkAddCandidates(ctx context.Context, cs []models.Candidate) error {
	if len(cs) == 0 {
		return nil
	}

	stmt, err := r.tx.PrepareContext(ctx, `INSERT INTO candidates (`+candidateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare candidate insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cs {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Email, c.Phone, c.JobID, c.Stage, c.Notes, millis(c.AppliedAt), millis(c.UpdatedAt)); err != nil {
			return fmt.Errorf("insert candidate %s: %w", c.ID, err)
		}
	}

	return nil
}

func (r *txRepo) UpdateCandidate(ctx context.Context, id string, patch models.CandidatePatch, updated time.Time) (*models.Candidate, error) {
	if patch.Stage != nil {
		return nil, fmt.Errorf("stage of candidate %s must be changed through the timeline", id)
	}

	sets := []string{"updated = ?"}
	args := []any{millis(updated)}
	for _, f := range []struct {
		col string
		val *string
	}{
		{"name", patch.Name},
		{"email", patch.Email},
		{"phone", patch.Phone},
		{"job_id", patch.JobID},
		{"notes", patch.Notes},
	} {
		if f.val != nil {
			sets = append(sets, f.col+" = ?")
			args = append(args, *f.val)
		}
	}

	args = append(args, id)
	res, err := r.tx.ExecContext(ctx, `UPDATE candidates SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update candidate: %w", err)
	}
	if err := requireAffected(res, func() error { return apperr.NotFound("candidate %s", id) }); err != nil {
		return nil, err
	}

	return r.GetCandidate(ctx, id)
}

func (r *txRepo) SetCandidateStage(ctx context.Context, id string, stage models.Stage, updated time.Time) error {
	res, err := r.tx.ExecContext(ctx, `UPDATE candidates SET stage = ?, updated = ? WHERE id = ?`, stage, millis(updated), id)
	if err != nil {
		return fmt.Errorf("set candidate stage: %w", err)
	}

	return requireAffected(res, func() error { return apperr.NotFound("candidate %s", id) })
}

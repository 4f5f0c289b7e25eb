package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
)

const jobColumns = `id, title, slug, status, tags, ord, description, created, updated`

func scanJob(s scanner) (*models.Job, error) {
	var (
		j                models.Job
		tags             string
		created, updated int64
	)
	if err := s.Scan(&j.ID, &j.Title, &j.Slug, &j.Status, &tags, &j.Order, &j.Description, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &j.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of job %s: %w", j.ID, err)
	}
	if j.Tags == nil {
		j.Tags = []string{}
	}
	j.CreatedAt = fromMillis(created)
	j.UpdatedAt = fromMillis(updated)

	return &j, nil
}

func (r *txRepo) queryJobs(ctx context.Context, q string, args ...any) ([]models.Job, error) {
	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	out := []models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *j)
	}

	return out, rows.Err()
}

func (r *txRepo) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("job %s", id)
		}

		return nil, fmt.Errorf("get job: %w", err)
	}

	return j, nil
}

func (r *txRepo) ListJobs(ctx context.Context) ([]models.Job, error) {
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY ord ASC`)
}

func (r *txRepo) CountJobs(ctx context.Context) (int, error) {
	var n int
	if err := r.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

func (r *txRepo) AddJob(ctx context.Context, j *models.Job) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}

	return r.BulkAddJobs(ctx, []models.Job{*j})
}

func (r *txRepo) BulkAddJobs(ctx context.Context, jobs []models.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	stmt, err := r.tx.PrepareContext(ctx, `INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare job insert: %w", err)
	}
	defer stmt.Close()

	for _, j := range jobs {
		tags, err := marshalText(nonNil(j.Tags))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, j.ID, j.Title, j.Slug, j.Status, tags, j.Order, j.Description, millis(j.CreatedAt), millis(j.UpdatedAt)); err != nil {
			return fmt.Errorf("insert job %s: %w", j.ID, err)
		}
	}

	return nil
}

func (r *txRepo) UpdateJob(ctx context.Context, id string, patch models.JobPatch, updated time.Time) (*models.Job, error) {
	sets := []string{"updated = ?"}
	args := []any{millis(updated)}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Slug != nil {
		sets = append(sets, "slug = ?")
		args = append(args, *patch.Slug)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.Tags != nil {
		tags, err := marshalText(nonNil(*patch.Tags))
		if err != nil {
			return nil, err
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}

	args = append(args, id)
	res, err := r.tx.ExecContext(ctx, `UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if err := requireAffected(res, func() error { return apperr.NotFound("job %s", id) }); err != nil {
		return nil, err
	}

	return r.GetJob(ctx, id)
}

func (r *txRepo) JobsInOrderRange(ctx context.Context, lo, hi int) ([]models.Job, error) {
	return r.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE ord BETWEEN ? AND ? ORDER BY ord ASC`, lo, hi)
}

func (r *txRepo) SetJobOrder(ctx context.Context, id string, order int) error {
	res, err := r.tx.ExecContext(ctx, `UPDATE jobs SET ord = ? WHERE id = ?`, order, id)
	if err != nil {
		return fmt.Errorf("set job order: %w", err)
	}

	return requireAffected(res, func() error { return apperr.NotFound("job %s", id) })
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

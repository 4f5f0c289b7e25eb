package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/talentflow/pkg/models"
)

const eventColumns = `seq, id, candidate_id, type, from_stage, to_stage, note, created, created_by`

func scanEvent(s scanner) (*models.TimelineEvent, error) {
	var (
		e        models.TimelineEvent
		from, to sql.NullString
		created  int64
	)
	if err := s.Scan(&e.Seq, &e.ID, &e.CandidateID, &e.Type, &from, &to, &e.Note, &created, &e.CreatedBy); err != nil {
		return nil, err
	}
	if from.Valid {
		st := models.Stage(from.String)
		e.From = &st
	}
	if to.Valid {
		st := models.Stage(to.String)
		e.To = &st
	}
	e.CreatedAt = fromMillis(created)

	return &e, nil
}

func nullStage(s *models.Stage) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func (r *txRepo) AppendEvent(ctx context.Context, e *models.TimelineEvent) error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}

	res, err := r.tx.ExecContext(ctx,
		`INSERT INTO timeline_events (id, candidate_id, type, from_stage, to_stage, note, created, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CandidateID, e.Type, nullStage(e.From), nullStage(e.To), e.Note, millis(e.CreatedAt), e.CreatedBy)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("event seq: %w", err)
	}
	e.Seq = seq

	return nil
}

func (r *txRepo) BulkAppendEvents(ctx context.Context, events []models.TimelineEvent) error {
	for i := range events {
		if err := r.AppendEvent(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) ListEvents(ctx context.Context, candidateID string) ([]models.TimelineEvent, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+eventColumns+` FROM timeline_events WHERE candidate_id = ? ORDER BY created DESC, seq ASC`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []models.TimelineEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}

	return out, rows.Err()
}

func (r *txRepo) LatestEvent(ctx context.Context, candidateID string) (*models.TimelineEvent, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM timeline_events WHERE candidate_id = ? ORDER BY created DESC, seq DESC LIMIT 1`, candidateID)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("latest event: %w", err)
	}

	return e, nil
}

func (r *txRepo) CountEvents(ctx context.Context, candidateID string) (int, error) {
	var n int
	if err := r.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM timeline_events WHERE candidate_id = ?`, candidateID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Package ordering keeps the job order index dense and unique while single
// jobs are repositioned.
package ordering

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/garnizeh/talentflow/pkg/repository"
)

// Apply returns a copy of ids with the element at from moved to to. It is the
// reference result the engine checks itself against and what callers use to
// render an optimistic view.
func Apply(ids []string, from, to int) ([]string, error) {
	n := len(ids)
	if from < 0 || from >= n {
		return nil, apperr.InvalidInput("fromOrder %d out of range [0,%d)", from, n)
	}
	if to < 0 || to >= n {
		return nil, apperr.InvalidInput("toOrder %d out of range [0,%d)", to, n)
	}

	out := slices.Clone(ids)
	if from == to {
		return out, nil
	}
	moved := out[from]
	out = slices.Delete(out, from, from+1)
	out = slices.Insert(out, to, moved)

	return out, nil
}

// Shift returns the order range [lo, hi] whose members move by delta when a
// job goes from -> to. ok is false for a no-op.
func Shift(from, to int) (lo, hi, delta int, ok bool) {
	switch {
	case from < to:
		return from + 1, to, -1, true
	case from > to:
		return to, from - 1, 1, true
	}
	return 0, 0, 0, false
}

// Result is the outcome of a move. Previous and Current list job ids by order
// so a caller holding an optimistic view can reconcile or roll back.
type Result struct {
	Job      *models.Job `json:"job"`
	Previous []string    `json:"previous"`
	Current  []string    `json:"current"`
}

type Engine struct {
	store  repository.Store
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return e
}

// Move relocates jobID from fromOrder to toOrder in one write transaction.
// fromOrder is the order the caller last observed; a mismatch with the stored
// value is a Conflict and nothing is written.
func (e *Engine) Move(ctx context.Context, jobID string, fromOrder, toOrder int) (*Result, error) {
	var res *Result
	err := e.store.Update(ctx, func(tx repository.Tx) error {
		r, err := e.MoveTx(ctx, tx, jobID, fromOrder, toOrder)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("job moved", slog.String("job_id", jobID), slog.Int("from", fromOrder), slog.Int("to", toOrder))
	return res, nil
}

// MoveTx is Move inside a transaction owned by the caller.
func (e *Engine) MoveTx(ctx context.Context, tx repository.Tx, jobID string, fromOrder, toOrder int) (*Result, error) {
	job, err := tx.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Order != fromOrder {
		return nil, apperr.Conflict("job %s is at order %d, not %d", jobID, job.Order, fromOrder)
	}

	all, err := tx.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	previous, err := idsByOrder(all)
	if err != nil {
		return nil, err
	}
	if toOrder < 0 || toOrder >= len(all) {
		return nil, apperr.InvalidInput("toOrder %d out of range [0,%d)", toOrder, len(all))
	}

	expected, err := Apply(previous, fromOrder, toOrder)
	if err != nil {
		return nil, err
	}

	lo, hi, delta, ok := Shift(fromOrder, toOrder)
	if !ok {
		return &Result{Job: job, Previous: previous, Current: expected}, nil
	}

	between, err := tx.JobsInOrderRange(ctx, lo, hi)
	if err != nil {
		return nil, err
	}
	for _, j := range between {
		if j.ID == jobID {
			continue
		}
		if err := tx.SetJobOrder(ctx, j.ID, j.Order+delta); err != nil {
			return nil, fmt.Errorf("shift job %s: %w", j.ID, err)
		}
	}
	if err := tx.SetJobOrder(ctx, jobID, toOrder); err != nil {
		return nil, fmt.Errorf("place job %s: %w", jobID, err)
	}
	moved, err := tx.UpdateJob(ctx, jobID, models.JobPatch{}, e.now())
	if err != nil {
		return nil, err
	}

	after, err := tx.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	current, err := idsByOrder(after)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(current, expected) {
		return nil, fmt.Errorf("order index diverged after moving %s from %d to %d", jobID, fromOrder, toOrder)
	}

	return &Result{Job: moved, Previous: previous, Current: current}, nil
}

// idsByOrder returns the ids of jobs sorted by order and fails unless the
// orders are exactly 0..n-1.
func idsByOrder(jobs []models.Job) ([]string, error) {
	sorted := slices.Clone(jobs)
	slices.SortStableFunc(sorted, func(a, b models.Job) int { return a.Order - b.Order })

	ids := make([]string, len(sorted))
	for i, j := range sorted {
		if j.Order != i {
			return nil, fmt.Errorf("order index is not dense: job %s has order %d at position %d", j.ID, j.Order, i)
		}
		ids[i] = j.ID
	}
	return ids, nil
}

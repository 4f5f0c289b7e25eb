package mock

import (
	"context"
	"sync"
	"time"

	"github.com/garnizeh/talentflow/pkg/models"
	"github.com/garnizeh/talentflow/pkg/repository"
)

// Test helpers and mocks

// FaultyStore wraps a real store and makes chosen Tx methods fail, which lets
// tests drive a transaction into rollback half-way through its writes.
type FaultyStore struct {
	Inner repository.Store

	mu     sync.Mutex
	faults map[string]*fault
	calls  map[string]int
}

type fault struct {
	after int
	err   error
}

func NewFaultyStore(inner repository.Store) *FaultyStore {
	return &FaultyStore{Inner: inner, faults: map[string]*fault{}, calls: map[string]int{}}
}

// FailOn makes the named method (e.g. "SetJobOrder") return err once it has
// already succeeded `after` times.
func (s *FaultyStore) FailOn(method string, after int, err error) *FaultyStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = &fault{after: after, err: err}
	return s
}

// Calls reports how often the named method was invoked.
func (s *FaultyStore) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *FaultyStore) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Inner.View(ctx, func(tx repository.Tx) error {
		return fn(&faultyTx{Tx: tx, s: s})
	})
}

func (s *FaultyStore) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Inner.Update(ctx, func(tx repository.Tx) error {
		return fn(&faultyTx{Tx: tx, s: s})
	})
}

func (s *FaultyStore) check(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[method]
	s.calls[method] = n + 1
	if f, ok := s.faults[method]; ok && n >= f.after {
		return f.err
	}
	return nil
}

type faultyTx struct {
	repository.Tx
	s *FaultyStore
}

func (t *faultyTx) UpdateJob(ctx context.Context, id string, patch models.JobPatch, updated time.Time) (*models.Job, error) {
	if err := t.s.check("UpdateJob"); err != nil {
		return nil, err
	}
	return t.Tx.UpdateJob(ctx, id, patch, updated)
}

func (t *faultyTx) SetJobOrder(ctx context.Context, id string, order int) error {
	if err := t.s.check("SetJobOrder"); err != nil {
		return err
	}
	return t.Tx.SetJobOrder(ctx, id, order)
}

func (t *faultyTx) AddJob(ctx context.Context, j *models.Job) error {
	if err := t.s.check("AddJob"); err != nil {
		return err
	}
	return t.Tx.AddJob(ctx, j)
}

func (t *faultyTx) AddCandidate(ctx context.Context, c *models.Candidate) error {
	if err := t.s.check("AddCandidate"); err != nil {
		return err
	}
	return t.Tx.AddCandidate(ctx, c)
}

func (t *faultyTx) SetCandidateStage(ctx context.Context, id string, stage models.Stage, updated time.Time) error {
	if err := t.s.check("SetCandidateStage"); err != nil {
		return err
	}
	return t.Tx.SetCandidateStage(ctx, id, stage, updated)
}

func (t *faultyTx) AppendEvent(ctx context.Context, e *models.TimelineEvent) error {
	if err := t.s.check("AppendEvent"); err != nil {
		return err
	}
	return t.Tx.AppendEvent(ctx, e)
}

func (t *faultyTx) AddResponse(ctx context.Context, r *models.AssessmentResponse) error {
	if err := t.s.check("AddResponse"); err != nil {
		return err
	}
	return t.Tx.AddResponse(ctx, r)
}

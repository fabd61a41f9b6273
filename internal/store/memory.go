package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRunStore implements RunStore in memory, for tests and for runs
// that should leave no trace.
type MemoryRunStore struct {
	mu     sync.RWMutex
	runs   map[string]*Run
	order  []string
	epochs map[string]map[int]EpochRecord
}

// NewMemoryRunStore creates an empty store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:   make(map[string]*Run),
		epochs: make(map[string]map[int]EpochRecord),
	}
}

// CreateRun implements RunStore.
func (s *MemoryRunStore) CreateRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, exists := s.runs[run.ID]; exists {
		return "", fmt.Errorf("run %s already exists", run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.State == "" {
		run.State = StateRunning
	}

	s.runs[run.ID] = &run
	s.order = append(s.order, run.ID)
	s.epochs[run.ID] = make(map[int]EpochRecord)
	return run.ID, nil
}

// RecordEpoch implements RunStore.
func (s *MemoryRunStore) RecordEpoch(ctx context.Context, runID string, rec EpochRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eps, ok := s.epochs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	eps[rec.Epoch] = rec
	return nil
}

// FinishRun implements RunStore.
func (s *MemoryRunStore) FinishRun(ctx context.Context, runID string, summary Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	run.Summary = summary
	run.FinishedAt = time.Now()
	return nil
}

// GetRun implements RunStore.
func (s *MemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	cp := *run
	return &cp, nil
}

// ListRuns implements RunStore.
func (s *MemoryRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		runs = append(runs, *s.runs[s.order[i]])
	}
	// Newest first; insertion order breaks ties.
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Epochs implements RunStore.
func (s *MemoryRunStore) Epochs(ctx context.Context, runID string) ([]EpochRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eps, ok := s.epochs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	out := make([]EpochRecord, 0, len(eps))
	for _, e := range eps {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out, nil
}

// Close implements RunStore.
func (s *MemoryRunStore) Close() error { return nil }

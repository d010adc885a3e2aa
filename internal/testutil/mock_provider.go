// Package testutil provides shared test utilities for factcorpus.
package testutil

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dwsmith1983/factcorpus/internal/provider"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.JobStore = (*MockStore)(nil)

// MockStore is an in-memory JobStore implementation for testing.
type MockStore struct {
	mu   sync.Mutex
	jobs map[string]types.BuildJob

	// PutErr, when set, is returned by every PutJob call.
	PutErr error

	putCount atomic.Int64
	closed   atomic.Bool
}

// NewMockStore creates a new in-memory mock store.
func NewMockStore() *MockStore {
	return &MockStore{jobs: make(map[string]types.BuildJob)}
}

func (m *MockStore) PutJob(_ context.Context, job types.BuildJob) error {
	m.putCount.Add(1)
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", provider.ErrJobExists, job.ID)
	}
	job.FactFiles = slices.Clone(job.FactFiles)
	m.jobs[job.ID] = job
	return nil
}

func (m *MockStore) GetJob(_ context.Context, id string) (*types.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrJobNotFound, id)
	}
	return &job, nil
}

func (m *MockStore) ListJobs(_ context.Context, entryID string) ([]types.BuildJob, error) {
	return m.filter(func(j types.BuildJob) bool { return j.Entry.ID == entryID }), nil
}

func (m *MockStore) ListRun(_ context.Context, runID string) ([]types.BuildJob, error) {
	return m.filter(func(j types.BuildJob) bool { return j.RunID == runID }), nil
}

func (m *MockStore) Close() error {
	m.closed.Store(true)
	return nil
}

// All returns every stored job ordered by id.
func (m *MockStore) All() []types.BuildJob {
	return m.filter(func(types.BuildJob) bool { return true })
}

// PutCount returns how many times PutJob was called, including failed calls.
func (m *MockStore) PutCount() int64 {
	return m.putCount.Load()
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	return m.closed.Load()
}

func (m *MockStore) filter(keep func(types.BuildJob) bool) []types.BuildJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []types.BuildJob
	for _, j := range m.jobs {
		if keep(j) {
			result = append(result, j)
		}
	}
	slices.SortFunc(result, func(a, b types.BuildJob) int { return cmp.Compare(a.ID, b.ID) })
	return result
}

// Package provider defines the storage backend for BuildJob records.
package provider

import (
	"context"
	"errors"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Sentinel errors shared by all JobStore implementations.
var (
	ErrJobExists   = errors.New("build job already recorded")
	ErrJobNotFound = errors.New("build job not found")
)

// JobStore persists BuildJob records. Records are insert-only: a retry is
// stored as a new job with its own id, never as an update.
type JobStore interface {
	// PutJob inserts a finished job. It returns ErrJobExists if a job with
	// the same id was already stored.
	PutJob(ctx context.Context, job types.BuildJob) error
	// GetJob returns the job with the given id or ErrJobNotFound.
	GetJob(ctx context.Context, id string) (*types.BuildJob, error)
	// ListJobs returns every attempt on a corpus entry, oldest first.
	ListJobs(ctx context.Context, entryID string) ([]types.BuildJob, error)
	// ListRun returns the jobs of one orchestrator run, oldest first.
	ListRun(ctx context.Context, runID string) ([]types.BuildJob, error)
	// Close releases the store's resources.
	Close() error
}

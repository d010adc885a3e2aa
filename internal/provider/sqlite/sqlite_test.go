package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/factcorpus/internal/provider"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "jobs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func job(id, run, entry string, attempt int, outcome types.Outcome) types.BuildJob {
	finished := time.Date(2020, 1, 1, 0, 1, 0, 0, time.UTC)
	return types.BuildJob{
		ID:         id,
		RunID:      run,
		Entry:      types.CorpusEntry{ID: entry, Name: "rand", Version: "0.7.3"},
		Attempt:    attempt,
		State:      types.JobLogged,
		Outcome:    outcome,
		StartedAt:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: &finished,
	}
}

func TestPutGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	want := job("01A", "r1", "e1", 1, types.OutcomeSuccess)
	want.FactFiles = []string{"out/rand-0.7.3/rand.json"}
	require.NoError(t, s.PutJob(ctx, want))

	got, err := s.GetJob(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	_, err = s.GetJob(ctx, "01Z")
	assert.ErrorIs(t, err, provider.ErrJobNotFound)
}

func TestPutIsInsertOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutJob(ctx, job("01A", "r1", "e1", 1, types.OutcomeTimeout)))
	err := s.PutJob(ctx, job("01A", "r1", "e1", 1, types.OutcomeSuccess))
	assert.ErrorIs(t, err, provider.ErrJobExists)

	got, err := s.GetJob(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeTimeout, got.Outcome)
}

func TestListings(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutJob(ctx, job("01C", "r2", "e1", 1, types.OutcomeSuccess)))
	require.NoError(t, s.PutJob(ctx, job("01A", "r1", "e1", 1, types.OutcomeCompilerError)))
	require.NoError(t, s.PutJob(ctx, job("01B", "r1", "e2", 1, types.OutcomeSuccess)))

	jobs, err := s.ListJobs(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "01A", jobs[0].ID)
	assert.Equal(t, "01C", jobs[1].ID)

	run, err := s.ListRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, run, 2)
	assert.Equal(t, "01A", run[0].ID)
	assert.Equal(t, "01B", run[1].ID)

	none, err := s.ListRun(ctx, "r9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.PutJob(context.Background(), job("01A", "r1", "e1", 1, types.OutcomeSuccess)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	jobs, err := s.ListJobs(context.Background(), "e1")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

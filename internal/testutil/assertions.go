package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/factcorpus/internal/runlog"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Toolchain returns the absolute path of a script under testdata/toolchain.
// rel is the path from the calling package to the repository root.
func Toolchain(t *testing.T, rel, name string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join(rel, "testdata", "toolchain", name))
	require.NoError(t, err)
	_, err = os.Stat(p)
	require.NoError(t, err, "toolchain script %s", name)
	return p
}

// WriteCorpus writes entries as a JSON corpus descriptor and returns its path.
func WriteCorpus(t *testing.T, dir string, entries ...types.CorpusEntry) string {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	path := filepath.Join(dir, "corpus.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// Entry builds a corpus entry whose id is name-version.
func Entry(name, version string) types.CorpusEntry {
	return types.CorpusEntry{ID: name + "-" + version, Name: name, Version: version}
}

// LogEvents reads a run log and returns "EVENT id" strings in file order.
func LogEvents(t *testing.T, path string) []string {
	t.Helper()
	records, err := runlog.ReadFile(path)
	require.NoError(t, err)
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, string(r.Event)+" "+r.ID)
	}
	return out
}

// RequireOutcomes asserts the outcomes of jobs, in order.
func RequireOutcomes(t *testing.T, jobs []types.BuildJob, want ...types.Outcome) {
	t.Helper()
	got := make([]types.Outcome, 0, len(jobs))
	for _, j := range jobs {
		got = append(got, j.Outcome)
	}
	require.Equal(t, want, got)
}

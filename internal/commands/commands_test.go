package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/factcorpus/internal/config"
)

const fixtureDB = "../../testdata/fixture/output/extractor_test_4b1f2c9e.json"

func TestInitScaffolds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Project scaffolded")
	assert.FileExists(t, filepath.Join(dir, config.FileName))
	assert.FileExists(t, filepath.Join(dir, "corpus.json"))
	assert.DirExists(t, filepath.Join(dir, "work", "output"))

	_, err = execute(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--force", dir)
	assert.NoError(t, err)
}

func TestCompilePipeline(t *testing.T) {
	dir := writeProject(t, "rustc-fixture")

	out, err := execute(t, "--dir", dir, "compile")
	require.NoError(t, err)
	assert.Contains(t, out, "extractor_test-0.1.0")
	assert.Contains(t, out, "succeeded=1 failed=0 skipped=0 remaining=0")

	out, err = execute(t, "--dir", dir, "compile")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded=0 failed=0 skipped=1 remaining=0")

	out, err = execute(t, "--dir", dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Corpus: 1 entries")
	assert.Contains(t, out, "last")

	out, err = execute(t, "--dir", dir, "status", "extractor_test-0.1.0")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "extractor_test_4b1f2c9e.json")

	out, err = execute(t, "--dir", dir, "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "merged 2 fact databases (0 already loaded)")
	assert.FileExists(t, filepath.Join(dir, "work", "out", DefaultCorpusDB))

	out, err = execute(t, "--dir", dir, "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "merged 0 fact databases (2 already loaded)")
}

func TestCompileFailureAndCheck(t *testing.T) {
	dir := writeProject(t, "rustc-fail")

	_, err := execute(t, "--dir", dir, "compile", "--on-failure", "continue")
	require.NoError(t, err)

	out, err := execute(t, "--dir", dir, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "compilation error: 1")

	out, err = execute(t, "--dir", dir, "check", "--scan")
	require.NoError(t, err)
	assert.Contains(t, out, "compilation error: 1")

	out, err = execute(t, "--dir", dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Failed entries:")

	assert.FileExists(t, filepath.Join(dir, "work", "alerts.jsonl"))
}

func TestCompileAbortReturnsError(t *testing.T) {
	dir := writeProject(t, "rustc-fail")
	out, err := execute(t, "--dir", dir, "compile")
	require.Error(t, err)
	assert.Contains(t, out, "COMPILER_ERROR")
}

func TestCompileRejectsBadOverrides(t *testing.T) {
	dir := writeProject(t, "rustc-fixture")
	_, err := execute(t, "--dir", dir, "compile", "--mode", "some")
	assert.ErrorContains(t, err, "--mode")
	_, err = execute(t, "--dir", dir, "compile", "--only", "missing-1.0.0")
	assert.ErrorContains(t, err, "not in the corpus")
}

func TestVerify(t *testing.T) {
	dir := writeProject(t, "rustc-fixture")
	expect, err := filepath.Abs("../../testdata/fixture/expect.yaml")
	require.NoError(t, err)

	out, err := execute(t, "--dir", dir, "verify", "--expect", expect)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ extractor_test-0.1.0 matches")
}

func TestInspectAndGet(t *testing.T) {
	out, err := execute(t, "--dir", t.TempDir(), "inspect", fixtureDB)
	require.NoError(t, err)
	assert.Contains(t, out, "terminators_call")
	assert.Contains(t, out, "conforms to schema")

	out, err = execute(t, "get", fixtureDB, "modules")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = execute(t, "get", fixtureDB, "traits")
	require.NoError(t, err)
	assert.Equal(t, "(8)\n(25)\n", out)

	_, err = execute(t, "get", fixtureDB, "loops")
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	program := filepath.Join(t.TempDir(), "modules.mg")
	require.NoError(t, os.WriteFile(program, []byte(`modules(V) :- counter("modules", V).`+"\n"), 0o644))

	out, err := execute(t, "query", program, "modules", fixtureDB)
	require.NoError(t, err)
	assert.Equal(t, "(3)\n", out)
}

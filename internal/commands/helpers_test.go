package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/factcorpus/internal/testutil"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown k=v")

	_, err = newLogger(&buf, "loud")
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	cfg := &types.ProjectConfig{JobStore: types.JobStoreConfig{
		Provider: types.StoreSQLite,
		Path:     filepath.Join(t.TempDir(), "jobs.db"),
	}}
	s, err := newStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg.JobStore.Provider = "etcd"
	_, err = newStore(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unsupported job store provider")

	cfg.JobStore.Provider = types.StoreDynamoDB
	_, err = newStore(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "table name")
}

func TestLoadSchemaDefault(t *testing.T) {
	s, err := loadSchema(&types.ProjectConfig{})
	require.NoError(t, err)
	assert.NotEmpty(t, s.Relations)

	_, err = loadSchema(&types.ProjectConfig{Schema: filepath.Join(t.TempDir(), "none.yaml")})
	assert.Error(t, err)
}

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeProject writes a project whose compiler replacement emits the
// verification fixture.
func writeProject(t *testing.T, rustc string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteCorpus(t, dir, testutil.Entry("extractor_test", "0.1.0"))
	cfg := strings.Join([]string{
		"corpus: corpus.json",
		"compilationDir: work/build",
		"logPath: work/run.log",
		"cacheDir: work/cache",
		"outputDir: work/out",
		"buildLogDir: work/logs",
		"compilerPath: " + testutil.Toolchain(t, "../..", rustc),
		"command: [" + testutil.Toolchain(t, "../..", "cargo") + ", check]",
		"alerts:",
		"  - type: file",
		"    path: work/alerts.jsonl",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "factcorpus.yaml"), []byte(cfg), 0o644))
	return dir
}

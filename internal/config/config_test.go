package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

const minimal = `corpus: corpus.json
compilationDir: build
logPath: logs/run.log
cacheDir: /var/cache/sccache
outputDir: out
compilerPath: /opt/bin/rustc-facts
`

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, minimal+`timeout: 5m
mode: first
onFailure: continue
retries: 2
breaker:
  consecutiveFailures: 4
env:
  cacheVar: SCCACHE_DIR
  extra:
    RUST_BACKTRACE: "1"
alerts:
  - type: console
  - type: file
    path: alerts.jsonl
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "corpus.json"), cfg.Corpus)
	assert.Equal(t, filepath.Join(dir, "build"), cfg.CompilationDir)
	assert.Equal(t, "/var/cache/sccache", cfg.CacheDir)
	assert.Equal(t, "5m", cfg.Timeout)
	assert.Equal(t, types.ModeFirst, cfg.Mode)
	assert.Equal(t, types.FailContinue, cfg.OnFailure)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 4, cfg.Breaker.ConsecutiveFailures)
	assert.Equal(t, "1", cfg.Env.Extra["RUST_BACKTRACE"])
	require.Len(t, cfg.Alerts, 2)
	assert.Equal(t, filepath.Join(dir, "alerts.jsonl"), cfg.Alerts[1].Path)
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, minimal)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Cargo.toml", cfg.ManifestName)
	assert.Equal(t, []string{"cargo", "build"}, cfg.Command)
	assert.Equal(t, "20m0s", cfg.Timeout)
	assert.Equal(t, types.ModeAll, cfg.Mode)
	assert.Equal(t, types.FailAbort, cfg.OnFailure)
	assert.Equal(t, types.StoreSQLite, cfg.JobStore.Provider)
	assert.Equal(t, filepath.Join(dir, "logs", "jobs.db"), cfg.JobStore.Path)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFileName),
		[]byte("FACTCORPUS_TEST_EXTRACTOR=/opt/extractor/bin/rustc\n"), 0o644))
	writeConfig(t, dir, `corpus: corpus.json
compilationDir: build
logPath: run.log
cacheDir: cache
outputDir: out
compilerPath: ${FACTCORPUS_TEST_EXTRACTOR}
`)
	t.Cleanup(func() { _ = os.Unsetenv("FACTCORPUS_TEST_EXTRACTOR") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/opt/extractor/bin/rustc", cfg.CompilerPath)
}

func TestLoadEnvironmentWinsOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FACTCORPUS_TEST_CACHE", "/from/env")
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFileName),
		[]byte("FACTCORPUS_TEST_CACHE=/from/dotenv\n"), 0o644))
	writeConfig(t, dir, `corpus: corpus.json
compilationDir: build
logPath: run.log
cacheDir: $FACTCORPUS_TEST_CACHE
outputDir: out
compilerPath: /bin/true
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.CacheDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "invalid: [yaml")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		want  string
	}{
		{"bad mode", "mode: some\n", "mode must be"},
		{"bad policy", "onFailure: retry\n", "onFailure must be"},
		{"negative retries", "retries: -1\n", "retries"},
		{"retry on success", "retry:\n  on: [SUCCESS]\n", "not a failure outcome"},
		{"negative multiplier", "retry:\n  multiplier: -2\n", "retry.multiplier"},
		{"dynamodb without table", "jobStore:\n  provider: dynamodb\n  dynamodb: {}\n", "tableName"},
		{"dynamodb without config", "jobStore:\n  provider: dynamodb\n", "dynamodb config is required"},
		{"unknown store", "jobStore:\n  provider: redis\n", "unknown jobStore provider"},
		{"file alert without path", "alerts:\n  - type: file\n", "requires a path"},
		{"eventbridge without bus", "alerts:\n  - type: eventbridge\n", "eventBus"},
		{"unknown alert", "alerts:\n  - type: pager\n", "unknown alert type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, minimal+tt.extra)
			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidation_MissingRequired(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "corpus: corpus.json\n")
	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilationDir is required")
}

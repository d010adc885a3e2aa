// Package config handles loading and validation of factcorpus.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/factcorpus/internal/compiler"
	"github.com/dwsmith1983/factcorpus/internal/manifest"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// FileName is the project config file looked up in a project directory.
const FileName = "factcorpus.yaml"

// EnvFileName is an optional dotenv file next to the config.
const EnvFileName = ".env"

// DefaultCommand is the toolchain command run for every entry.
var DefaultCommand = []string{"cargo", "build"}

// Load reads and parses factcorpus.yaml from the given directory. A .env
// file in the same directory is loaded first so ${VAR} references in path
// fields can use it; variables already set in the environment win.
func Load(dir string) (*types.ProjectConfig, error) {
	if err := godotenv.Load(filepath.Join(dir, EnvFileName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", EnvFileName, err)
	}

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expand(&cfg, dir)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expand substitutes environment references in path fields and makes
// relative paths relative to the project directory.
func expand(cfg *types.ProjectConfig, dir string) {
	for _, p := range []*string{
		&cfg.Corpus, &cfg.CompilationDir, &cfg.LogPath, &cfg.CacheDir,
		&cfg.OutputDir, &cfg.BuildLogDir, &cfg.CompilerPath, &cfg.Schema,
		&cfg.CorpusDB, &cfg.JobStore.Path,
	} {
		*p = resolve(os.ExpandEnv(*p), dir)
	}
	for i := range cfg.Alerts {
		cfg.Alerts[i].Path = resolve(os.ExpandEnv(cfg.Alerts[i].Path), dir)
	}
	for i := range cfg.Command {
		cfg.Command[i] = os.ExpandEnv(cfg.Command[i])
	}
	cfg.Env.Wrapper = os.ExpandEnv(cfg.Env.Wrapper)
	for k, v := range cfg.Env.Extra {
		cfg.Env.Extra[k] = os.ExpandEnv(v)
	}
}

func resolve(p, dir string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.ManifestName == "" {
		cfg.ManifestName = manifest.DefaultName
	}
	if len(cfg.Command) == 0 {
		cfg.Command = slices.Clone(DefaultCommand)
	}
	if cfg.Timeout == "" {
		cfg.Timeout = compiler.DefaultTimeout.String()
	}
	if cfg.Mode == "" {
		cfg.Mode = types.ModeAll
	}
	if cfg.OnFailure == "" {
		cfg.OnFailure = types.FailAbort
	}
	if cfg.JobStore.Provider == "" {
		cfg.JobStore.Provider = types.StoreSQLite
	}
	if cfg.JobStore.Provider == types.StoreSQLite && cfg.JobStore.Path == "" {
		cfg.JobStore.Path = filepath.Join(filepath.Dir(cfg.LogPath), "jobs.db")
	}
}

func validate(cfg *types.ProjectConfig) error {
	for _, req := range []struct{ name, val string }{
		{"corpus", cfg.Corpus},
		{"compilationDir", cfg.CompilationDir},
		{"logPath", cfg.LogPath},
		{"cacheDir", cfg.CacheDir},
		{"outputDir", cfg.OutputDir},
		{"compilerPath", cfg.CompilerPath},
	} {
		if req.val == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch cfg.Mode {
	case types.ModeAll, types.ModeFirst:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", types.ModeAll, types.ModeFirst, cfg.Mode)
	}
	switch cfg.OnFailure {
	case types.FailAbort, types.FailContinue:
	default:
		return fmt.Errorf("onFailure must be %q or %q, got %q", types.FailAbort, types.FailContinue, cfg.OnFailure)
	}
	if cfg.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	for _, o := range cfg.Retry.On {
		switch o {
		case types.OutcomeTimeout, types.OutcomeCompilerError, types.OutcomeIOError:
		default:
			return fmt.Errorf("retry.on: %q is not a failure outcome", o)
		}
	}
	if cfg.Retry.Multiplier < 0 {
		return fmt.Errorf("retry.multiplier must not be negative")
	}
	if cfg.MaxLogSize < 0 {
		return fmt.Errorf("maxLogSize must not be negative")
	}
	if cfg.Breaker.ConsecutiveFailures < 0 {
		return fmt.Errorf("breaker.consecutiveFailures must not be negative")
	}
	switch cfg.JobStore.Provider {
	case types.StoreSQLite:
	case types.StoreDynamoDB:
		if cfg.JobStore.DynamoDB == nil {
			return fmt.Errorf("jobStore.dynamodb config is required when provider is dynamodb")
		}
		if cfg.JobStore.DynamoDB.TableName == "" {
			return fmt.Errorf("jobStore.dynamodb.tableName is required")
		}
	default:
		return fmt.Errorf("unknown jobStore provider %q", cfg.JobStore.Provider)
	}
	for i, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alerts[%d]: file alert requires a path", i)
			}
		case types.AlertEventBridge:
			if a.EventBus == "" {
				return fmt.Errorf("alerts[%d]: eventbridge alert requires an eventBus", i)
			}
		default:
			return fmt.Errorf("alerts[%d]: unknown alert type %q", i, a.Type)
		}
	}
	return nil
}

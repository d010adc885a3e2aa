package orchestrator

import (
	"fmt"
	"time"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// ConfigFrom resolves the orchestrator settings of a project config.
func ConfigFrom(pc *types.ProjectConfig) (Config, error) {
	cfg := Config{
		CompilationDir:      pc.CompilationDir,
		ManifestName:        pc.ManifestName,
		LogPath:             pc.LogPath,
		CacheDir:            pc.CacheDir,
		OutputDir:           pc.OutputDir,
		BuildLogDir:         pc.BuildLogDir,
		CompilerPath:        pc.CompilerPath,
		Command:             pc.Command,
		Mode:                pc.Mode,
		OnFailure:           pc.OnFailure,
		Retries:             pc.Retries,
		Retry: RetryPolicy{
			Multiplier: pc.Retry.Multiplier,
			On:         pc.Retry.On,
		},
		ConsecutiveFailures: pc.Breaker.ConsecutiveFailures,
	}
	if pc.Timeout != "" {
		d, err := time.ParseDuration(pc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid timeout %q: %w", pc.Timeout, err)
		}
		cfg.Timeout = d
	}
	if pc.Retry.Backoff != "" {
		d, err := time.ParseDuration(pc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("invalid retry.backoff %q: %w", pc.Retry.Backoff, err)
		}
		cfg.Retry.Backoff = d
	}
	return cfg, nil
}

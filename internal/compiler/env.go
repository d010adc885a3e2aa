package compiler

import (
	"maps"
	"slices"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Default variable names understood by the compiler replacement.
const (
	DefaultCacheVar    = "SCCACHE_DIR"
	DefaultOutputVar   = "CORPUS_RESULTS_DIR"
	DefaultCompilerVar = "RUSTC"
	DefaultWrapperVar  = "RUSTC_WRAPPER"
)

// WithDefaults fills in unset variable names and the search path.
func WithDefaults(env types.EnvConfig) types.EnvConfig {
	if env.Path == "" {
		env.Path = types.DefaultPath
	}
	if env.CacheVar == "" {
		env.CacheVar = DefaultCacheVar
	}
	if env.OutputVar == "" {
		env.OutputVar = DefaultOutputVar
	}
	if env.CompilerVar == "" {
		env.CompilerVar = DefaultCompilerVar
	}
	if env.WrapperVar == "" {
		env.WrapperVar = DefaultWrapperVar
	}
	return env
}

// Environ builds the complete subprocess environment for inv. Nothing is
// inherited from the calling process. Extra variables cannot override the
// directories and compiler path.
func Environ(env types.EnvConfig, inv Invocation) []string {
	env = WithDefaults(env)
	vars := make(map[string]string, len(env.Extra)+5)
	maps.Copy(vars, env.Extra)
	vars["PATH"] = env.Path
	vars[env.CacheVar] = inv.CacheDir
	vars[env.OutputVar] = inv.OutputDir
	vars[env.CompilerVar] = inv.CompilerPath
	if env.Wrapper != "" {
		vars[env.WrapperVar] = env.Wrapper
	}

	out := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		out = append(out, k+"="+vars[k])
	}
	return out
}

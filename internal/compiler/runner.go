// Package compiler runs the toolchain with the compiler replacement
// substituted in, inside an isolated environment and a wall-clock budget.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// DefaultTimeout is the wall-clock budget of one compilation.
const DefaultTimeout = 20 * time.Minute

// waitDelay bounds how long Wait blocks on output after the process group
// has been killed.
const waitDelay = 5 * time.Second

// Invocation describes one compilation.
type Invocation struct {
	Command      []string // toolchain command, e.g. cargo check
	Dir          string   // directory holding the build manifest
	CacheDir     string
	OutputDir    string
	CompilerPath string
	LogPath      string // per-unit build log; empty discards output
	Timeout      time.Duration
}

// Result describes a finished compilation.
type Result struct {
	Outcome  types.Outcome
	ExitCode int
	Message  string
	Duration time.Duration
}

// Runner executes compiler invocations one at a time.
type Runner struct {
	env        types.EnvConfig
	maxLogSize int64
	logger     *slog.Logger
}

// NewRunner creates a runner. maxLogSize caps each build log; zero means
// unlimited.
func NewRunner(env types.EnvConfig, maxLogSize int64, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{env: WithDefaults(env), maxLogSize: maxLogSize, logger: logger}
}

// Run executes inv and classifies its end. A non-nil error is always a
// *Error whose Outcome matches the returned Result.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if len(inv.Command) == 0 {
		return r.fail(types.OutcomeIOError, -1, "empty compiler command", nil, 0)
	}
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	bin, err := lookPath(inv.Command[0], r.env.Path)
	if err != nil {
		return r.fail(types.OutcomeIOError, -1, err.Error(), err, 0)
	}
	sink, err := openLogSink(inv.LogPath, r.maxLogSize)
	if err != nil {
		return r.fail(types.OutcomeIOError, -1, err.Error(), err, 0)
	}
	defer sink.Close()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, inv.Command[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = Environ(r.env, inv)
	cmd.Stdout = sink
	cmd.Stderr = sink
	cmd.WaitDelay = waitDelay
	isolate(cmd)

	start := time.Now()
	r.logger.Debug("starting compiler", "command", strings.Join(inv.Command, " "), "dir", inv.Dir)
	if err := cmd.Start(); err != nil {
		return r.fail(types.OutcomeIOError, -1, fmt.Sprintf("starting %s: %v", bin, err), err, 0)
	}
	err = cmd.Wait()
	elapsed := time.Since(start)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return r.fail(types.OutcomeTimeout, -1,
			fmt.Sprintf("exceeded %s budget", timeout), context.DeadlineExceeded, elapsed)
	case ctx.Err() != nil:
		return r.fail(types.OutcomeIOError, -1, "compilation canceled", ctx.Err(), elapsed)
	case err == nil:
		return Result{Outcome: types.OutcomeSuccess, Duration: elapsed}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := sink.Summary(3)
		if msg == "" {
			msg = exitErr.String()
		}
		return r.fail(types.OutcomeCompilerError, exitErr.ExitCode(), msg, err, elapsed)
	}
	return r.fail(types.OutcomeIOError, -1, err.Error(), err, elapsed)
}

func (r *Runner) fail(o types.Outcome, code int, msg string, cause error, d time.Duration) (Result, error) {
	res := Result{Outcome: o, ExitCode: code, Message: msg, Duration: d}
	return res, &Error{Outcome: o, ExitCode: code, Message: msg, Err: cause}
}

// lookPath resolves name against the restricted search path rather than
// the orchestrator's own PATH.
func lookPath(name, searchPath string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		return filepath.Abs(name)
	}
	for _, dir := range filepath.SplitList(searchPath) {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}

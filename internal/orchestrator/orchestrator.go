// Package orchestrator drives the corpus build: manifest synthesis,
// sandboxed compilation, output validation and the append-only run log.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/factcorpus/internal/alert"
	"github.com/dwsmith1983/factcorpus/internal/buildcache"
	"github.com/dwsmith1983/factcorpus/internal/compiler"
	"github.com/dwsmith1983/factcorpus/internal/corpus"
	"github.com/dwsmith1983/factcorpus/internal/factdb"
	"github.com/dwsmith1983/factcorpus/internal/manifest"
	"github.com/dwsmith1983/factcorpus/internal/metrics"
	"github.com/dwsmith1983/factcorpus/internal/provider"
	"github.com/dwsmith1983/factcorpus/internal/runlog"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// ErrCircuitOpen is returned when too many consecutive units failed under
// the continue policy.
var ErrCircuitOpen = errors.New("compiler circuit breaker open")

// Compiler runs one compilation. *compiler.Runner implements it.
type Compiler interface {
	Run(ctx context.Context, inv compiler.Invocation) (compiler.Result, error)
}

// Config holds the resolved run settings.
type Config struct {
	CompilationDir      string
	ManifestName        string
	LogPath             string
	CacheDir            string
	OutputDir           string
	BuildLogDir         string
	CompilerPath        string
	Command             []string
	Timeout             time.Duration
	Mode                types.RunMode
	OnFailure           types.FailurePolicy
	Retries             int
	Retry               RetryPolicy
	ConsecutiveFailures int
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Compiler Compiler
	Store    provider.JobStore
	Schema   *factdb.Schema
	Alerts   *alert.Dispatcher
	Logger   *slog.Logger
}

// Summary describes what one Run did.
type Summary struct {
	RunID     string
	Jobs      []types.BuildJob // every attempt, in order
	Skipped   []string         // entries already finished according to the run log
	Remaining []string         // entries not attempted because the run stopped early
	Succeeded int
	Failed    int
}

// Orchestrator compiles corpus entries strictly one at a time.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	tracer trace.Tracer

	mu sync.Mutex // serializes Run
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if cfg.CompilationDir == "" || cfg.OutputDir == "" || cfg.CacheDir == "" || cfg.LogPath == "" {
		return nil, errors.New("orchestrator requires compilation, output and cache directories and a log path")
	}
	if len(cfg.Command) == 0 {
		return nil, errors.New("orchestrator requires a compiler command")
	}
	if deps.Compiler == nil || deps.Store == nil {
		return nil, errors.New("orchestrator requires a compiler and a job store")
	}
	if cfg.ManifestName == "" {
		cfg.ManifestName = manifest.DefaultName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = compiler.DefaultTimeout
	}
	if cfg.Mode == "" {
		cfg.Mode = types.ModeAll
	}
	if cfg.OnFailure == "" {
		cfg.OnFailure = types.FailAbort
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if deps.Schema == nil {
		deps.Schema = factdb.DefaultSchema()
	}
	if deps.Alerts == nil {
		deps.Alerts = alert.NewDispatcherWithSinks(deps.Logger)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		tracer: otel.Tracer(metrics.ScopeName),
	}, nil
}

// ManifestPath is where the build manifest is synthesized for every entry.
func (o *Orchestrator) ManifestPath() string {
	return joinPath(o.cfg.CompilationDir, o.cfg.ManifestName)
}

// UnitDir is where the promoted fact databases of e live.
func (o *Orchestrator) UnitDir(e types.CorpusEntry) string {
	return joinPath(o.cfg.OutputDir, e.UnitDir())
}

// Run compiles entries in input order. Entries the run log already shows
// finished are skipped. Under the abort policy the first failed unit stops
// the run and its error is returned after it has been logged and stored.
// The returned Summary is valid even when err is not nil.
func (o *Orchestrator) Run(ctx context.Context, entries []types.CorpusEntry) (sum *Summary, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sum = &Summary{RunID: newID()}
	if err := corpus.Validate(entries); err != nil {
		return sum, err
	}

	cache, err := buildcache.Acquire(o.cfg.CacheDir, o.deps.Schema.Fingerprint())
	if err != nil {
		return sum, err
	}
	defer func() { err = errors.Join(err, cache.Release()) }()

	if err := os.MkdirAll(o.cfg.CompilationDir, 0o755); err != nil {
		return sum, fmt.Errorf("creating compilation directory: %w", err)
	}

	records, err := runlog.ReadFile(o.cfg.LogPath)
	if err != nil {
		return sum, fmt.Errorf("reading run log: %w", err)
	}
	prior := runlog.Summarize(records)

	w, err := runlog.Open(o.cfg.LogPath)
	if err != nil {
		return sum, err
	}
	defer func() { err = errors.Join(err, w.Close()) }()

	if prior.InFlight != "" {
		o.logger.Warn("closing attempt interrupted by a previous run", "entry", prior.InFlight)
		if err := w.Error(prior.InFlight, "interrupted"); err != nil {
			return sum, fmt.Errorf("writing run log: %w", err)
		}
	}

	breaker := o.newBreaker()
	r := &run{o: o, w: w, cache: cache, sum: sum}

	attempted := 0
	for i, entry := range entries {
		if prior.Finished[entry.ID] {
			o.logger.Info("skipping finished entry", "entry", entry.ID)
			sum.Skipped = append(sum.Skipped, entry.ID)
			metrics.RecordSkip(ctx)
			continue
		}
		if (o.cfg.Mode == types.ModeFirst && attempted == 1) || ctx.Err() != nil {
			sum.Remaining = append(sum.Remaining, remainingIDs(entries[i:], prior)...)
			return sum, ctx.Err()
		}
		attempted++

		_, cbErr := breaker.Execute(func() (interface{}, error) {
			return nil, r.entry(ctx, entry)
		})

		var fatal *fatalError
		switch {
		case cbErr == nil:
			continue
		case errors.As(cbErr, &fatal):
			sum.Remaining = append(sum.Remaining, remainingIDs(entries[i+1:], prior)...)
			return sum, fatal.err
		case errors.Is(cbErr, gobreaker.ErrOpenState):
			sum.Remaining = append(sum.Remaining, remainingIDs(entries[i:], prior)...)
			return sum, fmt.Errorf("%w after %d consecutive failures", ErrCircuitOpen, o.cfg.ConsecutiveFailures)
		case ctx.Err() != nil:
			sum.Remaining = append(sum.Remaining, remainingIDs(entries[i+1:], prior)...)
			return sum, ctx.Err()
		case o.cfg.OnFailure == types.FailAbort:
			sum.Remaining = append(sum.Remaining, remainingIDs(entries[i+1:], prior)...)
			return sum, fmt.Errorf("compiling %s: %w", entry.ID, cbErr)
		}
	}
	return sum, nil
}

func (o *Orchestrator) newBreaker() *gobreaker.CircuitBreaker {
	threshold := uint32(max(o.cfg.ConsecutiveFailures, 0))
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "compiler",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.BreakerTrips.Add(1)
			}
			o.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// remainingIDs lists the ids in entries that a resumed run would still attempt.
func remainingIDs(entries []types.CorpusEntry, prior runlog.Summary) []string {
	var ids []string
	for _, e := range entries {
		if !prior.Finished[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// fatalError marks failures of the run itself (run log or job store), as
// opposed to a unit that failed to compile. They stop the run under every
// policy.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

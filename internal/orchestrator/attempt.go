package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/factcorpus/internal/buildcache"
	"github.com/dwsmith1983/factcorpus/internal/compiler"
	"github.com/dwsmith1983/factcorpus/internal/factdb"
	"github.com/dwsmith1983/factcorpus/internal/lifecycle"
	"github.com/dwsmith1983/factcorpus/internal/manifest"
	"github.com/dwsmith1983/factcorpus/internal/metrics"
	"github.com/dwsmith1983/factcorpus/internal/runlog"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// SuccessMarker is created in a unit's output directory once all of its
// fact databases were validated and promoted.
const SuccessMarker = "success"

const stagingDir = ".staging"

var errNoOutput = errors.New("compiler replacement produced no fact database")

func newID() string { return ulid.Make().String() }

func joinPath(dir, name string) string { return filepath.Join(dir, name) }

// run is the state of one Orchestrator.Run call.
type run struct {
	o     *Orchestrator
	w     *runlog.Writer
	cache *buildcache.Cache
	sum   *Summary
}

// entry makes up to 1+Retries attempts on e, waiting out the retry
// backoff between them. It returns the failure of the
// last attempt, or a *fatalError if the run cannot go on.
func (r *run) entry(ctx context.Context, e types.CorpusEntry) error {
	attempts := 1 + r.o.cfg.Retries
	var last error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			wait := r.o.cfg.Retry.backoff(n)
			r.o.logger.Info("retrying entry", "entry", e.ID, "attempt", n, "backoff", wait)
			if err := sleep(ctx, wait); err != nil {
				break
			}
			metrics.RetriesAttempted.Add(1)
		}
		job, err := r.attempt(ctx, e, n)
		if err != nil {
			return &fatalError{err: err}
		}
		r.sum.Jobs = append(r.sum.Jobs, job)
		if !job.Outcome.Failed() {
			r.sum.Succeeded++
			return nil
		}
		last = &compiler.Error{Outcome: job.Outcome, ExitCode: job.ExitCode, Message: job.Message}
		if ctx.Err() != nil || !r.o.cfg.Retry.retryable(job.Outcome) {
			break
		}
	}
	r.sum.Failed++
	return last
}

// attempt runs one BuildJob through its full lifecycle. The error is only
// set when the job could not be logged or stored.
func (r *run) attempt(ctx context.Context, e types.CorpusEntry, n int) (types.BuildJob, error) {
	o := r.o
	job := types.BuildJob{
		ID:           newID(),
		RunID:        r.sum.RunID,
		Entry:        e,
		Attempt:      n,
		ManifestPath: o.ManifestPath(),
		State:        types.JobQueued,
		StartedAt:    time.Now().UTC(),
	}

	ctx, span := o.tracer.Start(ctx, "compile "+e.ID, trace.WithAttributes(
		attribute.String("entry.id", e.ID),
		attribute.String("entry.name", e.Name),
		attribute.String("entry.version", e.Version),
		attribute.String("job.id", job.ID),
		attribute.Int("job.attempt", n),
	))
	defer span.End()

	if err := r.w.StartCompile(e.ID); err != nil {
		return job, fmt.Errorf("writing run log: %w", err)
	}
	metrics.JobsStarted.Add(1)
	logger := o.logger.With("entry", e.ID, "job", job.ID)
	logger.Info("compiling", "attempt", n)

	if err := r.build(ctx, &job); err != nil {
		return job, err
	}
	finished := time.Now().UTC()
	job.FinishedAt = &finished

	if job.Outcome.Failed() {
		err := r.w.Error(e.ID, job.Message)
		if err != nil {
			return job, fmt.Errorf("writing run log: %w", err)
		}
	} else if err := r.w.EndCompile(e.ID); err != nil {
		return job, fmt.Errorf("writing run log: %w", err)
	}
	if err := lifecycle.Advance(&job, types.JobLogged); err != nil {
		return job, err
	}
	// The record must outlive a canceled run.
	if err := o.deps.Store.PutJob(context.WithoutCancel(ctx), job); err != nil {
		return job, fmt.Errorf("storing job: %w", err)
	}

	metrics.RecordJob(ctx, job.Outcome, job.Duration())
	span.SetAttributes(attribute.String("job.outcome", string(job.Outcome)))
	if job.Outcome.Failed() {
		span.SetStatus(codes.Error, job.Message)
		logger.Warn("compilation failed", "outcome", job.Outcome, "error", job.Message)
		o.deps.Alerts.Dispatch(context.WithoutCancel(ctx), types.AlertFromJob(job))
	} else {
		logger.Info("compiled", "files", len(job.FactFiles), "duration", job.Duration())
	}
	return job, nil
}

// build moves job from QUEUED to its outcome state.
func (r *run) build(ctx context.Context, job *types.BuildJob) error {
	o := r.o
	fail := func(out types.Outcome, code int, msg string) error {
		job.Outcome, job.ExitCode, job.Message = out, code, msg
		return lifecycle.Advance(job, lifecycle.OutcomeState(out))
	}

	if err := manifest.Write(job.ManifestPath, job.Entry); err != nil {
		return fail(types.OutcomeIOError, -1, err.Error())
	}
	if err := lifecycle.Advance(job, types.JobManifestWritten); err != nil {
		return err
	}

	staging := filepath.Join(o.cfg.OutputDir, stagingDir, job.ID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fail(types.OutcomeIOError, -1, fmt.Sprintf("creating staging directory: %v", err))
	}
	// A failed or rejected unit leaves no fact database behind.
	defer func() { _ = os.RemoveAll(staging) }()

	if err := lifecycle.Advance(job, types.JobCompiling); err != nil {
		return err
	}
	res, err := o.deps.Compiler.Run(ctx, compiler.Invocation{
		Command:      o.cfg.Command,
		Dir:          o.cfg.CompilationDir,
		CacheDir:     r.cache.Dir(),
		OutputDir:    staging,
		CompilerPath: o.cfg.CompilerPath,
		LogPath:      r.buildLogPath(*job),
		Timeout:      o.cfg.Timeout,
	})
	if err != nil {
		return fail(res.Outcome, res.ExitCode, res.Message)
	}

	files, err := r.promote(ctx, job.Entry, staging)
	switch {
	case errors.Is(err, factdb.ErrSchema) || errors.Is(err, errNoOutput):
		return fail(types.OutcomeCompilerError, 0, "invalid fact output: "+err.Error())
	case err != nil:
		return fail(types.OutcomeIOError, 0, err.Error())
	}
	job.FactFiles = files
	job.Outcome = types.OutcomeSuccess
	return lifecycle.Advance(job, types.JobSuccess)
}

// promote validates every staged fact database and moves the staging
// directory into place as <outputDir>/<name>-<version> with a single rename.
func (r *run) promote(ctx context.Context, e types.CorpusEntry, staging string) ([]string, error) {
	files, err := factdb.LoadDir(ctx, staging, r.o.deps.Schema)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errNoOutput
	}
	if err := os.WriteFile(filepath.Join(staging, SuccessMarker), nil, 0o644); err != nil {
		return nil, fmt.Errorf("writing success marker: %w", err)
	}

	dest := r.o.UnitDir(e)
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("replacing %s: %w", dest, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return nil, fmt.Errorf("promoting fact output: %w", err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, filepath.Join(dest, f.Name()))
	}
	metrics.RecordPromoted(ctx, len(paths))
	return paths, nil
}

func (r *run) buildLogPath(job types.BuildJob) string {
	if r.o.cfg.BuildLogDir == "" {
		return ""
	}
	return filepath.Join(r.o.cfg.BuildLogDir, job.LogName())
}

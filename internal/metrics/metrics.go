// Package metrics exposes runtime counters via expvar and mirrors them into
// OpenTelemetry instruments on the global meter provider.
package metrics

import (
	"context"
	"errors"
	"expvar"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// ScopeName is the instrumentation scope used for meters and tracers.
const ScopeName = "github.com/dwsmith1983/factcorpus"

var (
	JobsStarted       = expvar.NewInt("jobs_started")
	JobsSucceeded     = expvar.NewInt("jobs_succeeded")
	JobsTimedOut      = expvar.NewInt("jobs_timed_out")
	JobsCompilerError = expvar.NewInt("jobs_compiler_error")
	JobsIOError       = expvar.NewInt("jobs_io_error")
	EntriesSkipped    = expvar.NewInt("entries_skipped")
	RetriesAttempted  = expvar.NewInt("retries_attempted")
	FactFilesPromoted = expvar.NewInt("fact_files_promoted")
	BreakerTrips      = expvar.NewInt("breaker_trips")
	AlertsDispatched  = expvar.NewInt("alerts_dispatched")
	AlertsFailed      = expvar.NewInt("alerts_failed")
)

type instruments struct {
	jobs     metric.Int64Counter
	duration metric.Float64Histogram
	skipped  metric.Int64Counter
	files    metric.Int64Counter
}

var (
	instOnce sync.Once
	inst     instruments
)

// The global provider delegates, so instruments created before telemetry
// setup still reach the exporter installed later.
func otelInstruments() instruments {
	instOnce.Do(func() {
		inst = newInstruments(otel.Meter(ScopeName), slog.Default())
	})
	return inst
}

// newInstruments creates the OpenTelemetry mirrors of the expvar counters.
// An instrument that cannot be created is left nil and reported once; the
// expvar counter keeps counting regardless.
func newInstruments(m metric.Meter, logger *slog.Logger) instruments {
	var (
		in   instruments
		err  error
		errs []error
	)
	if in.jobs, err = m.Int64Counter("factcorpus.jobs",
		metric.WithDescription("Finished build jobs by outcome")); err != nil {
		errs = append(errs, err)
	}
	if in.duration, err = m.Float64Histogram("factcorpus.job.duration",
		metric.WithDescription("Wall-clock duration of build jobs"),
		metric.WithUnit("s")); err != nil {
		errs = append(errs, err)
	}
	if in.skipped, err = m.Int64Counter("factcorpus.entries.skipped",
		metric.WithDescription("Corpus entries skipped because the run log shows them finished")); err != nil {
		errs = append(errs, err)
	}
	if in.files, err = m.Int64Counter("factcorpus.factfiles.promoted",
		metric.WithDescription("Fact database files promoted to the output directory")); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		logger.Warn("creating OpenTelemetry instruments", "error", errors.Join(errs...))
	}
	return in
}

// RecordJob counts a finished job under its outcome.
func RecordJob(ctx context.Context, outcome types.Outcome, d time.Duration) {
	switch outcome {
	case types.OutcomeSuccess:
		JobsSucceeded.Add(1)
	case types.OutcomeTimeout:
		JobsTimedOut.Add(1)
	case types.OutcomeCompilerError:
		JobsCompilerError.Add(1)
	case types.OutcomeIOError:
		JobsIOError.Add(1)
	}
	in := otelInstruments()
	attrs := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	if in.jobs != nil {
		in.jobs.Add(ctx, 1, attrs)
	}
	if in.duration != nil {
		in.duration.Record(ctx, d.Seconds(), attrs)
	}
}

// RecordSkip counts an entry skipped on resume.
func RecordSkip(ctx context.Context) {
	EntriesSkipped.Add(1)
	if in := otelInstruments(); in.skipped != nil {
		in.skipped.Add(ctx, 1)
	}
}

// RecordPromoted counts fact database files moved into the output directory.
func RecordPromoted(ctx context.Context, n int) {
	FactFilesPromoted.Add(int64(n))
	if in := otelInstruments(); in.files != nil {
		in.files.Add(ctx, int64(n))
	}
}

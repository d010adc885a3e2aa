// Package alert implements alert dispatching to multiple sinks.
package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dwsmith1983/factcorpus/internal/metrics"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks. Delivery is best effort:
// a failing sink is logged and never fails the build that raised the alert.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(ctx context.Context, configs []types.AlertConfig, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	for _, cfg := range configs {
		sink, err := newSink(ctx, cfg)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// NewDispatcherWithSinks creates a dispatcher over already constructed sinks.
func NewDispatcherWithSinks(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Dispatch sends an alert to all configured sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			metrics.AlertsFailed.Add(1)
			d.logger.Warn("alert delivery failed", "sink", sink.Name(), "job", alert.JobID, "error", err)
			continue
		}
		metrics.AlertsDispatched.Add(1)
	}
}

// Close closes every sink that holds a resource.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, sink := range d.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s sink: %w", sink.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of configured sinks.
func (d *Dispatcher) Len() int { return len(d.sinks) }

func newSink(ctx context.Context, cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.AlertEventBridge:
		return NewEventBridgeSink(ctx, cfg.EventBus, WithEventBridgeRegion(cfg.Region))
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}

// Package commands implements the CLI subcommands for the factcorpus binary.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/alert"
	"github.com/dwsmith1983/factcorpus/internal/compiler"
	"github.com/dwsmith1983/factcorpus/internal/config"
	"github.com/dwsmith1983/factcorpus/internal/factdb"
	"github.com/dwsmith1983/factcorpus/internal/orchestrator"
	"github.com/dwsmith1983/factcorpus/internal/provider"
	ddbprov "github.com/dwsmith1983/factcorpus/internal/provider/dynamodb"
	sqliteprov "github.com/dwsmith1983/factcorpus/internal/provider/sqlite"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Persistent flag names shared by every subcommand.
const (
	flagDir      = "dir"
	flagLogLevel = "log-level"
)

// newLogger builds a text handler on w at the named level.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// env is what most subcommands start from: the loaded project config and a
// logger honoring --log-level.
type env struct {
	cfg    *types.ProjectConfig
	logger *slog.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	logger, err := cmdLogger(cmd)
	if err != nil {
		return nil, err
	}
	dir, _ := cmd.Flags().GetString(flagDir)
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func cmdLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString(flagLogLevel)
	if level == "" {
		level = "info"
	}
	return newLogger(cmd.ErrOrStderr(), level)
}

// newStore creates and connects the configured job store.
func newStore(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger) (provider.JobStore, error) {
	switch cfg.JobStore.Provider {
	case types.StoreSQLite, "":
		s, err := sqliteprov.Open(cfg.JobStore.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case types.StoreDynamoDB:
		s, err := ddbprov.New(ctx, cfg.JobStore.DynamoDB, logger)
		if err != nil {
			return nil, err
		}
		if err := s.Start(ctx); err != nil {
			return nil, fmt.Errorf("connecting to dynamodb: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported job store provider: %s", cfg.JobStore.Provider)
	}
}

// loadSchema returns the configured fact schema or the built-in one.
func loadSchema(cfg *types.ProjectConfig) (*factdb.Schema, error) {
	if cfg == nil || cfg.Schema == "" {
		return factdb.DefaultSchema(), nil
	}
	return factdb.LoadSchema(cfg.Schema)
}

// pipeline is a ready-to-run orchestrator and what must be closed after it.
type pipeline struct {
	orch   *orchestrator.Orchestrator
	store  provider.JobStore
	alerts *alert.Dispatcher
}

func (p *pipeline) Close() error {
	return errors.Join(p.store.Close(), p.alerts.Close())
}

func newPipeline(ctx context.Context, e *env, ocfg orchestrator.Config) (*pipeline, error) {
	schema, err := loadSchema(e.cfg)
	if err != nil {
		return nil, err
	}
	alerts, err := alert.NewDispatcher(ctx, e.cfg.Alerts, e.logger)
	if err != nil {
		return nil, fmt.Errorf("creating alert sinks: %w", err)
	}
	store, err := newStore(ctx, e.cfg, e.logger)
	if err != nil {
		_ = alerts.Close()
		return nil, fmt.Errorf("creating job store: %w", err)
	}
	orch, err := orchestrator.New(ocfg, orchestrator.Deps{
		Compiler: compiler.NewRunner(e.cfg.Env, e.cfg.MaxLogSize, e.logger),
		Store:    store,
		Schema:   schema,
		Alerts:   alerts,
		Logger:   e.logger,
	})
	if err != nil {
		_ = store.Close()
		_ = alerts.Close()
		return nil, err
	}
	return &pipeline{orch: orch, store: store, alerts: alerts}, nil
}

package alert

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink creates a new console alert sink writing to stderr.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{w: os.Stderr}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert to the terminal with color-coded severity.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Level {
	case types.AlertLevelError:
		prefix = color.RedString("[ERROR]")
	case types.AlertLevelWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	_, err := fmt.Fprintf(s.w, "%s [%s] %s %s: %s\n", prefix, alert.EntryID, alert.JobID, alert.Outcome, alert.Message)
	return err
}

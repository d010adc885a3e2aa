// Package runlog implements the append-only run log: one comma-delimited,
// UTC-timestamped record per line, written by the orchestrator and read
// back to resume an interrupted corpus run.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// TimeLayout is the timestamp format of every record, always in UTC.
const TimeLayout = "2006-01-02 15:04:05"

// Writer appends records to a run log. It is opened once per run and must
// be closed by its owner.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

// Open opens the log at path for appending, creating it and its parent
// directory if needed.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	return &Writer{f: f, now: time.Now}, nil
}

// StartCompile records that compilation of id begins.
func (w *Writer) StartCompile(id string) error {
	return w.write(types.EventStartCompile, id)
}

// EndCompile records that id compiled successfully.
func (w *Writer) EndCompile(id string) error {
	return w.write(types.EventEndCompile, id)
}

// Error records that the attempt on id failed.
func (w *Writer) Error(id, message string) error {
	return w.write(types.EventError, id, Sanitize(message))
}

// Close closes the underlying file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *Writer) write(event types.LogEvent, fields ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return fmt.Errorf("run log is closed")
	}

	line := w.now().UTC().Format(TimeLayout) + "," + string(event) + "," + strings.Join(fields, ",") + "\n"
	if _, err := w.f.WriteString(line); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("flushing run log: %w", err)
	}
	return nil
}

// Sanitize makes a message safe for a single record: line breaks become
// spaces and commas become semicolons.
func Sanitize(message string) string {
	r := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", ",", ";")
	return strings.TrimSpace(r.Replace(message))
}

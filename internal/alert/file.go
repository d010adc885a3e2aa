package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// ErrSinkClosed is returned by Send after Close.
var ErrSinkClosed = errors.New("alert sink closed")

// FileSink appends alerts as JSON lines to a file. The file stays open
// in append mode until Close, so each alert is a single write.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileSink opens (creating if needed) the alert file at path.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating alert directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert file: %w", err)
	}
	return &FileSink{f: f}, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Send writes the alert as one JSON line.
func (s *FileSink) Send(_ context.Context, alert types.Alert) error {
	line, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding alert for job %s: %w", alert.JobID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrSinkClosed
	}
	_, err = s.f.Write(line)
	return err
}

// Close releases the file. Calling it twice is a no-op.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

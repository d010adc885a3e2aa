package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// tailSize is how much trailing output is kept for error messages.
const tailSize = 4096

// logSink receives the combined output of one compiler run. It writes at
// most max bytes to the build log and always keeps the output tail.
type logSink struct {
	f         *os.File
	max       int64
	written   int64
	truncated bool
	tail      []byte
}

func openLogSink(path string, max int64) (*logSink, error) {
	s := &logSink{max: max}
	if path == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating build log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening build log: %w", err)
	}
	s.f = f
	return s, nil
}

// Write never fails on a full log so the compiler is not disturbed by
// the cap.
func (s *logSink) Write(p []byte) (int, error) {
	s.tail = append(s.tail, p...)
	if over := len(s.tail) - tailSize; over > 0 {
		s.tail = s.tail[over:]
	}
	if s.f == nil {
		return len(p), nil
	}
	chunk := p
	if s.max > 0 {
		room := s.max - s.written
		if room <= 0 {
			s.truncated = true
			return len(p), nil
		}
		if int64(len(chunk)) > room {
			chunk = chunk[:room]
			s.truncated = true
		}
	}
	n, err := s.f.Write(chunk)
	s.written += int64(n)
	if err != nil {
		return n, err
	}
	return len(p), nil
}

// Close marks a truncated log and closes the file.
func (s *logSink) Close() error {
	if s.f == nil {
		return nil
	}
	if s.truncated {
		fmt.Fprintf(s.f, "\n[build log truncated at %d bytes]\n", s.max)
	}
	return s.f.Close()
}

// Summary returns the last non-empty output lines, joined with "; ".
func (s *logSink) Summary(maxLines int) string {
	lines := strings.Split(string(bytes.TrimSpace(s.tail)), "\n")
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < maxLines; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			out = append(out, l)
		}
	}
	slices.Reverse(out)
	return strings.Join(out, "; ")
}

package runlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Record is one parsed run log line. ID is empty for legacy error records
// that carried only a message.
type Record struct {
	Time    time.Time
	Event   types.LogEvent
	ID      string
	Message string
}

// Read parses every record from r.
func Read(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("run log line %d: %w", n, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}
	return records, nil
}

// ReadFile parses the log at path. A missing log is an empty one.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func parseLine(line string) (Record, error) {
	parts := strings.SplitN(line, ",", 4)
	if len(parts) < 3 {
		return Record{}, fmt.Errorf("malformed record %q", line)
	}
	ts, err := time.ParseInLocation(TimeLayout, parts[0], time.UTC)
	if err != nil {
		return Record{}, fmt.Errorf("bad timestamp %q", parts[0])
	}
	rec := Record{Time: ts, Event: types.LogEvent(parts[1])}
	switch rec.Event {
	case types.EventStartCompile, types.EventEndCompile:
		if len(parts) != 3 || parts[2] == "" {
			return Record{}, fmt.Errorf("malformed %s record %q", rec.Event, line)
		}
		rec.ID = parts[2]
	case types.EventError:
		if len(parts) == 3 {
			rec.Message = parts[2]
		} else {
			rec.ID, rec.Message = parts[2], parts[3]
		}
	default:
		return Record{}, fmt.Errorf("unknown event %q", parts[1])
	}
	return rec, nil
}

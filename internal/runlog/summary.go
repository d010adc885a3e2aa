package runlog

import (
	"fmt"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Summary is the resumable state of a run reconstructed from its log.
type Summary struct {
	Finished      map[string]bool   // ids with a completed compilation
	Failed        map[string]string // ids whose latest attempt failed, with its message
	Attempts      map[string]int    // START_COMPILE records per id
	InFlight      string            // id started but never closed, if the run was interrupted
	LastCompleted string            // last id that compiled successfully
}

// Summarize folds records into a Summary. A legacy error record without an
// id, or with an id that does not match the open attempt, is attributed to
// the open attempt.
func Summarize(records []Record) Summary {
	s := Summary{
		Finished: make(map[string]bool),
		Failed:   make(map[string]string),
		Attempts: make(map[string]int),
	}
	for _, rec := range records {
		switch rec.Event {
		case types.EventStartCompile:
			s.InFlight = rec.ID
			s.Attempts[rec.ID]++
		case types.EventEndCompile:
			s.Finished[rec.ID] = true
			delete(s.Failed, rec.ID)
			s.LastCompleted = rec.ID
			if s.InFlight == rec.ID {
				s.InFlight = ""
			}
		case types.EventError:
			id, msg := rec.ID, rec.Message
			if s.InFlight != "" && id != s.InFlight {
				if id != "" {
					msg = id + "," + msg
				}
				id = s.InFlight
			}
			if id == "" {
				continue
			}
			if !s.Finished[id] {
				s.Failed[id] = msg
			}
			if s.InFlight == id {
				s.InFlight = ""
			}
		}
	}
	return s
}

// CheckOrdering verifies that every START_COMPILE is closed by an
// END_COMPILE or ERROR for the same id before any other record appears.
// Only the final attempt may be left open.
func CheckOrdering(records []Record) error {
	open := ""
	for i, rec := range records {
		switch rec.Event {
		case types.EventStartCompile:
			if open != "" {
				return fmt.Errorf("record %d: %s started while %s is still open", i+1, rec.ID, open)
			}
			open = rec.ID
		case types.EventEndCompile, types.EventError:
			if open == "" {
				return fmt.Errorf("record %d: %s for %q without a start", i+1, rec.Event, rec.ID)
			}
			if rec.ID != "" && rec.ID != open {
				return fmt.Errorf("record %d: %s for %s interleaved with %s", i+1, rec.Event, rec.ID, open)
			}
			open = ""
		}
	}
	return nil
}

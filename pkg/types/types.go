package types

import (
	"fmt"
	"time"
)

// CorpusEntry is one package of the corpus to compile.
type CorpusEntry struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// String renders the entry as "id (name version)".
func (e CorpusEntry) String() string {
	return fmt.Sprintf("%s (%s %s)", e.ID, e.Name, e.Version)
}

// UnitDir is the directory name under the output root that holds the
// promoted fact databases of this entry.
func (e CorpusEntry) UnitDir() string {
	return e.Name + "-" + e.Version
}

// BuildJob records one attempt at compiling a CorpusEntry. A retry is a new
// BuildJob with its own ID; records are never mutated once Outcome is set.
type BuildJob struct {
	ID           string      `json:"id"`
	RunID        string      `json:"runId"`
	Entry        CorpusEntry `json:"entry"`
	Attempt      int         `json:"attempt"`
	ManifestPath string      `json:"manifestPath"`
	State        JobState    `json:"state"`
	Outcome      Outcome     `json:"outcome,omitempty"`
	Message      string      `json:"message,omitempty"`
	ExitCode     int         `json:"exitCode"`
	FactFiles    []string    `json:"factFiles,omitempty"`
	StartedAt    time.Time   `json:"startedAt"`
	FinishedAt   *time.Time  `json:"finishedAt,omitempty"`
}

// Duration returns how long the attempt ran, or zero if it has not finished.
func (j BuildJob) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// LogName is the file name of the attempt's build log.
func (j BuildJob) LogName() string {
	return fmt.Sprintf("%s.%d.log", j.Entry.ID, j.Attempt)
}

// Alert is a notification about a BuildJob that did not succeed.
type Alert struct {
	Level     AlertLevel `json:"level"`
	JobID     string     `json:"jobId"`
	RunID     string     `json:"runId"`
	EntryID   string     `json:"entryId"`
	Package   string     `json:"package"`
	Version   string     `json:"version"`
	Outcome   Outcome    `json:"outcome"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// AlertFromJob builds the alert describing a finished job.
func AlertFromJob(job BuildJob) Alert {
	level := AlertLevelError
	if job.Outcome == OutcomeTimeout {
		level = AlertLevelWarning
	}
	ts := job.StartedAt
	if job.FinishedAt != nil {
		ts = *job.FinishedAt
	}
	return Alert{
		Level:     level,
		JobID:     job.ID,
		RunID:     job.RunID,
		EntryID:   job.Entry.ID,
		Package:   job.Entry.Name,
		Version:   job.Entry.Version,
		Outcome:   job.Outcome,
		Message:   job.Message,
		Timestamp: ts,
	}
}

// Package types defines the public domain types for the factcorpus build pipeline.
package types

// Outcome is the terminal result of one BuildJob attempt.
type Outcome string

// Outcome values enumerate how a compiler invocation can end.
const (
	OutcomeSuccess       Outcome = "SUCCESS"
	OutcomeTimeout       Outcome = "TIMEOUT"
	OutcomeCompilerError Outcome = "COMPILER_ERROR"
	OutcomeIOError       Outcome = "IO_ERROR"
)

// Failed reports whether the outcome is anything other than success.
func (o Outcome) Failed() bool {
	return o != "" && o != OutcomeSuccess
}

// JobState represents a BuildJob's position in the per-entry state machine.
type JobState string

// JobState values follow QUEUED → MANIFEST_WRITTEN → COMPILING → outcome → LOGGED.
const (
	JobQueued          JobState = "QUEUED"
	JobManifestWritten JobState = "MANIFEST_WRITTEN"
	JobCompiling       JobState = "COMPILING"
	JobSuccess         JobState = "SUCCESS"
	JobTimeout         JobState = "TIMEOUT"
	JobCompilerError   JobState = "COMPILER_ERROR"
	JobIOError         JobState = "IO_ERROR"
	JobLogged          JobState = "LOGGED"
)

// RunMode selects how much of the corpus queue one invocation processes.
type RunMode string

// RunMode values.
const (
	// ModeAll processes every queued entry.
	ModeAll RunMode = "all"
	// ModeFirst processes only the first entry that is not already finished.
	ModeFirst RunMode = "first"
)

// FailurePolicy controls what the orchestrator does after a failed unit.
type FailurePolicy string

// FailurePolicy values.
const (
	// FailAbort logs the failure and stops the run.
	FailAbort FailurePolicy = "abort"
	// FailContinue logs the failure and moves on to the next entry.
	FailContinue FailurePolicy = "continue"
)

// LogEvent is the event column of a run log record.
type LogEvent string

// LogEvent values written to the append-only run log.
const (
	EventStartCompile LogEvent = "START_COMPILE"
	EventEndCompile   LogEvent = "END_COMPILE"
	EventError        LogEvent = "ERROR"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole     AlertType = "console"
	AlertFile        AlertType = "file"
	AlertEventBridge AlertType = "eventbridge"
)

// AlertLevel is the severity attached to an alert.
type AlertLevel string

// AlertLevel values.
const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// StoreProvider names a BuildJob store backend.
type StoreProvider string

// StoreProvider values.
const (
	StoreSQLite   StoreProvider = "sqlite"
	StoreDynamoDB StoreProvider = "dynamodb"
)

package eventlog

// EventType names a step of an investigation run.
type EventType string

const (
	// RunStarted opens a run.
	RunStarted EventType = "RunStarted"
	// BackupTaken records one configuration file backup.
	BackupTaken EventType = "BackupTaken"
	// FieldTransitioned records a field status change.
	FieldTransitioned EventType = "FieldTransitioned"
	// StepWarning records a recoverable failure inside a run.
	StepWarning EventType = "StepWarning"
	// RunCompleted closes a run that persisted its documents.
	RunCompleted EventType = "RunCompleted"
	// RunFailed closes a run whose persist step failed.
	RunFailed EventType = "RunFailed"
)

// InvestigationEvent is one line of the investigation journal.
type InvestigationEvent struct {
	// RunID groups the events of one investigation call.
	RunID string `json:"runId"`
	// Seq orders events within a run.
	Seq       int       `json:"seq"`
	EventType EventType `json:"eventType"`
	// Timestamp is Unix microseconds.
	Timestamp int64 `json:"ts"`

	Kind    string `json:"kind,omitempty"`
	Project string `json:"project,omitempty"`

	// Subject is the field reference or file the event is about.
	Subject string `json:"subject,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Message string `json:"message,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunSummary condenses the events of one run.
type RunSummary struct {
	RunID       string `json:"runId"`
	Kind        string `json:"kind"`
	Project     string `json:"project,omitempty"`
	StartedAt   int64  `json:"startedAt"`
	FinishedAt  int64  `json:"finishedAt,omitempty"`
	Outcome     string `json:"outcome"`
	Transitions int    `json:"transitions"`
	Warnings    int    `json:"warnings"`
	Backups     int    `json:"backups"`
}

package model

import "time"

// RunStatus represents the outcome of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial" // finished with missing report types
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted pipeline execution.
type Run struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Snapshots    int        `json:"snapshots"`
	Shows        int        `json:"shows"`
	AdRecords    int        `json:"ad_records"`
	Matched      int        `json:"matched"`
	MissingTypes []string   `json:"missing_types,omitempty"`
	Error        string     `json:"error,omitempty"`
}

package model

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"

	// The analysis is stored but its alert is still owed to the sink.
	RunStatusAlertPending RunStatus = "alert_pending"
)

// PipelineRun records one enrichment attempt for a message.
type PipelineRun struct {
	ID         int64      `json:"id"`
	MessageID  string     `json:"message_id"`
	Attempt    int32      `json:"attempt"`
	Status     RunStatus  `json:"status"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

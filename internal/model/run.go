package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusProcessing RunStatus = "processing"
	// RunStatusWaiting is terminal but not an error: the monitor stage found
	// nothing to process.
	RunStatusWaiting   RunStatus = "waiting"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StageStatus represents the state of a single pipeline stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// Run represents a single pipeline invocation for one document.
type Run struct {
	ID        string     `json:"id"`
	FileName  string     `json:"file_name"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	InvoiceID     string         `json:"invoice_id"`
	IsValid       bool           `json:"is_valid"`
	Discrepancies []string       `json:"discrepancies"`
	Structured    *InvoiceRecord `json:"structured_data,omitempty"`
	Error         string         `json:"error,omitempty"`
	Stages        []StageResult  `json:"stages"`
}

// RunStage represents a stage record within a run.
type RunStage struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    StageStatus  `json:"status"`
	Result    *StageResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// StageResult holds the outcome of one pipeline stage.
type StageResult struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

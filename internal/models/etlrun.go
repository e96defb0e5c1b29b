package models

import "time"

type ETLRunStatus string

const (
	RunStatusRunning ETLRunStatus = "running"
	RunStatusSuccess ETLRunStatus = "success"
	RunStatusFailed  ETLRunStatus = "failed"
)

// ETLRun is one row of the mart_etl_log table: the audit record for a single
// execution of a single job against a single tenant. It is written once at
// job start (status running) and updated exactly once at job end.
type ETLRun struct {
	ID               int64        `json:"id" db:"id"`
	JobName          string       `json:"job_name" db:"job_name"`
	OrgID            int          `json:"org_id" db:"org_id"`
	StartedAt        time.Time    `json:"started_at" db:"started_at"`
	CompletedAt      *time.Time   `json:"completed_at" db:"completed_at"`
	Status           ETLRunStatus `json:"status" db:"status"`
	SourceSystem     string       `json:"source_system" db:"source_system"`
	TargetTable      string       `json:"target_table" db:"target_table"`
	RecordsProcessed int          `json:"records_processed" db:"records_processed"`
	RecordsInserted  int          `json:"records_inserted" db:"records_inserted"`
	RecordsUpdated   int          `json:"records_updated" db:"records_updated"`
	ErrorMessage     *string      `json:"error_message" db:"error_message"`
}

// RunStatDay holds run counts for a single day.
type RunStatDay struct {
	Day     time.Time `json:"day" db:"day"`
	Success int       `json:"success" db:"success"`
	Failed  int       `json:"failed" db:"failed"`
	Running int       `json:"running" db:"running"`
}

// RunStats is the aggregated run-log view over a period, plus per-day detail.
type RunStats struct {
	Total       int          `json:"total" db:"total"`
	Success     int          `json:"success" db:"success"`
	Failed      int          `json:"failed" db:"failed"`
	Running     int          `json:"running" db:"running"`
	SuccessRate float64      `json:"success_rate" db:"success_rate"`
	PerDay      []RunStatDay `json:"per_day" db:"per_day"`
}

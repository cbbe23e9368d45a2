package models

import (
	"errors"
	"time"
)

// ErrRunInProgress is returned when a cycle is requested while another is
// still running. Callers treat it as a skip, not a failure.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Run status constants for PipelineRunStatus.Status.
const (
	RunStatusIdle    = "idle"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Job names tracked by the orchestrator.
const (
	JobEarningsFeed = "earnings_feed"
	JobQuoteFeed    = "quote_feed"
	JobReportBuild  = "report_build"
	JobPipeline     = "pipeline" // the full sequenced cycle
	JobDailyReset   = "daily_reset"
	JobLogoEnrich   = "logo_enrich"
)

// PipelineRunStatus is one row per named job tracking the most recent run.
// Used for single-flight detection, health reporting, and the boot-recovery
// decision.
type PipelineRunStatus struct {
	Job              string    `json:"job"`
	RunID            string    `json:"run_id"`
	Status           string    `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	RecordsProcessed int       `json:"records_processed"`
	LastError        string    `json:"last_error,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Stuck reports whether a run has been marked running longer than the
// self-heal deadline allows.
func (s *PipelineRunStatus) Stuck(now time.Time, timeout time.Duration) bool {
	return s.Status == RunStatusRunning && !s.StartedAt.IsZero() && now.Sub(s.StartedAt) > timeout
}

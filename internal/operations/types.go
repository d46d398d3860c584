package operations

import (
	"fmt"
	"time"
)

// ProgressFunc receives human-readable progress updates with a 0-100
// percentage. Callers may pass nil.
type ProgressFunc func(message string, percent float64)

// RunOptions are the inputs of one orchestrated scrape run.
type RunOptions struct {
	// RunID is assigned when empty.
	RunID string
	// From and To bound the date range, inclusive.
	From time.Time
	To   time.Time
	// BranchKeys optionally restricts the run to a subset of system keys.
	BranchKeys []string
	// Delay overrides the configured inter-request delay when positive.
	Delay time.Duration
	// ForceAll refetches and remerges even where files already exist.
	ForceAll bool
	// Progress is invoked as branches and dates are processed.
	Progress ProgressFunc
}

// RunResult is the aggregate outcome of one orchestrator invocation.
// Created fresh each run, reported, never persisted.
type RunResult struct {
	RunID   string `json:"run_id"`
	Success bool   `json:"success"`
	Message string `json:"message"`

	UpdatedDates []string `json:"updated_dates"`
	FailedDates  []string `json:"failed_dates"`
	SkippedDates []string `json:"skipped_dates"`

	UpdatedBranches []string `json:"updated_branches"`
	FailedBranches  []string `json:"failed_branches"`

	TotalRecords int `json:"total_records"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SummaryLine renders the machine-parsable summary for batch wrappers, so
// calling orchestration never parses free-text logs.
func (r *RunResult) SummaryLine() string {
	return fmt.Sprintf("RUN_SUMMARY updated=%d failed=%d skipped=%d records=%d",
		len(r.UpdatedDates), len(r.FailedDates), len(r.SkippedDates), r.TotalRecords)
}

// summarize fills Message with the human-readable run summary.
func (r *RunResult) summarize() {
	r.Message = fmt.Sprintf(
		"run %s: %d branches updated, %d failed; %d dates updated, %d failed, %d skipped; %d records",
		r.RunID,
		len(r.UpdatedBranches), len(r.FailedBranches),
		len(r.UpdatedDates), len(r.FailedDates), len(r.SkippedDates),
		r.TotalRecords)
}

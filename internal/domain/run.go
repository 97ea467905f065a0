package domain

import "time"

// RunStatus is the overall outcome of a run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// JobStatus is the outcome of a single job within a run.
type JobStatus string

// Job statuses. Partial means the change feed was only partly read; the
// candidates that were collected have still been processed.
const (
	JobSuccess JobStatus = "success"
	JobPartial JobStatus = "partial"
	JobFailed  JobStatus = "failed"
)

// RunMetadata summarizes one invocation of the pipeline.
type RunMetadata struct {
	RunID      string      `json:"run_id"`
	RunDate    string      `json:"run_date"`
	Kind       string      `json:"kind"`
	StartDate  string      `json:"start_date,omitempty"`
	EndDate    string      `json:"end_date,omitempty"`
	DryRun     bool        `json:"dry_run"`
	Status     RunStatus   `json:"status"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitzero"`
	Jobs       []JobResult `json:"jobs"`
}

// JobResult records the counts for one job.
type JobResult struct {
	JobName           string         `json:"job_name"`
	EntityType        EntityType     `json:"entity_type"`
	Status            JobStatus      `json:"status"`
	ChangesFound      int            `json:"changes_found"`
	Skipped           int            `json:"skipped,omitempty"` // claimed by another job in the same run
	Fetched           int            `json:"fetched"`
	NotFound          int            `json:"not_found"`
	Filtered          int            `json:"filtered"`
	DocumentsUpserted int            `json:"documents_upserted"`
	ErrorsCount       int            `json:"errors_count"`
	FilterReasons     map[string]int `json:"filter_reasons,omitempty"`
	Error             string         `json:"error,omitempty"`
	Duration          time.Duration  `json:"duration"`
}

// Append records a finished job.
func (r *RunMetadata) Append(job JobResult) {
	r.Jobs = append(r.Jobs, job)
}

// Finalize derives the overall status from the job results: completed when
// every job succeeded, failed when every job failed, partial otherwise.
func (r *RunMetadata) Finalize(now time.Time) {
	r.FinishedAt = now

	if len(r.Jobs) == 0 {
		r.Status = RunCompleted
		return
	}

	succeeded, failed := 0, 0
	for _, j := range r.Jobs {
		switch j.Status {
		case JobSuccess:
			succeeded++
		case JobFailed:
			failed++
		}
	}

	switch {
	case succeeded == len(r.Jobs):
		r.Status = RunCompleted
	case failed == len(r.Jobs):
		r.Status = RunFailed
	default:
		r.Status = RunPartial
	}
}

// AnyFailed reports whether at least one job failed.
func (r *RunMetadata) AnyFailed() bool {
	for _, j := range r.Jobs {
		if j.Status == JobFailed {
			return true
		}
	}
	return false
}

// Totals sums the per-job counters.
func (r *RunMetadata) Totals() JobResult {
	var t JobResult
	for _, j := range r.Jobs {
		t.ChangesFound += j.ChangesFound
		t.Skipped += j.Skipped
		t.Fetched += j.Fetched
		t.NotFound += j.NotFound
		t.Filtered += j.Filtered
		t.DocumentsUpserted += j.DocumentsUpserted
		t.ErrorsCount += j.ErrorsCount
		t.Duration += j.Duration
	}
	return t
}

package scheduler

import (
	"context"
	"time"
)

// Job is a unit of scheduled work
// ⭐ SSOT: the scheduled job interface is defined only here
type Job interface {
	Name() string
	// Schedule is a five-field cron expression in the scheduler's timezone,
	// e.g. "0 15 * * 3" for Wednesdays at 15:00
	Schedule() string
	Run(ctx context.Context) error
}

// maxHistory caps the results kept per job
const maxHistory = 100

// JobResult is the outcome of one job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory stores the latest results of a job, oldest first
type JobHistory struct {
	Results []JobResult `json:"results"`
}

// AddResult appends a result, dropping the oldest beyond maxHistory
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

// GetLatestResults returns the latest n results, oldest first
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	n = min(n, len(h.Results))
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// Last returns the most recent result
func (h *JobHistory) Last() (JobResult, bool) {
	if len(h.Results) == 0 {
		return JobResult{}, false
	}
	return h.Results[len(h.Results)-1], true
}

// GetFailedResults returns the failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	var failed []JobResult
	for _, r := range h.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// GetSuccessRate returns the share of successful runs, 0 without history
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	return float64(len(h.Results)-len(h.GetFailedResults())) / float64(len(h.Results))
}

// snapshot returns a copy safe to read without the scheduler lock
func (h *JobHistory) snapshot() *JobHistory {
	return &JobHistory{Results: append([]JobResult(nil), h.Results...)}
}

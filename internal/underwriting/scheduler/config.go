// internal/underwriting/scheduler/config.go
package scheduler

import (
	"time"

	"loan-underwriting/internal/common/config"
	"loan-underwriting/internal/models"
)

// RetryPolicy bounds re-dispatch of a failed automated task within one run.
// MaxAttempts of 1 means no retry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

type Config struct {
	ConcurrencyLimit int
	// TaskTimeout caps one execution attempt. Zero disables the cap.
	TaskTimeout time.Duration
	// Deadline caps the whole run. Zero disables the cap.
	Deadline time.Duration
	Retry    RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit: 4,
		TaskTimeout:      30 * time.Second,
		Retry:            RetryPolicy{MaxAttempts: 1},
	}
}

// ConfigFrom maps the underwriting section of the application config.
func ConfigFrom(cfg config.UnderwritingConfig) Config {
	return Config{
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		TaskTimeout:      config.GetDuration(cfg.TaskTimeout),
		Deadline:         config.GetDuration(cfg.RunDeadline),
		Retry: RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     config.GetDuration(cfg.Retry.Backoff),
		},
	}
}

func (c Config) normalized() Config {
	if c.ConcurrencyLimit < 1 {
		c.ConcurrencyLimit = 1
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	return c
}

// Report is the outcome of one workflow run.
type Report struct {
	RunID string
	// Order is the topological order the graph was validated in.
	Order []string
	// Results holds one entry per task that reached an outcome. A cancelled
	// run only carries tasks that were already terminal.
	Results map[string]models.TaskAutomationResult
	// Statuses is the final in-run status of every task.
	Statuses map[string]models.TaskStatus
	// Blocked lists tasks skipped because a prerequisite failed.
	Blocked      []string
	Cancelled    bool
	CancelReason string
	Duration     time.Duration
}

// CompletedCount is the number of results with status completed.
func (r *Report) CompletedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == models.ResultStatusCompleted {
			n++
		}
	}
	return n
}

package models

import "time"

// ScheduledTask is a recurring action driven by a cron schedule. The periodic
// driver mutates run bookkeeping; admin operations mutate the definition.
type ScheduledTask struct {
	ID       string `json:"id"`
	Name     string `json:"name"     validate:"required,min=3"`
	Schedule string `json:"schedule" validate:"required"`
	// Standard five-field cron expression, plus the @every/@daily style
	// descriptors the parser accepts.
	Action       ActionType     `json:"action" validate:"required"`
	Params       map[string]any `json:"params"`
	Enabled      bool           `json:"enabled"`
	LastRun      *time.Time     `json:"last_run,omitempty"`
	NextRun      *time.Time     `json:"next_run,omitempty"`
	RunCount     int            `json:"run_count"`
	FailureCount int            `json:"failure_count"`
	LastError    string         `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Due reports whether the task should run at now. A task without a computed
// next run is due on the first driver pass.
func (t *ScheduledTask) Due(now time.Time) bool {
	if !t.Enabled {
		return false
	}

	if t.NextRun == nil {
		return true
	}

	return !t.NextRun.After(now)
}

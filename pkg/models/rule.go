// Package models defines the core domain models for the storefront automation engine.
package models

import "time"

// TriggerType identifies a storefront domain event a rule can react to.
type TriggerType string

const (
	TriggerOrderCreated       TriggerType = "order.created"
	TriggerOrderPaid          TriggerType = "order.paid"
	TriggerOrderStatusChanged TriggerType = "order.status_changed"
	TriggerCartAbandoned      TriggerType = "cart.abandoned"
	TriggerUserRegistered     TriggerType = "user.registered"
	TriggerInventoryLow       TriggerType = "inventory.low"
	TriggerProductUpdated     TriggerType = "product.updated"
	TriggerLiveSessionStarted TriggerType = "live_session.started"
	TriggerLiveSessionEnded   TriggerType = "live_session.ended"
)

// TriggerTypes lists every trigger the engine accepts. Rules referencing
// anything else are rejected at creation time.
func TriggerTypes() []TriggerType {
	return []TriggerType{
		TriggerOrderCreated,
		TriggerOrderPaid,
		TriggerOrderStatusChanged,
		TriggerCartAbandoned,
		TriggerUserRegistered,
		TriggerInventoryLow,
		TriggerProductUpdated,
		TriggerLiveSessionStarted,
		TriggerLiveSessionEnded,
	}
}

// IsValid reports whether t is a member of the closed trigger enumeration.
func (t TriggerType) IsValid() bool {
	for _, known := range TriggerTypes() {
		if t == known {
			return true
		}
	}

	return false
}

// WorkflowRule binds a trigger type to guard conditions and a list of actions.
// Rules are stateless templates; per-trigger execution state lives in the
// rule's bounded execution history.
type WorkflowRule struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"     validate:"required,min=3"`
	Enabled    bool                   `json:"enabled"`
	Trigger    TriggerType            `json:"trigger"  validate:"required"`
	Conditions []WorkflowCondition    `json:"conditions"`
	Actions    []WorkflowActionConfig `json:"actions"  validate:"required,min=1,dive"`
	// Lower priority runs first.
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExecutionRecord is one entry in a rule's bounded execution history.
type ExecutionRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context"`
	Results   []ActionResult `json:"results"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

// MaxExecutionHistory bounds the per-rule execution history ring. Older
// entries are dropped silently.
const MaxExecutionHistory = 100

// TriggerResult is the per-rule outcome returned to a trigger caller.
type TriggerResult struct {
	RuleID  string         `json:"rule_id"`
	Success bool           `json:"success"`
	Results []ActionResult `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// WorkflowMetrics aggregates registry and execution counters.
type WorkflowMetrics struct {
	TotalRules      int `json:"total_rules"`
	ActiveRules     int `json:"active_rules"`
	TotalExecutions int `json:"total_executions"`
	Successes       int `json:"successes"`
	Failures        int `json:"failures"`
}

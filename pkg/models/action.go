package models

import "time"

// ActionType identifies a registered action handler.
type ActionType string

const (
	ActionSendNotification  ActionType = "send_notification"
	ActionNotifyAdmin       ActionType = "notify_admin"
	ActionUpdateInventory   ActionType = "update_inventory"
	ActionUpdateOrderStatus ActionType = "update_order_status"
	ActionCreateDiscount    ActionType = "create_discount"
	ActionTagUser           ActionType = "tag_user"
	ActionGenerateReport    ActionType = "generate_report"
)

// DefaultMaxRetries applies when retry is enabled without an explicit bound.
const DefaultMaxRetries = 3

// WorkflowActionConfig describes one action step of a rule. String parameter
// values may contain {{field}} interpolation tokens resolved against the
// trigger context; non-string values pass through untouched.
type WorkflowActionConfig struct {
	Type           ActionType     `json:"type"   validate:"required"`
	Params         map[string]any `json:"params"`
	DelayMs        int            `json:"delay_ms,omitempty"    validate:"gte=0"`
	RetryOnFailure bool           `json:"retry_on_failure,omitempty"`
	MaxRetries     int            `json:"max_retries,omitempty" validate:"gte=0"`
}

// Delay returns the configured pre-execution pause.
func (c WorkflowActionConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// RetryBudget returns the effective retry bound for this action.
func (c WorkflowActionConfig) RetryBudget() int {
	if !c.RetryOnFailure {
		return 0
	}

	if c.MaxRetries > 0 {
		return c.MaxRetries
	}

	return DefaultMaxRetries
}

// ActionResult captures a single action execution, including the number of
// retries actually performed whether or not the final attempt succeeded.
type ActionResult struct {
	Type    ActionType `json:"type"`
	Output  any        `json:"output,omitempty"`
	Retries int        `json:"retries"`
	Error   string     `json:"error,omitempty"`
}

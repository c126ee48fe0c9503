// Package web provides HTTP request and response types for the automation API.
package web

import "github.com/storekit/automation/pkg/models"

// CreateRuleRequest represents the request body for creating a workflow rule.
type CreateRuleRequest struct {
	Name       string                        `json:"name"       validate:"required,min=3"`
	Enabled    *bool                         `json:"enabled,omitempty"`
	Trigger    models.TriggerType            `json:"trigger"    validate:"required"`
	Conditions []models.WorkflowCondition    `json:"conditions"`
	Actions    []models.WorkflowActionConfig `json:"actions"    validate:"required,min=1,dive"`
	Priority   int                           `json:"priority"`
}

// ToRule builds a rule model from the request. Rules default to enabled
// unless the request says otherwise.
func (r CreateRuleRequest) ToRule() *models.WorkflowRule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}

	return &models.WorkflowRule{
		Name:       r.Name,
		Enabled:    enabled,
		Trigger:    r.Trigger,
		Conditions: r.Conditions,
		Actions:    r.Actions,
		Priority:   r.Priority,
	}
}

// UpdateRuleRequest represents the request body for updating a rule. All
// fields are optional to support partial updates.
type UpdateRuleRequest struct {
	Name       *string                        `json:"name,omitempty"    validate:"omitempty,min=3"`
	Enabled    *bool                          `json:"enabled,omitempty"`
	Trigger    *models.TriggerType            `json:"trigger,omitempty"`
	Conditions *[]models.WorkflowCondition    `json:"conditions,omitempty"`
	Actions    *[]models.WorkflowActionConfig `json:"actions,omitempty" validate:"omitempty,min=1,dive"`
	Priority   *int                           `json:"priority,omitempty"`
}

// Apply copies the set fields onto the rule.
func (r UpdateRuleRequest) Apply(rule *models.WorkflowRule) {
	if r.Name != nil {
		rule.Name = *r.Name
	}

	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}

	if r.Trigger != nil {
		rule.Trigger = *r.Trigger
	}

	if r.Conditions != nil {
		rule.Conditions = *r.Conditions
	}

	if r.Actions != nil {
		rule.Actions = *r.Actions
	}

	if r.Priority != nil {
		rule.Priority = *r.Priority
	}
}

// CreateTaskRequest represents the request body for creating a scheduled task.
type CreateTaskRequest struct {
	Name     string            `json:"name"     validate:"required,min=3"`
	Schedule string            `json:"schedule" validate:"required"`
	Action   models.ActionType `json:"action"   validate:"required"`
	Params   map[string]any    `json:"params"`
	Enabled  *bool             `json:"enabled,omitempty"`
}

// ToTask builds a task model from the request. Tasks default to enabled.
func (r CreateTaskRequest) ToTask() *models.ScheduledTask {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}

	return &models.ScheduledTask{
		Name:     r.Name,
		Schedule: r.Schedule,
		Action:   r.Action,
		Params:   r.Params,
		Enabled:  enabled,
	}
}

// UpdateTaskRequest represents the request body for updating a scheduled
// task. All fields are optional to support partial updates.
type UpdateTaskRequest struct {
	Name     *string            `json:"name,omitempty"     validate:"omitempty,min=3"`
	Schedule *string            `json:"schedule,omitempty"`
	Action   *models.ActionType `json:"action,omitempty"`
	Params   *map[string]any    `json:"params,omitempty"`
	Enabled  *bool              `json:"enabled,omitempty"`
}

// Apply copies the set fields onto the task.
func (r UpdateTaskRequest) Apply(task *models.ScheduledTask) {
	if r.Name != nil {
		task.Name = *r.Name
	}

	if r.Schedule != nil {
		task.Schedule = *r.Schedule
	}

	if r.Action != nil {
		task.Action = *r.Action
	}

	if r.Params != nil {
		task.Params = *r.Params
	}

	if r.Enabled != nil {
		task.Enabled = *r.Enabled
	}
}

// TriggerRequest represents a manual trigger injection body. The context is
// passed verbatim to the workflow engine.
type TriggerRequest struct {
	Context map[string]any `json:"context"`
}

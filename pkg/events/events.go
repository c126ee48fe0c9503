// Package events defines event types and structures for automation
// lifecycle notifications and inbound storefront domain events.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/storekit/automation/pkg/models"
)

type EventType string

// Topics.
const Topic = "automation.events"          // Outbound automation lifecycle events
const DomainTopic = "storefront.events"    // Inbound storefront domain events
const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RuleExecutedEvent  EventType = "automation.rule.executed"
	RuleFailedEvent    EventType = "automation.rule.failed"
	BulkCompletedEvent EventType = "automation.bulk.completed"
	BulkFailedEvent    EventType = "automation.bulk.failed"
	TaskExecutedEvent  EventType = "automation.task.executed"
	NotificationEvent  EventType = "automation.notification"

	DomainEventType EventType = "storefront.domain"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// RuleExecuted reports a successful rule execution for one trigger call.
type RuleExecuted struct {
	BaseEvent

	RuleID      string             `json:"rule_id"`
	Trigger     models.TriggerType `json:"trigger"`
	ActionCount int                `json:"action_count"`
	DurationMs  int64              `json:"duration_ms"`
}

func (e RuleExecuted) GetType() EventType {
	return RuleExecutedEvent
}

// RuleFailed reports a rule execution that ended in error.
type RuleFailed struct {
	BaseEvent

	RuleID     string             `json:"rule_id"`
	Trigger    models.TriggerType `json:"trigger"`
	Error      string             `json:"error"`
	DurationMs int64              `json:"duration_ms"`
}

func (e RuleFailed) GetType() EventType {
	return RuleFailedEvent
}

// BulkCompleted summarizes a finished bulk operation.
type BulkCompleted struct {
	BaseEvent

	OperationID    string                   `json:"operation_id"`
	Kind           models.BulkOperationKind `json:"kind"`
	EntityKind     string                   `json:"entity_kind"`
	ProcessedItems int                      `json:"processed_items"`
	FailedItems    int                      `json:"failed_items"`
}

func (e BulkCompleted) GetType() EventType {
	return BulkCompletedEvent
}

// BulkFailed reports a bulk operation that aborted or was cancelled.
type BulkFailed struct {
	BaseEvent

	OperationID string                   `json:"operation_id"`
	Kind        models.BulkOperationKind `json:"kind"`
	EntityKind  string                   `json:"entity_kind"`
	Error       string                   `json:"error"`
}

func (e BulkFailed) GetType() EventType {
	return BulkFailedEvent
}

// TaskExecuted reports one scheduled task run.
type TaskExecuted struct {
	BaseEvent

	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (e TaskExecuted) GetType() EventType {
	return TaskExecutedEvent
}

// Notification carries an outbound message for the storefront's messaging
// channel to deliver.
type Notification struct {
	BaseEvent

	Audience string `json:"audience"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

func (e Notification) GetType() EventType {
	return NotificationEvent
}

// DomainEvent is an inbound storefront event carrying the trigger context
// rules evaluate against.
type DomainEvent struct {
	BaseEvent

	Trigger models.TriggerType `json:"trigger"`
	Context map[string]any     `json:"context"`
}

func (e DomainEvent) GetType() EventType {
	return DomainEventType
}

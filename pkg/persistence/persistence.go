// Package persistence provides the storage abstraction for rules, bulk
// operations and scheduled tasks.
package persistence

import (
	"context"

	"github.com/storekit/automation/pkg/models"
)

// RuleRepository stores workflow rules and their bounded execution history.
type RuleRepository interface {
	Rules(ctx context.Context) ([]*models.WorkflowRule, error)
	RuleByID(ctx context.Context, id string) (*models.WorkflowRule, error)
	SaveRule(ctx context.Context, rule *models.WorkflowRule) error
	DeleteRule(ctx context.Context, id string) error

	// AppendExecution records one trigger-evaluation outcome for a rule,
	// trimming history beyond models.MaxExecutionHistory.
	AppendExecution(ctx context.Context, ruleID string, record models.ExecutionRecord) error
	Executions(ctx context.Context, ruleID string) ([]models.ExecutionRecord, error)
}

// OperationRepository stores bulk operations.
type OperationRepository interface {
	Operations(ctx context.Context) ([]*models.BulkOperation, error)
	OperationByID(ctx context.Context, id string) (*models.BulkOperation, error)
	SaveOperation(ctx context.Context, op *models.BulkOperation) error
}

// TaskRepository stores scheduled tasks.
type TaskRepository interface {
	Tasks(ctx context.Context) ([]*models.ScheduledTask, error)
	TaskByID(ctx context.Context, id string) (*models.ScheduledTask, error)
	SaveTask(ctx context.Context, task *models.ScheduledTask) error
	DeleteTask(ctx context.Context, id string) error
}

// Persistence is the root storage handle the binaries wire once.
type Persistence interface {
	RuleRepository
	OperationRepository
	TaskRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

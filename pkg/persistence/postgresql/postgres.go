// Package postgresql provides PostgreSQL persistence for rules, bulk
// operations and scheduled tasks.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	ruleRepo      *RuleRepository
	operationRepo *OperationRepository
	taskRepo      *TaskRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		ruleRepo:      NewRuleRepository(database, logger),
		operationRepo: NewOperationRepository(database, logger),
		taskRepo:      NewTaskRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Rules(ctx context.Context) ([]*models.WorkflowRule, error) {
	return p.ruleRepo.GetAll(ctx)
}

func (p *Persistence) RuleByID(ctx context.Context, id string) (*models.WorkflowRule, error) {
	return p.ruleRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveRule(ctx context.Context, rule *models.WorkflowRule) error {
	return p.ruleRepo.Save(ctx, rule)
}

func (p *Persistence) DeleteRule(ctx context.Context, id string) error {
	return p.ruleRepo.Delete(ctx, id)
}

func (p *Persistence) AppendExecution(ctx context.Context, ruleID string, record models.ExecutionRecord) error {
	return p.ruleRepo.AppendExecution(ctx, ruleID, record)
}

func (p *Persistence) Executions(ctx context.Context, ruleID string) ([]models.ExecutionRecord, error) {
	return p.ruleRepo.Executions(ctx, ruleID)
}

func (p *Persistence) Operations(ctx context.Context) ([]*models.BulkOperation, error) {
	return p.operationRepo.GetAll(ctx)
}

func (p *Persistence) OperationByID(ctx context.Context, id string) (*models.BulkOperation, error) {
	return p.operationRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveOperation(ctx context.Context, op *models.BulkOperation) error {
	return p.operationRepo.Save(ctx, op)
}

func (p *Persistence) Tasks(ctx context.Context) ([]*models.ScheduledTask, error) {
	return p.taskRepo.GetAll(ctx)
}

func (p *Persistence) TaskByID(ctx context.Context, id string) (*models.ScheduledTask, error) {
	return p.taskRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveTask(ctx context.Context, task *models.ScheduledTask) error {
	return p.taskRepo.Save(ctx, task)
}

func (p *Persistence) DeleteTask(ctx context.Context, id string) error {
	return p.taskRepo.Delete(ctx, id)
}

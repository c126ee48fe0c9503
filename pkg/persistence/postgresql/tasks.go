package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/persistence"
)

// TaskRepository stores scheduled tasks.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new PostgreSQL scheduled task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger.With("module", "postgresql.tasks"),
	}
}

const taskColumns = `
	id
	, name
	, schedule
	, action
	, params
	, enabled
	, last_run
	, next_run
	, run_count
	, failure_count
	, last_error
	, created_at
	, updated_at
`

// GetAll returns every scheduled task ordered by creation time.
func (r *TaskRepository) GetAll(ctx context.Context) ([]*models.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.ScheduledTask, 0)

	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// GetByID returns a scheduled task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.ScheduledTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks WHERE id = $1`

	task, err := r.scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return task, nil
}

// Save upserts a scheduled task.
func (r *TaskRepository) Save(ctx context.Context, task *models.ScheduledTask) error {
	paramsJSON, err := json.Marshal(task.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	query := `
		INSERT INTO scheduled_tasks (
			id, name, schedule, action, params, enabled, last_run, next_run,
			run_count, failure_count, last_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			schedule = EXCLUDED.schedule,
			action = EXCLUDED.action,
			params = EXCLUDED.params,
			enabled = EXCLUDED.enabled,
			last_run = EXCLUDED.last_run,
			next_run = EXCLUDED.next_run,
			run_count = EXCLUDED.run_count,
			failure_count = EXCLUDED.failure_count,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.Name,
		task.Schedule,
		task.Action,
		paramsJSON,
		task.Enabled,
		task.LastRun,
		task.NextRun,
		task.RunCount,
		task.FailureCount,
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

// Delete removes a scheduled task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scheduled_tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepository) scanTask(row rowScanner) (*models.ScheduledTask, error) {
	var (
		task       models.ScheduledTask
		paramsJSON []byte
	)

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Schedule,
		&task.Action,
		&paramsJSON,
		&task.Enabled,
		&task.LastRun,
		&task.NextRun,
		&task.RunCount,
		&task.FailureCount,
		&task.LastError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(paramsJSON, &task.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return &task, nil
}

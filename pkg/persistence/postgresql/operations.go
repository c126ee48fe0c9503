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

// OperationRepository stores bulk operations.
type OperationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewOperationRepository creates a new PostgreSQL bulk operation repository.
func NewOperationRepository(db *sql.DB, logger *slog.Logger) *OperationRepository {
	return &OperationRepository{
		db:     db,
		logger: logger.With("module", "postgresql.operations"),
	}
}

const operationColumns = `
	id
	, kind
	, entity_kind
	, filter
	, update_payload
	, status
	, progress
	, total_items
	, processed_items
	, failed_items
	, errors
	, created_by
	, created_at
	, completed_at
`

// GetAll returns every bulk operation ordered by creation time.
func (r *OperationRepository) GetAll(ctx context.Context) ([]*models.BulkOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM bulk_operations ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	operations := make([]*models.BulkOperation, 0)

	for rows.Next() {
		op, err := r.scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		operations = append(operations, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}

	return operations, nil
}

// GetByID returns a bulk operation by its ID.
func (r *OperationRepository) GetByID(ctx context.Context, id string) (*models.BulkOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM bulk_operations WHERE id = $1`

	op, err := r.scanOperation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrOperationNotFound
		}

		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}

	return op, nil
}

// Save upserts a bulk operation.
func (r *OperationRepository) Save(ctx context.Context, op *models.BulkOperation) error {
	filterJSON, err := json.Marshal(op.Filter)
	if err != nil {
		return fmt.Errorf("failed to marshal filter: %w", err)
	}

	updateJSON, err := json.Marshal(op.Update)
	if err != nil {
		return fmt.Errorf("failed to marshal update payload: %w", err)
	}

	errorsJSON, err := json.Marshal(op.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	query := `
		INSERT INTO bulk_operations (
			id, kind, entity_kind, filter, update_payload, status, progress,
			total_items, processed_items, failed_items, errors, created_by,
			created_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			total_items = EXCLUDED.total_items,
			processed_items = EXCLUDED.processed_items,
			failed_items = EXCLUDED.failed_items,
			errors = EXCLUDED.errors,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		op.ID,
		op.Kind,
		op.EntityKind,
		filterJSON,
		updateJSON,
		op.Status,
		op.Progress,
		op.TotalItems,
		op.ProcessedItems,
		op.FailedItems,
		errorsJSON,
		op.CreatedBy,
		op.CreatedAt,
		op.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}

	return nil
}

func (r *OperationRepository) scanOperation(row rowScanner) (*models.BulkOperation, error) {
	var (
		op         models.BulkOperation
		filterJSON []byte
		updateJSON []byte
		errorsJSON []byte
	)

	err := row.Scan(
		&op.ID,
		&op.Kind,
		&op.EntityKind,
		&filterJSON,
		&updateJSON,
		&op.Status,
		&op.Progress,
		&op.TotalItems,
		&op.ProcessedItems,
		&op.FailedItems,
		&errorsJSON,
		&op.CreatedBy,
		&op.CreatedAt,
		&op.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(filterJSON, &op.Filter); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filter: %w", err)
	}

	if err := json.Unmarshal(updateJSON, &op.Update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal update payload: %w", err)
	}

	if err := json.Unmarshal(errorsJSON, &op.Errors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal errors: %w", err)
	}

	return &op, nil
}

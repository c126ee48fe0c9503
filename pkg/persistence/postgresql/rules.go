package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/persistence"
)

// RuleRepository stores workflow rules and their execution history.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRuleRepository creates a new PostgreSQL rule repository.
func NewRuleRepository(db *sql.DB, logger *slog.Logger) *RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger.With("module", "postgresql.rules"),
	}
}

const ruleColumns = `
	id
	, name
	, enabled
	, trigger
	, conditions
	, actions
	, priority
	, created_at
	, updated_at
`

// GetAll returns every rule ordered by creation time.
func (r *RuleRepository) GetAll(ctx context.Context) ([]*models.WorkflowRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM workflow_rules ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*models.WorkflowRule, 0)

	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}

// GetByID returns a rule by its ID.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM workflow_rules WHERE id = $1`

	rule, err := r.scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRuleNotFound
		}

		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	return rule, nil
}

// Save upserts a rule.
func (r *RuleRepository) Save(ctx context.Context, rule *models.WorkflowRule) error {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO workflow_rules (id, name, enabled, trigger, conditions, actions, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			trigger = EXCLUDED.trigger,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions,
			priority = EXCLUDED.priority,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Enabled,
		rule.Trigger,
		conditionsJSON,
		actionsJSON,
		rule.Priority,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	return nil
}

// Delete removes a rule and, via cascade, its execution history.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrRuleNotFound
	}

	return nil
}

// AppendExecution records one execution outcome, trimming rows beyond the
// bounded history window.
func (r *RuleRepository) AppendExecution(ctx context.Context, ruleID string, record models.ExecutionRecord) error {
	contextJSON, err := json.Marshal(record.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	resultsJSON, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal execution results: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	insertQuery := `
		INSERT INTO rule_executions (rule_id, executed_at, context, results, success, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.ExecContext(ctx, insertQuery,
		ruleID,
		record.Timestamp,
		contextJSON,
		resultsJSON,
		record.Success,
		record.Error,
	)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to insert execution record: %w", err)
	}

	trimQuery := `
		DELETE FROM rule_executions
		WHERE rule_id = $1 AND id NOT IN (
			SELECT id FROM rule_executions
			WHERE rule_id = $1
			ORDER BY executed_at DESC, id DESC
			LIMIT $2
		)
	`

	_, err = tx.ExecContext(ctx, trimQuery, ruleID, models.MaxExecutionHistory)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to trim execution history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit execution record: %w", err)
	}

	return nil
}

// Executions returns a rule's execution history, oldest first. An unknown
// rule id is a not-found error, not an empty history.
func (r *RuleRepository) Executions(ctx context.Context, ruleID string) ([]models.ExecutionRecord, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM workflow_rules WHERE id = $1)", ruleID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check rule existence: %w", err)
	}

	if !exists {
		return nil, persistence.ErrRuleNotFound
	}

	query := `
		SELECT executed_at, context, results, success, error
		FROM rule_executions
		WHERE rule_id = $1
		ORDER BY executed_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	records := make([]models.ExecutionRecord, 0)

	for rows.Next() {
		var (
			record      models.ExecutionRecord
			executedAt  time.Time
			contextJSON []byte
			resultsJSON []byte
		)

		err := rows.Scan(&executedAt, &contextJSON, &resultsJSON, &record.Success, &record.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}

		record.Timestamp = executedAt

		if err := json.Unmarshal(contextJSON, &record.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
		}

		if err := json.Unmarshal(resultsJSON, &record.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution results: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RuleRepository) scanRule(row rowScanner) (*models.WorkflowRule, error) {
	var (
		rule           models.WorkflowRule
		conditionsJSON []byte
		actionsJSON    []byte
	)

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Enabled,
		&rule.Trigger,
		&conditionsJSON,
		&actionsJSON,
		&rule.Priority,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}

	if err := json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	return &rule, nil
}

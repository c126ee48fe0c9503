package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/persistence"
	"github.com/storekit/automation/pkg/persistence/postgresql"
)

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"rule_executions", "workflow_rules", "bulk_operations", "scheduled_tasks", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDB(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx
}

func testRule(name string, trigger models.TriggerType) *models.WorkflowRule {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.WorkflowRule{
		ID:      uuid.NewString(),
		Name:    name,
		Enabled: true,
		Trigger: trigger,
		Conditions: []models.WorkflowCondition{
			{Field: "total", Operator: models.OperatorGreaterThan, Value: 100.0},
		},
		Actions: []models.WorkflowActionConfig{
			{Type: models.ActionSendNotification, Params: map[string]any{"message": "hi"}},
		},
		Priority:  5,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRuleRepository_SaveAndGet(t *testing.T) {
	store, ctx := setupTestDB(t)

	rule := testRule("big order alert", models.TriggerOrderCreated)
	require.NoError(t, store.SaveRule(ctx, rule))

	got, err := store.RuleByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, rule.Trigger, got.Trigger)
	assert.Len(t, got.Conditions, 1)
	assert.Len(t, got.Actions, 1)
	assert.Equal(t, 5, got.Priority)

	rule.Name = "renamed alert"
	rule.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.SaveRule(ctx, rule))

	got, err = store.RuleByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed alert", got.Name)

	all, err := store.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRuleRepository_NotFound(t *testing.T) {
	store, ctx := setupTestDB(t)

	_, err := store.RuleByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)

	err = store.DeleteRule(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)

	_, err = store.Executions(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)
}

func TestRuleRepository_ExecutionHistoryBounded(t *testing.T) {
	store, ctx := setupTestDB(t)

	rule := testRule("history rule", models.TriggerOrderPaid)
	require.NoError(t, store.SaveRule(ctx, rule))

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := range models.MaxExecutionHistory + 10 {
		record := models.ExecutionRecord{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Context:   map[string]any{"seq": float64(i)},
			Success:   true,
		}
		require.NoError(t, store.AppendExecution(ctx, rule.ID, record))
	}

	records, err := store.Executions(ctx, rule.ID)
	require.NoError(t, err)
	require.Len(t, records, models.MaxExecutionHistory)

	// The oldest ten entries were trimmed.
	assert.Equal(t, float64(10), records[0].Context["seq"])
	assert.Equal(t, float64(models.MaxExecutionHistory+9), records[len(records)-1].Context["seq"])
}

func TestRuleRepository_DeleteCascadesHistory(t *testing.T) {
	store, ctx := setupTestDB(t)

	rule := testRule("doomed rule", models.TriggerCartAbandoned)
	require.NoError(t, store.SaveRule(ctx, rule))
	require.NoError(t, store.AppendExecution(ctx, rule.ID, models.ExecutionRecord{
		Timestamp: time.Now().UTC(),
		Success:   true,
	}))

	require.NoError(t, store.DeleteRule(ctx, rule.ID))

	_, err := store.RuleByID(ctx, rule.ID)
	assert.ErrorIs(t, err, persistence.ErrRuleNotFound)
}

func TestOperationRepository_SaveAndGet(t *testing.T) {
	store, ctx := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	op := &models.BulkOperation{
		ID:         uuid.NewString(),
		Kind:       models.BulkKindUpdate,
		EntityKind: "product",
		Filter:     map[string]any{"category": "shoes"},
		Update:     map[string]any{"discount": 10.0},
		Status:     models.BulkStatusPending,
		CreatedBy:  "admin",
		CreatedAt:  now,
	}
	require.NoError(t, store.SaveOperation(ctx, op))

	op.Status = models.BulkStatusCompleted
	op.Progress = 100
	op.TotalItems = 7
	op.ProcessedItems = 6
	op.FailedItems = 1
	op.Errors = []string{"item 3: gone"}
	completed := now.Add(time.Second)
	op.CompletedAt = &completed
	require.NoError(t, store.SaveOperation(ctx, op))

	got, err := store.OperationByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 7, got.TotalItems)
	assert.Equal(t, []string{"item 3: gone"}, got.Errors)
	require.NotNil(t, got.CompletedAt)

	_, err = store.OperationByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrOperationNotFound)
}

func TestTaskRepository_SaveAndGet(t *testing.T) {
	store, ctx := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	next := now.Add(time.Hour)
	task := &models.ScheduledTask{
		ID:        uuid.NewString(),
		Name:      "nightly report",
		Schedule:  "0 2 * * *",
		Action:    models.ActionGenerateReport,
		Params:    map[string]any{"report_type": "sales"},
		Enabled:   true,
		NextRun:   &next,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.SaveTask(ctx, task))

	got, err := store.TaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "nightly report", got.Name)
	assert.Equal(t, models.ActionGenerateReport, got.Action)
	require.NotNil(t, got.NextRun)
	assert.Nil(t, got.LastRun)

	lastRun := now.Add(2 * time.Hour)
	task.LastRun = &lastRun
	task.RunCount = 1
	require.NoError(t, store.SaveTask(ctx, task))

	got, err = store.TaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)
	require.NotNil(t, got.LastRun)

	require.NoError(t, store.DeleteTask(ctx, task.ID))
	err = store.DeleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, persistence.ErrTaskNotFound)
}

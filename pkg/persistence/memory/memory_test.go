package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/persistence"
	"github.com/storekit/automation/pkg/persistence/memory"
)

func newRule(id string, createdAt time.Time) *models.WorkflowRule {
	return &models.WorkflowRule{
		ID:      id,
		Name:    "rule " + id,
		Enabled: true,
		Trigger: models.TriggerOrderCreated,
		Actions: []models.WorkflowActionConfig{
			{Type: "send_notification", Params: map[string]any{"channel": "email"}},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestRules_SortedByCreation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRule(ctx, newRule("late", base.Add(time.Hour))))
	require.NoError(t, store.SaveRule(ctx, newRule("early", base)))

	rules, err := store.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "early", rules[0].ID)
	assert.Equal(t, "late", rules[1].ID)
}

func TestRuleByID_NotFound(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	_, err := store.RuleByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrRuleNotFound)
	assert.True(t, persistence.IsNotFound(err))
}

func TestSaveRule_CopiesOnWriteAndRead(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	rule := newRule("r1", time.Now())
	require.NoError(t, store.SaveRule(ctx, rule))

	// Mutating the caller's copy must not leak into the store.
	rule.Name = "mutated"
	rule.Actions[0].Params["channel"] = "sms"

	stored, err := store.RuleByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "rule r1", stored.Name)
	assert.Equal(t, "email", stored.Actions[0].Params["channel"])

	// Mutating a read result must not leak either.
	stored.Actions[0].Params["channel"] = "webhook"

	again, err := store.RuleByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "email", again.Actions[0].Params["channel"])
}

func TestDeleteRule_RemovesHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	require.NoError(t, store.SaveRule(ctx, newRule("r1", time.Now())))
	require.NoError(t, store.AppendExecution(ctx, "r1", models.ExecutionRecord{Success: true}))
	require.NoError(t, store.DeleteRule(ctx, "r1"))

	require.ErrorIs(t, store.DeleteRule(ctx, "r1"), persistence.ErrRuleNotFound)

	_, err := store.Executions(ctx, "r1")
	require.ErrorIs(t, err, persistence.ErrRuleNotFound)
}

func TestAppendExecution_BoundedHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	require.NoError(t, store.SaveRule(ctx, newRule("r1", time.Now())))

	for i := range models.MaxExecutionHistory + 10 {
		record := models.ExecutionRecord{
			Timestamp: time.Now(),
			Context:   map[string]any{"seq": i},
			Success:   true,
		}
		require.NoError(t, store.AppendExecution(ctx, "r1", record))
	}

	history, err := store.Executions(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, history, models.MaxExecutionHistory)

	// Oldest ten entries were trimmed.
	assert.Equal(t, 10, history[0].Context["seq"])
	assert.Equal(t, models.MaxExecutionHistory+9, history[len(history)-1].Context["seq"])
}

func TestAppendExecution_DetachesCallerContext(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	require.NoError(t, store.SaveRule(ctx, newRule("r1", time.Now())))

	triggerCtx := map[string]any{"order_id": "ord-1", "total": 250.0}
	require.NoError(t, store.AppendExecution(ctx, "r1", models.ExecutionRecord{
		Timestamp: time.Now(),
		Context:   triggerCtx,
		Success:   true,
	}))

	// The caller keeps using its trigger map; stored history must not move.
	triggerCtx["total"] = 999.0
	delete(triggerCtx, "order_id")

	history, err := store.Executions(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "ord-1", history[0].Context["order_id"])
	assert.Equal(t, 250.0, history[0].Context["total"])
}

func TestAppendExecution_UnknownRule(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	err := store.AppendExecution(ctx, "missing", models.ExecutionRecord{})
	require.ErrorIs(t, err, persistence.ErrRuleNotFound)
}

func TestOperations_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	_, err := store.OperationByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrOperationNotFound)

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a", "c"} {
		op := &models.BulkOperation{
			ID:         id,
			Kind:       models.BulkKindUpdate,
			EntityKind: "product",
			Filter:     map[string]any{"vendor": "acme"},
			Status:     models.BulkStatusPending,
			CreatedBy:  "admin",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveOperation(ctx, op))
	}

	ops, err := store.Operations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{ops[0].ID, ops[1].ID, ops[2].ID})

	// Saving again with the same ID overwrites in place.
	done := *ops[1]
	done.Status = models.BulkStatusCompleted
	done.Progress = 100
	require.NoError(t, store.SaveOperation(ctx, &done))

	reloaded, err := store.OperationByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusCompleted, reloaded.Status)
	assert.Equal(t, 100, reloaded.Progress)
}

func TestTasks_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	_, err := store.TaskByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrTaskNotFound)
	require.ErrorIs(t, store.DeleteTask(ctx, "missing"), persistence.ErrTaskNotFound)

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := range 3 {
		task := &models.ScheduledTask{
			ID:        fmt.Sprintf("t%d", i),
			Name:      fmt.Sprintf("task %d", i),
			Schedule:  "0 * * * *",
			Action:    "generate_report",
			Params:    map[string]any{"report": "daily_sales"},
			Enabled:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveTask(ctx, task))
	}

	tasks, err := store.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "t0", tasks[0].ID)

	// Read results are detached copies.
	tasks[0].Params["report"] = "weekly_sales"

	stored, err := store.TaskByID(ctx, "t0")
	require.NoError(t, err)
	assert.Equal(t, "daily_sales", stored.Params["report"])

	require.NoError(t, store.DeleteTask(ctx, "t0"))

	tasks, err = store.Tasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestHealthCheckAndClose(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	assert.NoError(t, store.HealthCheck(ctx))
	assert.NoError(t, store.Close(ctx))
}

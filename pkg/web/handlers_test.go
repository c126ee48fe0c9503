package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storekit/automation/pkg/actions"
	"github.com/storekit/automation/pkg/actions/send_notification"
	"github.com/storekit/automation/pkg/bulk"
	"github.com/storekit/automation/pkg/mocks"
	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/persistence/memory"
	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/registry"
	"github.com/storekit/automation/pkg/scheduler"
	"github.com/storekit/automation/pkg/web"
	"github.com/storekit/automation/pkg/workflow"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.Default()
	store := memory.NewPersistence()

	repo := new(mocks.MockEntityRepository)
	repo.On("SelectByFilter", mock.Anything, mock.Anything, mock.Anything).Return([]protocol.Entity{}, nil).Maybe()
	repo.On("UpdateByID", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	repo.On("DeleteByID", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	notifier := new(mocks.MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	reg := registry.NewRegistry(logger)
	reg.RegisterAction(send_notification.NewFactory())

	deps := protocol.Dependencies{Repository: repo, Notifier: notifier}
	executor := actions.NewExecutor(reg, deps, logger)

	workflows := workflow.NewEngine(store, executor, nil, logger)
	bulkEngine := bulk.NewEngine(store, repo, notifier, nil, logger)
	schedulerEngine := scheduler.NewEngine(store, executor, nil, scheduler.DefaultInterval, logger)

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		require.NoError(t, bulkEngine.Shutdown(shutdownCtx))
	})

	handlers := web.NewAPIHandlers(
		workflows,
		bulkEngine,
		schedulerEngine,
		store,
		reg,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	handlers.Register(app)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, payload
}

func validRuleRequest() web.CreateRuleRequest {
	return web.CreateRuleRequest{
		Name:    "big order alert",
		Trigger: models.TriggerOrderCreated,
		Conditions: []models.WorkflowCondition{
			{Field: "total", Operator: models.OperatorGreaterThan, Value: 100.0},
		},
		Actions: []models.WorkflowActionConfig{
			{Type: models.ActionSendNotification, Params: map[string]any{
				"audience": "admin",
				"title":    "order",
				"message":  "order {{order_id}}",
			}},
		},
		Priority: 1,
	}
}

func TestCreateRule(t *testing.T) {
	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule models.WorkflowRule
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.NotEmpty(t, rule.ID)
	assert.True(t, rule.Enabled)
	assert.Equal(t, models.TriggerOrderCreated, rule.Trigger)
}

func TestCreateRule_Invalid(t *testing.T) {
	app := setupTestApp(t)

	tests := []struct {
		name   string
		mutate func(*web.CreateRuleRequest)
	}{
		{"short name", func(r *web.CreateRuleRequest) { r.Name = "ab" }},
		{"no actions", func(r *web.CreateRuleRequest) { r.Actions = nil }},
		{"unknown trigger", func(r *web.CreateRuleRequest) { r.Trigger = "order.imagined" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRuleRequest()
			tt.mutate(&req)

			resp, _ := doJSON(t, app, http.MethodPost, "/rules", req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRuleLifecycle(t *testing.T) {
	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule models.WorkflowRule
	require.NoError(t, json.Unmarshal(body, &rule))

	resp, _ = doJSON(t, app, http.MethodPost, "/rules/"+rule.ID+"/disable", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/rules/"+rule.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.WorkflowRule
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.False(t, fetched.Enabled)

	newName := "renamed alert"
	resp, body = doJSON(t, app, http.MethodPatch, "/rules/"+rule.ID, web.UpdateRuleRequest{Name: &newName})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, newName, fetched.Name)
	assert.Equal(t, rule.ID, fetched.ID)

	resp, _ = doJSON(t, app, http.MethodDelete, "/rules/"+rule.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/rules/"+rule.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInjectTrigger(t *testing.T) {
	app := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/triggers/order.created", web.TriggerRequest{
		Context: map[string]any{"total": 250.0, "order_id": "ord-1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Trigger models.TriggerType     `json:"trigger"`
		Results []models.TriggerResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, models.TriggerOrderCreated, result.Trigger)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Success)
}

func TestInjectTrigger_UnknownEvent(t *testing.T) {
	app := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/triggers/order.imagined", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBulkOperationEndpoints(t *testing.T) {
	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/bulk-operations", models.BulkOperationSpec{
		Kind:       models.BulkKindUpdate,
		EntityKind: "product",
		Update:     map[string]any{"discount": 5.0},
		CreatedBy:  "admin",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var op models.BulkOperation
	require.NoError(t, json.Unmarshal(body, &op))
	assert.NotEmpty(t, op.ID)

	resp, _ = doJSON(t, app, http.MethodGet, "/bulk-operations/"+op.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/bulk-operations", models.BulkOperationSpec{
		Kind:      "merge",
		CreatedBy: "admin",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/bulk-operations/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskEndpoints(t *testing.T) {
	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/tasks", web.CreateTaskRequest{
		Name:     "nightly report",
		Schedule: "0 2 * * *",
		Action:   models.ActionGenerateReport,
		Params:   map[string]any{"report_type": "sales"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var task models.ScheduledTask
	require.NoError(t, json.Unmarshal(body, &task))
	assert.NotEmpty(t, task.ID)
	require.NotNil(t, task.NextRun)

	resp, _ = doJSON(t, app, http.MethodPost, "/tasks", web.CreateTaskRequest{
		Name:     "broken",
		Schedule: "not cron",
		Action:   models.ActionGenerateReport,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/tasks/"+task.ID+"/run", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}

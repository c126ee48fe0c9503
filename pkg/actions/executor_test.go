package actions

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/registry"
)

type stubHandler struct {
	calls      int
	failBefore int
	lastParams map[string]any
}

func (h *stubHandler) Execute(_ context.Context, params map[string]any, _ *slog.Logger) (any, error) {
	h.calls++
	h.lastParams = params

	if h.calls <= h.failBefore {
		return nil, errors.New("boom")
	}

	return "done", nil
}

type stubFactory struct {
	id      string
	handler *stubHandler
}

func (f *stubFactory) ID() string { return f.id }

func (f *stubFactory) Create(_ protocol.Dependencies) (protocol.ActionHandler, error) {
	return f.handler, nil
}

func newTestExecutor(t *testing.T, handler *stubHandler) (*Executor, *[]time.Duration) {
	t.Helper()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(&stubFactory{id: "stub", handler: handler})

	executor := NewExecutor(reg, protocol.Dependencies{}, slog.Default())

	var sleeps []time.Duration

	executor.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)

		return nil
	}

	return executor, &sleeps
}

func TestExecute_Success(t *testing.T) {
	handler := &stubHandler{}
	executor, sleeps := newTestExecutor(t, handler)

	result, err := executor.Execute(t.Context(), models.WorkflowActionConfig{Type: "stub"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", result.Output)
	assert.Equal(t, 0, result.Retries)
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, handler.calls)
	assert.Empty(t, *sleeps)
}

func TestExecute_InterpolatesStringParams(t *testing.T) {
	handler := &stubHandler{}
	executor, _ := newTestExecutor(t, handler)

	cfg := models.WorkflowActionConfig{
		Type: "stub",
		Params: map[string]any{
			"message": "order {{order_id}} total {{total}}",
			"count":   3,
		},
	}

	_, err := executor.Execute(t.Context(), cfg, map[string]any{"order_id": "ord-1", "total": 25.0})
	require.NoError(t, err)
	assert.Equal(t, "order ord-1 total 25", handler.lastParams["message"])
	assert.Equal(t, 3, handler.lastParams["count"])
}

func TestExecute_RetryCountSurvivesSuccess(t *testing.T) {
	handler := &stubHandler{failBefore: 2}
	executor, sleeps := newTestExecutor(t, handler)

	cfg := models.WorkflowActionConfig{Type: "stub", RetryOnFailure: true, MaxRetries: 3}

	result, err := executor.Execute(t.Context(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Retries)
	assert.Equal(t, "done", result.Output)
	assert.Equal(t, 3, handler.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestExecute_RetryBudgetExhausted(t *testing.T) {
	handler := &stubHandler{failBefore: 100}
	executor, _ := newTestExecutor(t, handler)

	cfg := models.WorkflowActionConfig{Type: "stub", RetryOnFailure: true, MaxRetries: 2}

	result, err := executor.Execute(t.Context(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, 3, handler.calls)
	assert.Equal(t, 2, result.Retries)
	assert.Equal(t, "boom", result.Error)
}

func TestExecute_NoRetryWithoutOptIn(t *testing.T) {
	handler := &stubHandler{failBefore: 100}
	executor, sleeps := newTestExecutor(t, handler)

	_, err := executor.Execute(t.Context(), models.WorkflowActionConfig{Type: "stub"}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, handler.calls)
	assert.Empty(t, *sleeps)
}

func TestExecute_DefaultRetryBudget(t *testing.T) {
	handler := &stubHandler{failBefore: 100}
	executor, _ := newTestExecutor(t, handler)

	cfg := models.WorkflowActionConfig{Type: "stub", RetryOnFailure: true}

	result, err := executor.Execute(t.Context(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, models.DefaultMaxRetries+1, handler.calls)
	assert.Equal(t, models.DefaultMaxRetries, result.Retries)
}

func TestExecute_DelayBeforeDispatch(t *testing.T) {
	handler := &stubHandler{}
	executor, sleeps := newTestExecutor(t, handler)

	cfg := models.WorkflowActionConfig{Type: "stub", DelayMs: 50}

	_, err := executor.Execute(t.Context(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 50*time.Millisecond, (*sleeps)[0])
}

func TestExecute_UnsupportedAction(t *testing.T) {
	executor, _ := newTestExecutor(t, &stubHandler{})

	result, err := executor.Execute(t.Context(), models.WorkflowActionConfig{Type: "teleport"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedAction)
	assert.Contains(t, result.Error, "teleport")
}

func TestExecute_CancelledDuringBackoff(t *testing.T) {
	handler := &stubHandler{failBefore: 100}
	executor, _ := newTestExecutor(t, handler)
	executor.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	cfg := models.WorkflowActionConfig{Type: "stub", RetryOnFailure: true, MaxRetries: 5}

	_, err := executor.Execute(t.Context(), cfg, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, handler.calls)
}

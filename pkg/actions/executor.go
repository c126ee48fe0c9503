// Package actions dispatches typed actions with parameter interpolation,
// optional delay and bounded retry.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/registry"
	"github.com/storekit/automation/pkg/template"
)

// ErrUnsupportedAction indicates an action type tag with no registered handler.
var ErrUnsupportedAction = errors.New("unsupported action")

const retryBackoffUnit = time.Second

type Executor struct {
	registry *registry.Registry
	deps     protocol.Dependencies
	logger   *slog.Logger

	// Replaced in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(reg *registry.Registry, deps protocol.Dependencies, logger *slog.Logger) *Executor {
	return &Executor{
		registry: reg,
		deps:     deps,
		logger:   logger.With("module", "action_executor"),
		sleep:    wait,
	}
}

// Execute interpolates string parameters against the trigger context, applies
// the configured delay, dispatches to the handler for the action type, and
// retries on failure with linear backoff when configured. The result records
// the retries actually performed whether or not the final attempt succeeded.
func (e *Executor) Execute(ctx context.Context, cfg models.WorkflowActionConfig, eventCtx map[string]any) (models.ActionResult, error) {
	result := models.ActionResult{Type: cfg.Type}

	params := template.InterpolateParams(cfg.Params, eventCtx)

	if delay := cfg.Delay(); delay > 0 {
		if err := e.sleep(ctx, delay); err != nil {
			result.Error = err.Error()

			return result, err
		}
	}

	handler, err := e.registry.CreateAction(string(cfg.Type), e.deps)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrUnsupportedAction, cfg.Type)
		result.Error = err.Error()

		return result, err
	}

	logger := e.logger.With("action_type", cfg.Type)

	maxRetries := cfg.RetryBudget()

	for attempt := 0; ; attempt++ {
		output, execErr := handler.Execute(ctx, params, logger)
		if execErr == nil {
			result.Output = output
			result.Error = ""

			return result, nil
		}

		result.Error = execErr.Error()

		if attempt >= maxRetries {
			return result, fmt.Errorf("action %s failed after %d retries: %w", cfg.Type, result.Retries, execErr)
		}

		logger.Warn("Action failed, retrying",
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"error", execErr)

		backoff := time.Duration(attempt+1) * retryBackoffUnit
		if err := e.sleep(ctx, backoff); err != nil {
			return result, err
		}

		result.Retries++
	}
}

// wait blocks for d or until the context is cancelled.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

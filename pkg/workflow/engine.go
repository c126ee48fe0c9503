// Package workflow owns the rule registry and runs matching rules when a
// storefront trigger fires.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/storekit/automation/pkg/actions"
	"github.com/storekit/automation/pkg/conditions"
	"github.com/storekit/automation/pkg/eventbus"
	"github.com/storekit/automation/pkg/events"
	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/otelhelper"
	"github.com/storekit/automation/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrRuleNil        = errors.New("rule cannot be nil")
	ErrUnknownTrigger = errors.New("unknown trigger type")
)

type Engine struct {
	store    persistence.RuleRepository
	executor *actions.Executor
	bus      eventbus.EventBus
	validate *validator.Validate
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewEngine wires the rule registry service. The event bus is optional; when
// nil no lifecycle events are published.
func NewEngine(store persistence.RuleRepository, executor *actions.Executor, bus eventbus.EventBus, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		executor: executor,
		bus:      bus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("workflow_engine"),
		logger:   logger.With("module", "workflow_engine"),
	}
}

// Trigger runs every enabled rule registered for eventType against the given
// context, in ascending priority order. A failure inside one rule is recorded
// and never stops its siblings.
func (e *Engine) Trigger(ctx context.Context, eventType models.TriggerType, eventCtx map[string]any) ([]models.TriggerResult, error) {
	logger := e.logger.With("trigger", eventType)

	rules, err := e.store.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}

	matching := make([]*models.WorkflowRule, 0)

	for _, rule := range rules {
		if rule.Enabled && rule.Trigger == eventType {
			matching = append(matching, rule)
		}
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Priority < matching[j].Priority
	})

	logger.Info("Trigger received", "matching_rules", len(matching))

	results := make([]models.TriggerResult, 0, len(matching))

	for _, rule := range matching {
		if !conditions.Evaluate(rule.Conditions, eventCtx) {
			logger.Debug("Rule conditions not met, skipping", "rule_id", rule.ID)

			continue
		}

		results = append(results, e.runRule(ctx, rule, eventCtx, logger))
	}

	return results, nil
}

func (e *Engine) runRule(ctx context.Context, rule *models.WorkflowRule, eventCtx map[string]any, logger *slog.Logger) models.TriggerResult {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.rule run",
		attribute.String(otelhelper.RuleIDKey, rule.ID),
		attribute.String(otelhelper.TriggerTypeKey, string(rule.Trigger)),
	)
	defer span.End()

	started := time.Now()

	actionResults, runErr := e.runActions(ctx, rule, eventCtx)

	record := models.ExecutionRecord{
		Timestamp: started,
		Context:   eventCtx,
		Results:   actionResults,
		Success:   runErr == nil,
	}

	result := models.TriggerResult{
		RuleID:  rule.ID,
		Success: runErr == nil,
		Results: actionResults,
	}

	if runErr != nil {
		record.Error = runErr.Error()
		result.Error = runErr.Error()

		otelhelper.SetError(span, runErr, attribute.String(otelhelper.RuleIDKey, rule.ID))

		logger.Error("Rule execution failed", "rule_id", rule.ID, "error", runErr)
	}

	if err := e.store.AppendExecution(ctx, rule.ID, record); err != nil {
		logger.Error("Failed to record execution", "rule_id", rule.ID, "error", err)
	}

	e.publishOutcome(ctx, rule, runErr, len(actionResults), time.Since(started))

	return result
}

// runActions executes the rule's actions in order. The first action failure
// aborts the remaining actions of this rule; the failing action's structured
// result is retained. Panics inside a handler are caught and surfaced as an
// error on the rule.
func (e *Engine) runActions(ctx context.Context, rule *models.WorkflowRule, eventCtx map[string]any) (results []models.ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	for _, cfg := range rule.Actions {
		result, execErr := e.executor.Execute(ctx, cfg, eventCtx)
		results = append(results, result)

		if execErr != nil {
			return results, execErr
		}
	}

	return results, nil
}

func (e *Engine) publishOutcome(ctx context.Context, rule *models.WorkflowRule, runErr error, actionCount int, duration time.Duration) {
	if e.bus == nil {
		return
	}

	var event eventbus.Event

	if runErr == nil {
		event = events.RuleExecuted{
			BaseEvent:   events.NewBaseEvent(events.RuleExecutedEvent),
			RuleID:      rule.ID,
			Trigger:     rule.Trigger,
			ActionCount: actionCount,
			DurationMs:  duration.Milliseconds(),
		}
	} else {
		event = events.RuleFailed{
			BaseEvent:  events.NewBaseEvent(events.RuleFailedEvent),
			RuleID:     rule.ID,
			Trigger:    rule.Trigger,
			Error:      runErr.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}

	if err := e.bus.Publish(ctx, rule.ID, event); err != nil {
		e.logger.Error("Failed to publish rule outcome", "rule_id", rule.ID, "error", err)
	}
}

// AddRule validates and stores a new rule, assigning its identifier and
// timestamps.
func (e *Engine) AddRule(ctx context.Context, rule *models.WorkflowRule) (*models.WorkflowRule, error) {
	if rule == nil {
		return nil, ErrRuleNil
	}

	if !rule.Trigger.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, rule.Trigger)
	}

	if err := e.validate.Struct(rule); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := e.store.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}

	e.logger.Info("Rule added", "rule_id", rule.ID, "trigger", rule.Trigger)

	return rule, nil
}

// UpdateRule replaces a rule's definition. Identifier and creation time are
// immutable.
func (e *Engine) UpdateRule(ctx context.Context, rule *models.WorkflowRule) (*models.WorkflowRule, error) {
	if rule == nil {
		return nil, ErrRuleNil
	}

	existing, err := e.store.RuleByID(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	if !rule.Trigger.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, rule.Trigger)
	}

	if err := e.validate.Struct(rule); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	if err := e.store.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}

	return rule, nil
}

func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	return e.store.DeleteRule(ctx, id)
}

func (e *Engine) Rule(ctx context.Context, id string) (*models.WorkflowRule, error) {
	return e.store.RuleByID(ctx, id)
}

func (e *Engine) Rules(ctx context.Context) ([]*models.WorkflowRule, error) {
	return e.store.Rules(ctx)
}

func (e *Engine) EnableRule(ctx context.Context, id string) error {
	return e.setEnabled(ctx, id, true)
}

func (e *Engine) DisableRule(ctx context.Context, id string) error {
	return e.setEnabled(ctx, id, false)
}

func (e *Engine) setEnabled(ctx context.Context, id string, enabled bool) error {
	rule, err := e.store.RuleByID(ctx, id)
	if err != nil {
		return err
	}

	rule.Enabled = enabled
	rule.UpdatedAt = time.Now().UTC()

	return e.store.SaveRule(ctx, rule)
}

// ExecutionHistory returns the bounded execution history for a rule, most
// recent last.
func (e *Engine) ExecutionHistory(ctx context.Context, ruleID string) ([]models.ExecutionRecord, error) {
	return e.store.Executions(ctx, ruleID)
}

// Metrics aggregates registry and execution counters across all rules.
func (e *Engine) Metrics(ctx context.Context) (models.WorkflowMetrics, error) {
	rules, err := e.store.Rules(ctx)
	if err != nil {
		return models.WorkflowMetrics{}, err
	}

	metrics := models.WorkflowMetrics{TotalRules: len(rules)}

	for _, rule := range rules {
		if rule.Enabled {
			metrics.ActiveRules++
		}

		history, err := e.store.Executions(ctx, rule.ID)
		if err != nil {
			return models.WorkflowMetrics{}, err
		}

		metrics.TotalExecutions += len(history)

		for _, record := range history {
			if record.Success {
				metrics.Successes++
			} else {
				metrics.Failures++
			}
		}
	}

	return metrics, nil
}

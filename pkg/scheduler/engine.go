// Package scheduler drives recurring actions from cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/storekit/automation/pkg/actions"
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
	ErrTaskNil         = errors.New("task cannot be nil")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// DefaultInterval is the driver scan cadence.
const DefaultInterval = 60 * time.Second

type Engine struct {
	store    persistence.TaskRepository
	executor *actions.Executor
	bus      eventbus.EventBus
	interval time.Duration
	validate *validator.Validate
	tracer   trace.Tracer
	logger   *slog.Logger

	// Replaced in tests for deterministic due-time checks.
	now func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewEngine wires the scheduled task engine. A non-positive interval falls
// back to DefaultInterval. The event bus is optional.
func NewEngine(store persistence.TaskRepository, executor *actions.Executor, bus eventbus.EventBus, interval time.Duration, logger *slog.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Engine{
		store:    store,
		executor: executor,
		bus:      bus,
		interval: interval,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("task_scheduler"),
		logger:   logger.With("module", "task_scheduler"),
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the fixed-interval driver until the context is cancelled or
// Stop is called. It blocks; run it on its own goroutine.
func (e *Engine) Start(ctx context.Context) {
	defer close(e.doneCh)

	e.logger.Info("Scheduler driver started", "interval", e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.runDueTasks(ctx)
		}
	}
}

// Stop halts the driver loop and waits for the current pass to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	<-e.doneCh
}

func (e *Engine) runDueTasks(ctx context.Context) {
	tasks, err := e.store.Tasks(ctx)
	if err != nil {
		e.logger.Error("Failed to fetch tasks", "error", err)

		return
	}

	now := e.now().UTC()

	for _, task := range tasks {
		if !task.Due(now) {
			continue
		}

		e.runTask(ctx, task)
	}
}

// runTask executes one task and advances its schedule. Failures are recorded
// on the task; it stays enabled and is retried at the next due time.
func (e *Engine) runTask(ctx context.Context, task *models.ScheduledTask) {
	logger := e.logger.With("task_id", task.ID, "task", task.Name)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "scheduler.task run",
		attribute.String(otelhelper.TaskIDKey, task.ID),
		attribute.String(otelhelper.ActionTypeKey, string(task.Action)),
	)
	defer span.End()

	now := e.now().UTC()
	task.LastRun = &now
	task.RunCount++

	cfg := models.WorkflowActionConfig{
		Type:   task.Action,
		Params: task.Params,
	}

	_, err := e.executor.Execute(ctx, cfg, map[string]any{
		"task_id":   task.ID,
		"task_name": task.Name,
		"timestamp": now.Format(time.RFC3339),
	})
	if err != nil {
		task.FailureCount++
		task.LastError = err.Error()

		otelhelper.SetError(span, err, attribute.String(otelhelper.TaskIDKey, task.ID))

		logger.Error("Scheduled task failed", "error", err)
	} else {
		task.LastError = ""

		logger.Info("Scheduled task executed")
	}

	if next, nerr := NextRun(task.Schedule, now); nerr == nil {
		task.NextRun = &next
	} else {
		logger.Error("Failed to compute next run", "schedule", task.Schedule, "error", nerr)
	}

	if serr := e.store.SaveTask(ctx, task); serr != nil {
		logger.Error("Failed to persist task state", "error", serr)
	}

	if e.bus != nil {
		event := events.TaskExecuted{
			BaseEvent: events.NewBaseEvent(events.TaskExecutedEvent),
			TaskID:    task.ID,
			Success:   err == nil,
		}
		if err != nil {
			event.Error = err.Error()
		}

		if perr := e.bus.Publish(ctx, task.ID, event); perr != nil {
			logger.Error("Failed to publish task event", "error", perr)
		}
	}
}

// RunNow executes a task immediately, out of band of the driver.
func (e *Engine) RunNow(ctx context.Context, id string) (*models.ScheduledTask, error) {
	task, err := e.store.TaskByID(ctx, id)
	if err != nil {
		return nil, err
	}

	e.runTask(ctx, task)

	return task, nil
}

// AddTask validates and stores a new task. The schedule must parse as a
// standard cron expression; the first next-run is computed eagerly.
func (e *Engine) AddTask(ctx context.Context, task *models.ScheduledTask) (*models.ScheduledTask, error) {
	if task == nil {
		return nil, ErrTaskNil
	}

	if err := e.validate.Struct(task); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	now := e.now().UTC()

	next, err := NextRun(task.Schedule, now)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, task.Schedule, err)
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	task.NextRun = &next
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := e.store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	e.logger.Info("Task added", "task_id", task.ID, "schedule", task.Schedule)

	return task, nil
}

// UpdateTask replaces a task definition, recomputing the next run when the
// schedule changed. Identifier, creation time and run bookkeeping are
// immutable from the admin surface.
func (e *Engine) UpdateTask(ctx context.Context, task *models.ScheduledTask) (*models.ScheduledTask, error) {
	if task == nil {
		return nil, ErrTaskNil
	}

	existing, err := e.store.TaskByID(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	if err := e.validate.Struct(task); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	now := e.now().UTC()

	if task.Schedule != existing.Schedule {
		next, err := NextRun(task.Schedule, now)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, task.Schedule, err)
		}

		task.NextRun = &next
	} else {
		task.NextRun = existing.NextRun
	}

	task.LastRun = existing.LastRun
	task.RunCount = existing.RunCount
	task.FailureCount = existing.FailureCount
	task.LastError = existing.LastError
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = now

	if err := e.store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	return task, nil
}

func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	return e.store.DeleteTask(ctx, id)
}

func (e *Engine) Task(ctx context.Context, id string) (*models.ScheduledTask, error) {
	return e.store.TaskByID(ctx, id)
}

func (e *Engine) Tasks(ctx context.Context) ([]*models.ScheduledTask, error) {
	return e.store.Tasks(ctx)
}

func (e *Engine) EnableTask(ctx context.Context, id string) error {
	return e.setEnabled(ctx, id, true)
}

func (e *Engine) DisableTask(ctx context.Context, id string) error {
	return e.setEnabled(ctx, id, false)
}

func (e *Engine) setEnabled(ctx context.Context, id string, enabled bool) error {
	task, err := e.store.TaskByID(ctx, id)
	if err != nil {
		return err
	}

	task.Enabled = enabled
	task.UpdatedAt = e.now().UTC()

	return e.store.SaveTask(ctx, task)
}

// NextRun computes the cron successor of after for the given schedule.
// Standard five-field expressions and @every/@daily descriptors are accepted.
func NextRun(schedule string, after time.Time) (time.Time, error) {
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, err
	}

	return parsed.Next(after), nil
}

// Package bulk runs long-running entity-wide mutation jobs in the background
// with progress and partial-failure tracking.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/storekit/automation/pkg/eventbus"
	"github.com/storekit/automation/pkg/events"
	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/otelhelper"
	"github.com/storekit/automation/pkg/persistence"
	"github.com/storekit/automation/pkg/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotProcessing = errors.New("operation is not processing")
	ErrShuttingDown  = errors.New("engine is shutting down")

	errCancelled = errors.New("cancelled by user")
)

type worker struct {
	cancel context.CancelFunc
}

type Engine struct {
	store      persistence.OperationRepository
	repository protocol.EntityRepository
	notifier   protocol.Notifier
	bus        eventbus.EventBus
	validate   *validator.Validate
	tracer     trace.Tracer
	logger     *slog.Logger

	mu       sync.Mutex
	workers  map[string]*worker
	wg       sync.WaitGroup
	draining bool
}

// NewEngine wires the bulk operations engine. The event bus is optional.
func NewEngine(store persistence.OperationRepository, repository protocol.EntityRepository, notifier protocol.Notifier, bus eventbus.EventBus, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		repository: repository,
		notifier:   notifier,
		bus:        bus,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		tracer:     otel.Tracer("bulk_engine"),
		workers:    make(map[string]*worker),
		logger:     logger.With("module", "bulk_engine"),
	}
}

// Submit registers the operation and hands it to a supervised background
// worker. It returns as soon as the operation is stored as pending.
func (e *Engine) Submit(ctx context.Context, spec models.BulkOperationSpec) (*models.BulkOperation, error) {
	if err := e.validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("invalid bulk operation spec: %w", err)
	}

	op := &models.BulkOperation{
		ID:         uuid.New().String(),
		Kind:       spec.Kind,
		EntityKind: spec.EntityKind,
		Filter:     spec.Filter,
		Update:     spec.Update,
		Status:     models.BulkStatusPending,
		CreatedBy:  spec.CreatedBy,
		CreatedAt:  time.Now().UTC(),
	}

	if err := e.store.SaveOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to save operation: %w", err)
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		cancel()

		return nil, ErrShuttingDown
	}

	e.workers[op.ID] = &worker{cancel: cancel}
	e.wg.Add(1)
	e.mu.Unlock()

	// The worker mutates its own copy; the snapshot returned to the caller
	// stays frozen at submission state.
	go e.process(workerCtx, op.Clone())

	e.logger.Info("Bulk operation submitted",
		"operation_id", op.ID,
		"kind", op.Kind,
		"entity_kind", op.EntityKind)

	return op, nil
}

func (e *Engine) Operation(ctx context.Context, id string) (*models.BulkOperation, error) {
	return e.store.OperationByID(ctx, id)
}

func (e *Engine) Operations(ctx context.Context) ([]*models.BulkOperation, error) {
	return e.store.Operations(ctx)
}

// Cancel requests cooperative cancellation of a processing operation. The
// worker observes it between items; already-processed items stay processed.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	op, err := e.store.OperationByID(ctx, id)
	if err != nil {
		return err
	}

	if op.Status != models.BulkStatusProcessing {
		return fmt.Errorf("%w: %s is %s", ErrNotProcessing, id, op.Status)
	}

	e.mu.Lock()
	w, ok := e.workers[id]
	e.mu.Unlock()

	if ok {
		w.cancel()
	}

	return nil
}

// Shutdown cancels all running workers and waits for them to finish writing
// their terminal state, so no work leaks on process exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.draining = true

	for _, w := range e.workers {
		w.cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})

	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) process(ctx context.Context, op *models.BulkOperation) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.workers, op.ID)
		e.mu.Unlock()
	}()

	logger := e.logger.With("operation_id", op.ID, "kind", op.Kind, "entity_kind", op.EntityKind)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "bulk.operation process",
		attribute.String(otelhelper.OperationIDKey, op.ID),
		attribute.String(otelhelper.EntityKindKey, op.EntityKind),
	)
	defer span.End()

	op.Status = models.BulkStatusProcessing
	e.save(ctx, op, logger)

	items, err := e.resolveItems(ctx, op)
	if err != nil {
		e.fail(ctx, op, err, logger)

		return
	}

	op.TotalItems = len(items)
	e.save(ctx, op, logger)

	for index, item := range items {
		if ctx.Err() != nil {
			e.fail(ctx, op, errCancelled, logger)

			return
		}

		if err := e.applyItem(ctx, op, item); err != nil {
			op.FailedItems++
			op.Errors = append(op.Errors, fmt.Sprintf("item %s: %v", item.ID, err))
		} else {
			op.ProcessedItems++
		}

		op.Progress = progress(index+1, op.TotalItems)
		e.save(ctx, op, logger)
	}

	now := time.Now().UTC()
	op.Status = models.BulkStatusCompleted
	op.Progress = 100
	op.CompletedAt = &now
	e.save(ctx, op, logger)

	logger.Info("Bulk operation completed",
		"processed", op.ProcessedItems,
		"failed", op.FailedItems)

	e.notifyCompletion(ctx, op)
}

func (e *Engine) resolveItems(ctx context.Context, op *models.BulkOperation) ([]protocol.Entity, error) {
	if op.Kind == models.BulkKindImport {
		return importItems(op)
	}

	items, err := e.repository.SelectByFilter(ctx, op.EntityKind, op.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve item set: %w", err)
	}

	return items, nil
}

// importItems sources the item set from the submitted payload instead of the
// repository; each entry under "items" must carry an id.
func importItems(op *models.BulkOperation) ([]protocol.Entity, error) {
	raw, ok := op.Update["items"].([]any)
	if !ok {
		return nil, errors.New("import operation requires an items list in the update payload")
	}

	items := make([]protocol.Entity, 0, len(raw))

	for _, entry := range raw {
		data, ok := entry.(map[string]any)
		if !ok {
			return nil, errors.New("import items must be objects")
		}

		id, _ := data["id"].(string)
		items = append(items, protocol.Entity{ID: id, Data: data})
	}

	return items, nil
}

func (e *Engine) applyItem(ctx context.Context, op *models.BulkOperation, item protocol.Entity) error {
	switch op.Kind {
	case models.BulkKindUpdate:
		return e.repository.UpdateByID(ctx, op.EntityKind, item.ID, op.Update)
	case models.BulkKindDelete:
		return e.repository.DeleteByID(ctx, op.EntityKind, item.ID)
	case models.BulkKindImport:
		return e.repository.UpdateByID(ctx, op.EntityKind, item.ID, item.Data)
	case models.BulkKindExport:
		// Export only walks the set; the summary notification carries the
		// counts consumers read the exported batch from.
		return nil
	default:
		return fmt.Errorf("unsupported operation kind: %s", op.Kind)
	}
}

func (e *Engine) fail(ctx context.Context, op *models.BulkOperation, cause error, logger *slog.Logger) {
	now := time.Now().UTC()
	op.Status = models.BulkStatusFailed
	op.Errors = append(op.Errors, cause.Error())
	op.CompletedAt = &now
	e.save(ctx, op, logger)

	otelhelper.SetError(trace.SpanFromContext(ctx), cause, attribute.String(otelhelper.OperationIDKey, op.ID))

	logger.Error("Bulk operation failed", "error", cause)

	message := fmt.Sprintf("Bulk %s on %s failed: %v", op.Kind, op.EntityKind, cause)
	if err := e.notifier.Notify(ctx, "admins", "Bulk operation failed", message); err != nil {
		logger.Error("Failed to send failure notification", "error", err)
	}

	if e.bus != nil {
		event := events.BulkFailed{
			BaseEvent:   events.NewBaseEvent(events.BulkFailedEvent),
			OperationID: op.ID,
			Kind:        op.Kind,
			EntityKind:  op.EntityKind,
			Error:       cause.Error(),
		}
		if err := e.bus.Publish(ctx, op.ID, event); err != nil {
			logger.Error("Failed to publish bulk failure event", "error", err)
		}
	}
}

func (e *Engine) notifyCompletion(ctx context.Context, op *models.BulkOperation) {
	message := fmt.Sprintf("Bulk %s on %s finished: %d processed, %d failed",
		op.Kind, op.EntityKind, op.ProcessedItems, op.FailedItems)

	if err := e.notifier.Notify(ctx, "admins", "Bulk operation completed", message); err != nil {
		e.logger.Error("Failed to send completion notification", "operation_id", op.ID, "error", err)
	}

	if e.bus != nil {
		event := events.BulkCompleted{
			BaseEvent:      events.NewBaseEvent(events.BulkCompletedEvent),
			OperationID:    op.ID,
			Kind:           op.Kind,
			EntityKind:     op.EntityKind,
			ProcessedItems: op.ProcessedItems,
			FailedItems:    op.FailedItems,
		}
		if err := e.bus.Publish(ctx, op.ID, event); err != nil {
			e.logger.Error("Failed to publish bulk completion event", "operation_id", op.ID, "error", err)
		}
	}
}

// save persists worker-side mutations; the worker context may already be
// cancelled, so writes go through a background context.
func (e *Engine) save(_ context.Context, op *models.BulkOperation, logger *slog.Logger) {
	if err := e.store.SaveOperation(context.Background(), op); err != nil {
		logger.Error("Failed to persist operation state", "error", err)
	}
}

func progress(done, total int) int {
	if total == 0 {
		return 100
	}

	return int(math.Round(float64(done) / float64(total) * 100))
}

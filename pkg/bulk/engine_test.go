package bulk_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/automation/pkg/bulk"
	"github.com/storekit/automation/pkg/entities"
	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/notifier"
	"github.com/storekit/automation/pkg/persistence/memory"
	"github.com/storekit/automation/pkg/protocol"
)

// failingRepo delegates to an in-memory store but rejects updates on one ID.
type failingRepo struct {
	*entities.MemoryRepository
	rejectID string
}

func (r *failingRepo) UpdateByID(ctx context.Context, kind, id string, patch map[string]any) error {
	if id == r.rejectID {
		return errors.New("storage said no")
	}

	return r.MemoryRepository.UpdateByID(ctx, kind, id, patch)
}

// gatedRepo blocks the first update until released, so tests can cancel an
// operation while its worker is mid-flight.
type gatedRepo struct {
	*entities.MemoryRepository
	started chan struct{}
	release chan struct{}
	once    bool
}

func (r *gatedRepo) UpdateByID(ctx context.Context, kind, id string, patch map[string]any) error {
	if !r.once {
		r.once = true
		close(r.started)

		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.MemoryRepository.UpdateByID(ctx, kind, id, patch)
}

func seededRepo(ids ...string) *entities.MemoryRepository {
	repo := entities.NewMemoryRepository()
	for _, id := range ids {
		repo.Seed("product", id, map[string]any{"id": id, "category": "shoes", "stock": 5.0})
	}

	return repo
}

func newEngine(t *testing.T, repo protocol.EntityRepository) (*bulk.Engine, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()
	engine := bulk.NewEngine(store, repo, notifier.NewLogNotifier(slog.Default()), nil, slog.Default())

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = engine.Shutdown(shutdownCtx)
	})

	return engine, store
}

func waitTerminal(t *testing.T, engine *bulk.Engine, id string) *models.BulkOperation {
	t.Helper()

	var op *models.BulkOperation

	require.Eventually(t, func() bool {
		var err error

		op, err = engine.Operation(context.Background(), id)

		return err == nil && op.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	return op
}

func TestSubmit_UpdateCompletesWithPartialFailures(t *testing.T) {
	repo := &failingRepo{MemoryRepository: seededRepo("p1", "p2", "p3", "p4", "p5"), rejectID: "p2"}
	engine, _ := newEngine(t, repo)

	op, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindUpdate,
		EntityKind: "product",
		Filter:     map[string]any{"category": "shoes"},
		Update:     map[string]any{"stock": 0.0},
		CreatedBy:  "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BulkStatusPending, op.Status)

	done := waitTerminal(t, engine, op.ID)

	assert.Equal(t, models.BulkStatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, 5, done.TotalItems)
	assert.Equal(t, 4, done.ProcessedItems)
	assert.Equal(t, 1, done.FailedItems)
	assert.Equal(t, done.TotalItems, done.ProcessedItems+done.FailedItems)
	require.Len(t, done.Errors, 1)
	assert.Contains(t, done.Errors[0], "p2")
	require.NotNil(t, done.CompletedAt)

	remaining, err := repo.SelectByFilter(t.Context(), "product", map[string]any{"stock": 0.0})
	require.NoError(t, err)
	assert.Len(t, remaining, 4)
}

func TestSubmit_DeleteRemovesFilteredSet(t *testing.T) {
	repo := seededRepo("p1", "p2", "p3")
	repo.Seed("product", "keep", map[string]any{"id": "keep", "category": "hats"})
	engine, _ := newEngine(t, repo)

	op, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindDelete,
		EntityKind: "product",
		Filter:     map[string]any{"category": "shoes"},
		CreatedBy:  "admin",
	})
	require.NoError(t, err)

	done := waitTerminal(t, engine, op.ID)
	assert.Equal(t, models.BulkStatusCompleted, done.Status)
	assert.Equal(t, 3, done.ProcessedItems)

	left, err := repo.SelectByFilter(t.Context(), "product", nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "keep", left[0].ID)
}

func TestSubmit_ImportPatchesFromPayload(t *testing.T) {
	repo := seededRepo("p1", "p2")
	engine, _ := newEngine(t, repo)

	op, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindImport,
		EntityKind: "product",
		Update: map[string]any{
			"items": []any{
				map[string]any{"id": "p1", "price": 19.99},
				map[string]any{"id": "ghost", "price": 1.0},
			},
		},
		CreatedBy: "admin",
	})
	require.NoError(t, err)

	done := waitTerminal(t, engine, op.ID)
	assert.Equal(t, models.BulkStatusCompleted, done.Status)
	assert.Equal(t, 2, done.TotalItems)
	assert.Equal(t, 1, done.ProcessedItems)
	assert.Equal(t, 1, done.FailedItems)

	updated, err := repo.SelectByFilter(t.Context(), "product", map[string]any{"price": 19.99})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "p1", updated[0].ID)
}

func TestSubmit_ImportWithoutItemsFails(t *testing.T) {
	engine, _ := newEngine(t, seededRepo())

	op, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindImport,
		EntityKind: "product",
		CreatedBy:  "admin",
	})
	require.NoError(t, err)

	done := waitTerminal(t, engine, op.ID)
	assert.Equal(t, models.BulkStatusFailed, done.Status)
	require.NotEmpty(t, done.Errors)
	assert.Contains(t, done.Errors[0], "items")
}

func TestSubmit_ExportWalksWithoutMutating(t *testing.T) {
	repo := seededRepo("p1", "p2", "p3")
	engine, _ := newEngine(t, repo)

	op, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindExport,
		EntityKind: "product",
		CreatedBy:  "admin",
	})
	require.NoError(t, err)

	done := waitTerminal(t, engine, op.ID)
	assert.Equal(t, models.BulkStatusCompleted, done.Status)
	assert.Equal(t, 3, done.ProcessedItems)

	left, err := repo.SelectByFilter(t.Context(), "product", nil)
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestSubmit_InvalidSpec(t *testing.T) {
	engine, _ := newEngine(t, seededRepo())

	_, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:      "merge",
		CreatedBy: "admin",
	})
	assert.Error(t, err)
}

func TestCancel_MarksFailedWithCancellationError(t *testing.T) {
	repo := &gatedRepo{
		MemoryRepository: seededRepo("p1", "p2", "p3"),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	engine, _ := newEngine(t, repo)

	op, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindUpdate,
		EntityKind: "product",
		Update:     map[string]any{"stock": 0.0},
		CreatedBy:  "admin",
	})
	require.NoError(t, err)

	<-repo.started
	require.NoError(t, engine.Cancel(t.Context(), op.ID))

	done := waitTerminal(t, engine, op.ID)
	assert.Equal(t, models.BulkStatusFailed, done.Status)
	assert.Contains(t, done.Errors, "cancelled by user")
}

func TestCancel_RejectsNonProcessing(t *testing.T) {
	engine, _ := newEngine(t, seededRepo("p1"))

	op, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindExport,
		EntityKind: "product",
		CreatedBy:  "admin",
	})
	require.NoError(t, err)

	waitTerminal(t, engine, op.ID)

	err = engine.Cancel(t.Context(), op.ID)
	assert.ErrorIs(t, err, bulk.ErrNotProcessing)
}

func TestShutdown_JoinsWorkersAndRefusesNewWork(t *testing.T) {
	repo := &gatedRepo{
		MemoryRepository: seededRepo("p1", "p2"),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	engine, _ := newEngine(t, repo)

	op, err := engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindUpdate,
		EntityKind: "product",
		Update:     map[string]any{"stock": 0.0},
		CreatedBy:  "admin",
	})
	require.NoError(t, err)

	<-repo.started

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, engine.Shutdown(shutdownCtx))

	done, err := engine.Operation(context.Background(), op.ID)
	require.NoError(t, err)
	assert.True(t, done.Status.Terminal())

	_, err = engine.Submit(t.Context(), models.BulkOperationSpec{
		Kind:       models.BulkKindExport,
		EntityKind: "product",
		CreatedBy:  "admin",
	})
	assert.ErrorIs(t, err, bulk.ErrShuttingDown)
}

func TestSubmit_ReturnedOperationIsDetachedFromWorker(t *testing.T) {
	gated := &gatedRepo{
		MemoryRepository: seededRepo("p1", "p2"),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	engine, _ := newEngine(t, gated)

	op, err := engine.Submit(context.Background(), models.BulkOperationSpec{
		Kind:       models.BulkKindUpdate,
		EntityKind: "product",
		Update:     map[string]any{"stock": 0},
		CreatedBy:  "admin",
	})
	require.NoError(t, err)
	require.Equal(t, models.BulkStatusPending, op.Status)

	// The worker is mid-flight now; the caller's snapshot must stay frozen
	// at submission state while the worker mutates its own copy.
	<-gated.started
	assert.Equal(t, models.BulkStatusPending, op.Status)
	assert.Zero(t, op.TotalItems)
	assert.Zero(t, op.Progress)

	close(gated.release)
	done := waitTerminal(t, engine, op.ID)
	require.Equal(t, models.BulkStatusCompleted, done.Status)

	assert.Equal(t, models.BulkStatusPending, op.Status)
	assert.Zero(t, op.ProcessedItems)
	assert.Empty(t, op.Errors)
	assert.Nil(t, op.CompletedAt)
}

package entities

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/storekit/automation/pkg/protocol"
)

// MatchesFilter reports whether every filter field equals the entity's value
// for that field. Numeric values compare by magnitude regardless of their
// JSON decoding width.
func MatchesFilter(data, filter map[string]any) bool {
	for field, want := range filter {
		got, ok := data[field]
		if !ok {
			return false
		}

		if !looseEqual(got, want) {
			return false
		}
	}

	return true
}

func looseEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}

	fa, aok := toFloat(a)
	fb, bok := toFloat(b)

	return aok && bok && fa == fb
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// MemoryRepository is an in-process entity store for development and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	kinds map[string]map[string]map[string]any
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{kinds: make(map[string]map[string]map[string]any)}
}

// Seed inserts or replaces an entity.
func (r *MemoryRepository) Seed(kind, id string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.kinds[kind] == nil {
		r.kinds[kind] = make(map[string]map[string]any)
	}

	copied := make(map[string]any, len(data))
	for field, value := range data {
		copied[field] = value
	}

	r.kinds[kind][id] = copied
}

func (r *MemoryRepository) SelectByFilter(_ context.Context, kind string, filter map[string]any) ([]protocol.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]protocol.Entity, 0)

	for id, data := range r.kinds[kind] {
		if !MatchesFilter(data, filter) {
			continue
		}

		copied := make(map[string]any, len(data))
		for field, value := range data {
			copied[field] = value
		}

		entities = append(entities, protocol.Entity{ID: id, Data: copied})
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	return entities, nil
}

func (r *MemoryRepository) UpdateByID(_ context.Context, kind, id string, patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.kinds[kind][id]
	if !ok {
		return fmt.Errorf("entity %s/%s not found", kind, id)
	}

	for field, value := range patch {
		data[field] = value
	}

	return nil
}

func (r *MemoryRepository) DeleteByID(_ context.Context, kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kinds[kind][id]; !ok {
		return fmt.Errorf("entity %s/%s not found", kind, id)
	}

	delete(r.kinds[kind], id)

	return nil
}

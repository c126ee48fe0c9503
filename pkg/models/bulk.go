package models

import (
	"maps"
	"slices"
	"time"
)

// BulkOperationKind distinguishes the supported batch job shapes.
type BulkOperationKind string

const (
	BulkKindUpdate BulkOperationKind = "update"
	BulkKindDelete BulkOperationKind = "delete"
	BulkKindExport BulkOperationKind = "export"
	BulkKindImport BulkOperationKind = "import"
)

// BulkOperationStatus is the lifecycle state of a bulk operation.
type BulkOperationStatus string

const (
	BulkStatusPending    BulkOperationStatus = "pending"
	BulkStatusProcessing BulkOperationStatus = "processing"
	BulkStatusCompleted  BulkOperationStatus = "completed"
	BulkStatusFailed     BulkOperationStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s BulkOperationStatus) Terminal() bool {
	return s == BulkStatusCompleted || s == BulkStatusFailed
}

// BulkOperationSpec is the submission payload for a bulk operation.
type BulkOperationSpec struct {
	Kind       BulkOperationKind `json:"kind"        validate:"required,oneof=update delete export import"`
	EntityKind string            `json:"entity_kind" validate:"required"`
	// Filter selects the target item set; an empty filter selects every
	// item of the entity kind.
	Filter    map[string]any `json:"filter,omitempty"`
	Update    map[string]any `json:"update,omitempty"`
	CreatedBy string         `json:"created_by" validate:"required"`
}

// BulkOperation tracks one background batch job. Created once by submission,
// then mutated exclusively by its own worker until terminal.
type BulkOperation struct {
	ID             string              `json:"id"`
	Kind           BulkOperationKind   `json:"kind"`
	EntityKind     string              `json:"entity_kind"`
	Filter         map[string]any      `json:"filter,omitempty"`
	Update         map[string]any      `json:"update,omitempty"`
	Status         BulkOperationStatus `json:"status"`
	Progress       int                 `json:"progress"`
	TotalItems     int                 `json:"total_items"`
	ProcessedItems int                 `json:"processed_items"`
	FailedItems    int                 `json:"failed_items"`
	Errors         []string            `json:"errors,omitempty"`
	CreatedBy      string              `json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
}

// Clone returns a deep copy, so the worker's mutable state never aliases a
// snapshot held by another goroutine.
func (o *BulkOperation) Clone() *BulkOperation {
	out := *o
	out.Filter = maps.Clone(o.Filter)
	out.Update = maps.Clone(o.Update)
	out.Errors = slices.Clone(o.Errors)

	if o.CompletedAt != nil {
		completedAt := *o.CompletedAt
		out.CompletedAt = &completedAt
	}

	return &out
}

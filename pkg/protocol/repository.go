package protocol

import "context"

// Entity is one stored storefront item (product, order, user, ...). The
// automation core treats entities as opaque documents with an identifier.
type Entity struct {
	ID   string
	Data map[string]any
}

// EntityRepository is the generic per-entity-kind persistence surface the
// storefront exposes to the automation core. An empty filter selects every
// item of the kind.
type EntityRepository interface {
	SelectByFilter(ctx context.Context, kind string, filter map[string]any) ([]Entity, error)
	UpdateByID(ctx context.Context, kind, id string, patch map[string]any) error
	DeleteByID(ctx context.Context, kind, id string) error
}

// Notifier is the outbound messaging channel for admin alerts and
// rule-driven notifications.
type Notifier interface {
	Notify(ctx context.Context, audience, title, message string) error
}

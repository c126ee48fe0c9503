// Package protocol defines the contracts between the automation engines and
// their collaborators.
package protocol

import (
	"context"
	"log/slog"
)

// ActionHandler executes one typed action against already-interpolated
// parameters. Implementations carry their own configuration; the executor
// owns delay and retry around Execute.
type ActionHandler interface {
	Execute(ctx context.Context, params map[string]any, logger *slog.Logger) (any, error)
}

// ActionFactory builds handlers for one action type tag.
type ActionFactory interface {
	ID() string
	Create(deps Dependencies) (ActionHandler, error)
}

// Dependencies bundles the external collaborators handlers may use.
type Dependencies struct {
	Repository EntityRepository
	Notifier   Notifier
}

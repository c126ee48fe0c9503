package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/storekit/automation/pkg/persistence"
	"github.com/storekit/automation/pkg/persistence/memory"
	"github.com/storekit/automation/pkg/persistence/postgresql"
)

// NewPersistence creates the storage layer from a database URL. An empty URL
// selects the in-process store, which loses state on restart.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL persistence: %w", err)
		}

		return store, nil
	default:
		return memory.NewPersistence(), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "memory"
	}

	return provider
}

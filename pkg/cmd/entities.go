package cmd

import (
	"fmt"
	"log/slog"

	"github.com/storekit/automation/pkg/entities"
	"github.com/storekit/automation/pkg/protocol"
)

// NewEntityRepository creates the storefront entity store. An empty Redis URL
// selects the in-process store, which loses state on restart.
func NewEntityRepository(redisURL string, logger *slog.Logger) (protocol.EntityRepository, error) {
	if redisURL == "" {
		return entities.NewMemoryRepository(), nil
	}

	repo, err := entities.NewRedisRepository(redisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity repository: %w", err)
	}

	return repo, nil
}

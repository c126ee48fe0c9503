// Package entities provides storefront entity stores the action handlers and
// the bulk engine mutate.
package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/storekit/automation/pkg/protocol"
)

const scanBatch = 200

// RedisRepository stores entities as JSON values under `entity:{kind}:{id}`
// keys, shared with the storefront services that own them.
type RedisRepository struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisRepository(url string, logger *slog.Logger) (*RedisRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return &RedisRepository{
		client: redis.NewClient(opts),
		logger: logger.With("module", "entities.redis"),
	}, nil
}

func entityKey(kind, id string) string {
	return "entity:" + kind + ":" + id
}

// SelectByFilter scans the kind's keyspace and returns every entity whose
// fields equal the filter. An empty filter selects everything.
func (r *RedisRepository) SelectByFilter(ctx context.Context, kind string, filter map[string]any) ([]protocol.Entity, error) {
	var (
		entities []protocol.Entity
		cursor   uint64
	)

	prefix := entityKey(kind, "")

	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s entities: %w", kind, err)
		}

		for _, key := range keys {
			raw, err := r.client.Get(ctx, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}

				return nil, fmt.Errorf("failed to read entity %s: %w", key, err)
			}

			var data map[string]any
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				r.logger.WarnContext(ctx, "Skipping malformed entity", "key", key, "error", err)

				continue
			}

			if !MatchesFilter(data, filter) {
				continue
			}

			entities = append(entities, protocol.Entity{
				ID:   strings.TrimPrefix(key, prefix),
				Data: data,
			})
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return entities, nil
}

// UpdateByID merges the patch into the stored entity.
func (r *RedisRepository) UpdateByID(ctx context.Context, kind, id string, patch map[string]any) error {
	key := entityKey(kind, id)

	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("entity %s/%s not found", kind, id)
		}

		return fmt.Errorf("failed to read entity %s: %w", key, err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return fmt.Errorf("failed to decode entity %s: %w", key, err)
	}

	for field, value := range patch {
		data[field] = value
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode entity %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, encoded, 0).Err(); err != nil {
		return fmt.Errorf("failed to write entity %s: %w", key, err)
	}

	return nil
}

// DeleteByID removes the entity.
func (r *RedisRepository) DeleteByID(ctx context.Context, kind, id string) error {
	removed, err := r.client.Del(ctx, entityKey(kind, id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete entity %s/%s: %w", kind, id, err)
	}

	if removed == 0 {
		return fmt.Errorf("entity %s/%s not found", kind, id)
	}

	return nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

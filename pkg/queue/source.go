// Package queue consumes storefront domain events from a Redis list and
// feeds them to the workflow engine.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/storekit/automation/pkg/models"
)

var ErrQueueRequired = errors.New("queue name is required")

// TriggerCallback receives each decoded domain event.
type TriggerCallback func(ctx context.Context, trigger models.TriggerType, eventCtx map[string]any) error

// Source pops JSON domain events from a Redis list. Each payload is an
// object with a "trigger" field and a "context" object.
type Source struct {
	URL   string
	Queue string

	client   redis.UniversalClient
	callback TriggerCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSource(url, queue string, logger *slog.Logger) (*Source, error) {
	if queue == "" {
		return nil, ErrQueueRequired
	}

	return &Source{
		URL:    url,
		Queue:  queue,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "queue_source",
			"queue", queue,
		),
	}, nil
}

func (s *Source) Start(ctx context.Context, callback TriggerCallback) error {
	s.callback = callback

	if err := s.initializeClient(ctx); err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) initializeClient(ctx context.Context) error {
	opts := &redis.Options{Addr: "localhost:6379"}

	if s.URL != "" {
		parsed, err := redis.ParseURL(s.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}

		opts = parsed
	}

	s.client = redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr)

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			if err := s.processMessage(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

type domainMessage struct {
	Trigger models.TriggerType `json:"trigger"`
	Context map[string]any     `json:"context"`
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var msg domainMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return fmt.Errorf("malformed domain event: %w", err)
	}

	if !msg.Trigger.IsValid() {
		s.logger.WarnContext(ctx, "Dropping event with unknown trigger", "trigger", msg.Trigger)

		return nil
	}

	if msg.Context == nil {
		msg.Context = map[string]any{}
	}

	if msg.Context["timestamp"] == nil {
		msg.Context["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	go func() {
		if err := s.callback(ctx, msg.Trigger, msg.Context); err != nil {
			s.logger.ErrorContext(ctx, "Error handling domain event", "trigger", msg.Trigger, "error", err)
		}
	}()

	return nil
}

func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping queue source")

	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}

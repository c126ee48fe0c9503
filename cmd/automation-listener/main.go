// Package main provides the storefront domain-event listener that feeds the
// workflow engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/storekit/automation/pkg/actions"
	"github.com/storekit/automation/pkg/cmd"
	"github.com/storekit/automation/pkg/events"
	"github.com/storekit/automation/pkg/log"
	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/notifier"
	"github.com/storekit/automation/pkg/otelhelper"
	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/queue"
	"github.com/storekit/automation/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "automation-listener",
		Usage:                 "Listen for storefront domain events and run matching rules",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listener-id",
				Aliases: []string{"id"},
				Usage:   "Custom listener ID (auto-generated if not provided)",
				Sources: cli.EnvVars("LISTENER_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the storefront entity store",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "queue-url",
				Usage:   "Redis URL of the storefront event queue (disabled when empty)",
				Sources: cli.EnvVars("QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:    "queue-name",
				Usage:   "Queue list name holding storefront events",
				Value:   "storefront:events",
				Sources: cli.EnvVars("QUEUE_NAME"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing action plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	listenerID := command.String("listener-id")
	if listenerID == "" {
		listenerID = "listener-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("listener").With("listener_id", listenerID)

	logger.InfoContext(ctx, "Initializing Automation Listener")

	tracerProvider, err := otelhelper.InitTracer(ctx, "automation-listener")
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	defer func() {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}()

	registry := cmd.NewRegistry(logger, command.String("plugins-path"))

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	entities, err := cmd.NewEntityRepository(command.String("redis-url"), logger)
	if err != nil {
		return err
	}

	sink := notifier.NewEventBusNotifier(eventBus)
	deps := protocol.Dependencies{Repository: entities, Notifier: sink}
	executor := actions.NewExecutor(registry, deps, logger)

	engine := workflow.NewEngine(store, executor, eventBus, logger)

	trigger := func(ctx context.Context, triggerType models.TriggerType, eventCtx map[string]any) error {
		_, err := engine.Trigger(ctx, triggerType, eventCtx)

		return err
	}

	err = eventBus.Handle(events.DomainEventType, func(ctx context.Context, event any) error {
		domainEvent, ok := event.(*events.DomainEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		return trigger(ctx, domainEvent.Trigger, domainEvent.Context)
	})
	if err != nil {
		return fmt.Errorf("failed to register domain event handler: %w", err)
	}

	if err := eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	var source *queue.Source

	if queueURL := command.String("queue-url"); queueURL != "" {
		source, err = queue.NewSource(queueURL, command.String("queue-name"), logger)
		if err != nil {
			return fmt.Errorf("failed to create queue source: %w", err)
		}

		if err := source.Start(ctx, trigger); err != nil {
			return fmt.Errorf("failed to start queue source: %w", err)
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case sig := <-signals:
		logger.InfoContext(ctx, "Received shutdown signal", "signal", sig.String())
	}

	if source != nil {
		if err := source.Stop(context.Background()); err != nil {
			logger.Error("Failed to stop queue source", "error", err)
		}
	}

	return nil
}

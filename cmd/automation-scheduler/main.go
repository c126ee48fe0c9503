// Package main provides the scheduled task driver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/storekit/automation/pkg/actions"
	"github.com/storekit/automation/pkg/cmd"
	"github.com/storekit/automation/pkg/log"
	"github.com/storekit/automation/pkg/notifier"
	"github.com/storekit/automation/pkg/otelhelper"
	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "automation-scheduler",
		Usage:                 "Run scheduled automation tasks on their cron cadence",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Sources: cli.EnvVars("SCHEDULER_ID"),
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
			&cli.DurationFlag{
				Name:    "scan-interval",
				Usage:   "How often the driver scans for due tasks",
				Value:   scheduler.DefaultInterval,
				Sources: cli.EnvVars("SCAN_INTERVAL"),
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

	schedulerID := command.String("scheduler-id")
	if schedulerID == "" {
		schedulerID = "scheduler-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("scheduler").With("scheduler_id", schedulerID)

	logger.InfoContext(ctx, "Initializing Automation Scheduler")

	tracerProvider, err := otelhelper.InitTracer(ctx, "automation-scheduler")
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

	engine := scheduler.NewEngine(store, executor, eventBus, command.Duration("scan-interval"), logger)

	go engine.Start(ctx)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case sig := <-signals:
		logger.InfoContext(ctx, "Received shutdown signal", "signal", sig.String())
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan struct{})

	go func() {
		engine.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-stopCtx.Done():
		logger.Warn("Timed out waiting for scheduler to stop")
	}

	return nil
}

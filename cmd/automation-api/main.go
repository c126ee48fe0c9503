package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/storekit/automation/pkg/cmd"
	"github.com/storekit/automation/pkg/log"
	"github.com/storekit/automation/pkg/otelhelper"
)

const defaultPort = 8081

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "automation-api",
		Usage:                 "Manage automation rules, bulk operations and scheduled tasks",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Automation API")

			tracerProvider, err := otelhelper.InitTracer(ctx, "automation-api")
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

			api := NewAPI(logger, store, registry, eventBus, entities)

			return api.Start(ctx, command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

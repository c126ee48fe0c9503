// Package main provides the automation admin API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/storekit/automation/pkg/actions"
	"github.com/storekit/automation/pkg/bulk"
	"github.com/storekit/automation/pkg/eventbus"
	"github.com/storekit/automation/pkg/notifier"
	"github.com/storekit/automation/pkg/persistence"
	"github.com/storekit/automation/pkg/protocol"
	"github.com/storekit/automation/pkg/registry"
	"github.com/storekit/automation/pkg/scheduler"
	"github.com/storekit/automation/pkg/web"
	"github.com/storekit/automation/pkg/workflow"
)

const shutdownGrace = 30 * time.Second

type API struct {
	logger   *slog.Logger
	store    persistence.Persistence
	registry *registry.Registry
	eventBus eventbus.EventBus
	entities protocol.EntityRepository
	validate *validator.Validate

	bulkEngine *bulk.Engine
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	entities protocol.EntityRepository,
) *API {
	return &API{
		logger:   logger,
		store:    store,
		registry: reg,
		eventBus: eventBus,
		entities: entities,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	sink := notifier.NewEventBusNotifier(a.eventBus)
	deps := protocol.Dependencies{Repository: a.entities, Notifier: sink}
	executor := actions.NewExecutor(a.registry, deps, a.logger)

	workflows := workflow.NewEngine(a.store, executor, a.eventBus, a.logger)
	a.bulkEngine = bulk.NewEngine(a.store, a.entities, sink, a.eventBus, a.logger)
	schedulerEngine := scheduler.NewEngine(a.store, executor, a.eventBus, scheduler.DefaultInterval, a.logger)

	handlers := web.NewAPIHandlers(workflows, a.bulkEngine, schedulerEngine, a.store, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Automation API")
	})

	handlers.Register(app)

	return app
}

// Start serves until the context is cancelled or a termination signal
// arrives, then drains in-flight bulk workers before returning.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":" + strconv.Itoa(port))
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case sig := <-signals:
		a.logger.InfoContext(ctx, "Received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to shut down HTTP server", "error", err)
	}

	if err := a.bulkEngine.Shutdown(shutdownCtx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to drain bulk workers", "error", err)
	}

	return nil
}

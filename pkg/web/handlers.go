// Package web provides the REST admin API for rules, bulk operations and
// scheduled tasks.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/storekit/automation/pkg/bulk"
	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/persistence"
	"github.com/storekit/automation/pkg/registry"
	"github.com/storekit/automation/pkg/scheduler"
	"github.com/storekit/automation/pkg/workflow"
)

type APIHandlers struct {
	workflows *workflow.Engine
	bulk      *bulk.Engine
	scheduler *scheduler.Engine
	store     persistence.Persistence
	registry  *registry.Registry
	validator *validator.Validate
}

func NewAPIHandlers(
	workflows *workflow.Engine,
	bulkEngine *bulk.Engine,
	schedulerEngine *scheduler.Engine,
	store persistence.Persistence,
	reg *registry.Registry,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflows: workflows,
		bulk:      bulkEngine,
		scheduler: schedulerEngine,
		store:     store,
		registry:  reg,
		validator: validate,
	}
}

// Register mounts every route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	rules := app.Group("/rules")
	rules.Get("/", h.GetRules)
	rules.Post("/", h.CreateRule)
	rules.Get("/:id", h.GetRule)
	rules.Patch("/:id", h.UpdateRule)
	rules.Delete("/:id", h.DeleteRule)
	rules.Post("/:id/enable", h.EnableRule)
	rules.Post("/:id/disable", h.DisableRule)
	rules.Get("/:id/executions", h.GetRuleExecutions)

	app.Get("/metrics/workflows", h.GetWorkflowMetrics)

	operations := app.Group("/bulk-operations")
	operations.Get("/", h.GetBulkOperations)
	operations.Post("/", h.CreateBulkOperation)
	operations.Get("/:id", h.GetBulkOperation)
	operations.Post("/:id/cancel", h.CancelBulkOperation)

	tasks := app.Group("/tasks")
	tasks.Get("/", h.GetTasks)
	tasks.Post("/", h.CreateTask)
	tasks.Get("/:id", h.GetTask)
	tasks.Patch("/:id", h.UpdateTask)
	tasks.Delete("/:id", h.DeleteTask)
	tasks.Post("/:id/enable", h.EnableTask)
	tasks.Post("/:id/disable", h.DisableTask)
	tasks.Post("/:id/run", h.RunTask)

	app.Post("/triggers/:event", h.InjectTrigger)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	storeCheck := "ok"
	if err := h.store.HealthCheck(c.Context()); err != nil {
		storeCheck = err.Error()
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"persistence": storeCheck,
			"actions":     h.registry.ActionTypes(),
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	rules, err := h.workflows.Rules(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(rules)
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.workflows.Rule(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req CreateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflows.AddRule(c.Context(), req.ToRule())
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateRule(c fiber.Ctx) error {
	var req UpdateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rule, err := h.workflows.Rule(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	req.Apply(rule)

	updated, err := h.workflows.UpdateRule(c.Context(), rule)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	if err := h.workflows.DeleteRule(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableRule(c fiber.Ctx) error {
	if err := h.workflows.EnableRule(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DisableRule(c fiber.Ctx) error {
	if err := h.workflows.DisableRule(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetRuleExecutions(c fiber.Ctx) error {
	records, err := h.workflows.ExecutionHistory(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(records)
}

func (h *APIHandlers) GetWorkflowMetrics(c fiber.Ctx) error {
	metrics, err := h.workflows.Metrics(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(metrics)
}

func (h *APIHandlers) GetBulkOperations(c fiber.Ctx) error {
	operations, err := h.bulk.Operations(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(operations)
}

func (h *APIHandlers) GetBulkOperation(c fiber.Ctx) error {
	op, err := h.bulk.Operation(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(op)
}

func (h *APIHandlers) CreateBulkOperation(c fiber.Ctx) error {
	var spec models.BulkOperationSpec
	if err := c.Bind().JSON(&spec); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	op, err := h.bulk.Submit(c.Context(), spec)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(op)
}

func (h *APIHandlers) CancelBulkOperation(c fiber.Ctx) error {
	if err := h.bulk.Cancel(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	tasks, err := h.scheduler.Tasks(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(tasks)
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	task, err := h.scheduler.Task(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) CreateTask(c fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.scheduler.AddTask(c.Context(), req.ToTask())
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateTask(c fiber.Ctx) error {
	var req UpdateTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.scheduler.Task(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	req.Apply(task)

	updated, err := h.scheduler.UpdateTask(c.Context(), task)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteTask(c fiber.Ctx) error {
	if err := h.scheduler.DeleteTask(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableTask(c fiber.Ctx) error {
	if err := h.scheduler.EnableTask(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DisableTask(c fiber.Ctx) error {
	if err := h.scheduler.DisableTask(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RunTask(c fiber.Ctx) error {
	task, err := h.scheduler.RunNow(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

// InjectTrigger lets operators fire a storefront trigger by hand, with an
// arbitrary event context.
func (h *APIHandlers) InjectTrigger(c fiber.Ctx) error {
	trigger := models.TriggerType(c.Params("event"))
	if !trigger.IsValid() {
		return badRequest(c, "unknown trigger type: "+string(trigger))
	}

	var req TriggerRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	results, err := h.workflows.Trigger(c.Context(), trigger, req.Context)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"trigger": trigger,
		"results": results,
	})
}

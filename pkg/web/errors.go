package web

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/storekit/automation/pkg/bulk"
	"github.com/storekit/automation/pkg/persistence"
	"github.com/storekit/automation/pkg/scheduler"
	"github.com/storekit/automation/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps engine and persistence errors onto problem responses.
func handleEngineError(c fiber.Ctx, err error) error {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, workflow.ErrUnknownTrigger),
		errors.Is(err, workflow.ErrRuleNil),
		errors.Is(err, scheduler.ErrTaskNil),
		errors.Is(err, scheduler.ErrInvalidSchedule):
		return badRequest(c, err.Error())

	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	case errors.Is(err, bulk.ErrNotProcessing):
		return conflict(c, err.Error())

	case errors.Is(err, bulk.ErrShuttingDown):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("shutting_down").
			WithDetail(err.Error())

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	default:
		return internalError(c, err)
	}
}

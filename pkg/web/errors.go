package web

import (
	"errors"

	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/dukex/flowledger/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// handleServiceError maps service and persistence errors to problem responses.
// Anything unrecognized is logged and answered with a generic 500.
func (h *APIHandlers) handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, detailOf(err))

	case services.IsPreconditionError(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("precondition_failed").
			WithDetail(detailOf(err))

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(detailOf(err))

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case persistence.IsVersionNotFound(err):
		return notFound(c, "version_not_found", "version not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution_not_found", "execution not found")

	case errors.Is(err, services.ErrDispatchFailed):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("dispatch_failed").
			WithDetail("execution was recorded as failed because it could not be queued")

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	default:
		h.logger.ErrorContext(c.Context(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"tenant_id", tenantOf(c),
			"error", err,
		)

		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithDetail("internal server error")

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}

func detailOf(err error) string {
	var serviceErr *services.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		return serviceErr.Message
	}

	switch {
	case errors.Is(err, services.ErrWorkflowNotPublished):
		return "workflow must be published to run"
	case errors.Is(err, services.ErrTerminalOverwrite):
		return "execution already finished; a reason is required to overwrite its status"
	}

	return err.Error()
}

var (
	errInvalidWorkflowID = errors.New("invalid workflow ID")
	errInvalidVersion    = errors.New("version must be a positive integer")
	errInvalidLimit      = errors.New("limit must be between 1 and 500")
	errInvalidOffset     = errors.New("offset must be non-negative")
)

package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// domainError maps computation errors to API responses. Malformed tiles,
// missing terrain, degenerate windows, and off-grid observers are all the
// caller's problem, not a server fault.
func domainError(c *fiber.Ctx, err error) error {
	var (
		formatErr  *domain.FormatError
		noDataErr  *domain.NoDataError
		degenErr   *domain.DegenerateInputError
		offGridErr *domain.ObserverOffGridError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "not found")
	case errors.Is(err, domain.ErrConflict):
		return errConflict(c, err.Error())
	case errors.As(err, &formatErr),
		errors.As(err, &noDataErr),
		errors.As(err, &degenErr),
		errors.As(err, &offGridErr):
		return newError(c, 422, "unprocessable", err.Error())
	case errors.Is(err, fiber.ErrRequestTimeout):
		return newError(c, 408, "timeout", "computation timed out")
	default:
		return errInternal(c, err.Error())
	}
}

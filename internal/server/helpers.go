package server

import (
	"errors"

	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int64
	Offset int64
}

const maxPaginationLimit = 100

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  int64(limit),
		Offset: int64(offset),
	}
}

// statusForError maps the application error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodePermission, models.CodeWindowExpired:
		return fiber.StatusForbidden
	case models.CodeInvalidState:
		return fiber.StatusConflict
	case models.CodeLocked:
		return fiber.StatusLocked
	case models.CodeStorageUnavailable:
		return fiber.StatusServiceUnavailable
	case models.CodeUnroutedActivity:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the standardized error body with the mapped status.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, statusForError(err), err)
}

// currentUser builds a UserRef from the locals set by the auth middleware.
func (s *Server) currentUser(c *fiber.Ctx) (models.UserRef, error) {
	id, _ := c.Locals(middleware.LocalUserID).(string)
	if id == "" {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewPermissionError("Authentication required"))
		return models.UserRef{}, errResponseWritten
	}
	name, _ := c.Locals(middleware.LocalDisplayName).(string)
	role, _ := c.Locals(middleware.LocalRole).(string)
	return models.UserRef{ID: id, DisplayName: name, Role: role}, nil
}

// threadParam extracts the thread id route parameter.
func threadParam(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if id == "" {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid thread ID"))
		return "", errResponseWritten
	}
	return id, nil
}

// postParam extracts the post id route parameter.
func postParam(c *fiber.Ctx) (string, error) {
	id := c.Params("postId")
	if id == "" {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
		return "", errResponseWritten
	}
	return id, nil
}

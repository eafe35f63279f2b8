package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError. The transport layer maps each code to a
// stable HTTP status; services compare codes instead of error strings.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodePermission         = "PERMISSION_DENIED"
	CodeInvalidState       = "INVALID_STATE"
	CodeWindowExpired      = "WINDOW_EXPIRED"
	CodeLocked             = "LOCKED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeUnroutedActivity   = "UNROUTED_ACTIVITY"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// NewValidationError marks malformed caller input.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewNotFoundError marks a referenced entity as absent or soft-deleted.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

// NewPermissionError marks an actor lacking rights for the action.
func NewPermissionError(message string) *AppError {
	return &AppError{Code: CodePermission, Message: message}
}

// NewInvalidStateError marks an action that is not legal for the entity's
// current state, e.g. accepting an answer on a non-question thread.
func NewInvalidStateError(message string) *AppError {
	return &AppError{Code: CodeInvalidState, Message: message}
}

// NewWindowExpiredError marks an edit attempted after the allowed window.
func NewWindowExpiredError(message string) *AppError {
	return &AppError{Code: CodeWindowExpired, Message: message}
}

// NewLockedError marks a thread locked against new posts.
func NewLockedError(message string) *AppError {
	return &AppError{Code: CodeLocked, Message: message}
}

// NewStorageUnavailableError wraps a persistence-layer failure (timeout,
// connectivity). Callers retry such operations at most once before surfacing.
func NewStorageUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeStorageUnavailable,
		Message: "storage unavailable",
		Err:     err,
	}
}

// NewUnroutedActivityError marks an activity type with no defined routing.
// New activity types require an explicit routing decision; they are never
// silently broadcast or dropped.
func NewUnroutedActivityError(activityType string) *AppError {
	return &AppError{
		Code:    CodeUnroutedActivity,
		Message: fmt.Sprintf("no routing defined for activity type %q", activityType),
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}

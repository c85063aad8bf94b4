// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Title   string `json:"error"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Message)
}

// Unwrap exposes the underlying cause, if any
func (e *APIError) Unwrap() error {
	return e.cause
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 error for bodies that cannot be parsed
func NewBadRequestError(message string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Title:   "Malformed request",
		Message: message,
		cause:   cause,
	}
}

// NewValidationError creates a 400 error for an entry that breaks the log schema
func NewValidationError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Title:   "Invalid log entry",
		Message: cause.Error(),
		cause:   cause,
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError() *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Title:   "Not Found",
		Message: "The requested endpoint does not exist",
	}
}

// NewPersistenceError creates a 500 error for a failed snapshot write
func NewPersistenceError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Title:   "Failed to save log entry",
		Message: "Internal server error during persistence",
		cause:   cause,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Title:   "Internal server error",
		Message: message,
		cause:   cause,
	}
}

// ErrorHandler renders every error as {error, message}.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = fromHTTPError(httpErr)
	default:
		apiErr = NewInternalError("An unexpected error occurred", err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request().Method).
			Str("uri", c.Request().RequestURI).
			Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(apiErr.Status)
	} else {
		err = c.JSON(apiErr.Status, apiErr)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to write error response")
	}
}

func fromHTTPError(he *echo.HTTPError) *APIError {
	switch he.Code {
	case http.StatusNotFound:
		return NewNotFoundError()
	case http.StatusMethodNotAllowed:
		return &APIError{
			Status:  he.Code,
			Title:   "Method Not Allowed",
			Message: "The requested method is not supported for this endpoint",
		}
	case http.StatusRequestEntityTooLarge:
		return &APIError{
			Status:  he.Code,
			Title:   "Payload Too Large",
			Message: "The request body exceeds the configured limit",
		}
	}

	if he.Code >= http.StatusInternalServerError {
		return &APIError{
			Status:  he.Code,
			Title:   "Internal server error",
			Message: "An unexpected error occurred",
			cause:   he,
		}
	}
	return &APIError{
		Status:  he.Code,
		Title:   http.StatusText(he.Code),
		Message: fmt.Sprintf("%v", he.Message),
	}
}

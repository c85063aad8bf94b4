// handlers_logs.go - Log ingestion and query handlers
package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/logbook/backend/internal/models"
	"github.com/logbook/backend/internal/storage"
	"github.com/logbook/backend/internal/validator"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack is the media type for MessagePack query responses
const MIMEApplicationMsgpack = "application/msgpack"

// LogHandlerImpl implements the LogHandler interface
type LogHandlerImpl struct {
	store storage.Store
}

// NewLogHandler creates a new log handler backed by store
func NewLogHandler(store storage.Store) LogHandler {
	return &LogHandlerImpl{store: store}
}

// HandleIngest validates the request body and appends it to the store
func (h *LogHandlerImpl) HandleIngest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return NewBadRequestError("Could not read request body", err)
	}

	entry, err := validator.Parse(body)
	if err != nil {
		if ve, ok := validator.IsValidationError(err); ok {
			log.Debug().Str("kind", ve.Kind.String()).Str("field", ve.Field).Msg("rejected log entry")
			return NewValidationError(ve)
		}
		return NewBadRequestError("Request body must be a valid JSON object", err)
	}

	stored, err := h.store.Append(c.Request().Context(), entry)
	if err != nil {
		if errors.Is(err, storage.ErrPersistence) {
			return NewPersistenceError(err)
		}
		return NewInternalError("An unexpected error occurred", err)
	}

	return c.JSON(http.StatusCreated, stored)
}

// HandleQuery returns the entries matching the query-string filters, most recent first
func (h *LogHandlerImpl) HandleQuery(c echo.Context) error {
	entries, err := h.store.Query(c.Request().Context(), buildFilter(c))
	if err != nil {
		return NewInternalError("An unexpected error occurred while retrieving logs", err)
	}

	if wantsMsgpack(c) {
		data, err := msgpack.Marshal(entries)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
	}
	return c.JSON(http.StatusOK, entries)
}

func buildFilter(c echo.Context) models.Filter {
	return models.Filter{
		Level:          c.QueryParam(models.ParamLevel),
		Message:        c.QueryParam(models.ParamMessage),
		ResourceID:     c.QueryParam(models.ParamResourceID),
		TraceID:        c.QueryParam(models.ParamTraceID),
		SpanID:         c.QueryParam(models.ParamSpanID),
		Commit:         c.QueryParam(models.ParamCommit),
		TimestampStart: c.QueryParam(models.ParamTimestampStart),
		TimestampEnd:   c.QueryParam(models.ParamTimestampEnd),
	}
}

func wantsMsgpack(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack)
}

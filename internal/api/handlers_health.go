// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthResponse is the body returned by the liveness probe
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Version   string  `json:"version,omitempty"`
}

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) HealthHandler {
	return newHealthHandler(version, time.Now)
}

func newHealthHandler(version string, now func() time.Time) *HealthHandlerImpl {
	return &HealthHandlerImpl{
		version: version,
		started: now(),
		now:     now,
	}
}

// HandleHealth returns server health status and uptime in seconds
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	now := h.now()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z"),
		Uptime:    now.Sub(h.started).Seconds(),
		Version:   h.version,
	})
}

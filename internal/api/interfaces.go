// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// LogHandler handles log ingestion and retrieval
type LogHandler interface {
	HandleIngest(c echo.Context) error
	HandleQuery(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

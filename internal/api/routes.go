// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/logbook/backend/internal/storage"
	"github.com/rs/zerolog/log"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store   storage.Store
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Logs   LogHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version),
		Logs:   NewLogHandler(deps.Store),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	e.POST("/logs", handlers.Logs.HandleIngest)
	e.GET("/logs", handlers.Logs.HandleQuery)
}

// MiddlewareConfig holds the transport settings applied by SetupMiddleware
type MiddlewareConfig struct {
	BodyLimit         string
	EnableCORS        bool
	AllowOrigins      []string
	RequestTimeout    time.Duration
	EnableCompression bool
	CompressionLevel  int
	RequestLogging    bool
}

// DefaultMiddlewareConfig mirrors the defaults of the config package
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		BodyLimit:      "10M",
		EnableCORS:     true,
		AllowOrigins:   []string{"*"},
		RequestTimeout: 30 * time.Second,
		RequestLogging: true,
	}
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return !cfg.RequestLogging || c.Path() == "/health"
		},
		HandleError:  true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().Err(err).Str("stack", string(stack)).Msg("recovered from panic")
			return err
		},
	}))

	// Security headers
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "0",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "no-referrer",
	}))

	if cfg.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout:      cfg.RequestTimeout,
			ErrorMessage: "Request timeout",
		}))
	}

	if cfg.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.CompressionLevel,
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// NewServer builds an Echo instance with middleware and routes registered
func NewServer(deps *Dependencies, cfg MiddlewareConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	SetupMiddleware(e, cfg)
	RegisterRoutes(e, NewHandlers(deps))
	return e
}

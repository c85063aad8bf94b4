// Package server wires configuration, storage and the HTTP API into a runnable process.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/logbook/backend/internal/api"
	"github.com/logbook/backend/internal/config"
	"github.com/logbook/backend/internal/logging"
	"github.com/logbook/backend/internal/storage"
	"github.com/logbook/backend/internal/web"
	"github.com/rs/zerolog/log"
)

// ShutdownTimeout bounds how long in-flight requests may take once the
// context passed to Run is cancelled.
const ShutdownTimeout = 10 * time.Second

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	BuildTime string
}

// Server is a configured but not yet listening logbook instance.
type Server struct {
	cfg        *config.AppConfig
	configPath string
	build      BuildInfo
	store      *storage.LogStore
	echo       *echo.Echo
	http       *http.Server
}

// New loads the configuration at configPath, prepares the data directory,
// opens the snapshot and builds the HTTP handler. Log output goes to logOut.
func New(configPath string, build BuildInfo, logOut io.Writer) (*Server, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logging.Setup(cfg.Logging, logOut); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := storage.OpenFile(cfg.GetSnapshotPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	e := api.NewServer(&api.Dependencies{
		Store:   store,
		Version: build.Version,
	}, MiddlewareConfig(cfg))

	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn().Err(err).Msg("failed to register viewer routes")
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  config.Seconds(cfg.Server.ReadTimeout),
		WriteTimeout: config.Seconds(cfg.Server.WriteTimeout),
		IdleTimeout:  config.Seconds(cfg.Server.IdleTimeout),
	}

	return &Server{
		cfg:        cfg,
		configPath: configPath,
		build:      build,
		store:      store,
		echo:       e,
		http:       s,
	}, nil
}

// MiddlewareConfig translates the server section of the configuration into
// the settings understood by the api package.
func MiddlewareConfig(cfg *config.AppConfig) api.MiddlewareConfig {
	return api.MiddlewareConfig{
		BodyLimit:         cfg.Server.BodyLimit,
		EnableCORS:        cfg.Server.EnableCORS,
		AllowOrigins:      cfg.Server.AllowOrigins,
		RequestTimeout:    config.Seconds(cfg.Server.RequestTimeout),
		EnableCompression: cfg.Server.EnableCompression,
		CompressionLevel:  cfg.Server.CompressionLevel,
		RequestLogging:    cfg.Logging.RequestLogging,
	}
}

// Config returns the loaded configuration.
func (s *Server) Config() *config.AppConfig {
	return s.cfg
}

// Handler returns the HTTP handler serving the API and viewer.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.printBanner(os.Stdout)
	log.Info().
		Str("addr", s.http.Addr).
		Str("snapshot", s.store.Path()).
		Str("version", s.build.Version).
		Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.StartServer(s.http)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) printBanner(w io.Writer) {
	configPath := s.configPath
	if configPath == "" {
		configPath = "(defaults)"
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║           Logbook Ingestion Server                        ║\n")
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Version:    %-45s║\n", s.build.Version)
	fmt.Fprintf(w, "║  Build Time: %-45s║\n", s.build.BuildTime)
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Config:    %-46s║\n", configPath)
	fmt.Fprintf(w, "║  Listen:    http://%-38s║\n", s.cfg.GetServerAddr())
	fmt.Fprintf(w, "║  Snapshot:  %-46s║\n", s.store.Path())
	fmt.Fprintf(w, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(w, "\n")

	if web.HasEmbeddedFiles() {
		fmt.Fprintf(w, "Open http://localhost:%d%s/ in your browser\n\n", s.cfg.Server.Port, web.Prefix)
	}
}

// Package http provides the notesd HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/studyforge/notesd/internal/auth"
	"github.com/studyforge/notesd/internal/continuation"
	"github.com/studyforge/notesd/internal/coverage"
	"github.com/studyforge/notesd/internal/logging"
	"github.com/studyforge/notesd/internal/notes"
	"github.com/studyforge/notesd/internal/secrets"
)

// Server provides HTTP endpoints for notesd.
type Server struct {
	echo     *echo.Echo
	engine   *continuation.Engine
	notes    *notes.Service
	scrubber secrets.Scrubber
	logger   *zap.Logger
	config   *Config
	version  string
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// CoverageThreshold is the score below which coverage reports warn.
	CoverageThreshold int
}

// Deps are the services behind the API.
type Deps struct {
	// Engine runs POST /continue. Required.
	Engine *continuation.Engine
	// Verifier authenticates every route except /health and /metrics. Required.
	Verifier auth.Verifier
	// Notes backs the document routes, which are not registered when nil.
	Notes *notes.Service
	// Scrubber backs POST /api/v1/scrub. Defaults to the built-in rules.
	Scrubber secrets.Scrubber
	// MeterProvider receives HTTP request metrics. Defaults to the global provider.
	MeterProvider metric.MeterProvider
	// Gatherer is exposed on /metrics. Defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer
	Version  string
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("continuation engine is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("credential verifier is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.CoverageThreshold == 0 {
		cfg.CoverageThreshold = coverage.DefaultWarnThreshold
	}
	if deps.Scrubber == nil {
		deps.Scrubber = secrets.MustNew(nil)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	// Metrics wrap requestContext so they see the status of handler errors,
	// which requestContext writes.
	e.Use(NewHTTPMetrics(deps.MeterProvider, logger).MetricsMiddleware())
	e.Use(requestContext(logger))

	s := &Server{
		echo:     e,
		engine:   deps.Engine,
		notes:    deps.Notes,
		scrubber: deps.Scrubber,
		logger:   logger,
		config:   cfg,
		version:  deps.Version,
	}

	s.registerRoutes(auth.BearerAuth(deps.Verifier, logger), deps.Gatherer)

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes(authn echo.MiddlewareFunc, gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.echo.POST("/continue", s.handleContinue, authn)

	v1 := s.echo.Group("/api/v1", authn)
	v1.POST("/coverage", s.handleCoverage)
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/scrub", s.handleScrub)

	if s.notes != nil {
		v1.POST("/documents", s.handleCreateDocument)
		v1.GET("/documents/:id", s.handleGetDocument)
		v1.POST("/documents/:id/continue", s.handleContinueDocument)
	}
}

// requestContext copies the request id into the request context and logs
// each request once it completes. Handler errors are written here.
func requestContext(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := append(logging.ContextFields(c.Request().Context()),
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			logger.Info("http request", fields...)

			return nil
		}
	}
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server and blocks until it stops. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

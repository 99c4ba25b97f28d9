// Package server assembles the review API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/dlq"
	"github.com/Ramsey-B/clover/pkg/routes/evaluate"
	"github.com/Ramsey-B/clover/pkg/routes/flags"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/settings"
)

// Config contains HTTP server configuration
type Config struct {
	ServiceName  string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AllowOrigins []string
	AllowMethods []string
}

// Handlers are the route groups served under /api/v1. DLQ is optional.
type Handlers struct {
	Flags    *flags.Handler
	Settings *settings.Handler
	Evaluate *evaluate.Handler
	DLQ      *dlq.Handler
	Health   *health.Checker
}

// Server is the echo HTTP server
type Server struct {
	echo   *echo.Echo
	http   *http.Server
	logger ectologger.Logger
}

// New builds the echo instance and registers every route
func New(cfg Config, logger ectologger.Logger, handlers Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	if len(cfg.AllowOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: cfg.AllowMethods,
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID, middleware.HeaderShopID},
		}))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if handlers.Health != nil {
		handlers.Health.Register(api.Group("/health"))
	}
	if handlers.DLQ != nil {
		handlers.DLQ.Register(api.Group("/dlq"))
	}

	shop := api.Group("", middleware.RequireShop())
	if handlers.Flags != nil {
		handlers.Flags.Register(shop.Group("/flags"))
	}
	if handlers.Settings != nil {
		handlers.Settings.Register(shop.Group("/settings"))
	}
	if handlers.Evaluate != nil {
		handlers.Evaluate.Register(shop.Group("/evaluate"))
	}

	return &Server{
		echo:   e,
		logger: logger,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      e,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Echo exposes the router, mainly for tests
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves in the background. Listener failures after startup are logged.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.WithField("addr", s.http.Addr).Info("HTTP server listening")
		if err := s.echo.StartServer(s.http); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()
	return nil
}

// Stop drains in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

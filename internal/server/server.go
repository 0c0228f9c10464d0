// Package server exposes the HTTP surface: health and version probes,
// Prometheus metrics, the read-only mood API, the privacy reset and the
// live feed upgrade endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RAVBLACK/StrawHats/internal/config"
	"github.com/RAVBLACK/StrawHats/internal/domain"
	"github.com/RAVBLACK/StrawHats/internal/engine"
	apperrors "github.com/RAVBLACK/StrawHats/internal/errors"
)

const readinessProbeTimeout = 5 * time.Second

// evaluator is the slice of the engine the handlers need.
type evaluator interface {
	Status() engine.Status
	Sweep() error
}

// alertMachine is the slice of the alert machine the handlers need.
type alertMachine interface {
	Snapshot(ctx context.Context) (domain.AlertState, error)
	Config() domain.ThresholdConfig
}

// resetter wipes stored mood data.
type resetter interface {
	Reset(ctx context.Context) error
}

// feedHub accepts upgraded live feed connections.
type feedHub interface {
	Register(conn *websocket.Conn) error
	Unregister(conn *websocket.Conn)
}

// HealthCheck is a named readiness check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	history  domain.HistoryStore
	alerts   domain.AlertLog
	eval     evaluator
	machine  alertMachine
	resetter resetter
	hub      feedHub

	upgrader     websocket.Upgrader
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, history domain.HistoryStore, alerts domain.AlertLog, eval evaluator, machine alertMachine, res resetter, hub feedHub, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		history:      history,
		alerts:       alerts,
		eval:         eval,
		machine:      machine,
		resetter:     res,
		hub:          hub,
		upgrader:     websocket.Upgrader{},
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.echo.Use(s.requestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(apperrors.Middleware())

	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/history/recent", s.handleHistoryRecent)
	api.GET("/history/range", s.handleHistoryRange)
	api.GET("/stats", s.handleStats)
	api.GET("/summary", s.handleSummary)
	api.GET("/status", s.handleStatus)
	api.GET("/alerts", s.handleAlerts)
	api.POST("/reset", s.handleReset)

	s.echo.GET("/ws/live", s.handleLiveFeed)
}

func (s *Server) requestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("request", attrs...)
			return nil
		},
	})
}

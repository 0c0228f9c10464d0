package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/RAVBLACK/StrawHats/internal/digest"
	"github.com/RAVBLACK/StrawHats/internal/version"
)

const (
	defaultRecentCount = 50
	maxRecentCount     = 1000
	defaultAlertCount  = 20
	maxAlertCount      = 200
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": hc.Name,
				"error":        err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}

func (s *Server) handleHistoryRecent(c echo.Context) error {
	n := defaultRecentCount
	if raw := c.QueryParam("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "n must be a positive integer")
		}
		n = min(parsed, maxRecentCount)
	}

	records, err := s.history.ReadRecent(c.Request().Context(), n)
	if err != nil {
		return fmt.Errorf("read recent history: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleHistoryRange(c echo.Context) error {
	start, err := strconv.ParseInt(c.QueryParam("start"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be an integer")
	}
	end, err := strconv.ParseInt(c.QueryParam("end"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be an integer")
	}
	if end < start {
		return echo.NewHTTPError(http.StatusBadRequest, "end must not precede start")
	}

	records, err := s.history.ReadRange(c.Request().Context(), start, end)
	if err != nil {
		return fmt.Errorf("read history range: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"records": records})
}

// handleStats returns hourly trend buckets for the requested window
// (default 24h).
func (s *Server) handleStats(c echo.Context) error {
	window := 24 * time.Hour
	if raw := c.QueryParam("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "window must be a positive duration")
		}
		window = parsed
	}

	to := time.Now()
	from := to.Add(-window)
	records, err := s.history.ReadSince(c.Request().Context(), from)
	if err != nil {
		return fmt.Errorf("read history since: %w", err)
	}

	width := window / 24
	if width < time.Minute {
		width = time.Minute
	}
	return c.JSON(http.StatusOK, map[string]any{
		"summary": digest.Summarize(records, from, to),
		"buckets": digest.Bucketize(records, from, to, width),
	})
}

func (s *Server) handleSummary(c echo.Context) error {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	records, err := s.history.ReadSince(c.Request().Context(), from)
	if err != nil {
		return fmt.Errorf("read history since: %w", err)
	}
	return c.JSON(http.StatusOK, digest.Summarize(records, from, to))
}

func (s *Server) handleStatus(c echo.Context) error {
	state, err := s.machine.Snapshot(c.Request().Context())
	if err != nil {
		return fmt.Errorf("snapshot alert state: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"engine": s.eval.Status(),
		"alert":  state,
		"config": s.machine.Config(),
	})
}

func (s *Server) handleAlerts(c echo.Context) error {
	limit := defaultAlertCount
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(parsed, maxAlertCount)
	}

	events, err := s.alerts.ListEvents(c.Request().Context(), limit)
	if err != nil {
		return fmt.Errorf("list alert events: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"alerts": events})
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.resetter.Reset(c.Request().Context()); err != nil {
		return fmt.Errorf("reset stored data: %w", err)
	}
	slog.Info("stored mood data wiped by privacy reset")
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleLiveFeed(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade live feed connection: %w", err)
	}

	if err := s.hub.Register(conn); err != nil {
		return nil // hub already closed the connection
	}

	go func() {
		defer s.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

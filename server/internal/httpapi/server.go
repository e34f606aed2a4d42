// Package httpapi exposes a minimal ambient operations surface over the
// relay: a health probe and a read-only state snapshot. It is not the
// manager's web/websocket surface (that remains an external collaborator,
// see internal/bridge) — just enough HTTP to let an operator or monitor
// check the relay is alive.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SessionLister is the read-only view the ops surface needs into the
// relay's connected sessions. Implemented by *main.Hub without importing
// package main, so httpapi stays decoupled from relay internals.
type SessionLister interface {
	SessionCount() int
	SessionIDs() []uint16
}

// Server is the Echo application backing the ops surface.
type Server struct {
	echo     *echo.Echo
	sessions SessionLister
}

// New constructs an Echo app with the /healthz and /api/state routes.
func New(sessions SessionLister) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, sessions: sessions}
	s.registerRoutes()
	return s
}

// requestLogger returns Echo middleware that logs each HTTP request via slog,
// tagging it with a per-request correlation id so a single request's log
// lines can be grepped out of an otherwise interleaved relay log.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := uuid.NewString()
			c.Set("request_id", reqID)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			slog.Debug("http request",
				"request_id", reqID,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down ops http server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.sessions.SessionCount(),
	})
}

type stateResponse struct {
	Sessions []uint16 `json:"sessions"`
}

func (s *Server) handleState(c echo.Context) error {
	ids := s.sessions.SessionIDs()
	if ids == nil {
		ids = []uint16{}
	}
	return c.JSON(http.StatusOK, stateResponse{Sessions: ids})
}

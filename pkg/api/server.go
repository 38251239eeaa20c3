// Package api exposes a small read-only HTTP API over the task registry and
// the persisted health history.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"k8s.io/klog/v2"

	"github.com/pipewatch/task-health-monitor/pkg/notify"
	"github.com/pipewatch/task-health-monitor/pkg/store"
	"github.com/pipewatch/task-health-monitor/pkg/task"
)

// Server handles HTTP requests for monitor status.
type Server struct {
	registry *task.Registry
	store    store.Store
	engine   *notify.Engine
	echo     *echo.Echo
}

// NewServer creates the API server.
func NewServer(registry *task.Registry, st store.Store, engine *notify.Engine) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		registry: registry,
		store:    st,
		engine:   engine,
		echo:     e,
	}
	s.registerRoutes(e)
	return s
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", s.Healthz)

	v1 := e.Group("/api/v1")
	v1.GET("/tasks", s.ListTasks)
	v1.GET("/status", s.Status)
	v1.GET("/tasks/:name/status", s.TaskStatus)
	v1.GET("/tasks/:name/history", s.TaskHistory)
	v1.GET("/reports/latest", s.LatestReports)
}

// Run serves on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		klog.InfoS("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

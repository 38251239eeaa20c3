package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pipewatch/task-health-monitor/pkg/store"
)

const defaultHistoryLimit = 20

type taskInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description,omitempty"`
	Checks      []string `json:"checks"`
}

// Healthz handles GET /healthz.
func (s *Server) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListTasks handles GET /api/v1/tasks.
func (s *Server) ListTasks(c echo.Context) error {
	tasks := s.registry.All()
	out := make([]taskInfo, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskInfo{
			Name:        t.Name(),
			DisplayName: t.DisplayName(),
			Description: t.Description(),
			Checks:      t.CheckNames(),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Status handles GET /api/v1/status: runs every task's checks on demand.
func (s *Server) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.RunAll(c.Request().Context()))
}

// TaskStatus handles GET /api/v1/tasks/:name/status.
func (s *Server) TaskStatus(c echo.Context) error {
	t := s.registry.Get(c.Param("name"))
	if t == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}
	return c.JSON(http.StatusOK, t.RunHealthChecks(c.Request().Context()))
}

// TaskHistory handles GET /api/v1/tasks/:name/history?limit=N.
func (s *Server) TaskHistory(c echo.Context) error {
	name := c.Param("name")
	if s.registry.Get(name) == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}

	logs, err := s.store.RecentHealthLogs(c.Request().Context(), name, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
	}
	if logs == nil {
		logs = []store.HealthLogRecord{}
	}
	return c.JSON(http.StatusOK, logs)
}

// LatestReports handles GET /api/v1/reports/latest: the cached reports from
// the engine's most recent polling cycle.
func (s *Server) LatestReports(c echo.Context) error {
	reports := s.engine.LastReports()
	if reports == nil {
		return c.JSON(http.StatusOK, []any{})
	}
	return c.JSON(http.StatusOK, reports)
}

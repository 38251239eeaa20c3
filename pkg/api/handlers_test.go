package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
	"github.com/pipewatch/task-health-monitor/pkg/notify"
	"github.com/pipewatch/task-health-monitor/pkg/store"
	"github.com/pipewatch/task-health-monitor/pkg/task"
)

type staticCheck struct {
	name   string
	status check.Status
}

func (c staticCheck) Name() string { return c.name }

func (c staticCheck) Run(_ context.Context) (check.Result, error) {
	return check.Result{Name: c.name, Status: c.status, Message: string(c.status)}, nil
}

type stubStore struct {
	store.Store

	logs    []store.HealthLogRecord
	logsErr error
}

func (s *stubStore) RecentHealthLogs(_ context.Context, taskName string, limit int) ([]store.HealthLogRecord, error) {
	if s.logsErr != nil {
		return nil, s.logsErr
	}
	if limit < len(s.logs) {
		return s.logs[:limit], nil
	}
	return s.logs, nil
}

func (s *stubStore) AppendHealthLog(_ context.Context, rec store.HealthLogRecord) error {
	s.logs = append(s.logs, rec)
	return nil
}

func (s *stubStore) ListEnabledSubscribers(_ context.Context, _ string) ([]int64, error) {
	return nil, nil
}

func newTestServer(st *stubStore) *Server {
	registry := task.NewRegistry()
	registry.Register(task.New("docs-pipeline", "Docs Pipeline", "Docs build",
		[]check.Check{staticCheck{name: "site", status: check.StatusOK}}))
	registry.Register(task.New("gpu-node", "GPU Node", "",
		[]check.Check{staticCheck{name: "gpu", status: check.StatusCritical}}))

	engine := notify.New(registry, st, nil, config.MonitorConfig{
		Interval: config.Duration(time.Minute),
		Cooldown: config.Duration(time.Minute),
	})
	return NewServer(registry, st, engine)
}

func doRequest(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	g := NewWithT(t)

	rec := doRequest(newTestServer(&stubStore{}), "/healthz")

	g.Expect(rec.Code).To(Equal(http.StatusOK))
	g.Expect(rec.Body.String()).To(ContainSubstring(`"ok"`))
}

func TestListTasks(t *testing.T) {
	g := NewWithT(t)

	rec := doRequest(newTestServer(&stubStore{}), "/api/v1/tasks")

	g.Expect(rec.Code).To(Equal(http.StatusOK))
	var tasks []map[string]any
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &tasks)).To(Succeed())
	g.Expect(tasks).To(HaveLen(2))
	g.Expect(tasks[0]["name"]).To(Equal("docs-pipeline"))
	g.Expect(tasks[0]["checks"]).To(Equal([]any{"site"}))
	g.Expect(tasks[1]["name"]).To(Equal("gpu-node"))
}

func TestStatus(t *testing.T) {
	g := NewWithT(t)

	rec := doRequest(newTestServer(&stubStore{}), "/api/v1/status")

	g.Expect(rec.Code).To(Equal(http.StatusOK))
	var reports []map[string]any
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &reports)).To(Succeed())
	g.Expect(reports).To(HaveLen(2))
	g.Expect(reports[0]["healthy"]).To(Equal(true))
	g.Expect(reports[1]["healthy"]).To(Equal(false))
	g.Expect(reports[1]["summary"]).To(ContainSubstring("1 check(s) failed"))
}

func TestTaskStatus(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(&stubStore{})

	rec := doRequest(s, "/api/v1/tasks/docs-pipeline/status")
	g.Expect(rec.Code).To(Equal(http.StatusOK))
	var report map[string]any
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &report)).To(Succeed())
	g.Expect(report["taskName"]).To(Equal("docs-pipeline"))

	rec = doRequest(s, "/api/v1/tasks/nope/status")
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	g.Expect(rec.Body.String()).To(ContainSubstring("task not found"))
}

func TestTaskHistory(t *testing.T) {
	g := NewWithT(t)
	st := &stubStore{logs: []store.HealthLogRecord{
		{TaskName: "docs-pipeline", CheckName: "site", Status: "ok"},
		{TaskName: "docs-pipeline", CheckName: "site", Status: "critical"},
	}}
	s := newTestServer(st)

	rec := doRequest(s, "/api/v1/tasks/docs-pipeline/history")
	g.Expect(rec.Code).To(Equal(http.StatusOK))
	var logs []map[string]any
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &logs)).To(Succeed())
	g.Expect(logs).To(HaveLen(2))

	rec = doRequest(s, "/api/v1/tasks/docs-pipeline/history?limit=1")
	g.Expect(rec.Code).To(Equal(http.StatusOK))
	logs = nil
	g.Expect(json.Unmarshal(rec.Body.Bytes(), &logs)).To(Succeed())
	g.Expect(logs).To(HaveLen(1))

	rec = doRequest(s, "/api/v1/tasks/docs-pipeline/history?limit=abc")
	g.Expect(rec.Code).To(Equal(http.StatusBadRequest))

	rec = doRequest(s, "/api/v1/tasks/docs-pipeline/history?limit=-1")
	g.Expect(rec.Code).To(Equal(http.StatusBadRequest))

	rec = doRequest(s, "/api/v1/tasks/nope/history")
	g.Expect(rec.Code).To(Equal(http.StatusNotFound))
}

func TestTaskHistory_EmptyIsJSONArray(t *testing.T) {
	g := NewWithT(t)

	rec := doRequest(newTestServer(&stubStore{}), "/api/v1/tasks/docs-pipeline/history")

	g.Expect(rec.Code).To(Equal(http.StatusOK))
	g.Expect(rec.Body.String()).To(MatchJSON("[]"))
}

func TestLatestReports(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(&stubStore{})

	// No cycle has run yet.
	rec := doRequest(s, "/api/v1/reports/latest")
	g.Expect(rec.Code).To(Equal(http.StatusOK))
	g.Expect(rec.Body.String()).To(MatchJSON("[]"))
}

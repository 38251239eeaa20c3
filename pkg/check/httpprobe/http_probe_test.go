package httpprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

func buildProbe(t *testing.T, url string, timeout time.Duration, expectedStatus int) check.Check {
	t.Helper()
	cfg := &config.CheckConfig{
		Name:    "api",
		Type:    config.CheckTypeHTTP,
		Timeout: config.Duration(timeout),
		HTTPConfig: &config.HTTPConfig{
			URL:            url,
			ExpectedStatus: expectedStatus,
		},
	}
	probe, err := Build(cfg)
	if err != nil {
		t.Fatalf("failed to build probe: %v", err)
	}
	return probe
}

func TestRun_ExpectedStatus(t *testing.T) {
	g := NewWithT(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	probe := buildProbe(t, srv.URL, 5*time.Second, 0)
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusOK))
	g.Expect(result.Message).To(ContainSubstring("200 OK"))
	g.Expect(result.ResponseTimeMS).To(BeNumerically(">", 0))
	g.Expect(result.Details["body_preview"]).To(Equal("hello"))
}

func TestRun_UnexpectedStatus(t *testing.T) {
	g := NewWithT(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	probe := buildProbe(t, srv.URL, 5*time.Second, 0)
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusCritical))
	g.Expect(result.Message).To(ContainSubstring("HTTP 503"))
}

func TestRun_NonDefaultExpectedStatus(t *testing.T) {
	g := NewWithT(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	probe := buildProbe(t, srv.URL, 5*time.Second, http.StatusNoContent)
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusOK))
}

func TestRun_ConnectionError(t *testing.T) {
	g := NewWithT(t)
	// Grab a port nobody is listening on.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	probe := buildProbe(t, url, 2*time.Second, 0)
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusCritical))
	g.Expect(result.Message).To(ContainSubstring("Connection error"))
}

func TestRun_Timeout(t *testing.T) {
	g := NewWithT(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	probe := buildProbe(t, srv.URL, 50*time.Millisecond, 0)
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusCritical))
	g.Expect(result.Message).To(ContainSubstring("Timeout"))
}

func TestBuild_RequiresURL(t *testing.T) {
	g := NewWithT(t)
	_, err := Build(&config.CheckConfig{Name: "api", Type: config.CheckTypeHTTP})
	g.Expect(err).To(HaveOccurred())
}

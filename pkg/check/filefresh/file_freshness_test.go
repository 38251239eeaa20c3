package filefresh

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

func buildProbe(t *testing.T, path string, maxAge time.Duration) check.Check {
	t.Helper()
	cfg := &config.CheckConfig{
		Name: "lock",
		Type: config.CheckTypeFile,
		FileConfig: &config.FileConfig{
			Path:   path,
			MaxAge: config.Duration(maxAge),
		},
	}
	probe, err := Build(cfg)
	if err != nil {
		t.Fatalf("failed to build probe: %v", err)
	}
	return probe
}

func TestRun_MissingFileIsNotRunning(t *testing.T) {
	g := NewWithT(t)
	probe := buildProbe(t, filepath.Join(t.TempDir(), "absent.lock"), time.Hour)

	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusOK))
	g.Expect(result.Message).To(ContainSubstring("Not running"))
	g.Expect(result.Details["exists"]).To(Equal(false))
}

func TestRun_FreshFileIsRunning(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "fresh.lock")
	g.Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())

	probe := buildProbe(t, path, time.Hour)
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusOK))
	g.Expect(result.Message).To(ContainSubstring("Running"))
	g.Expect(result.Details["stale"]).To(Equal(false))
}

func TestRun_StaleFileWarns(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "stale.lock")
	g.Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())
	old := time.Now().Add(-5 * time.Hour)
	g.Expect(os.Chtimes(path, old, old)).To(Succeed())

	probe := buildProbe(t, path, 4*time.Hour)
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusWarning))
	g.Expect(result.Message).To(ContainSubstring("Stale lock"))
	g.Expect(result.Details["stale"]).To(Equal(true))
}

func TestRun_NoMaxAgeNeverStale(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "ancient.lock")
	g.Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())
	old := time.Now().Add(-100 * time.Hour)
	g.Expect(os.Chtimes(path, old, old)).To(Succeed())

	probe := buildProbe(t, path, 0)
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusOK))
}

package execprobe

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

func buildProbe(t *testing.T, command []string, timeout time.Duration, expectedExit int) check.Check {
	t.Helper()
	cfg := &config.CheckConfig{
		Name:    "cli",
		Type:    config.CheckTypeExec,
		Timeout: config.Duration(timeout),
		ExecConfig: &config.ExecConfig{
			Command:          command,
			ExpectedExitCode: expectedExit,
		},
	}
	probe, err := Build(cfg)
	if err != nil {
		t.Fatalf("failed to build probe: %v", err)
	}
	return probe
}

func TestRun_SuccessCapturesStdout(t *testing.T) {
	g := NewWithT(t)
	probe := buildProbe(t, []string{"sh", "-c", "echo claude-code 1.0.0"}, 5*time.Second, 0)

	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusOK))
	g.Expect(result.Message).To(ContainSubstring("claude-code"))
	g.Expect(result.ResponseTimeMS).To(BeNumerically(">=", 0))
}

func TestRun_EmptyOutputReportsOK(t *testing.T) {
	g := NewWithT(t)
	probe := buildProbe(t, []string{"true"}, 5*time.Second, 0)

	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusOK))
	g.Expect(result.Message).To(Equal("OK"))
}

func TestRun_ExitCodeMismatchIncludesStderr(t *testing.T) {
	g := NewWithT(t)
	probe := buildProbe(t, []string{"sh", "-c", "echo broken >&2; exit 3"}, 5*time.Second, 0)

	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusCritical))
	g.Expect(result.Message).To(ContainSubstring("Exit code 3"))
	g.Expect(result.Message).To(ContainSubstring("broken"))
}

func TestRun_ExpectedNonZeroExit(t *testing.T) {
	g := NewWithT(t)
	probe := buildProbe(t, []string{"sh", "-c", "exit 2"}, 5*time.Second, 2)

	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusOK))
}

func TestRun_MissingExecutable(t *testing.T) {
	g := NewWithT(t)
	probe := buildProbe(t, []string{"definitely-not-installed-anywhere"}, 5*time.Second, 0)

	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusCritical))
	g.Expect(result.Message).To(ContainSubstring("not found"))
}

func TestRun_Timeout(t *testing.T) {
	g := NewWithT(t)
	probe := buildProbe(t, []string{"sleep", "5"}, 100*time.Millisecond, 0)

	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusCritical))
	g.Expect(result.Message).To(ContainSubstring("Timeout"))
}

func TestBuild_RequiresCommand(t *testing.T) {
	g := NewWithT(t)
	_, err := Build(&config.CheckConfig{Name: "cli", Type: config.CheckTypeExec})
	g.Expect(err).To(HaveOccurred())
}

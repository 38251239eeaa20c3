// Package execprobe provides a check that runs a command and inspects its
// exit code.
package execprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

const (
	defaultTimeout = 30 * time.Second

	outputLimit = 200
)

// ExecProbe implements the Check interface for subprocess probes.
type ExecProbe struct {
	name             string
	command          []string
	timeout          time.Duration
	expectedExitCode int
}

func init() {
	check.RegisterBuilder(config.CheckTypeExec, Build)
}

// Build creates a new ExecProbe instance.
func Build(cfg *config.CheckConfig) (check.Check, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("check name cannot be empty")
	}
	if cfg.ExecConfig == nil || len(cfg.ExecConfig.Command) == 0 {
		return nil, fmt.Errorf("execConfig with a command is required")
	}
	p := &ExecProbe{
		name:             cfg.Name,
		command:          cfg.ExecConfig.Command,
		timeout:          cfg.Timeout.Std(),
		expectedExitCode: cfg.ExecConfig.ExpectedExitCode,
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	return p, nil
}

func (p *ExecProbe) Name() string {
	return p.name
}

// Run executes the configured command. A missing executable is a definite
// failure, not an unknown condition: the command was expected to be present.
func (p *ExecProbe) Run(ctx context.Context) (check.Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, p.command[0], p.command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	if runCtx.Err() == context.DeadlineExceeded {
		r := check.NewCriticalResult(p.name, fmt.Sprintf("Timeout after %s", p.timeout))
		r.ResponseTimeMS = elapsed
		return r, nil
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return check.NewCriticalResult(p.name, fmt.Sprintf("Command not found: %s", p.command[0])), nil
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return check.Result{}, fmt.Errorf("failed to run %q: %w", p.command[0], err)
		}
	}

	if cmd.ProcessState.ExitCode() != p.expectedExitCode {
		msg := fmt.Sprintf("Exit code %d: %s", cmd.ProcessState.ExitCode(), truncate(strings.TrimSpace(stderr.String()), outputLimit))
		r := check.NewCriticalResult(p.name, msg)
		r.ResponseTimeMS = elapsed
		return r, nil
	}

	output := truncate(strings.TrimSpace(stdout.String()), outputLimit)
	if output == "" {
		output = "OK"
	}
	r := check.NewOKResult(p.name, output)
	r.ResponseTimeMS = elapsed
	return r, nil
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

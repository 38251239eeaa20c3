// Package task groups checks into named monitored subsystems and aggregates
// their results into health reports.
package task

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

const errorMessageLimit = 100

// Task is a named, ordered set of checks defined at startup. Identity is the
// name slug; a task never changes after registration.
type Task struct {
	name        string
	displayName string
	description string
	checks      []check.Check
}

// New creates a task owning the given checks.
func New(name, displayName, description string, checks []check.Check) *Task {
	return &Task{
		name:        name,
		displayName: displayName,
		description: description,
		checks:      checks,
	}
}

// Build creates a task from its configuration, constructing every check
// through the builder registry.
func Build(cfg *config.TaskConfig) (*Task, error) {
	checks := make([]check.Check, 0, len(cfg.Checks))
	for i := range cfg.Checks {
		chk, err := check.Build(&cfg.Checks[i])
		if err != nil {
			return nil, fmt.Errorf("failed to build check %q: %w", cfg.Checks[i].Name, err)
		}
		checks = append(checks, chk)
	}
	displayName := cfg.DisplayName
	if displayName == "" {
		displayName = cfg.Name
	}
	return New(cfg.Name, displayName, cfg.Description, checks), nil
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) DisplayName() string {
	return t.displayName
}

func (t *Task) Description() string {
	return t.description
}

// CheckNames returns the configured check names in order.
func (t *Task) CheckNames() []string {
	names := make([]string, 0, len(t.checks))
	for _, c := range t.checks {
		names = append(names, c.Name())
	}
	return names
}

// RunHealthChecks runs the checks strictly in configured order, sequentially.
// A check that errors or panics is recorded as an unknown result so one
// failing probe never aborts the task's report.
func (t *Task) RunHealthChecks(ctx context.Context) Report {
	results := make([]check.Result, 0, len(t.checks))
	for _, chk := range t.checks {
		results = append(results, runOne(ctx, chk))
	}
	return NewReport(t.name, t.displayName, results)
}

func runOne(ctx context.Context, chk check.Check) (result check.Result) {
	defer func() {
		if r := recover(); r != nil {
			klog.ErrorS(nil, "Check panicked", "check", chk.Name(), "panic", r)
			result = check.NewUnknownResult(chk.Name(), truncateError(fmt.Sprintf("Error: %v", r)))
		}
	}()

	result, err := chk.Run(ctx)
	if err != nil {
		klog.ErrorS(err, "Check failed unexpectedly", "check", chk.Name())
		return check.NewUnknownResult(chk.Name(), truncateError(fmt.Sprintf("Error: %v", err)))
	}
	return result
}

func truncateError(msg string) string {
	if len(msg) > errorMessageLimit {
		return msg[:errorMessageLimit]
	}
	return msg
}

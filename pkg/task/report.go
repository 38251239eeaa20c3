package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/pipewatch/task-health-monitor/pkg/check"
)

// Report aggregates one task's check results at one point in time.
type Report struct {
	TaskName        string         `json:"taskName"`
	TaskDisplayName string         `json:"taskDisplayName"`
	Healthy         bool           `json:"healthy"`
	Checks          []check.Result `json:"checks"`
	Timestamp       time.Time      `json:"timestamp"`
	Summary         string         `json:"summary"`
}

// NewReport builds a report from check results, in the order they ran.
// Healthy and Summary are derived once here and never recomputed.
func NewReport(name, displayName string, results []check.Result) Report {
	failed := lo.Filter(results, func(r check.Result, _ int) bool { return r.Failing() })

	summary := "All systems operational"
	if len(failed) > 0 {
		names := lo.Map(failed, func(r check.Result, _ int) string { return r.Name })
		summary = fmt.Sprintf("%d check(s) failed: %s", len(failed), strings.Join(names, ", "))
	}

	return Report{
		TaskName:        name,
		TaskDisplayName: displayName,
		Healthy:         len(failed) == 0,
		Checks:          results,
		Timestamp:       time.Now().UTC(),
		Summary:         summary,
	}
}

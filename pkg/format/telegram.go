// Package format renders health reports as Telegram HTML text.
package format

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/check/gputelemetry"
	"github.com/pipewatch/task-health-monitor/pkg/store"
	"github.com/pipewatch/task-health-monitor/pkg/task"
)

var statusIcons = map[check.Status]string{
	check.StatusOK:       "✅",
	check.StatusWarning:  "⚠️",
	check.StatusCritical: "❌",
	check.StatusUnknown:  "❓",
}

func healthIcon(healthy bool) string {
	if healthy {
		return "✅"
	}
	return "❌"
}

// CheckLine renders a single check result with its response time.
func CheckLine(c check.Result) string {
	icon, ok := statusIcons[c.Status]
	if !ok {
		icon = "?"
	}
	timeStr := ""
	if c.ResponseTimeMS > 0 {
		timeStr = fmt.Sprintf(" (%.0fms)", c.ResponseTimeMS)
	}
	return fmt.Sprintf("%s <b>%s</b>%s\n    %s", icon, c.Name, timeStr, c.Message)
}

// StatusReport renders all task reports as one overview message.
func StatusReport(reports []task.Report) string {
	if len(reports) == 0 {
		return "No tasks registered."
	}

	lines := []string{"<b>Server Status</b>", strings.Repeat("─", 20)}
	for _, report := range reports {
		lines = append(lines, fmt.Sprintf("\n%s <b>%s</b>", healthIcon(report.Healthy), report.TaskDisplayName))
		for _, c := range report.Checks {
			lines = append(lines, CheckLine(c))
		}
	}
	return strings.Join(lines, "\n")
}

// TaskDetail renders one task's report with its summary and capture time.
func TaskDetail(report task.Report) string {
	lines := []string{
		fmt.Sprintf("%s <b>%s</b>", healthIcon(report.Healthy), report.TaskDisplayName),
		fmt.Sprintf("<i>%s</i>", report.Summary),
		"",
	}
	for _, c := range report.Checks {
		lines = append(lines, CheckLine(c))
	}
	lines = append(lines, fmt.Sprintf("\n<i>Checked at: %s</i>", report.Timestamp.Format("2006-01-02 15:04:05")))
	return strings.Join(lines, "\n")
}

// GPUReport renders the GPU telemetry result with per-device gauges.
func GPUReport(c check.Result) string {
	if c.Status == check.StatusUnknown {
		return fmt.Sprintf("❓ <b>GPU</b>\n%s", c.Message)
	}

	gpus, _ := c.Details["gpus"].([]gputelemetry.GPUStat)
	if len(gpus) == 0 {
		return fmt.Sprintf("<b>GPU Status</b>\n%s", c.Message)
	}

	lines := []string{"<b>GPU Status</b>", strings.Repeat("═", 20)}
	for _, g := range gpus {
		lines = append(lines,
			fmt.Sprintf("\n<b>GPU%d: %s</b>", g.Index, g.Name),
			utilLine(g),
			memoryLine(g),
			tempLine(g),
		)
	}
	return strings.Join(lines, "\n")
}

func utilLine(g gputelemetry.GPUStat) string {
	if g.Utilization == nil {
		return "  Utilization: N/A"
	}
	filled := *g.Utilization / 10
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	return fmt.Sprintf("  Utilization: %d%%  [%s]", *g.Utilization, bar)
}

func memoryLine(g gputelemetry.GPUStat) string {
	if g.MemoryUsedMB == nil || g.MemoryTotalMB == nil {
		return "  Memory:      unified (shared with CPU)"
	}
	pct := float64(*g.MemoryUsedMB) / float64(*g.MemoryTotalMB) * 100
	return fmt.Sprintf("  Memory:      %d / %d MB (%.0f%%)", *g.MemoryUsedMB, *g.MemoryTotalMB, pct)
}

func tempLine(g gputelemetry.GPUStat) string {
	if g.Temperature == nil {
		return "  Temperature: N/A"
	}
	return fmt.Sprintf("  Temperature: %d°C", *g.Temperature)
}

// Alert renders the unhealthy-transition message: every failed check plus a
// roll call of checks still OK.
func Alert(report task.Report) string {
	failed := lo.Filter(report.Checks, func(c check.Result, _ int) bool { return c.Failing() })
	ok := lo.Filter(report.Checks, func(c check.Result, _ int) bool { return c.Status == check.StatusOK })

	lines := []string{fmt.Sprintf("⚠️ <b>%s</b>", report.TaskDisplayName), ""}
	for _, c := range failed {
		lines = append(lines, fmt.Sprintf("%s <b>%s</b> — %s", statusIcons[c.Status], c.Name, c.Message))
	}
	if len(ok) > 0 {
		names := lo.Map(ok, func(c check.Result, _ int) string { return c.Name })
		lines = append(lines, fmt.Sprintf("\nRemaining checks OK: %s", strings.Join(names, ", ")))
	}
	return strings.Join(lines, "\n")
}

// Recovery renders the healthy-transition message.
func Recovery(report task.Report) string {
	return fmt.Sprintf("✅ <b>%s</b>\n\nAll systems restored.", report.TaskDisplayName)
}

// UserList renders the admin user listing.
func UserList(users []store.User) string {
	if len(users) == 0 {
		return "No users registered."
	}

	lines := []string{"<b>Users</b>", ""}
	for _, u := range users {
		name := u.FullName
		if u.Username != "" {
			name = "@" + u.Username
		}
		admin := ""
		if u.IsAdmin {
			admin = " [admin]"
		}
		lines = append(lines, fmt.Sprintf("• <code>%d</code> %s%s", u.ID, name, admin))
	}
	return strings.Join(lines, "\n")
}

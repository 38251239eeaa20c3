// Package gputelemetry provides a check that queries per-device GPU metrics
// through nvidia-smi.
package gputelemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

const (
	defaultWarningTemp = 80
	queryTimeout       = 10 * time.Second

	rawOutputLimit = 500
	errorLimit     = 200
)

var queryArgs = []string{
	"--query-gpu=index,name,utilization.gpu,memory.used,memory.total,temperature.gpu",
	"--format=csv,noheader,nounits",
}

// GPUStat holds metrics for one device. Numeric fields are pointers because
// some platforms (unified-memory architectures) report them as unavailable.
type GPUStat struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	Utilization   *int   `json:"utilization,omitempty"`
	MemoryUsedMB  *int   `json:"memoryUsedMb,omitempty"`
	MemoryTotalMB *int   `json:"memoryTotalMb,omitempty"`
	Temperature   *int   `json:"temperature,omitempty"`
}

// GPUTelemetryProbe implements the Check interface for GPU telemetry.
type GPUTelemetryProbe struct {
	name        string
	warningTemp int
	tool        string
}

func init() {
	check.RegisterBuilder(config.CheckTypeGPU, Build)
}

// Build creates a new GPUTelemetryProbe instance.
func Build(cfg *config.CheckConfig) (check.Check, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("check name cannot be empty")
	}
	p := &GPUTelemetryProbe{
		name:        cfg.Name,
		warningTemp: defaultWarningTemp,
		tool:        "nvidia-smi",
	}
	if cfg.GPUConfig != nil && cfg.GPUConfig.WarningTemp > 0 {
		p.warningTemp = cfg.GPUConfig.WarningTemp
	}
	return p, nil
}

func (p *GPUTelemetryProbe) Name() string {
	return p.name
}

// Run queries the GPU tool and derives status from temperature alone.
// Utilization is informational: sustained high utilization is expected and
// normal for compute-serving hardware.
func (p *GPUTelemetryProbe) Run(ctx context.Context) (check.Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, p.tool, queryArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		return check.NewUnknownResult(p.name, fmt.Sprintf("%s not found", p.tool)), nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return check.NewCriticalResult(p.name, fmt.Sprintf("%s timeout", p.tool)), nil
	}
	if err != nil {
		// Some platforms reject the structured query; fall back to the
		// plain tool output.
		return p.fallback(ctx, strings.TrimSpace(stderr.String())), nil
	}

	gpus := ParseRows(stdout.String())
	if len(gpus) == 0 {
		return check.NewUnknownResult(p.name, "No GPU data parsed"), nil
	}

	result := check.Result{
		Name:    p.name,
		Status:  p.statusFromTemps(gpus),
		Message: formatLines(gpus),
		Details: map[string]any{"gpus": gpus},
	}
	return result, nil
}

// fallback runs the tool without the structured query and surfaces a
// truncated raw text blob if that succeeds.
func (p *GPUTelemetryProbe) fallback(ctx context.Context, errMsg string) check.Result {
	runCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, p.tool).Output()
	if err != nil {
		klog.ErrorS(err, "GPU fallback query failed", "check", p.name)
		return check.NewCriticalResult(p.name, fmt.Sprintf("%s error: %s", p.tool, truncate(errMsg, errorLimit)))
	}

	r := check.NewOKResult(p.name, truncate(strings.TrimSpace(string(out)), rawOutputLimit))
	r.Details = map[string]any{"fallback": true}
	return r
}

// ParseRows parses comma-separated nvidia-smi rows. Rows with fewer than six
// fields or an unparsable index are skipped; other unparsable numeric fields
// are reported as unavailable instead of failing the row.
func ParseRows(out string) []GPUStat {
	var gpus []GPUStat
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		index, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		gpus = append(gpus, GPUStat{
			Index:         index,
			Name:          parts[1],
			Utilization:   parseField(parts[2]),
			MemoryUsedMB:  parseField(parts[3]),
			MemoryTotalMB: parseField(parts[4]),
			Temperature:   parseField(parts[5]),
		})
	}
	return gpus
}

func parseField(s string) *int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// statusFromTemps derives status from the hottest device. Devices without a
// temperature reading do not contribute.
func (p *GPUTelemetryProbe) statusFromTemps(gpus []GPUStat) check.Status {
	maxTemp := -1
	for _, g := range gpus {
		if g.Temperature != nil && *g.Temperature > maxTemp {
			maxTemp = *g.Temperature
		}
	}
	switch {
	case maxTemp > p.warningTemp+10:
		return check.StatusCritical
	case maxTemp > p.warningTemp:
		return check.StatusWarning
	default:
		return check.StatusOK
	}
}

func formatLines(gpus []GPUStat) string {
	lines := make([]string, 0, len(gpus))
	for _, g := range gpus {
		lines = append(lines, fmt.Sprintf("GPU%d: %s | %s | %s",
			g.Index, formatUtil(g), formatMemory(g), formatTemp(g)))
	}
	return strings.Join(lines, "\n")
}

func formatUtil(g GPUStat) string {
	if g.Utilization == nil {
		return "util N/A"
	}
	return fmt.Sprintf("%d%%", *g.Utilization)
}

func formatMemory(g GPUStat) string {
	if g.MemoryUsedMB == nil || g.MemoryTotalMB == nil || *g.MemoryTotalMB == 0 {
		return "mem N/A"
	}
	pct := float64(*g.MemoryUsedMB) / float64(*g.MemoryTotalMB) * 100
	return fmt.Sprintf("%d/%dMB (%.0f%%)", *g.MemoryUsedMB, *g.MemoryTotalMB, pct)
}

func formatTemp(g GPUStat) string {
	if g.Temperature == nil {
		return "temp N/A"
	}
	return fmt.Sprintf("%d°C", *g.Temperature)
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

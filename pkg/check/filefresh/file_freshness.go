// Package filefresh provides a check that inspects existence and freshness of
// a lock file. Pipelines touch the lock while running, so an absent file
// means "not running" rather than an error.
package filefresh

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

// FileFreshnessProbe implements the Check interface for lock-file probes.
type FileFreshnessProbe struct {
	name   string
	path   string
	maxAge time.Duration
}

func init() {
	check.RegisterBuilder(config.CheckTypeFile, Build)
}

// Build creates a new FileFreshnessProbe instance.
func Build(cfg *config.CheckConfig) (check.Check, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("check name cannot be empty")
	}
	if cfg.FileConfig == nil || cfg.FileConfig.Path == "" {
		return nil, fmt.Errorf("fileConfig with a path is required")
	}
	return &FileFreshnessProbe{
		name:   cfg.Name,
		path:   cfg.FileConfig.Path,
		maxAge: cfg.FileConfig.MaxAge.Std(),
	}, nil
}

func (p *FileFreshnessProbe) Name() string {
	return p.name
}

// Run stats the lock file. A file older than maxAge is reported as stale;
// maxAge of zero means any age is fresh.
func (p *FileFreshnessProbe) Run(_ context.Context) (check.Result, error) {
	info, err := os.Stat(p.path)
	if os.IsNotExist(err) {
		r := check.NewOKResult(p.name, "Not running (no lock file)")
		r.Details = map[string]any{"exists": false}
		return r, nil
	}
	if err != nil {
		return check.Result{}, fmt.Errorf("failed to stat %q: %w", p.path, err)
	}

	age := time.Since(info.ModTime())
	if p.maxAge > 0 && age > p.maxAge {
		r := check.NewWarningResult(p.name, fmt.Sprintf("Stale lock (%.1fh old)", age.Hours()))
		r.Details = map[string]any{"exists": true, "age_seconds": age.Seconds(), "stale": true}
		return r, nil
	}

	r := check.NewOKResult(p.name, fmt.Sprintf("Running (lock %.0fm old)", age.Minutes()))
	r.Details = map[string]any{"exists": true, "age_seconds": age.Seconds(), "stale": false}
	return r, nil
}

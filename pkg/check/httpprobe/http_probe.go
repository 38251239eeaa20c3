// Package httpprobe provides a check that probes an HTTP endpoint.
package httpprobe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultExpectedStatus = http.StatusOK

	bodyPreviewLimit = 200
)

// HTTPProbe implements the Check interface for HTTP endpoint probes.
type HTTPProbe struct {
	name           string
	url            string
	timeout        time.Duration
	expectedStatus int
	client         *http.Client
}

func init() {
	check.RegisterBuilder(config.CheckTypeHTTP, Build)
}

// Build creates a new HTTPProbe instance.
func Build(cfg *config.CheckConfig) (check.Check, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("check name cannot be empty")
	}
	if cfg.HTTPConfig == nil || cfg.HTTPConfig.URL == "" {
		return nil, fmt.Errorf("httpConfig with a url is required")
	}
	p := &HTTPProbe{
		name:           cfg.Name,
		url:            cfg.HTTPConfig.URL,
		timeout:        cfg.Timeout.Std(),
		expectedStatus: cfg.HTTPConfig.ExpectedStatus,
		client:         &http.Client{},
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	if p.expectedStatus == 0 {
		p.expectedStatus = defaultExpectedStatus
	}
	return p, nil
}

func (p *HTTPProbe) Name() string {
	return p.name
}

// Run issues a GET request and compares the response status against the
// expected one. Connection errors and timeouts report critical.
func (p *HTTPProbe) Run(ctx context.Context) (check.Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.url, nil)
	if err != nil {
		return check.Result{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return timedResult(check.NewCriticalResult(p.name, fmt.Sprintf("Timeout after %s", p.timeout)), elapsed), nil
		}
		return timedResult(check.NewCriticalResult(p.name, fmt.Sprintf("Connection error: %v", err)), elapsed), nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, bodyPreviewLimit))

	if resp.StatusCode != p.expectedStatus {
		klog.V(2).InfoS("Unexpected HTTP status", "check", p.name, "url", p.url, "status", resp.StatusCode)
		return timedResult(check.NewCriticalResult(p.name, fmt.Sprintf("HTTP %d (%.0fms)", resp.StatusCode, elapsed)), elapsed), nil
	}

	result := check.NewOKResult(p.name, fmt.Sprintf("%d OK (%.0fms)", resp.StatusCode, elapsed))
	result.Details = map[string]any{"body_preview": string(body)}
	return timedResult(result, elapsed), nil
}

func timedResult(r check.Result, elapsedMS float64) check.Result {
	r.ResponseTimeMS = elapsedMS
	return r
}

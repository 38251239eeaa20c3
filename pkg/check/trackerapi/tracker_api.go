// Package trackerapi provides a check that probes an issue-tracker REST API
// with an authenticated identity check followed by an active-issue count.
package trackerapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pipewatch/task-health-monitor/pkg/check"
	"github.com/pipewatch/task-health-monitor/pkg/config"
)

const (
	defaultTimeout = 15 * time.Second
	defaultProject = "DOCS"
)

// TrackerAPIProbe implements the Check interface for issue-tracker probes.
type TrackerAPIProbe struct {
	name     string
	baseURL  string
	email    string
	apiToken string
	project  string
	timeout  time.Duration
	client   *http.Client
}

func init() {
	check.RegisterBuilder(config.CheckTypeTracker, Build)
}

// Build creates a new TrackerAPIProbe instance. Missing credentials are not
// an error: the probe reports unknown without touching the network.
func Build(cfg *config.CheckConfig) (check.Check, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("check name cannot be empty")
	}
	p := &TrackerAPIProbe{
		name:    cfg.Name,
		timeout: cfg.Timeout.Std(),
		project: defaultProject,
		client:  &http.Client{},
	}
	if cfg.TrackerConfig != nil {
		p.baseURL = strings.TrimSuffix(cfg.TrackerConfig.BaseURL, "/")
		p.email = cfg.TrackerConfig.Email
		p.apiToken = cfg.TrackerConfig.APIToken
		if cfg.TrackerConfig.Project != "" {
			p.project = cfg.TrackerConfig.Project
		}
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	return p, nil
}

func (p *TrackerAPIProbe) Name() string {
	return p.name
}

// Run verifies credentials against the identity endpoint and then counts
// active issues. A failing count alone still reports OK since the service is
// reachable.
func (p *TrackerAPIProbe) Run(ctx context.Context) (check.Result, error) {
	if p.baseURL == "" || p.apiToken == "" {
		return check.NewUnknownResult(p.name, "Tracker not configured"), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.get(runCtx, p.baseURL+"/rest/api/3/myself")
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		return p.connectionError(err, elapsed), nil
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r := check.NewCriticalResult(p.name, fmt.Sprintf("Auth failed: HTTP %d", resp.StatusCode))
		r.ResponseTimeMS = elapsed
		return r, nil
	}

	query := url.Values{
		"jql":        {fmt.Sprintf("project=%s AND status != Done", p.project)},
		"maxResults": {"0"},
	}
	resp, err = p.get(runCtx, p.baseURL+"/rest/api/3/search?"+query.Encode())
	if err != nil {
		return p.connectionError(err, elapsed), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var payload struct {
			Total int `json:"total"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			r := check.NewOKResult(p.name, fmt.Sprintf("OK (%.0fms) | %d active tasks", elapsed, payload.Total))
			r.ResponseTimeMS = elapsed
			r.Details = map[string]any{"active_tasks": payload.Total}
			return r, nil
		}
	}

	r := check.NewOKResult(p.name, fmt.Sprintf("OK (%.0fms) | task count unavailable", elapsed))
	r.ResponseTimeMS = elapsed
	return r, nil
}

func (p *TrackerAPIProbe) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	creds := base64.StdEncoding.EncodeToString([]byte(p.email + ":" + p.apiToken))
	req.Header.Set("Authorization", "Basic "+creds)
	req.Header.Set("Accept", "application/json")
	return p.client.Do(req)
}

func (p *TrackerAPIProbe) connectionError(err error, elapsedMS float64) check.Result {
	msg := fmt.Sprintf("Connection error: %v", err)
	if errors.Is(err, context.DeadlineExceeded) {
		msg = fmt.Sprintf("Timeout after %s", p.timeout)
	}
	r := check.NewCriticalResult(p.name, msg)
	r.ResponseTimeMS = elapsedMS
	return r
}

// Package config loads and validates the monitor configuration.
package config

import (
	"fmt"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// CheckType identifies a probe implementation.
type CheckType string

const (
	// CheckTypeHTTP probes an HTTP endpoint with a GET request.
	CheckTypeHTTP CheckType = "http"
	// CheckTypeExec runs a command and inspects its exit code.
	CheckTypeExec CheckType = "exec"
	// CheckTypeFile inspects existence and freshness of a lock file.
	CheckTypeFile CheckType = "file"
	// CheckTypeGPU queries GPU telemetry via nvidia-smi.
	CheckTypeGPU CheckType = "gpu"
	// CheckTypeTracker probes an issue-tracker REST API.
	CheckTypeTracker CheckType = "tracker"
)

// Duration wraps time.Duration so values like "30s" parse from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root monitor configuration.
type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tasks    []TaskConfig   `yaml:"tasks"`
}

// MonitorConfig controls the polling loop.
type MonitorConfig struct {
	// Interval is the fixed delay between polling cycles.
	Interval Duration `yaml:"interval"`
	// Cooldown is the minimum time between two notifications to the same
	// subscriber for the same task.
	Cooldown Duration `yaml:"cooldown"`
	// WarmupDelay is waited once before the first cycle.
	WarmupDelay Duration `yaml:"warmupDelay"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// TelegramConfig configures the chat transport. An empty token disables the
// bot; the engine still runs and persists results.
type TelegramConfig struct {
	Token   string `yaml:"token"`
	AdminID int64  `yaml:"adminId"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// TaskConfig describes one monitored subsystem and its checks.
type TaskConfig struct {
	Name        string        `yaml:"name"`
	DisplayName string        `yaml:"displayName"`
	Description string        `yaml:"description"`
	Checks      []CheckConfig `yaml:"checks"`
}

// CheckConfig describes a single probe. Exactly one typed section matching
// Type must be present.
type CheckConfig struct {
	Name    string    `yaml:"name"`
	Type    CheckType `yaml:"type"`
	Timeout Duration  `yaml:"timeout"`

	HTTPConfig    *HTTPConfig    `yaml:"httpConfig,omitempty"`
	ExecConfig    *ExecConfig    `yaml:"execConfig,omitempty"`
	FileConfig    *FileConfig    `yaml:"fileConfig,omitempty"`
	GPUConfig     *GPUConfig     `yaml:"gpuConfig,omitempty"`
	TrackerConfig *TrackerConfig `yaml:"trackerConfig,omitempty"`
}

// HTTPConfig configures an HTTP probe.
type HTTPConfig struct {
	URL            string `yaml:"url"`
	ExpectedStatus int    `yaml:"expectedStatus"`
}

// ExecConfig configures a subprocess probe.
type ExecConfig struct {
	Command          []string `yaml:"command"`
	ExpectedExitCode int      `yaml:"expectedExitCode"`
}

// FileConfig configures a lock-file freshness probe.
type FileConfig struct {
	Path string `yaml:"path"`
	// MaxAge of zero means any age is considered fresh.
	MaxAge Duration `yaml:"maxAge"`
}

// GPUConfig configures the GPU telemetry probe.
type GPUConfig struct {
	// WarningTemp is the temperature in Celsius above which the probe
	// reports a warning; WarningTemp+10 is the critical threshold.
	WarningTemp int `yaml:"warningTemp"`
}

// TrackerConfig configures the issue-tracker REST probe. Missing credentials
// disable the probe (it reports unknown) rather than erroring.
type TrackerConfig struct {
	BaseURL  string `yaml:"baseUrl"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"apiToken"`
	Project  string `yaml:"project"`
}

const (
	defaultInterval    = 60 * time.Second
	defaultCooldown    = 5 * time.Minute
	defaultWarmupDelay = 5 * time.Second
)

func (c *Config) applyDefaults() {
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = Duration(defaultInterval)
	}
	if c.Monitor.Cooldown == 0 {
		c.Monitor.Cooldown = Duration(defaultCooldown)
	}
	if c.Monitor.WarmupDelay == 0 {
		c.Monitor.WarmupDelay = Duration(defaultWarmupDelay)
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "data/monitor.db"
	}
}

func (c *Config) validate() error {
	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}
	if len(c.Tasks) == 0 {
		return fmt.Errorf("at least one task must be configured")
	}
	for i := range c.Tasks {
		if err := c.Tasks[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *TaskConfig) validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if len(t.Checks) == 0 {
		return fmt.Errorf("task %q has no checks", t.Name)
	}
	for i := range t.Checks {
		if err := t.Checks[i].validate(); err != nil {
			return fmt.Errorf("task %q: %w", t.Name, err)
		}
	}
	return nil
}

func (c *CheckConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("check name cannot be empty")
	}
	switch c.Type {
	case CheckTypeHTTP:
		if c.HTTPConfig == nil || c.HTTPConfig.URL == "" {
			return fmt.Errorf("check %q: httpConfig with a url is required", c.Name)
		}
	case CheckTypeExec:
		if c.ExecConfig == nil || len(c.ExecConfig.Command) == 0 {
			return fmt.Errorf("check %q: execConfig with a command is required", c.Name)
		}
	case CheckTypeFile:
		if c.FileConfig == nil || c.FileConfig.Path == "" {
			return fmt.Errorf("check %q: fileConfig with a path is required", c.Name)
		}
	case CheckTypeGPU:
		// gpuConfig is optional; thresholds have defaults.
	case CheckTypeTracker:
		// trackerConfig may be absent or incomplete; the probe reports
		// unknown when not configured.
	default:
		return fmt.Errorf("check %q: unrecognized type %q", c.Name, c.Type)
	}
	return nil
}

package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// ParseFromFile reads the configuration from a YAML file.
func ParseFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	return ParseFromYAML(data)
}

// ParseFromYAML parses and validates the configuration. Secrets omitted from
// the file are filled in from the environment.
func ParseFromYAML(cfgData []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnv overlays credentials from environment variables so they can live
// in a .env file instead of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TRACKER_API_TOKEN"); v != "" {
		for i := range c.Tasks {
			for j := range c.Tasks[i].Checks {
				if c.Tasks[i].Checks[j].Type == CheckTypeTracker && c.Tasks[i].Checks[j].TrackerConfig != nil {
					c.Tasks[i].Checks[j].TrackerConfig.APIToken = v
				}
			}
		}
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Storage.DSN = v
	}
}

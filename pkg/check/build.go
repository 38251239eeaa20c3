package check

import (
	"fmt"

	"github.com/pipewatch/task-health-monitor/pkg/config"
)

// Builder constructs a Check from its configuration.
type Builder func(cfg *config.CheckConfig) (Check, error)

var checkRegistry = make(map[config.CheckType]Builder)

// RegisterBuilder registers a builder for a check type. Probe packages call
// this from init.
func RegisterBuilder(t config.CheckType, builder Builder) {
	checkRegistry[t] = builder
}

// Build creates a new Check instance based on the provided configuration.
func Build(cfg *config.CheckConfig) (Check, error) {
	builder, ok := checkRegistry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unrecognized check type: %q", cfg.Type)
	}
	return builder(cfg)
}

// Package check defines the probe abstraction shared by all health checks.
package check

import "context"

// Status represents the outcome of running a check.
type Status string

const (
	// StatusOK indicates the check passed.
	StatusOK Status = "ok"
	// StatusWarning indicates a degraded but non-critical condition.
	StatusWarning Status = "warning"
	// StatusCritical indicates a definite failure.
	StatusCritical Status = "critical"
	// StatusUnknown indicates the check outcome could not be determined.
	// Unknown is treated as non-failing for health aggregation.
	StatusUnknown Status = "unknown"
)

// Result represents the result of running a single health check.
type Result struct {
	Name           string         `json:"name"`
	Status         Status         `json:"status"`
	Message        string         `json:"message"`
	ResponseTimeMS float64        `json:"responseTimeMs,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// Failing reports whether the result counts against task health.
func (r Result) Failing() bool {
	return r.Status == StatusWarning || r.Status == StatusCritical
}

// NewOKResult creates a passing result.
func NewOKResult(name, message string) Result {
	return Result{Name: name, Status: StatusOK, Message: message}
}

// NewWarningResult creates a warning result.
func NewWarningResult(name, message string) Result {
	return Result{Name: name, Status: StatusWarning, Message: message}
}

// NewCriticalResult creates a critical result.
func NewCriticalResult(name, message string) Result {
	return Result{Name: name, Status: StatusCritical, Message: message}
}

// NewUnknownResult creates a result for checks whose outcome could not be
// determined, e.g. a missing tool or an unconfigured probe.
func NewUnknownResult(name, message string) Result {
	return Result{Name: name, Status: StatusUnknown, Message: message}
}

// Check is a single probe against an external signal. Run converts every
// expected failure mode into a Result; a non-nil error is reserved for
// unexpected failures and is downgraded to an unknown Result at the task
// boundary.
type Check interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

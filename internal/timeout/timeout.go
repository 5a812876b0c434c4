// Package timeout holds the per-boundary timeout configuration.
package timeout

import "time"

// Config bounds every external wait in turn processing. A zero value
// disables the corresponding timeout. Health probes are bounded separately
// by the registry's own configuration.
type Config struct {
	TurnExecution  time.Duration // whole-turn budget
	PlannerCall    time.Duration // one language-model call
	CapabilityCall time.Duration // one capability invocation, covering all retry attempts
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		TurnExecution:  2 * time.Minute,
		PlannerCall:    30 * time.Second,
		CapabilityCall: 50 * time.Second,
	}
}

// NoTimeouts disables all timeouts (useful in tests).
func NoTimeouts() Config {
	return Config{}
}

// ABOUTME: Configuration errors for resampler setup
// ABOUTME: Raised when rates, ratios or block sizes cannot be reconciled
package resample

import "fmt"

// ConfigError reports an invalid or incompatible resampler configuration.
// It is a setup-time failure and aborts the pipeline before audio flows.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("resample: invalid %s: %s", e.Field, e.Reason)
}

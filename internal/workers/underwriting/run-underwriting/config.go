// internal/workers/underwriting/run-underwriting/config.go
package rununderwriting

import (
	"time"

	"loan-underwriting/internal/common/camunda"
)

type Config struct {
	Timeout time.Duration
	// PersistInline stores transactions passed inline in the job variables
	// before underwriting them.
	PersistInline bool
	CompleteRetry *camunda.RetryConfig
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       2 * time.Minute,
		PersistInline: true,
		CompleteRetry: &camunda.RetryConfig{
			MaxRetries: 2,
			BaseDelay:  200 * time.Millisecond,
			MaxDelay:   2 * time.Second,
		},
	}
}

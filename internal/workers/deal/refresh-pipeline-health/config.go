// internal/workers/deal/refresh-pipeline-health/config.go
package refreshpipelinehealth

import "time"

type Config struct {
	Timeout time.Duration
	// AtRiskThreshold marks deals whose fresh score lands strictly below it.
	AtRiskThreshold int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         60 * time.Second,
		AtRiskThreshold: 40,
	}
}

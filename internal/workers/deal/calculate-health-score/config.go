// internal/workers/deal/calculate-health-score/config.go
package calculatehealthscore

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}

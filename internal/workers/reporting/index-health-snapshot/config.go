// internal/workers/reporting/index-health-snapshot/config.go
package indexhealthsnapshot

import "time"

type Config struct {
	Timeout time.Duration
	// IndexName is the Elasticsearch index health documents land in.
	IndexName string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   15 * time.Second,
		IndexName: "deal-health",
	}
}

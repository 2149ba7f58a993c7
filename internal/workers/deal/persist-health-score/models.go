// internal/workers/deal/persist-health-score/models.go
package persisthealthscore

import "dealdesk-workers/internal/health"

type Input struct {
	DealID          string           `json:"dealId"`
	HealthScore     int              `json:"healthScore"`
	HealthBreakdown health.Breakdown `json:"healthBreakdown"`
	ComputedAt      string           `json:"computedAt,omitempty"`
}

type Output struct {
	DealID      string `json:"dealId"`
	Persisted   bool   `json:"persisted"`
	PersistedAt string `json:"persistedAt"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"dealId", "healthScore", "healthBreakdown"},
	"properties": map[string]interface{}{
		"dealId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"healthScore": map[string]interface{}{
			"type":    "integer",
			"minimum": 0,
			"maximum": 100,
		},
		"healthBreakdown": map[string]interface{}{
			"type": "object",
		},
		"computedAt": map[string]interface{}{
			"type": "string",
		},
	},
}

// InputSchema exposes the schema for registry generation.
func InputSchema() map[string]interface{} { return inputSchema }

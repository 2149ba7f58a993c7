// internal/workers/deal/calculate-health-score/models.go
package calculatehealthscore

import "dealdesk-workers/internal/health"

type Input struct {
	DealID string `json:"dealId"`
	// Snapshot may be supplied inline by the process (e.g. right after an
	// edit, before the write lands); otherwise it is assembled from storage.
	Snapshot         *health.Snapshot `json:"snapshot,omitempty"`
	ComparisonValues []float64        `json:"comparisonValues,omitempty"`
	// EvaluatedAt pins "now" (RFC3339). Empty means wall clock at execution.
	EvaluatedAt string `json:"evaluatedAt,omitempty"`
}

type Output struct {
	DealID          string           `json:"dealId"`
	HealthScore     int              `json:"healthScore"`
	HealthBreakdown health.Breakdown `json:"healthBreakdown"`
	HealthDebug     health.Debug     `json:"healthDebug"`
	ComputedAt      string           `json:"computedAt"`
}

// inputSchema is registered in the activity registry and enforced before the
// payload is unmarshalled.
var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"dealId"},
	"properties": map[string]interface{}{
		"dealId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"snapshot": map[string]interface{}{
			"type": "object",
		},
		"comparisonValues": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "number"},
		},
		"evaluatedAt": map[string]interface{}{
			"type": "string",
		},
	},
}

// InputSchema exposes the schema for registry generation.
func InputSchema() map[string]interface{} { return inputSchema }

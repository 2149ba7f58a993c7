// internal/workers/reporting/index-health-snapshot/models.go
package indexhealthsnapshot

import "dealdesk-workers/internal/health"

type Input struct {
	DealID          string            `json:"dealId"`
	HealthScore     int               `json:"healthScore"`
	HealthBreakdown *health.Breakdown `json:"healthBreakdown,omitempty"`
	StageName       string            `json:"stageName,omitempty"`
	ValueAmount     float64           `json:"valueAmount,omitempty"`
	ComputedAt      string            `json:"computedAt,omitempty"`
}

type Output struct {
	DealID     string `json:"dealId"`
	IndexName  string `json:"indexName"`
	DocumentID string `json:"documentId"`
	IndexedAt  string `json:"indexedAt"`
}

// healthDocument is the shape stored in Elasticsearch. Flattened factor fields
// keep the index aggregation-friendly.
type healthDocument struct {
	DealID             string  `json:"dealId"`
	HealthScore        int     `json:"healthScore"`
	StageProbability   int     `json:"stageProbability"`
	Velocity           int     `json:"velocity"`
	ActivityRecency    int     `json:"activityRecency"`
	CloseDateIntegrity int     `json:"closeDateIntegrity"`
	ACV                int     `json:"acv"`
	NotesSignal        int     `json:"notesSignal"`
	StageName          string  `json:"stageName,omitempty"`
	ValueAmount        float64 `json:"valueAmount,omitempty"`
	ComputedAt         string  `json:"computedAt"`
	IndexedAt          string  `json:"indexedAt"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"dealId", "healthScore"},
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
		"stageName": map[string]interface{}{
			"type": "string",
		},
		"valueAmount": map[string]interface{}{
			"type": "number",
		},
		"computedAt": map[string]interface{}{
			"type": "string",
		},
	},
}

// InputSchema exposes the schema for registry generation.
func InputSchema() map[string]interface{} { return inputSchema }

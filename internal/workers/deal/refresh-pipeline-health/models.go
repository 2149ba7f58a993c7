// internal/workers/deal/refresh-pipeline-health/models.go
package refreshpipelinehealth

type Input struct {
	// StageName restricts the sweep to one pipeline stage; empty means all deals.
	StageName string `json:"stageName,omitempty"`
	// EvaluatedAt pins "now" (RFC3339) for the whole sweep so every deal is
	// scored against the same reference date.
	EvaluatedAt string `json:"evaluatedAt,omitempty"`
}

type Output struct {
	DealsScored int      `json:"dealsScored"`
	DealsFailed int      `json:"dealsFailed"`
	AtRiskDeals []string `json:"atRiskDeals"`
	EvaluatedAt string   `json:"evaluatedAt"`
	DurationMs  int64    `json:"durationMs"`
}

var inputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"stageName": map[string]interface{}{
			"type": "string",
		},
		"evaluatedAt": map[string]interface{}{
			"type": "string",
		},
	},
}

// InputSchema exposes the schema for registry generation.
func InputSchema() map[string]interface{} { return inputSchema }

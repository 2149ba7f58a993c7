// internal/workers/communication/notify-at-risk-deal/models.go
package notifyatriskdeal

type Input struct {
	DealID      string `json:"dealId"`
	DealName    string `json:"dealName,omitempty"`
	HealthScore int    `json:"healthScore"`
	StageName   string `json:"stageName,omitempty"`
	// Priority "high" additionally sends an SMS when a phone number exists.
	Priority string `json:"priority,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	DealID         string `json:"dealId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"` // ISO 8601
}

const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"dealId", "healthScore"},
	"properties": map[string]interface{}{
		"dealId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"dealName": map[string]interface{}{
			"type": "string",
		},
		"healthScore": map[string]interface{}{
			"type":    "integer",
			"minimum": 0,
			"maximum": 100,
		},
		"stageName": map[string]interface{}{
			"type": "string",
		},
		"priority": map[string]interface{}{
			"type": "string",
			"enum": []string{"high", "normal"},
		},
	},
}

// InputSchema exposes the schema for registry generation.
func InputSchema() map[string]interface{} { return inputSchema }

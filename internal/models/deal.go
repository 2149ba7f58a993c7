// internal/models/deal.go
package models

type Deal struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	AccountID      string   `json:"accountId"`
	OwnerID        string   `json:"ownerId"`
	StageID        string   `json:"stageId"`
	ValueAmount    *float64 `json:"valueAmount,omitempty"`
	CloseDate      *string  `json:"closeDate,omitempty"`
	LastActivityAt *string  `json:"lastActivityAt,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
	HealthScore    *int     `json:"healthScore,omitempty"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

type PipelineStage struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Position       int      `json:"position"`
	WinProbability *float64 `json:"winProbability,omitempty"`
}

type ActivityNote struct {
	ID        string `json:"id"`
	DealID    string `json:"dealId"`
	AuthorID  string `json:"authorId"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

type DealOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// internal/workers/underwriting/run-underwriting/models.go
package rununderwriting

import (
	"encoding/json"

	"loan-underwriting/internal/models"
)

// Input carries either a stored transaction id or the transaction itself.
// CompletedHumanTasks lists human tasks already signed off in the process.
type Input struct {
	TransactionID       string          `json:"transactionId"`
	Transaction         json.RawMessage `json:"transaction,omitempty"`
	CompletedHumanTasks []string        `json:"completedHumanTasks,omitempty"`
}

type Output struct {
	TransactionID  string                       `json:"transactionId"`
	RunID          string                       `json:"runId"`
	Recommendation models.Recommendation        `json:"recommendation"`
	Confidence     float64                      `json:"confidence"`
	Decision       *models.UnderwritingDecision `json:"decision"`
	HumanTasks     []string                     `json:"humanTasks,omitempty"`
	BlockedTasks   []string                     `json:"blockedTasks,omitempty"`
}

// internal/models/decision.go
package models

type Recommendation string

const (
	RecommendationApprove        Recommendation = "approve"
	RecommendationDecline        Recommendation = "decline"
	RecommendationConditional    Recommendation = "conditional"
	RecommendationReviewRequired Recommendation = "review_required"
)

type FinancialRatios struct {
	DSCR     *float64 `json:"dscr,omitempty"`
	LTV      *float64 `json:"ltv,omitempty"`
	DTI      *float64 `json:"dti,omitempty"`
	CashFlow *float64 `json:"cashFlow,omitempty"`
}

type UnderwritingDecision struct {
	TransactionID     string          `json:"transactionId"`
	Recommendation    Recommendation  `json:"recommendation"`
	Confidence        float64         `json:"confidence"`
	Reasoning         []string        `json:"reasoning"`
	Conditions        []string        `json:"conditions,omitempty"`
	RequiredActions   []string        `json:"requiredActions,omitempty"`
	RiskFactors       []string        `json:"riskFactors"`
	MitigatingFactors []string        `json:"mitigatingFactors"`
	FinancialRatios   FinancialRatios `json:"financialRatios"`
	CreditScore       *float64        `json:"creditScore,omitempty"`
	CompletedTasks    int             `json:"completedTasks"`
}

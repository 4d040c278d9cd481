// internal/underwriting/executor/ports.go
package executor

import (
	"context"

	"loan-underwriting/internal/models"
)

// CreditReport is what a bureau pull returns.
type CreditReport struct {
	Bureau           string  `json:"bureau"`
	Score            float64 `json:"score"`
	OpenTradelines   int     `json:"openTradelines"`
	Delinquencies    int     `json:"delinquencies"`
	RevolvingBalance float64 `json:"revolvingBalance"`
}

// CreditBureau pulls a credit report for the borrower on a transaction.
type CreditBureau interface {
	Pull(ctx context.Context, tx models.TransactionProfile) (CreditReport, error)
}

// ScreeningResult is the outcome of KYC, AML and sanctions screening.
type ScreeningResult struct {
	KYCPassed bool     `json:"kycPassed"`
	AMLPassed bool     `json:"amlPassed"`
	Hits      []string `json:"hits,omitempty"`
}

// Clear is true when no list produced a hit.
func (r ScreeningResult) Clear() bool {
	return r.KYCPassed && r.AMLPassed && len(r.Hits) == 0
}

// ComplianceScreen screens a borrower against regulatory lists.
type ComplianceScreen interface {
	Screen(ctx context.Context, tx models.TransactionProfile) (ScreeningResult, error)
}

// CollateralValuation is an appraised value for the asset securing a loan.
type CollateralValuation struct {
	Method string  `json:"method"`
	Value  float64 `json:"value"`
}

// CollateralService values the collateral behind a transaction.
type CollateralService interface {
	Appraise(ctx context.Context, tx models.TransactionProfile) (CollateralValuation, error)
}

// internal/underwriting/executor/simulated.go
package executor

import (
	"context"
	"hash/fnv"
	"strings"

	"loan-underwriting/internal/models"
)

// SimulatedCreditBureau answers from the transaction itself. A declared
// credit score is echoed back; otherwise a stable score is derived from the
// transaction id.
type SimulatedCreditBureau struct{}

func (SimulatedCreditBureau) Pull(ctx context.Context, tx models.TransactionProfile) (CreditReport, error) {
	if err := ctx.Err(); err != nil {
		return CreditReport{}, err
	}

	seed := stableSeed(tx.ID)
	score := float64(580 + seed%221)
	if tx.FinancialSummary.CreditScore != nil {
		score = *tx.FinancialSummary.CreditScore
	}

	delinquencies := 0
	if score < 640 {
		delinquencies = 1 + int(seed%3)
	}
	return CreditReport{
		Bureau:           "simulated",
		Score:            score,
		OpenTradelines:   3 + int(seed%9),
		Delinquencies:    delinquencies,
		RevolvingBalance: float64(seed%50) * 1000,
	}, nil
}

// SimulatedComplianceScreen reports a hit for any declared risk factor that
// names a sanctions or AML concern.
type SimulatedComplianceScreen struct{}

func (SimulatedComplianceScreen) Screen(ctx context.Context, tx models.TransactionProfile) (ScreeningResult, error) {
	if err := ctx.Err(); err != nil {
		return ScreeningResult{}, err
	}

	res := ScreeningResult{KYCPassed: true, AMLPassed: true}
	for _, rf := range tx.RiskFactors {
		lower := strings.ToLower(rf)
		switch {
		case strings.Contains(lower, "sanction"), strings.Contains(lower, "ofac"):
			res.Hits = append(res.Hits, rf)
		case strings.Contains(lower, "aml"), strings.Contains(lower, "money laundering"):
			res.AMLPassed = false
			res.Hits = append(res.Hits, rf)
		}
	}
	return res, nil
}

// SimulatedCollateralService uses the declared collateral value, falling back
// to 125% of the requested amount.
type SimulatedCollateralService struct{}

func (SimulatedCollateralService) Appraise(ctx context.Context, tx models.TransactionProfile) (CollateralValuation, error) {
	if err := ctx.Err(); err != nil {
		return CollateralValuation{}, err
	}
	if v := tx.FinancialSummary.CollateralValue; v != nil {
		return CollateralValuation{Method: "declared", Value: *v}, nil
	}
	return CollateralValuation{Method: "estimated", Value: tx.Amount * 1.25}, nil
}

func stableSeed(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

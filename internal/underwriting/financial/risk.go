package financial

import "math"

// RiskInputs feeds RiskScore. Nil fields are unknown and scored as neutral.
// DTI and LTV are percentages, as returned by DebtToIncome and LoanToValue.
type RiskInputs struct {
	CreditScore     *float64
	DTI             *float64
	LTV             *float64
	EmploymentYears *float64
	LiquidAssets    *float64
	LoanAmount      *float64
}

const neutralRisk = 0.5

// Component weights; they sum to 1.
const (
	weightCredit     = 0.35
	weightDTI        = 0.20
	weightLTV        = 0.20
	weightEmployment = 0.10
	weightLiquidity  = 0.15
)

// RiskScore returns a composite risk in [0, 1], higher meaning riskier. It
// never fails: missing or non-finite inputs contribute the neutral midpoint.
func RiskScore(in RiskInputs) float64 {
	credit := neutralRisk
	if v, ok := known(in.CreditScore); ok {
		credit = clamp01((850 - v) / (850 - 300))
	}

	dti := neutralRisk
	if v, ok := known(in.DTI); ok {
		dti = clamp01(v / 60)
	}

	ltv := neutralRisk
	if v, ok := known(in.LTV); ok {
		ltv = clamp01((v - 50) / 50)
	}

	employment := neutralRisk
	if v, ok := known(in.EmploymentYears); ok {
		employment = clamp01(1 - v/10)
	}

	liquidity := neutralRisk
	assets, okAssets := known(in.LiquidAssets)
	amount, okAmount := known(in.LoanAmount)
	if okAssets && okAmount && amount > 0 {
		// half the loan amount held in liquid assets scores as no risk
		liquidity = clamp01(1 - (assets/amount)/0.5)
	}

	score := credit*weightCredit +
		dti*weightDTI +
		ltv*weightLTV +
		employment*weightEmployment +
		liquidity*weightLiquidity

	return clamp01(Round(score, Precision))
}

func known(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// internal/underwriting/financial/profile.go
package financial

import (
	"loan-underwriting/internal/models"
)

// WithRatios returns a copy of tx whose summary carries every ratio that can
// be derived from its raw inputs. Ratios already present are kept as given.
// DSCR stays unset when total debt service is zero, since the zero sentinel
// carries no coverage information.
func WithRatios(tx models.TransactionProfile) (models.TransactionProfile, error) {
	out := tx.Clone()
	fs := &out.FinancialSummary

	if fs.DSCR == nil && fs.NetOperatingIncome != nil && fs.TotalDebtService != nil && *fs.TotalDebtService != 0 {
		v, err := DSCR(*fs.NetOperatingIncome, *fs.TotalDebtService)
		if err != nil {
			return tx, err
		}
		fs.DSCR = &v
	}

	if fs.DebtToIncome == nil && fs.MonthlyDebt != nil && fs.MonthlyIncome != nil {
		v, err := DebtToIncome(*fs.MonthlyDebt, *fs.MonthlyIncome)
		if err != nil {
			return tx, err
		}
		fs.DebtToIncome = &v
	}

	if fs.LTV == nil && fs.CollateralValue != nil {
		pct, err := LoanToValue(tx.Amount, *fs.CollateralValue)
		if err != nil {
			return tx, err
		}
		v := Round(pct/100, 4)
		fs.LTV = &v
	}

	if fs.CashFlow == nil && fs.NetOperatingIncome != nil && fs.TotalDebtService != nil {
		v, err := NetCashFlow(*fs.NetOperatingIncome, *fs.TotalDebtService)
		if err != nil {
			return tx, err
		}
		fs.CashFlow = &v
	}

	if fs.RiskScore == nil {
		v := RiskScore(RiskInputsFor(out))
		fs.RiskScore = &v
	}

	return out, nil
}

// RiskInputsFor maps a transaction onto RiskScore's inputs, converting the
// fractional LTV to a percentage.
func RiskInputsFor(tx models.TransactionProfile) RiskInputs {
	fs := tx.FinancialSummary
	amount := tx.Amount
	in := RiskInputs{
		CreditScore:     fs.CreditScore,
		DTI:             fs.DebtToIncome,
		EmploymentYears: fs.EmploymentYears,
		LiquidAssets:    fs.LiquidAssets,
		LoanAmount:      &amount,
	}
	if fs.LTV != nil {
		pct := *fs.LTV * 100
		in.LTV = &pct
	}
	return in
}

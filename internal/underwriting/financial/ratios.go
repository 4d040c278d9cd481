// Package financial computes the ratios the underwriting decision is built on.
// Every value it produces goes through Round so results carry at most two
// decimal digits.
package financial

import (
	"math"

	apperrors "loan-underwriting/internal/common/errors"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal digits kept on every ratio.
const Precision = 2

// Round rounds half away from zero to the given number of decimal places.
// It rounds the shortest decimal form of x, so 1.005 becomes 1.01 even though
// its binary value sits just below the half.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// DSCR is net operating income over total debt service. A zero debt service
// yields 0 rather than an error.
func DSCR(netOperatingIncome, totalDebtService float64) (float64, error) {
	if err := finite("netOperatingIncome", netOperatingIncome); err != nil {
		return 0, err
	}
	if err := finite("totalDebtService", totalDebtService); err != nil {
		return 0, err
	}
	if totalDebtService < 0 {
		return 0, apperrors.NewInvalidInputError("totalDebtService", "must not be negative")
	}
	if totalDebtService == 0 {
		return 0, nil
	}
	return Round(netOperatingIncome/totalDebtService, Precision), nil
}

// DebtToIncome returns monthly debt as a percentage of monthly income.
func DebtToIncome(monthlyDebt, monthlyIncome float64) (float64, error) {
	if err := finite("monthlyDebt", monthlyDebt); err != nil {
		return 0, err
	}
	if err := finite("monthlyIncome", monthlyIncome); err != nil {
		return 0, err
	}
	if monthlyIncome <= 0 {
		return 0, apperrors.NewInvalidInputError("monthlyIncome", "must be greater than zero")
	}
	return Round(monthlyDebt/monthlyIncome*100, Precision), nil
}

// LoanToValue returns the loan amount as a percentage of the asset value.
func LoanToValue(loanAmount, assetValue float64) (float64, error) {
	if err := finite("loanAmount", loanAmount); err != nil {
		return 0, err
	}
	if err := finite("assetValue", assetValue); err != nil {
		return 0, err
	}
	if assetValue <= 0 {
		return 0, apperrors.NewInvalidInputError("assetValue", "must be greater than zero")
	}
	return Round(loanAmount/assetValue*100, Precision), nil
}

// NetCashFlow is what remains of operating income after debt service.
func NetCashFlow(netOperatingIncome, totalDebtService float64) (float64, error) {
	if err := finite("netOperatingIncome", netOperatingIncome); err != nil {
		return 0, err
	}
	if err := finite("totalDebtService", totalDebtService); err != nil {
		return 0, err
	}
	return Round(netOperatingIncome-totalDebtService, Precision), nil
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperrors.NewInvalidInputError(field, "must be a finite number")
	}
	return nil
}

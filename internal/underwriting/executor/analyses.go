// internal/underwriting/executor/analyses.go
package executor

import (
	"context"
	"fmt"

	"loan-underwriting/internal/models"
	"loan-underwriting/internal/underwriting/financial"
	"loan-underwriting/internal/underwriting/taskgraph"
)

// SBA 7(a) program ceiling.
const sbaMaxAmount = 5_000_000

func (e *Executor) registry() map[string]analysis {
	return map[string]analysis{
		taskgraph.TaskDocumentVerification: e.verifyDocuments,
		taskgraph.TaskCreditAnalysis:       e.analyzeCredit,
		taskgraph.TaskIncomeVerification:   e.verifyIncome,
		taskgraph.TaskDTICalculation:       e.calculateDTI,
		taskgraph.TaskCollateralValuation:  e.valueCollateral,
		taskgraph.TaskRiskAssessment:       e.assessRisk,
		taskgraph.TaskComplianceCheck:      e.checkCompliance,
		taskgraph.TaskFinalDecision:        e.prepareDecisionPackage,
		taskgraph.TaskEquipmentValuation:   e.valueCollateral,
		taskgraph.TaskLienSearch:           e.searchLiens,
		taskgraph.TaskSBAEligibility:       e.checkSBAEligibility,
		taskgraph.TaskSBAFormCompletion:    e.completeSBAForms,
		taskgraph.TaskCashFlowForecast:     e.forecastCashFlow,
		taskgraph.TaskPayoffVerification:   e.verifyPayoffs,
	}
}

func (e *Executor) verifyDocuments(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	if tx.Amount <= 0 || tx.TermMonths <= 0 {
		return nil, fmt.Errorf("application is missing a requested amount or term")
	}
	return map[string]interface{}{
		"documentsReceived": true,
		"borrowerName":      tx.BorrowerName,
		"loanType":          string(tx.Type),
	}, nil
}

func (e *Executor) analyzeCredit(ctx context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	report, err := e.ports.Credit.Pull(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("credit bureau pull: %w", err)
	}
	return map[string]interface{}{
		"creditScore":      report.Score,
		"rating":           creditRating(report.Score),
		"bureau":           report.Bureau,
		"openTradelines":   report.OpenTradelines,
		"delinquencies":    report.Delinquencies,
		"revolvingBalance": report.RevolvingBalance,
	}, nil
}

func creditRating(score float64) string {
	switch {
	case score >= 750:
		return "excellent"
	case score >= 700:
		return "good"
	case score >= 650:
		return "fair"
	default:
		return "poor"
	}
}

func (e *Executor) verifyIncome(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	fs := tx.FinancialSummary
	out := map[string]interface{}{"verified": true}
	switch {
	case fs.MonthlyIncome != nil:
		out["monthlyIncome"] = *fs.MonthlyIncome
	case fs.NetOperatingIncome != nil:
		out["netOperatingIncome"] = *fs.NetOperatingIncome
	case fs.CashFlow != nil:
		out["cashFlow"] = *fs.CashFlow
	default:
		return map[string]interface{}{"verified": false}, needsReview("no income figures supplied; manual verification needed")
	}
	return out, nil
}

func (e *Executor) calculateDTI(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	fs := tx.FinancialSummary
	if fs.MonthlyDebt != nil && fs.MonthlyIncome != nil {
		dti, err := financial.DebtToIncome(*fs.MonthlyDebt, *fs.MonthlyIncome)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"debtToIncome": dti, "source": "calculated"}, nil
	}
	if fs.DebtToIncome != nil {
		return map[string]interface{}{"debtToIncome": *fs.DebtToIncome, "source": "declared"}, nil
	}
	return nil, needsReview("monthly debt and income are required to compute DTI")
}

func (e *Executor) valueCollateral(ctx context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	valuation, err := e.ports.Collateral.Appraise(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("collateral appraisal: %w", err)
	}
	ltv, err := financial.LoanToValue(tx.Amount, valuation.Value)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"collateralValue": valuation.Value,
		"method":          valuation.Method,
		"ltv":             financial.Round(ltv/100, 4),
	}, nil
}

func (e *Executor) assessRisk(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	score := financial.RiskScore(financial.RiskInputsFor(tx))
	return map[string]interface{}{
		"riskScore": score,
		"riskLevel": riskLevel(score),
	}, nil
}

func riskLevel(score float64) string {
	switch {
	case score < 0.35:
		return "low"
	case score < 0.65:
		return "medium"
	default:
		return "high"
	}
}

func (e *Executor) checkCompliance(ctx context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	res, err := e.ports.Compliance.Screen(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("compliance screening: %w", err)
	}
	out := map[string]interface{}{
		"kycPassed": res.KYCPassed,
		"amlPassed": res.AMLPassed,
		"hits":      res.Hits,
	}
	if !res.Clear() {
		return out, needsReview(fmt.Sprintf("compliance screening returned %d hit(s)", len(res.Hits)))
	}
	return out, nil
}

func (e *Executor) prepareDecisionPackage(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	return map[string]interface{}{
		"packagePrepared": true,
		"transactionId":   tx.ID,
		"amount":          tx.Amount,
		"termMonths":      tx.TermMonths,
	}, nil
}

func (e *Executor) searchLiens(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	return map[string]interface{}{
		"liensFound":   0,
		"jurisdiction": "UCC",
		"reference":    fmt.Sprintf("UCC-%08x", stableSeed(tx.ID)),
	}, nil
}

func (e *Executor) checkSBAEligibility(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	if tx.Amount > sbaMaxAmount {
		return nil, fmt.Errorf("requested amount %.2f exceeds the SBA 7(a) maximum of %d", tx.Amount, sbaMaxAmount)
	}
	return map[string]interface{}{"eligible": true, "program": "7(a)"}, nil
}

func (e *Executor) completeSBAForms(_ context.Context, _ models.TransactionProfile) (map[string]interface{}, error) {
	return map[string]interface{}{"forms": []string{"1919", "413"}, "prefilled": true}, nil
}

func (e *Executor) forecastCashFlow(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	fs := tx.FinancialSummary
	if fs.NetOperatingIncome != nil && fs.TotalDebtService != nil {
		net, err := financial.NetCashFlow(*fs.NetOperatingIncome, *fs.TotalDebtService)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"annualNetCashFlow": net, "horizonMonths": 12}, nil
	}
	if fs.CashFlow != nil {
		return map[string]interface{}{"annualNetCashFlow": *fs.CashFlow, "horizonMonths": 12}, nil
	}
	return nil, needsReview("operating income and debt service are required for a forecast")
}

func (e *Executor) verifyPayoffs(_ context.Context, tx models.TransactionProfile) (map[string]interface{}, error) {
	out := map[string]interface{}{"payoffsConfirmed": true}
	if fs := tx.FinancialSummary; fs.MonthlyDebt != nil {
		out["monthlyDebtRetired"] = *fs.MonthlyDebt
	}
	return out, nil
}

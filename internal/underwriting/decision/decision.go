// internal/underwriting/decision/decision.go
package decision

import (
	"fmt"
	"sort"

	"loan-underwriting/internal/models"
	"loan-underwriting/internal/underwriting/financial"
	"loan-underwriting/internal/underwriting/taskgraph"
)

// Thresholds for the ordered rule set. LTV is a fraction.
const (
	ApproveCreditScore = 720
	ApproveDSCR        = 1.25
	ApproveLTV         = 0.80

	ConditionalCreditScore = 650
	ConditionalDSCR        = 1.15
	ConditionalLTV         = 0.85

	DeclineCreditScore = 600
	DeclineDSCR        = 1.0
	DeclineLTV         = 0.90

	MinCompletedTasks = 10
)

const (
	ConfidenceApprove        = 0.90
	ConfidenceConditional    = 0.75
	ConfidenceDecline        = 0.80
	ConfidenceReviewRequired = 0.60
)

// StandardConditions are attached to every conditional approval.
var StandardConditions = []string{
	"Additional collateral to secure the facility",
	"Personal guarantee from principal owners",
	"Quarterly financial reporting for the life of the loan",
}

// StandardRequiredActions are attached whenever the file goes to a human.
var StandardRequiredActions = []string{
	"Senior underwriter review",
	"Re-check supporting documentation",
	"Credit committee evaluation",
}

const failedTaskPrefix = "Failed task: "

// metrics is the decision's view of the transaction after gap filling.
type metrics struct {
	credit    *float64
	dscr      *float64
	ltv       *float64
	dti       *float64
	cashFlow  *float64
	completed int
	total     int
}

// Decide applies the rule set to a transaction and its task results. It does
// no I/O and returns the same decision for the same inputs.
func Decide(tx models.TransactionProfile, results []models.TaskAutomationResult) (models.UnderwritingDecision, error) {
	enriched, err := financial.WithRatios(tx)
	if err != nil {
		return models.UnderwritingDecision{}, err
	}

	sorted := append([]models.TaskAutomationResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TaskID < sorted[j].TaskID })

	m := collect(enriched, sorted)
	risks := riskFactors(tx.RiskFactors, sorted)

	d := models.UnderwritingDecision{
		TransactionID: tx.ID,
		RiskFactors:   risks,
		FinancialRatios: models.FinancialRatios{
			DSCR:     m.dscr,
			LTV:      m.ltv,
			DTI:      m.dti,
			CashFlow: m.cashFlow,
		},
		CreditScore:       m.credit,
		CompletedTasks:    m.completed,
		MitigatingFactors: mitigatingFactors(m),
	}
	d.Reasoning = reasoning(m, len(risks))

	switch {
	case m.approvable() && len(risks) == 0:
		d.Recommendation = models.RecommendationApprove
		d.Confidence = ConfidenceApprove
		d.Reasoning = append(d.Reasoning, "All approval thresholds met with no outstanding risk factors")
	case m.conditionallyApprovable():
		d.Recommendation = models.RecommendationConditional
		d.Confidence = ConfidenceConditional
		d.Conditions = append([]string(nil), StandardConditions...)
		d.Reasoning = append(d.Reasoning, "Conditional approval thresholds met; standard conditions apply")
	case m.declinable():
		d.Recommendation = models.RecommendationDecline
		d.Confidence = ConfidenceDecline
		d.Reasoning = append(d.Reasoning, "At least one metric falls below the minimum lending threshold")
	default:
		d.Recommendation = models.RecommendationReviewRequired
		d.Confidence = ConfidenceReviewRequired
		d.RequiredActions = append([]string(nil), StandardRequiredActions...)
		d.Reasoning = append(d.Reasoning, "Metrics are inconclusive; referred for manual review")
	}
	return d, nil
}

func collect(tx models.TransactionProfile, results []models.TaskAutomationResult) metrics {
	fs := tx.FinancialSummary
	m := metrics{
		credit:   copyFloat(fs.CreditScore),
		dscr:     copyFloat(fs.DSCR),
		ltv:      copyFloat(fs.LTV),
		dti:      copyFloat(fs.DebtToIncome),
		cashFlow: copyFloat(fs.CashFlow),
		total:    len(results),
	}
	for _, r := range results {
		if r.Status != models.ResultStatusCompleted {
			continue
		}
		m.completed++
		if m.credit == nil && r.TaskID == taskgraph.TaskCreditAnalysis {
			if v, ok := number(r.Result["creditScore"]); ok {
				m.credit = &v
			}
		}
	}
	return m
}

// Missing metrics never satisfy an approval rule.
func (m metrics) approvable() bool {
	return m.credit != nil && *m.credit >= ApproveCreditScore &&
		m.dscr != nil && *m.dscr >= ApproveDSCR &&
		m.ltv != nil && *m.ltv <= ApproveLTV &&
		m.completed >= MinCompletedTasks
}

func (m metrics) conditionallyApprovable() bool {
	return m.credit != nil && *m.credit >= ConditionalCreditScore &&
		m.dscr != nil && *m.dscr >= ConditionalDSCR &&
		m.ltv != nil && *m.ltv <= ConditionalLTV &&
		m.completed >= MinCompletedTasks
}

// Only known metrics can trigger a decline.
func (m metrics) declinable() bool {
	return (m.credit != nil && *m.credit < DeclineCreditScore) ||
		(m.dscr != nil && *m.dscr < DeclineDSCR) ||
		(m.ltv != nil && *m.ltv > DeclineLTV)
}

// riskFactors returns the declared tags, deduplicated in input order, followed
// by one entry per failed task sorted by id.
func riskFactors(declared []string, results []models.TaskAutomationResult) []string {
	out := make([]string, 0, len(declared))
	seen := make(map[string]bool, len(declared))
	for _, tag := range declared {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	for _, r := range results {
		if r.Status != models.ResultStatusFailed {
			continue
		}
		entry := failedTaskPrefix + r.TaskID
		if !seen[entry] {
			seen[entry] = true
			out = append(out, entry)
		}
	}
	return out
}

func mitigatingFactors(m metrics) []string {
	out := []string{}
	if m.credit != nil && *m.credit >= 750 {
		out = append(out, fmt.Sprintf("Excellent credit score (%.0f)", *m.credit))
	}
	if m.dscr != nil && *m.dscr >= 1.5 {
		out = append(out, fmt.Sprintf("Strong debt service coverage (%.2fx)", *m.dscr))
	}
	if m.ltv != nil && *m.ltv <= 0.70 {
		out = append(out, fmt.Sprintf("Low leverage (LTV %.0f%%)", *m.ltv*100))
	}
	if m.dti != nil && *m.dti <= 36 {
		out = append(out, fmt.Sprintf("Low debt-to-income ratio (%.2f%%)", *m.dti))
	}
	if m.total > 0 && m.completed == m.total {
		out = append(out, "All automated underwriting tasks completed")
	}
	return out
}

func reasoning(m metrics, riskCount int) []string {
	out := make([]string, 0, 6)
	if m.credit != nil {
		out = append(out, fmt.Sprintf("Credit score %.0f (approve >= %d, decline < %d)", *m.credit, ApproveCreditScore, DeclineCreditScore))
	} else {
		out = append(out, "Credit score unavailable")
	}
	if m.dscr != nil {
		out = append(out, fmt.Sprintf("DSCR %.2f (approve >= %.2f, decline < %.2f)", *m.dscr, ApproveDSCR, DeclineDSCR))
	} else {
		out = append(out, "DSCR unavailable")
	}
	if m.ltv != nil {
		out = append(out, fmt.Sprintf("LTV %.2f (approve <= %.2f, decline > %.2f)", *m.ltv, ApproveLTV, DeclineLTV))
	} else {
		out = append(out, "LTV unavailable")
	}
	out = append(out, fmt.Sprintf("%d automated tasks completed (minimum %d)", m.completed, MinCompletedTasks))
	if riskCount > 0 {
		out = append(out, fmt.Sprintf("%d risk factor(s) identified", riskCount))
	}
	return out
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// internal/models/transaction.go
package models

type LoanType string

const (
	LoanTypeEquipment         LoanType = "equipment"
	LoanTypeVehicle           LoanType = "vehicle"
	LoanTypeRealEstate        LoanType = "real_estate"
	LoanTypeWorkingCapital    LoanType = "working_capital"
	LoanTypeBusinessExpansion LoanType = "business_expansion"
	LoanTypeDebtConsolidation LoanType = "debt_consolidation"
	LoanTypeSBA               LoanType = "sba"
	LoanTypeLineOfCredit      LoanType = "line_of_credit"
)

// LoanTypes lists every loan type the engine knows how to underwrite.
var LoanTypes = []LoanType{
	LoanTypeEquipment,
	LoanTypeVehicle,
	LoanTypeRealEstate,
	LoanTypeWorkingCapital,
	LoanTypeBusinessExpansion,
	LoanTypeDebtConsolidation,
	LoanTypeSBA,
	LoanTypeLineOfCredit,
}

func (t LoanType) Valid() bool {
	for _, known := range LoanTypes {
		if t == known {
			return true
		}
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusInitial       TransactionStatus = "initial"
	TransactionStatusDocumentation TransactionStatus = "documentation"
	TransactionStatusUnderwriting  TransactionStatus = "underwriting"
	TransactionStatusApproval      TransactionStatus = "approval"
	TransactionStatusFunded        TransactionStatus = "funded"
	TransactionStatusDeclined      TransactionStatus = "declined"
	TransactionStatusWithdrawn     TransactionStatus = "withdrawn"
	TransactionStatusOnHold        TransactionStatus = "on_hold"
)

// TransactionProfile is the loan application under review.
type TransactionProfile struct {
	ID               string            `json:"id"`
	Type             LoanType          `json:"type"`
	BorrowerName     string            `json:"borrowerName,omitempty"`
	Amount           float64           `json:"amount"`
	TermMonths       int               `json:"termMonths"`
	Status           TransactionStatus `json:"status,omitempty"`
	RiskFactors      []string          `json:"riskFactors,omitempty"`
	FinancialSummary FinancialSummary  `json:"financialSummary"`
}

// FinancialSummary holds optional figures; nil means "not provided".
// DebtToIncome is a percentage, LTV is a fraction (0.80 == 80%).
type FinancialSummary struct {
	CreditScore  *float64 `json:"creditScore,omitempty"`
	DebtToIncome *float64 `json:"debtToIncomeRatio,omitempty"`
	CashFlow     *float64 `json:"cashFlow,omitempty"`
	DSCR         *float64 `json:"dscr,omitempty"`
	LTV          *float64 `json:"ltv,omitempty"`
	RiskScore    *float64 `json:"riskScore,omitempty"`

	NetOperatingIncome *float64 `json:"netOperatingIncome,omitempty"`
	TotalDebtService   *float64 `json:"totalDebtService,omitempty"`
	MonthlyDebt        *float64 `json:"monthlyDebt,omitempty"`
	MonthlyIncome      *float64 `json:"monthlyIncome,omitempty"`
	CollateralValue    *float64 `json:"collateralValue,omitempty"`
	EmploymentYears    *float64 `json:"employmentYears,omitempty"`
	LiquidAssets       *float64 `json:"liquidAssets,omitempty"`
}

// Float returns a pointer to v, for filling optional summary fields.
func Float(v float64) *float64 {
	return &v
}

// Clone returns a deep copy so callers can attach derived ratios without
// touching the caller-owned profile.
func (t TransactionProfile) Clone() TransactionProfile {
	out := t
	if t.RiskFactors != nil {
		out.RiskFactors = append([]string(nil), t.RiskFactors...)
	}
	out.FinancialSummary = t.FinancialSummary.clone()
	return out
}

func (s FinancialSummary) clone() FinancialSummary {
	cp := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	return FinancialSummary{
		CreditScore:        cp(s.CreditScore),
		DebtToIncome:       cp(s.DebtToIncome),
		CashFlow:           cp(s.CashFlow),
		DSCR:               cp(s.DSCR),
		LTV:                cp(s.LTV),
		RiskScore:          cp(s.RiskScore),
		NetOperatingIncome: cp(s.NetOperatingIncome),
		TotalDebtService:   cp(s.TotalDebtService),
		MonthlyDebt:        cp(s.MonthlyDebt),
		MonthlyIncome:      cp(s.MonthlyIncome),
		CollateralValue:    cp(s.CollateralValue),
		EmploymentYears:    cp(s.EmploymentYears),
		LiquidAssets:       cp(s.LiquidAssets),
	}
}

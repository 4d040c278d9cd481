// internal/underwriting/taskgraph/builder.go
package taskgraph

import (
	"time"

	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/models"
)

// Base task ids. Every graph carries these eight.
const (
	TaskDocumentVerification = "document-verification"
	TaskCreditAnalysis       = "credit-analysis"
	TaskIncomeVerification   = "income-verification"
	TaskDTICalculation       = "dti-calculation"
	TaskCollateralValuation  = "collateral-valuation"
	TaskRiskAssessment       = "risk-assessment"
	TaskComplianceCheck      = "compliance-check"
	TaskFinalDecision        = "final-decision"
)

// Loan-type specific task ids.
const (
	TaskEquipmentValuation    = "equipment-valuation"
	TaskLienSearch            = "lien-search"
	TaskPropertyAppraisal     = "property-appraisal"
	TaskEnvironmentalAssess   = "environmental-assessment"
	TaskSBAEligibility        = "sba-eligibility"
	TaskSBAFormCompletion     = "sba-form-completion"
	TaskReceivablesAging      = "receivables-aging"
	TaskCashFlowForecast      = "cash-flow-forecast"
	TaskBusinessPlanReview    = "business-plan-review"
	TaskMarketAnalysis        = "market-analysis"
	TaskPayoffVerification    = "payoff-verification"
	TaskExistingDebtReview    = "existing-debt-review"
	TaskBorrowingBaseAnalysis = "borrowing-base-analysis"
	TaskCovenantReview        = "covenant-review"
)

type taskTemplate struct {
	id           string
	title        string
	description  string
	category     models.TaskCategory
	priority     models.TaskPriority
	assignee     models.Assignee
	automated    bool
	estimate     time.Duration
	dependencies []string
}

func (tt taskTemplate) task() models.UnderwritingTask {
	var deps []string
	if len(tt.dependencies) > 0 {
		deps = append([]string(nil), tt.dependencies...)
	}
	return models.UnderwritingTask{
		ID:                  tt.id,
		Title:               tt.title,
		Description:         tt.description,
		Category:            tt.category,
		Priority:            tt.priority,
		Status:              models.TaskStatusPending,
		AssignedTo:          tt.assignee,
		AutomationAvailable: tt.automated,
		EstimatedTime:       tt.estimate,
		Dependencies:        deps,
	}
}

var baseTasks = []taskTemplate{
	{
		id:          TaskDocumentVerification,
		title:       "Document Verification",
		description: "Verify that all required application documents are present and legible",
		category:    models.TaskCategoryDocumentation,
		priority:    models.TaskPriorityHigh,
		assignee:    models.AssigneeEva,
		automated:   true,
		estimate:    15 * time.Minute,
	},
	{
		id:          TaskCreditAnalysis,
		title:       "Credit Analysis",
		description: "Pull the credit bureau report and analyze payment history",
		category:    models.TaskCategoryAnalysis,
		priority:    models.TaskPriorityHigh,
		assignee:    models.AssigneeEva,
		automated:   true,
		estimate:    20 * time.Minute,
	},
	{
		id:          TaskIncomeVerification,
		title:       "Income Verification",
		description: "Verify borrower income against tax returns and bank statements",
		category:    models.TaskCategoryVerification,
		priority:    models.TaskPriorityHigh,
		assignee:    models.AssigneeEva,
		automated:   true,
		estimate:    30 * time.Minute,
	},
	{
		id:           TaskDTICalculation,
		title:        "Debt-to-Income Calculation",
		description:  "Compute the debt-to-income ratio from verified income and monthly debt",
		category:     models.TaskCategoryAnalysis,
		priority:     models.TaskPriorityMedium,
		assignee:     models.AssigneeEva,
		automated:    true,
		estimate:     10 * time.Minute,
		dependencies: []string{TaskIncomeVerification},
	},
	{
		id:          TaskCollateralValuation,
		title:       "Collateral Valuation",
		description: "Estimate collateral value and loan-to-value coverage",
		category:    models.TaskCategoryAnalysis,
		priority:    models.TaskPriorityMedium,
		assignee:    models.AssigneeEva,
		automated:   true,
		estimate:    25 * time.Minute,
	},
	{
		id:           TaskRiskAssessment,
		title:        "Risk Assessment",
		description:  "Combine credit and leverage metrics into a composite risk score",
		category:     models.TaskCategoryAnalysis,
		priority:     models.TaskPriorityHigh,
		assignee:     models.AssigneeEva,
		automated:    true,
		estimate:     20 * time.Minute,
		dependencies: []string{TaskCreditAnalysis, TaskDTICalculation},
	},
	{
		id:          TaskComplianceCheck,
		title:       "Compliance Check",
		description: "Screen the borrower against KYC, AML and sanctions lists",
		category:    models.TaskCategoryCompliance,
		priority:    models.TaskPriorityUrgent,
		assignee:    models.AssigneeEva,
		automated:   true,
		estimate:    15 * time.Minute,
	},
	{
		id:           TaskFinalDecision,
		title:        "Final Decision Package",
		description:  "Assemble analysis results into the decision package",
		category:     models.TaskCategoryApproval,
		priority:     models.TaskPriorityUrgent,
		assignee:     models.AssigneeEva,
		automated:    true,
		estimate:     10 * time.Minute,
		dependencies: []string{TaskRiskAssessment, TaskComplianceCheck},
	},
}

var (
	equipmentTasks = []taskTemplate{
		{
			id:          TaskEquipmentValuation,
			title:       "Equipment Valuation",
			description: "Value the financed equipment against market comparables",
			category:    models.TaskCategoryAnalysis,
			priority:    models.TaskPriorityMedium,
			assignee:    models.AssigneeEva,
			automated:   true,
			estimate:    20 * time.Minute,
		},
		{
			id:          TaskLienSearch,
			title:       "Lien Filing Search",
			description: "Search UCC filings for existing liens on the asset",
			category:    models.TaskCategoryVerification,
			priority:    models.TaskPriorityMedium,
			assignee:    models.AssigneeEva,
			automated:   true,
			estimate:    10 * time.Minute,
		},
	}

	specificTasks = map[models.LoanType][]taskTemplate{
		models.LoanTypeEquipment: equipmentTasks,
		models.LoanTypeVehicle:   equipmentTasks,
		models.LoanTypeRealEstate: {
			{
				id:          TaskPropertyAppraisal,
				title:       "Property Appraisal",
				description: "Order and review a licensed appraisal of the property",
				category:    models.TaskCategoryVerification,
				priority:    models.TaskPriorityHigh,
				assignee:    models.AssigneeHuman,
				estimate:    72 * time.Hour,
			},
			{
				id:          TaskEnvironmentalAssess,
				title:       "Environmental Assessment",
				description: "Review the phase I environmental site assessment",
				category:    models.TaskCategoryCompliance,
				priority:    models.TaskPriorityMedium,
				assignee:    models.AssigneeHuman,
				estimate:    48 * time.Hour,
			},
		},
		models.LoanTypeSBA: {
			{
				id:          TaskSBAEligibility,
				title:       "SBA Eligibility Check",
				description: "Check size standards and use-of-proceeds eligibility",
				category:    models.TaskCategoryCompliance,
				priority:    models.TaskPriorityHigh,
				assignee:    models.AssigneeEva,
				automated:   true,
				estimate:    15 * time.Minute,
			},
			{
				id:          TaskSBAFormCompletion,
				title:       "SBA Form Completion",
				description: "Prefill SBA forms 1919 and 413 from application data",
				category:    models.TaskCategoryDocumentation,
				priority:    models.TaskPriorityMedium,
				assignee:    models.AssigneeEva,
				automated:   true,
				estimate:    20 * time.Minute,
			},
		},
		models.LoanTypeWorkingCapital: {
			{
				id:          TaskReceivablesAging,
				title:       "Receivables Aging Review",
				description: "Analyze the accounts receivable aging report",
				category:    models.TaskCategoryAnalysis,
				priority:    models.TaskPriorityMedium,
				assignee:    models.AssigneeEva,
				automated:   true,
				estimate:    15 * time.Minute,
			},
			{
				id:          TaskCashFlowForecast,
				title:       "Cash Flow Forecast",
				description: "Project twelve months of operating cash flow",
				category:    models.TaskCategoryAnalysis,
				priority:    models.TaskPriorityMedium,
				assignee:    models.AssigneeEva,
				automated:   true,
				estimate:    25 * time.Minute,
			},
		},
		models.LoanTypeBusinessExpansion: {
			{
				id:          TaskBusinessPlanReview,
				title:       "Business Plan Review",
				description: "Review the expansion plan and management projections",
				category:    models.TaskCategoryAnalysis,
				priority:    models.TaskPriorityHigh,
				assignee:    models.AssigneeHuman,
				estimate:    4 * time.Hour,
			},
			{
				id:          TaskMarketAnalysis,
				title:       "Market Analysis",
				description: "Assess market size and competition for the expansion",
				category:    models.TaskCategoryAnalysis,
				priority:    models.TaskPriorityMedium,
				assignee:    models.AssigneeEva,
				automated:   true,
				estimate:    30 * time.Minute,
			},
		},
		models.LoanTypeDebtConsolidation: {
			{
				id:          TaskPayoffVerification,
				title:       "Payoff Verification",
				description: "Confirm payoff amounts with existing creditors",
				category:    models.TaskCategoryVerification,
				priority:    models.TaskPriorityHigh,
				assignee:    models.AssigneeEva,
				automated:   true,
				estimate:    20 * time.Minute,
			},
			{
				id:          TaskExistingDebtReview,
				title:       "Existing Debt Review",
				description: "Review terms of the debts being consolidated",
				category:    models.TaskCategoryAnalysis,
				priority:    models.TaskPriorityMedium,
				assignee:    models.AssigneeEva,
				automated:   true,
				estimate:    15 * time.Minute,
			},
		},
		models.LoanTypeLineOfCredit: {
			{
				id:          TaskBorrowingBaseAnalysis,
				title:       "Borrowing Base Analysis",
				description: "Compute the borrowing base from eligible receivables and inventory",
				category:    models.TaskCategoryAnalysis,
				priority:    models.TaskPriorityHigh,
				assignee:    models.AssigneeEva,
				automated:   true,
				estimate:    20 * time.Minute,
			},
			{
				id:          TaskCovenantReview,
				title:       "Covenant Review",
				description: "Negotiate and review financial covenants",
				category:    models.TaskCategoryApproval,
				priority:    models.TaskPriorityMedium,
				assignee:    models.AssigneeHuman,
				estimate:    2 * time.Hour,
			},
		},
	}
)

// Build returns the task graph for tx: the base checklist followed by the
// tasks specific to its loan type. Specific tasks are not wired into the base
// graph and do not gate final-decision.
func Build(tx models.TransactionProfile) ([]models.UnderwritingTask, error) {
	specific, ok := specificTasks[tx.Type]
	if !ok {
		return nil, apperrors.NewUnknownLoanTypeError(string(tx.Type))
	}

	tasks := make([]models.UnderwritingTask, 0, len(baseTasks)+len(specific))
	for _, tt := range baseTasks {
		tasks = append(tasks, tt.task())
	}
	for _, tt := range specific {
		tasks = append(tasks, tt.task())
	}
	return tasks, nil
}

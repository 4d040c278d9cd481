package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"loan-underwriting/internal/common/config"
	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/models"
	"loan-underwriting/internal/underwriting/taskgraph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCreditBureau struct {
	mock.Mock
}

func (m *mockCreditBureau) Pull(ctx context.Context, tx models.TransactionProfile) (CreditReport, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(CreditReport), args.Error(1)
}

type mockComplianceScreen struct {
	mock.Mock
}

func (m *mockComplianceScreen) Screen(ctx context.Context, tx models.TransactionProfile) (ScreeningResult, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(ScreeningResult), args.Error(1)
}

func eva(id string, category models.TaskCategory) models.UnderwritingTask {
	return models.UnderwritingTask{
		ID:                  id,
		Category:            category,
		AssignedTo:          models.AssigneeEva,
		AutomationAvailable: true,
	}
}

func sampleTx() models.TransactionProfile {
	return models.TransactionProfile{
		ID:         "tx-100",
		Type:       models.LoanTypeEquipment,
		Amount:     250000,
		TermMonths: 60,
		FinancialSummary: models.FinancialSummary{
			CreditScore:        models.Float(735),
			MonthlyDebt:        models.Float(4000),
			MonthlyIncome:      models.Float(12500),
			NetOperatingIncome: models.Float(180000),
			TotalDebtService:   models.Float(120000),
			CollateralValue:    models.Float(320000),
		},
	}
}

// ==========================
//  Core behaviour
// ==========================

func TestExecute_CategoryConfidence(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewTestLogger(t))
	tx := sampleTx()

	tests := []struct {
		task     models.UnderwritingTask
		expected float64
	}{
		{eva(taskgraph.TaskDocumentVerification, models.TaskCategoryDocumentation), 0.95},
		{eva(taskgraph.TaskIncomeVerification, models.TaskCategoryVerification), 0.90},
		{eva(taskgraph.TaskCreditAnalysis, models.TaskCategoryAnalysis), 0.88},
		{eva(taskgraph.TaskComplianceCheck, models.TaskCategoryCompliance), 0.92},
		{eva(taskgraph.TaskFinalDecision, models.TaskCategoryApproval), 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.task.ID, func(t *testing.T) {
			res := exec.Execute(context.Background(), tt.task, tx)
			assert.Equal(t, models.ResultStatusCompleted, res.Status)
			assert.Equal(t, tt.task.ID, res.TaskID)
			assert.Equal(t, tt.expected, res.Confidence)
		})
	}
}

func TestExecute_ConfiguredConfidenceOverrides(t *testing.T) {
	cfg := &Config{Confidence: map[models.TaskCategory]float64{models.TaskCategoryAnalysis: 0.5}}
	exec := New(cfg, Ports{}, logger.NewNoOpLogger())

	res := exec.Execute(context.Background(), eva(taskgraph.TaskCreditAnalysis, models.TaskCategoryAnalysis), sampleTx())
	assert.Equal(t, 0.5, res.Confidence)

	res = exec.Execute(context.Background(), eva(taskgraph.TaskComplianceCheck, models.TaskCategoryCompliance), sampleTx())
	assert.Equal(t, 0.92, res.Confidence)
}

func TestExecute_UnknownTaskIsGenericallyProcessed(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewNoOpLogger())

	res := exec.Execute(context.Background(), eva("custom-check", models.TaskCategoryCompliance), sampleTx())
	assert.Equal(t, models.ResultStatusCompleted, res.Status)
	assert.Equal(t, GenericConfidence, res.Confidence)
	assert.Equal(t, true, res.Result["processed"])
}

func TestExecute_HumanTaskIsNotRun(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewNoOpLogger())
	task := models.UnderwritingTask{ID: taskgraph.TaskPropertyAppraisal, AssignedTo: models.AssigneeHuman}

	res := exec.Execute(context.Background(), task, sampleTx())
	assert.Equal(t, models.ResultStatusRequiresHuman, res.Status)
	assert.Zero(t, res.Confidence)
}

// ==========================
//  Analyses
// ==========================

func TestExecute_DTICalculatedFromInputs(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewNoOpLogger())

	res := exec.Execute(context.Background(), eva(taskgraph.TaskDTICalculation, models.TaskCategoryAnalysis), sampleTx())
	require.Equal(t, models.ResultStatusCompleted, res.Status)
	assert.Equal(t, 32.0, res.Result["debtToIncome"])
	assert.Equal(t, "calculated", res.Result["source"])
}

func TestExecute_DTIInvalidIncomeFails(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewNoOpLogger())
	tx := sampleTx()
	tx.FinancialSummary.MonthlyIncome = models.Float(0)

	res := exec.Execute(context.Background(), eva(taskgraph.TaskDTICalculation, models.TaskCategoryAnalysis), tx)
	assert.Equal(t, models.ResultStatusFailed, res.Status)
	assert.Contains(t, res.Notes, "monthlyIncome")
}

func TestExecute_CollateralLTVIsFraction(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewNoOpLogger())

	res := exec.Execute(context.Background(), eva(taskgraph.TaskCollateralValuation, models.TaskCategoryAnalysis), sampleTx())
	require.Equal(t, models.ResultStatusCompleted, res.Status)
	assert.Equal(t, 320000.0, res.Result["collateralValue"])
	assert.InDelta(t, 0.7813, res.Result["ltv"], 0.0001)
}

func TestExecute_CreditBureauFailureIsData(t *testing.T) {
	bureau := new(mockCreditBureau)
	bureau.On("Pull", mock.Anything, mock.Anything).Return(CreditReport{}, errors.New("bureau unavailable"))

	exec := New(nil, Ports{Credit: bureau}, logger.NewNoOpLogger())
	res := exec.Execute(context.Background(), eva(taskgraph.TaskCreditAnalysis, models.TaskCategoryAnalysis), sampleTx())

	assert.Equal(t, models.ResultStatusFailed, res.Status)
	assert.Zero(t, res.Confidence)
	assert.Contains(t, res.Notes, "bureau unavailable")
	bureau.AssertExpectations(t)
}

func TestExecute_ComplianceHitRequiresHuman(t *testing.T) {
	screen := new(mockComplianceScreen)
	screen.On("Screen", mock.Anything, mock.Anything).
		Return(ScreeningResult{KYCPassed: true, AMLPassed: true, Hits: []string{"OFAC partial match"}}, nil)

	exec := New(nil, Ports{Compliance: screen}, logger.NewNoOpLogger())
	res := exec.Execute(context.Background(), eva(taskgraph.TaskComplianceCheck, models.TaskCategoryCompliance), sampleTx())

	assert.Equal(t, models.ResultStatusRequiresHuman, res.Status)
	assert.Contains(t, res.Notes, "1 hit")
	screen.AssertExpectations(t)
}

func TestExecute_IncomeMissingRequiresHuman(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewNoOpLogger())
	tx := models.TransactionProfile{ID: "tx-empty", Type: models.LoanTypeSBA, Amount: 1000, TermMonths: 12}

	res := exec.Execute(context.Background(), eva(taskgraph.TaskIncomeVerification, models.TaskCategoryVerification), tx)
	assert.Equal(t, models.ResultStatusRequiresHuman, res.Status)
}

func TestExecute_SBAAmountCeiling(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewNoOpLogger())
	tx := sampleTx()
	tx.Amount = 6_000_000

	res := exec.Execute(context.Background(), eva(taskgraph.TaskSBAEligibility, models.TaskCategoryCompliance), tx)
	assert.Equal(t, models.ResultStatusFailed, res.Status)
	assert.Contains(t, res.Notes, "SBA 7(a)")
}

func TestExecute_DocumentsMissingTermFails(t *testing.T) {
	exec := New(nil, Ports{}, logger.NewNoOpLogger())
	tx := sampleTx()
	tx.TermMonths = 0

	res := exec.Execute(context.Background(), eva(taskgraph.TaskDocumentVerification, models.TaskCategoryDocumentation), tx)
	assert.Equal(t, models.ResultStatusFailed, res.Status)
}

// ==========================
//  Latency & cancellation
// ==========================

func TestExecute_LatencyHonoursContext(t *testing.T) {
	exec := New(&Config{Latency: time.Second}, Ports{}, logger.NewNoOpLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := exec.Execute(ctx, eva(taskgraph.TaskLienSearch, models.TaskCategoryVerification), sampleTx())
	assert.Equal(t, models.ResultStatusFailed, res.Status)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// ==========================
//  Simulated ports
// ==========================

func TestSimulatedCreditBureau_Stable(t *testing.T) {
	tx := models.TransactionProfile{ID: "tx-stable"}
	a, err := SimulatedCreditBureau{}.Pull(context.Background(), tx)
	require.NoError(t, err)
	b, err := SimulatedCreditBureau{}.Pull(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a.Score, 580.0)
	assert.LessOrEqual(t, a.Score, 800.0)
}

func TestSimulatedComplianceScreen(t *testing.T) {
	res, err := SimulatedComplianceScreen{}.Screen(context.Background(), models.TransactionProfile{
		RiskFactors: []string{"High leverage", "Possible AML concern"},
	})
	require.NoError(t, err)
	assert.False(t, res.Clear())
	assert.False(t, res.AMLPassed)
	assert.Equal(t, []string{"Possible AML concern"}, res.Hits)

	res, err = SimulatedComplianceScreen{}.Screen(context.Background(), models.TransactionProfile{})
	require.NoError(t, err)
	assert.True(t, res.Clear())
}

func TestSimulatedCollateralService_Fallback(t *testing.T) {
	v, err := SimulatedCollateralService{}.Appraise(context.Background(), models.TransactionProfile{Amount: 100000})
	require.NoError(t, err)
	assert.Equal(t, "estimated", v.Method)
	assert.Equal(t, 125000.0, v.Value)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.UnderwritingConfig{
		SimulatedLatency: 25,
		Confidence: map[string]float64{
			"analysis":  0.7,
			"approval":  1.5,
			"marketing": 0.1,
		},
	})

	assert.Equal(t, 25*time.Millisecond, cfg.Latency)
	assert.Equal(t, 0.7, cfg.Confidence[models.TaskCategoryAnalysis])
	assert.Equal(t, 0.85, cfg.Confidence[models.TaskCategoryApproval], "out of range value ignored")
	assert.Len(t, cfg.Confidence, len(DefaultConfidence))
	assert.Equal(t, 0.88, DefaultConfidence[models.TaskCategoryAnalysis], "defaults untouched")
}

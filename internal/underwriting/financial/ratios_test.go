package financial

import (
	"errors"
	"math"
	"testing"

	apperrors "loan-underwriting/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound_HalfAwayFromZero(t *testing.T) {
	tests := []struct {
		name     string
		in       float64
		expected float64
	}{
		{"exact", 1.25, 1.25},
		{"round down", 2.344, 2.34},
		{"half rounds up", 0.125, 0.13},
		{"decimal half, binary below half", 1.005, 1.01},
		{"decimal half, binary below half again", 2.675, 2.68},
		{"negative half rounds away", -2.345, -2.35},
		{"whole number", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Round(tt.in, 2))
		})
	}
}

func TestRound_NonFiniteIsReturnedAsIs(t *testing.T) {
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
	assert.True(t, math.IsInf(Round(math.Inf(1), 2), 1))
}

func TestDSCR(t *testing.T) {
	t.Run("zero debt service yields zero", func(t *testing.T) {
		v, err := DSCR(1000, 0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	})

	t.Run("ratio rounded to two places", func(t *testing.T) {
		v, err := DSCR(1000, 3000)
		require.NoError(t, err)
		assert.Equal(t, 0.33, v)
	})

	t.Run("coverage above one", func(t *testing.T) {
		v, err := DSCR(125000, 100000)
		require.NoError(t, err)
		assert.Equal(t, 1.25, v)
	})

	t.Run("negative debt service rejected", func(t *testing.T) {
		_, err := DSCR(1000, -1)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	})

	t.Run("NaN rejected", func(t *testing.T) {
		_, err := DSCR(math.NaN(), 100)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	})
}

func TestDebtToIncome(t *testing.T) {
	v, err := DebtToIncome(2000, 5000)
	require.NoError(t, err)
	assert.Equal(t, 40.0, v)

	v, err = DebtToIncome(1000, 3000)
	require.NoError(t, err)
	assert.Equal(t, 33.33, v)

	for _, income := range []float64{0, -100} {
		_, err := DebtToIncome(1000, income)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	}
}

func TestLoanToValue(t *testing.T) {
	v, err := LoanToValue(80000, 100000)
	require.NoError(t, err)
	assert.Equal(t, 80.0, v)

	v, err = LoanToValue(250000, 300000)
	require.NoError(t, err)
	assert.Equal(t, 83.33, v)

	_, err = LoanToValue(1000, 0)
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestNetCashFlow(t *testing.T) {
	v, err := NetCashFlow(150000.555, 100000)
	require.NoError(t, err)
	assert.Equal(t, 50000.56, v)
}

func TestRiskScore(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		in       RiskInputs
		expected float64
	}{
		{
			name:     "all inputs missing is neutral",
			in:       RiskInputs{},
			expected: 0.5,
		},
		{
			name: "strongest profile",
			in: RiskInputs{
				CreditScore:     f(850),
				DTI:             f(0),
				LTV:             f(40),
				EmploymentYears: f(20),
				LiquidAssets:    f(100000),
				LoanAmount:      f(100000),
			},
			expected: 0,
		},
		{
			name: "weakest profile",
			in: RiskInputs{
				CreditScore:     f(300),
				DTI:             f(90),
				LTV:             f(120),
				EmploymentYears: f(0),
				LiquidAssets:    f(0),
				LoanAmount:      f(100000),
			},
			expected: 1,
		},
		{
			name:     "only credit score known",
			in:       RiskInputs{CreditScore: f(720)},
			expected: 0.41,
		},
		{
			name:     "NaN treated as missing",
			in:       RiskInputs{CreditScore: f(math.NaN())},
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RiskScore(tt.in)
			assert.InDelta(t, tt.expected, got, 0.0001)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

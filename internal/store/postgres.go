// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/models"
)

const selectTransactionQuery = `
	SELECT id, loan_type, borrower_name, amount, term_months, status, risk_factors, financial_summary
	FROM loan_transactions
	WHERE id = $1`

const upsertTransactionQuery = `
	INSERT INTO loan_transactions
		(id, loan_type, borrower_name, amount, term_months, status, risk_factors, financial_summary, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	ON CONFLICT (id) DO UPDATE SET
		loan_type = EXCLUDED.loan_type,
		borrower_name = EXCLUDED.borrower_name,
		amount = EXCLUDED.amount,
		term_months = EXCLUDED.term_months,
		status = EXCLUDED.status,
		risk_factors = EXCLUDED.risk_factors,
		financial_summary = EXCLUDED.financial_summary,
		updated_at = now()`

// PostgresStore reads and writes loan transactions in the loan_transactions table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Fetch(ctx context.Context, transactionID string) (models.TransactionProfile, error) {
	var (
		tx           models.TransactionProfile
		loanType     string
		status       string
		riskFactors  []byte
		summaryBytes []byte
	)
	err := s.db.QueryRowContext(ctx, selectTransactionQuery, transactionID).Scan(
		&tx.ID, &loanType, &tx.BorrowerName, &tx.Amount, &tx.TermMonths, &status, &riskFactors, &summaryBytes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TransactionProfile{}, apperrors.NewTransactionNotFoundError(transactionID)
	}
	if err != nil {
		return models.TransactionProfile{}, apperrors.NewTransactionLookupFailedError(transactionID, err)
	}

	tx.Type = models.LoanType(loanType)
	tx.Status = models.TransactionStatus(status)
	if len(riskFactors) > 0 {
		if err := json.Unmarshal(riskFactors, &tx.RiskFactors); err != nil {
			return models.TransactionProfile{}, apperrors.NewTransactionLookupFailedError(transactionID, fmt.Errorf("decode risk_factors: %w", err))
		}
	}
	if len(summaryBytes) > 0 {
		if err := json.Unmarshal(summaryBytes, &tx.FinancialSummary); err != nil {
			return models.TransactionProfile{}, apperrors.NewTransactionLookupFailedError(transactionID, fmt.Errorf("decode financial_summary: %w", err))
		}
	}
	return tx, nil
}

// Save inserts or replaces a transaction.
func (s *PostgresStore) Save(ctx context.Context, tx models.TransactionProfile) error {
	riskFactors := tx.RiskFactors
	if riskFactors == nil {
		riskFactors = []string{}
	}
	rf, err := json.Marshal(riskFactors)
	if err != nil {
		return fmt.Errorf("encode risk factors: %w", err)
	}
	summary, err := json.Marshal(tx.FinancialSummary)
	if err != nil {
		return fmt.Errorf("encode financial summary: %w", err)
	}

	status := tx.Status
	if status == "" {
		status = models.TransactionStatusInitial
	}
	if _, err := s.db.ExecContext(ctx, upsertTransactionQuery,
		tx.ID, string(tx.Type), tx.BorrowerName, tx.Amount, tx.TermMonths, string(status), rf, summary,
	); err != nil {
		return fmt.Errorf("save transaction %s: %w", tx.ID, err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loan-underwriting/internal/common/config"
	"loan-underwriting/internal/common/database"
	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionColumns = []string{
	"id", "loan_type", "borrower_name", "amount", "term_months", "status", "risk_factors", "financial_summary",
}

// ==========================
//  Postgres store
// ==========================

func TestPostgresStore_Fetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM loan_transactions").
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows(transactionColumns).AddRow(
			"tx-1", "equipment", "Acme", 250000.0, int64(60), "underwriting",
			[]byte(`["seasonal revenue"]`), []byte(`{"creditScore":720,"ltv":0.8}`),
		))

	tx, err := NewPostgresStore(db).Fetch(context.Background(), "tx-1")
	require.NoError(t, err)

	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, models.LoanTypeEquipment, tx.Type)
	assert.Equal(t, 250000.0, tx.Amount)
	assert.Equal(t, 60, tx.TermMonths)
	assert.Equal(t, models.TransactionStatusUnderwriting, tx.Status)
	assert.Equal(t, []string{"seasonal revenue"}, tx.RiskFactors)
	require.NotNil(t, tx.FinancialSummary.CreditScore)
	assert.Equal(t, 720.0, *tx.FinancialSummary.CreditScore)
	assert.Equal(t, 0.8, *tx.FinancialSummary.LTV)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM loan_transactions").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(transactionColumns))

	_, err = NewPostgresStore(db).Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransactionNotFound))
}

func TestPostgresStore_FetchFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM loan_transactions").WillReturnError(errors.New("connection reset"))

	_, err = NewPostgresStore(db).Fetch(context.Background(), "tx-1")
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeTransactionLookupFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestPostgresStore_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO loan_transactions").
		WithArgs("tx-1", "sba", "Acme", 100000.0, int64(120), "initial", []byte(`[]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewPostgresStore(db).Save(context.Background(), models.TransactionProfile{
		ID:           "tx-1",
		Type:         models.LoanTypeSBA,
		BorrowerName: "Acme",
		Amount:       100000,
		TermMonths:   120,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO loan_transactions").WillReturnError(driver.ErrBadConn)

	err = NewPostgresStore(db).Save(context.Background(), models.TransactionProfile{ID: "tx-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx-1")
}

// ==========================
//  Read-through cache
// ==========================

type countingFetcher struct {
	calls atomic.Int32
	tx    models.TransactionProfile
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, _ string) (models.TransactionProfile, error) {
	f.calls.Add(1)
	return f.tx, f.err
}

// memoryStore is a Fetcher and Saver backed by a map.
type memoryStore struct {
	mu           sync.Mutex
	transactions map[string]models.TransactionProfile
	saveErr      error
}

func (m *memoryStore) Fetch(_ context.Context, id string) (models.TransactionProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return models.TransactionProfile{}, apperrors.NewTransactionNotFoundError(id)
	}
	return tx, nil
}

func (m *memoryStore) Save(_ context.Context, tx models.TransactionProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.transactions[tx.ID] = tx
	return nil
}

func newCache(t *testing.T) (*miniredis.Miniredis, *database.RedisClient) {
	mr := miniredis.RunT(t)
	client := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedFetcher_ReadThrough(t *testing.T) {
	mr, client := newCache(t)
	next := &countingFetcher{tx: models.TransactionProfile{ID: "tx-1", Type: models.LoanTypeVehicle, Amount: 42000}}
	cache := NewCachedFetcher(next, client, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	first, err := cache.Fetch(ctx, "tx-1")
	require.NoError(t, err)
	second, err := cache.Fetch(ctx, "tx-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), next.calls.Load())
	assert.True(t, mr.Exists(keyPrefix+"tx-1"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"tx-1"))
}

func TestCachedFetcher_Invalidate(t *testing.T) {
	mr, client := newCache(t)
	next := &countingFetcher{tx: models.TransactionProfile{ID: "tx-1"}}
	cache := NewCachedFetcher(next, client, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	_, err := cache.Fetch(ctx, "tx-1")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "tx-1"))
	assert.False(t, mr.Exists(keyPrefix+"tx-1"))

	_, err = cache.Fetch(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedFetcher_ErrorsAreNotCached(t *testing.T) {
	mr, client := newCache(t)
	next := &countingFetcher{err: apperrors.NewTransactionNotFoundError("tx-1")}
	cache := NewCachedFetcher(next, client, time.Minute, logger.NewTestLogger(t))

	_, err := cache.Fetch(context.Background(), "tx-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransactionNotFound))
	assert.False(t, mr.Exists(keyPrefix+"tx-1"))
}

func TestCachedFetcher_CorruptEntryFallsThrough(t *testing.T) {
	mr, client := newCache(t)
	require.NoError(t, mr.Set(keyPrefix+"tx-1", "{not json"))
	next := &countingFetcher{tx: models.TransactionProfile{ID: "tx-1"}}
	cache := NewCachedFetcher(next, client, time.Minute, logger.NewTestLogger(t))

	tx, err := cache.Fetch(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedFetcher_RedisDown(t *testing.T) {
	mr, client := newCache(t)
	mr.Close()
	next := &countingFetcher{tx: models.TransactionProfile{ID: "tx-1"}}
	cache := NewCachedFetcher(next, client, time.Minute, logger.NewTestLogger(t))

	tx, err := cache.Fetch(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
}

func TestCachedFetcher_SaveRefreshesCachedCopy(t *testing.T) {
	mr, client := newCache(t)
	backing := &memoryStore{transactions: map[string]models.TransactionProfile{
		"tx-1": {ID: "tx-1", Type: models.LoanTypeEquipment, Amount: 100},
	}}
	cache := NewCachedFetcher(backing, client, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	before, err := cache.Fetch(ctx, "tx-1")
	require.NoError(t, err)
	require.Equal(t, 100.0, before.Amount)
	require.True(t, mr.Exists(keyPrefix+"tx-1"))

	require.NoError(t, cache.Save(ctx, models.TransactionProfile{ID: "tx-1", Type: models.LoanTypeEquipment, Amount: 999}))
	assert.False(t, mr.Exists(keyPrefix+"tx-1"))

	after, err := cache.Fetch(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, 999.0, after.Amount)
}

func TestCachedFetcher_SaveErrors(t *testing.T) {
	t.Run("store failure keeps cache", func(t *testing.T) {
		mr, client := newCache(t)
		backing := &memoryStore{
			transactions: map[string]models.TransactionProfile{"tx-1": {ID: "tx-1", Amount: 100}},
			saveErr:      errors.New("db down"),
		}
		cache := NewCachedFetcher(backing, client, time.Minute, logger.NewTestLogger(t))
		ctx := context.Background()

		_, err := cache.Fetch(ctx, "tx-1")
		require.NoError(t, err)

		err = cache.Save(ctx, models.TransactionProfile{ID: "tx-1", Amount: 999})
		require.Error(t, err)
		assert.True(t, mr.Exists(keyPrefix+"tx-1"))
	})

	t.Run("read-only store", func(t *testing.T) {
		_, client := newCache(t)
		cache := NewCachedFetcher(&countingFetcher{}, client, time.Minute, logger.NewTestLogger(t))

		err := cache.Save(context.Background(), models.TransactionProfile{ID: "tx-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not support saving")
	})

	t.Run("redis down", func(t *testing.T) {
		mr, client := newCache(t)
		mr.Close()
		backing := &memoryStore{transactions: map[string]models.TransactionProfile{}}
		cache := NewCachedFetcher(backing, client, time.Minute, logger.NewTestLogger(t))

		err := cache.Save(context.Background(), models.TransactionProfile{ID: "tx-1", Amount: 5})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalidate cached transaction tx-1")
		assert.Equal(t, 5.0, backing.transactions["tx-1"].Amount)
	})
}

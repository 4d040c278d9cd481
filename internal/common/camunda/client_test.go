package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"loan-underwriting/internal/common/config"
	apperrors "loan-underwriting/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = &RetryConfig{
	MaxRetries: 2,
	BaseDelay:  time.Millisecond,
	MaxDelay:   5 * time.Millisecond,
}

// ==========================
// Retry
// ==========================

func TestRetry_RecoversFromTransientError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, "complete-job", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("rpc error: code = Unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_DoesNotRetryPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, "complete-job", func(context.Context) error {
		calls++
		return errors.New("job not found")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeWorkflowHost, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, "complete-job", func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, fastRetry.MaxRetries+1, calls)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.True(t, stdErr.Retryable)
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	err := Retry(ctx, slow, "complete-job", func(context.Context) error {
		calls++
		cancel()
		return errors.New("deadline exceeded")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("Connection Reset by peer")))
	assert.True(t, isRetryableZeebeError(errors.New("context deadline exceeded")))
	assert.False(t, isRetryableZeebeError(errors.New("NOT_FOUND: job 42")))
}

// ==========================
// Config mapping
// ==========================

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{
		BrokerAddress:  "zeebe:26500",
		RequestTimeout: 15000,
		UseTLS:         true,
	})

	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.False(t, cfg.UsePlaintextConnection)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Same(t, DefaultRetryConfig, cfg.RetryConfig)
}

package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentkit/pkg/errs"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	value, err := WithRetry(context.Background(), func(attempt int) (string, error) {
		attempts++
		if attempt < 3 {
			return "", errs.New(errs.KindRateLimited, "complete", "429")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryDoesNotRetryNonRetryableKind(t *testing.T) {
	attempts := 0
	_, err := WithRetry(context.Background(), func(attempt int) (string, error) {
		attempts++
		return "", errs.New(errs.KindValidation, "complete", "bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryExhaustsAttemptBudget(t *testing.T) {
	attempts := 0
	_, err := WithRetry(context.Background(), func(attempt int) (string, error) {
		attempts++
		return "", errs.New(errs.KindTimeout, "complete", "deadline")
	})
	require.Error(t, err)
	assert.Equal(t, MaxAttempts, attempts)
}

func TestWithRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WithRetry(ctx, func(attempt int) (string, error) {
		return "", errors.New("should not be called")
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindCancelled))
}

package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/wenshape/internal/apperr"
)

func TestRunWithRetryFailsFastOnAuthError(t *testing.T) {
	calls := 0
	err := runWithRetry(context.Background(), func() error {
		calls++
		return &apperr.LLMError{Provider: "openai", Kind: apperr.LLMErrAuth, Err: errors.New("401")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunWithRetryRetriesOnServerError(t *testing.T) {
	original := retrySchedule
	retrySchedule = []time.Duration{time.Millisecond, 2 * time.Millisecond}
	t.Cleanup(func() { retrySchedule = original })

	calls := 0
	err := runWithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &apperr.LLMError{Provider: "openai", Kind: apperr.LLMErrServer, Err: errors.New("500")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := runWithRetry(ctx, func() error {
		calls++
		return &apperr.LLMError{Provider: "openai", Kind: apperr.LLMErrServer, Err: errors.New("500")}
	})
	require.Error(t, err)
}

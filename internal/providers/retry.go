package providers

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/wenshape/internal/apperr"
)

// retrySchedule is spec.md §5's backoff ladder: 1s, 2s, 4s, 8s, 16s,
// capped at 60s with 0-10% jitter.
var retrySchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

const maxRetryDelay = 60 * time.Second

// runWithRetry retries fn against spec.md §5's LLM retry policy: timeout,
// connection, server, and rate-limit errors retry on the schedule above;
// auth, permission, and invalid-request errors fail fast.
func runWithRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(len(retrySchedule)+1)),
		retry.RetryIf(func(err error) bool {
			var llmErr *apperr.LLMError
			if errors.As(err, &llmErr) {
				return llmErr.Kind.Retryable()
			}
			return true
		}),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			base := maxRetryDelay
			if int(n) < len(retrySchedule) {
				base = retrySchedule[n]
			}
			jitter := time.Duration(rand.Int63n(int64(base) / 10))
			return base + jitter
		}),
		retry.LastErrorOnly(true),
	)
}

package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRetryable(t *testing.T) {
	cases := []struct {
		msg       string
		kind      LLMErrorKind
		retryable bool
	}{
		{"context deadline exceeded", LLMErrTimeout, true},
		{"connection refused", LLMErrConnection, true},
		{"429 Too Many Requests", LLMErrRateLimit, true},
		{"502 Bad Gateway", LLMErrServer, true},
		{"401 Unauthorized: invalid api key", LLMErrAuth, false},
		{"403 Forbidden", LLMErrPermission, false},
		{"400 Bad Request: invalid_request_error", LLMErrInvalidReq, false},
	}
	for _, c := range cases {
		err := NewLLMError("mock", errors.New(c.msg))
		assert.Equal(t, c.kind, err.Kind, c.msg)
		assert.Equal(t, c.retryable, err.Kind.Retryable(), c.msg)
	}
}

func TestLLMErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewLLMError("mock", base)
	assert.ErrorIs(t, err, base)
}

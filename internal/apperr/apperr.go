// Package apperr implements spec.md §7's error taxonomy as typed Go error
// values: StorageError, ValidationError, LLMError, and AgentError. Call
// sites branch on these with errors.As rather than string matching, except
// where spec.md §5 explicitly calls for a substring classifier (LLM
// retryability).
package apperr

import (
	"fmt"
	"strings"
)

// StorageError wraps a failure from internal/storage (re-exported here so
// higher layers that don't want to import internal/storage directly can
// still construct/inspect one uniformly alongside LLM/Agent errors).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError reports a rejected input (path, id, request field).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// LLMErrorKind classifies a provider failure for retry purposes, per
// spec.md §5.
type LLMErrorKind string

const (
	LLMErrTimeout    LLMErrorKind = "timeout"
	LLMErrConnection LLMErrorKind = "connection"
	LLMErrRateLimit  LLMErrorKind = "rate_limit"
	LLMErrServer     LLMErrorKind = "server"
	LLMErrAuth       LLMErrorKind = "auth"
	LLMErrPermission LLMErrorKind = "permission"
	LLMErrInvalidReq LLMErrorKind = "invalid_request"
	LLMErrUnknown    LLMErrorKind = "unknown"
)

// Retryable reports whether spec.md §5's retry policy should retry this
// kind: timeout, connection, server (5xx), and rate_limit are retryable;
// auth, permission, and invalid_request fail fast.
func (k LLMErrorKind) Retryable() bool {
	switch k {
	case LLMErrTimeout, LLMErrConnection, LLMErrServer, LLMErrRateLimit:
		return true
	default:
		return false
	}
}

// LLMError wraps a provider call failure with its classified kind and the
// provider name that produced it.
type LLMError struct {
	Provider string
	Kind     LLMErrorKind
	Err      error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm(%s): %s: %v", e.Provider, e.Kind, e.Err)
}
func (e *LLMError) Unwrap() error { return e.Err }

// NewLLMError classifies err by inspecting its message for the substring
// markers spec.md §5 names, since upstream HTTP clients do not always
// surface a typed status. This is the one place apperr falls back to
// string matching, as spec.md explicitly calls for.
func NewLLMError(provider string, err error) *LLMError {
	if err == nil {
		return nil
	}
	return &LLMError{Provider: provider, Kind: classify(err.Error()), Err: err}
}

func classify(msg string) LLMErrorKind {
	msg = strings.ToLower(msg)
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
	switch {
	case has("401", "unauthorized", "invalid api key", "authentication"):
		return LLMErrAuth
	case has("403", "forbidden", "permission"):
		return LLMErrPermission
	case has("400", "invalid_request", "bad request"):
		return LLMErrInvalidReq
	case has("429", "rate limit", "rate_limit", "too many requests"):
		return LLMErrRateLimit
	case has("timeout", "deadline exceeded", "context deadline"):
		return LLMErrTimeout
	case has("connection refused", "connection reset", "no such host", "eof", "broken pipe"):
		return LLMErrConnection
	case has("500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable"):
		return LLMErrServer
	default:
		return LLMErrUnknown
	}
}

// AgentKind classifies an agent-loop failure.
type AgentKind string

const (
	AgentErrMaxIterations AgentKind = "max_iterations"
	AgentErrToolFailure   AgentKind = "tool_failure"
	AgentErrInvalidOutput AgentKind = "invalid_output"
	AgentErrCancelled     AgentKind = "cancelled"
)

// AgentError wraps a failure in an agent's tool-calling loop.
type AgentError struct {
	Agent string
	Kind  AgentKind
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent(%s): %s: %v", e.Agent, e.Kind, e.Err)
}
func (e *AgentError) Unwrap() error { return e.Err }

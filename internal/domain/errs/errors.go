package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNoProviderAvailable = errors.New("all providers failed: no provider could be attempted")
	ErrBudgetExceeded      = errors.New("budget_exceeded")
	ErrInvalidSelection    = errors.New("invalid_selection")
	ErrContextUnavailable  = errors.New("context_unavailable")
)

// Provider error codes.
const (
	CodeRateLimited = "RATE_LIMITED"
	CodeAuthFailed  = "AUTH_FAILED"
	CodeBadRequest  = "BAD_REQUEST"
	CodeServerError = "SERVER_ERROR"
	CodeTimeout     = "TIMEOUT"
	CodeNetwork     = "NETWORK"
	CodeCircuitOpen = "CIRCUIT_OPEN"
	CodeBadResponse = "BAD_RESPONSE"
	CodeUnknown     = "UNKNOWN"
)

// ProviderError is returned by provider adapters.
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the provider error code, or UNKNOWN.
func CodeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	return CodeUnknown
}

// IsNonRetryable is true only for provider errors explicitly marked so.
func IsNonRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && !pe.Retryable
}

type BudgetExceededError struct {
	UserID  string
	SpentUS float64
	LimitUS float64
	Model   string
}

func (e *BudgetExceededError) Error() string {
	scope := "system"
	if e.UserID != "" {
		scope = "user " + e.UserID
	}
	return fmt.Sprintf("budget exceeded for %s: spent $%.4f of $%.4f (model %s)", scope, e.SpentUS, e.LimitUS, e.Model)
}

func (e *BudgetExceededError) Unwrap() error {
	return ErrBudgetExceeded
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidSelection
}

// PersistenceError wraps a sink failure. It is logged, never surfaced.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ContextUnavailableError makes the orchestrator skip a tick.
type ContextUnavailableError struct {
	Source string
	Err    error
}

func (e *ContextUnavailableError) Error() string {
	return fmt.Sprintf("context unavailable (%s): %v", e.Source, e.Err)
}

func (e *ContextUnavailableError) Unwrap() []error {
	return []error{ErrContextUnavailable, e.Err}
}

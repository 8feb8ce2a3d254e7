package utils

import (
	"errors"
	"fmt"
	"strings"
)

// TransientKind classifies a transient provider failure. Retry decisions
// are driven by this classification, never by matching error message text.
type TransientKind string

const (
	KindTimeout    TransientKind = "timeout"
	KindConnection TransientKind = "connection"
	KindRateLimit  TransientKind = "rate_limit"
)

// SchemaError reports a required field missing from provider data. It is
// fatal for the fetch attempt and never retried.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// NewSchemaError creates a SchemaError for the named missing columns.
func NewSchemaError(missing ...string) error {
	return &SchemaError{Missing: missing}
}

// TransientError reports a provider failure worth retrying: timeout,
// connection failure, or a rate-limit signal.
type TransientError struct {
	Kind TransientKind
	Err  error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transient provider error (%s)", e.Kind)
	}
	return fmt.Sprintf("transient provider error (%s): %v", e.Kind, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retryable provider failure.
func NewTransientError(kind TransientKind, err error) error {
	return &TransientError{Kind: kind, Err: err}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// EmptyResultError reports a provider or resampler that legitimately
// produced zero rows. For intraday timeframes with no configured provider
// this is an expected terminal state; for daily fetches it is a failure.
type EmptyResultError struct {
	Source string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s returned an empty result", e.Source)
}

// AllProvidersExhaustedError aggregates the last failure of every adapter
// in the source chain once all of them have run out of retries.
type AllProvidersExhaustedError struct {
	Symbol   string
	Failures map[string]error
}

func (e *AllProvidersExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for provider, err := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", provider, err))
	}
	return fmt.Sprintf("all providers exhausted for %s [%s]", e.Symbol, strings.Join(parts, "; "))
}

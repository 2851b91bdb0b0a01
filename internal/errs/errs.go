// Package errs defines the typed error taxonomy shared across compendium's
// packages so callers can branch on failure kind without string matching.
package errs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers (tool-surface handlers,
// resilience pipelines, logging) that need to react differently depending on
// what went wrong.
type ErrorKind string

const (
	KindInvalidArgument          ErrorKind = "invalid_argument"
	KindNotFound                 ErrorKind = "not_found"
	KindConflict                 ErrorKind = "conflict"
	KindDuplicateDocType          ErrorKind = "duplicate_doc_type"
	KindInvalidDocType           ErrorKind = "invalid_doc_type"
	KindValidationFailed          ErrorKind = "validation_failed"
	KindRateLimited               ErrorKind = "rate_limited"
	KindCircuitOpen               ErrorKind = "circuit_open"
	KindTimeout                   ErrorKind = "timeout"
	KindCancelled                 ErrorKind = "cancelled"
	KindProviderUnavailable       ErrorKind = "provider_unavailable"
	KindProviderContractViolation ErrorKind = "provider_contract_violation"
	KindStorageFailed             ErrorKind = "storage_failed"
	KindInternal                  ErrorKind = "internal"
)

// CompendiumError is the error type returned across package boundaries. It
// carries a Kind for programmatic handling and wraps the underlying Cause.
type CompendiumError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *CompendiumError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CompendiumError) Unwrap() error {
	return e.Cause
}

// New builds a CompendiumError with no wrapped cause.
func New(kind ErrorKind, message string) *CompendiumError {
	return &CompendiumError{Kind: kind, Message: message}
}

// Wrap builds a CompendiumError of kind wrapping cause. The new error always
// takes kind, even when cause is itself a *CompendiumError of another kind.
func Wrap(kind ErrorKind, message string, cause error) *CompendiumError {
	return &CompendiumError{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether the first CompendiumError in err's chain (err itself or
// the nearest one it wraps) has kind. CompendiumErrors wrapped deeper than
// that one are not examined.
func Is(err error, kind ErrorKind) bool {
	var ce *CompendiumError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal when err
// is not a CompendiumError.
func KindOf(err error) ErrorKind {
	var ce *CompendiumError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

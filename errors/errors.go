// Package errors provides error handling for farmhand.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and machine-readable details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "retry after the farm is reachable again")
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Common sentinel errors for the render orchestrator.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrInvalidRequest indicates a submission failed validation
	// (bad priority, chunk size, or missing fields). Never retried.
	ErrInvalidRequest = New("invalid request")

	// ErrUnknownFarm indicates the requested farm is not in the
	// capability registry snapshot.
	ErrUnknownFarm = New("unknown farm")

	// ErrAdapterNotImplemented indicates the farm is recognized but its
	// submission path is stubbed out.
	ErrAdapterNotImplemented = New("adapter not implemented")

	// ErrAdapterUnavailable indicates a transient farm outage. Carries a
	// hint and structured context so callers can decide whether to retry.
	ErrAdapterUnavailable = New("adapter unavailable")

	// ErrCancellationUnsupported indicates the job's adapter does not
	// expose a cancellation capability.
	ErrCancellationUnsupported = New("cancellation unsupported")

	// ErrNotFound indicates the requested job does not exist
	ErrNotFound = New("not found")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsUnknownFarmError checks if an error is or wraps ErrUnknownFarm
func IsUnknownFarmError(err error) bool {
	return err != nil && Is(err, ErrUnknownFarm)
}

// IsAdapterUnavailableError checks if an error is or wraps ErrAdapterUnavailable
func IsAdapterUnavailableError(err error) bool {
	return err != nil && Is(err, ErrAdapterUnavailable)
}

// IsCancellationUnsupportedError checks if an error is or wraps ErrCancellationUnsupported
func IsCancellationUnsupportedError(err error) bool {
	return err != nil && Is(err, ErrCancellationUnsupported)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

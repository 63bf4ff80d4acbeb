package model

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when an order does not exist or does not
// belong to the requesting user.
var ErrOrderNotFound = errors.New("order not found")

// ErrConnectionNotFound is returned when a user has no active credential
// record for the requested venue.
var ErrConnectionNotFound = errors.New("exchange connection not found")

// ValidationError reports a request or venue-constraint violation detected
// before any external side effect. Safe to retry after correction.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExecutionError wraps a venue-side rejection or failure so callers can tell
// engine-level causes from venue-level ones.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ReconciliationError marks the one unrecoverable category: the venue accepted
// an order but local persistence failed afterwards. It carries everything an
// operator needs to reconcile by hand and must never be retried blindly.
type ReconciliationError struct {
	VenueOrderIDs []string
	Exchange      string
	Symbol        string
	Quantity      float64
	Err           error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("order persisted on venue but not locally (venue order ids %v, %s %s qty %v): %v",
		e.VenueOrderIDs, e.Exchange, e.Symbol, e.Quantity, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

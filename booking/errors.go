/*
errors.go - Centralized error types for the booking engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers distinguish business errors (do not retry the same way) from
  infrastructure failures (safe to retry) via the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - Rejected before any state mutation
  2. Conflict errors   - Overlapping interval or idempotency key reuse
  3. Lifecycle errors  - Illegal status transitions
  4. Integrity errors  - Payment amount disagreement
  5. Store errors      - Persistence-level failures

USAGE:
  Callers match with errors.Is / errors.As:

    var conflict *booking.ConflictError
    if errors.As(err, &conflict) {
        // another booking holds the range
    }

SEE ALSO:
  - coordinator.go: Produces validation and conflict errors
  - reconciler.go: Produces integrity errors
  - ledger.go: Produces forbidden transition errors
*/
package booking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the base of all missing-entity errors.
	ErrNotFound = errors.New("not found")

	// ErrConflict is the base of all resource-contention errors.
	ErrConflict = errors.New("conflict")

	// ErrValidation is the base of all input validation errors.
	ErrValidation = errors.New("validation failed")

	// ErrForbiddenTransition is the base of illegal lifecycle moves.
	ErrForbiddenTransition = errors.New("forbidden status transition")

	// ErrIntegrity is the base of data disagreement errors (amount mismatch).
	ErrIntegrity = errors.New("integrity failure")

	// ErrConcurrentModification is returned when the optimistic version check
	// detects that another writer got there first. Retryable.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrStoreUnavailable wraps infrastructure-level persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a field-level input violation. Detected before any
// state is mutated; never partially applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing property or booking.
type NotFoundError struct {
	Kind string // "property", "booking"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports that a requested date range overlaps an existing
// hold, or that an idempotency key was reused with different arguments.
type ConflictError struct {
	PropertyID PropertyID
	Interval   Interval
	// ConflictingBookingID is set for overlap conflicts.
	ConflictingBookingID BookingID
	// Message is set for idempotency key reuse.
	Message string
}

func (e *ConflictError) Error() string {
	if e.ConflictingBookingID != "" {
		return fmt.Sprintf("property %s: %s overlaps booking %s",
			e.PropertyID, e.Interval, e.ConflictingBookingID)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("property %s: %s conflicts with an existing hold", e.PropertyID, e.Interval)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ForbiddenTransitionError reports an attempted move outside the state machine.
type ForbiddenTransitionError struct {
	BookingID BookingID
	From      Status
	To        Status
}

func (e *ForbiddenTransitionError) Error() string {
	return fmt.Sprintf("booking %s: transition %s -> %s is not allowed", e.BookingID, e.From, e.To)
}

func (e *ForbiddenTransitionError) Unwrap() error { return ErrForbiddenTransition }

// IntegrityError reports a payment event whose amount disagrees with the
// booking's stored amount. The payment record is kept for reconciliation.
type IntegrityError struct {
	BookingID       BookingID
	ProviderEventID string
	Expected        Money
	Received        Money
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("booking %s: payment event %s amount %s does not match booked amount %s",
		e.BookingID, e.ProviderEventID, e.Received, e.Expected)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to the caller's input and
// retrying the identical request cannot succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbiddenTransition) ||
		errors.Is(err, ErrIntegrity)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

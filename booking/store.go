/*
store.go - Persistence interface for bookings, payments, and idempotency

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage; the engine's
  correctness depends only on the atomicity contracts stated here.

ATOMICITY CONTRACTS:
  CreateBooking: the booking row and its idempotency record commit together
  or not at all. A reservation win must never be left unreflected in the
  ledger, and a ledger write must never lack its replay memo.

  RecordPayment: the payment row, its idempotency record, and the optional
  status change commit together or not at all. Two deliveries of the same
  provider event can never both apply.

  UpdateStatus: the status change, version bump, and audit row commit
  together. The ExpectedVersion check rejects lost updates.

WRITE-ONCE SEMANTICS:
  Idempotency records and payments are never updated or deleted. Status is
  the only mutable booking field; price terms are frozen at creation.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - booking/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Transition legality layered on top of this interface
*/
package booking

import (
	"context"
	"time"
)

// =============================================================================
// STATUS CHANGE - One guarded lifecycle move
// =============================================================================

// StatusChange describes a transition to apply atomically. Legality is
// checked by the Ledger before a change reaches the store; the store only
// guards against concurrent writers via From and ExpectedVersion.
type StatusChange struct {
	BookingID       BookingID
	From            Status
	To              Status
	ExpectedVersion int64
	Actor           string
	Reason          string
}

// =============================================================================
// LIST FILTER - Query shape for booking listings
// =============================================================================

// ListFilter narrows and pages booking listings. Zero-valued fields are
// ignored. Results are ordered by CreatedAt descending.
type ListFilter struct {
	GuestID    GuestID
	PropertyID PropertyID
	Status     Status

	// From/To select bookings whose stay overlaps [From, To).
	From Date
	To   Date

	Page     int // 1-based; 0 means first page
	PageSize int // 0 means the implementation default
}

// =============================================================================
// STORE - Persistence interface
// =============================================================================

type Store interface {
	// CreateBooking persists a new pending booking together with its
	// idempotency record. Fails with ErrConflict if the idempotency key or
	// booking id already exists; nothing is written in that case.
	CreateBooking(ctx context.Context, b *Booking, idem IdempotencyRecord) error

	// GetBooking returns the booking or nil if it does not exist.
	GetBooking(ctx context.Context, id BookingID) (*Booking, error)

	// UpdateStatus applies a status change, bumps the version, and records
	// the audit transition, atomically. Returns ErrConcurrentModification
	// if the booking is no longer at (From, ExpectedVersion).
	UpdateStatus(ctx context.Context, change StatusChange) (*Booking, error)

	// ListBookings returns a page of bookings matching the filter plus the
	// total match count.
	ListBookings(ctx context.Context, filter ListFilter) ([]Booking, int, error)

	// ActiveBookings returns all pending and confirmed bookings.
	// Used to rebuild the interval index on startup.
	ActiveBookings(ctx context.Context) ([]Booking, error)

	// ConfirmedEndingBefore returns confirmed bookings whose EndDate is on
	// or before the given day (checkout has happened). Sweeper input.
	ConfirmedEndingBefore(ctx context.Context, day Date) ([]Booking, error)

	// PendingCreatedBefore returns pending bookings created before the
	// cutoff. Sweeper input for expiry.
	PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]Booking, error)

	// Transitions returns the audit trail for a booking, oldest first.
	Transitions(ctx context.Context, id BookingID) ([]Transition, error)

	// GetIdempotency returns the record for (scope, key) or nil if the key
	// has never been observed.
	GetIdempotency(ctx context.Context, scope IdempotencyScope, key string) (*IdempotencyRecord, error)

	// RecordPayment persists a payment, its idempotency record, and the
	// optional status change, atomically. Fails with ErrConflict if the
	// provider event id or idempotency key already exists.
	RecordPayment(ctx context.Context, p Payment, idem IdempotencyRecord, change *StatusChange) error

	// Payments returns all payment records for a booking, oldest first.
	Payments(ctx context.Context, id BookingID) ([]Payment, error)

	// HasAppliedPayment reports whether a payment with FlagApplied exists
	// for the booking.
	HasAppliedPayment(ctx context.Context, id BookingID) (bool, error)
}

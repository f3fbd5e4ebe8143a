/*
ledger.go - Reservation ledger and lifecycle state machine

PURPOSE:
  The Ledger is the source of truth for booking lifecycle. It is the single
  place that knows which status transitions are legal:

      pending ──▶ confirmed ──▶ completed
         │             │
         └──▶ canceled ◀┘

  All other moves are rejected with ForbiddenTransitionError. No component
  outside this package mutates booking status.

CRITICAL INVARIANTS:
  1. MONOTONIC: No transition skips a state or moves backward except the
     two explicit cancellation edges.
  2. VERSIONED: Every transition bumps the booking version; the store
     rejects writers holding a stale version.
  3. AUDITED: Every transition records who made it and why.

CORRECTIONS:
  There is no "un-cancel". A payment arriving for a canceled booking is
  recorded for refund handling, never replayed into the lifecycle.

SEE ALSO:
  - store.go: Atomicity contracts the ledger relies on
  - coordinator.go / reconciler.go / sweeper.go: The only callers
*/
package booking

import (
	"context"
	"fmt"
)

// =============================================================================
// STATE MACHINE
// =============================================================================

var legalTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCanceled:  true,
	},
	StatusConfirmed: {
		StatusCompleted: true,
		StatusCanceled:  true,
	},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	return legalTransitions[from][to]
}

// =============================================================================
// LEDGER - Lifecycle gatekeeper over the store
// =============================================================================

type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Store exposes the underlying store for read-only queries.
func (l *Ledger) Store() Store { return l.store }

// Create persists a freshly built pending booking with its replay memo.
func (l *Ledger) Create(ctx context.Context, b *Booking, idem IdempotencyRecord) error {
	if b.Status != StatusPending {
		return &ForbiddenTransitionError{BookingID: b.ID, From: b.Status, To: StatusPending}
	}
	return l.store.CreateBooking(ctx, b, idem)
}

// Get returns the booking or a NotFoundError.
func (l *Ledger) Get(ctx context.Context, id BookingID) (*Booking, error) {
	b, err := l.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking %s: %w", id, err)
	}
	if b == nil {
		return nil, &NotFoundError{Kind: "booking", ID: string(id)}
	}
	return b, nil
}

// Transition moves a booking to a new status after checking legality against
// the booking's current state. The store enforces the version guard.
func (l *Ledger) Transition(ctx context.Context, b *Booking, to Status, actor, reason string) (*Booking, error) {
	if !CanTransition(b.Status, to) {
		return nil, &ForbiddenTransitionError{BookingID: b.ID, From: b.Status, To: to}
	}
	return l.store.UpdateStatus(ctx, StatusChange{
		BookingID:       b.ID,
		From:            b.Status,
		To:              to,
		ExpectedVersion: b.Version,
		Actor:           actor,
		Reason:          reason,
	})
}

// ChangeFor builds the StatusChange for a legal transition without applying
// it. Used when the change must commit atomically with other writes
// (payment application).
func (l *Ledger) ChangeFor(b *Booking, to Status, actor, reason string) (*StatusChange, error) {
	if !CanTransition(b.Status, to) {
		return nil, &ForbiddenTransitionError{BookingID: b.ID, From: b.Status, To: to}
	}
	return &StatusChange{
		BookingID:       b.ID,
		From:            b.Status,
		To:              to,
		ExpectedVersion: b.Version,
		Actor:           actor,
		Reason:          reason,
	}, nil
}

// List returns a page of bookings matching the filter and the total count.
func (l *Ledger) List(ctx context.Context, filter ListFilter) ([]Booking, int, error) {
	return l.store.ListBookings(ctx, filter)
}

// History returns the audit trail for a booking, oldest first.
func (l *Ledger) History(ctx context.Context, id BookingID) ([]Transition, error) {
	if _, err := l.Get(ctx, id); err != nil {
		return nil, err
	}
	return l.store.Transitions(ctx, id)
}

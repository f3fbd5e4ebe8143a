/*
reconciler.go - Payment provider event reconciliation

PURPOSE:
  Consumes events from the external payment provider and maps them onto
  booking lifecycle transitions. Providers deliver at-least-once and
  possibly out of order, so every effect here is keyed by provider event id
  and applied exactly once.

EVENT FLOW:
  event ──▶ known event id? ──yes──▶ return stored outcome (no-op)
               │no
               ▼
          look up booking
               │
       ┌───────┼────────────────┐
       ▼       ▼                ▼
   canceled  amount mismatch  pending/confirmed
   record    record payment,  apply outcome, maybe
   refund_due integrity error  transition to confirmed

ATOMICITY:
  The payment row, the idempotency record, and the status change commit in
  one store transaction. Two concurrent deliveries of the same event cannot
  both pass the duplicate check and both commit: the store's unique keys
  reject the loser, which is then reported as an idempotent no-op.

POLICY:
  With RequireHostConfirmation set, a successful payment is applied but the
  booking stays pending until the host confirms (coordinator.Confirm).

SEE ALSO:
  - store.go: RecordPayment atomicity contract
  - ledger.go: Transition legality
*/
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PROVIDER EVENT
// =============================================================================

// ProviderEvent is a payment outcome notification. ProviderEventID is unique
// per provider and is the idempotency key for webhook processing.
type ProviderEvent struct {
	ProviderEventID string
	BookingID       BookingID
	Outcome         PaymentOutcome
	Amount          Money
}

// EventResult reports what a delivery did. Duplicate is true when the event
// had already been processed and nothing was mutated.
type EventResult struct {
	Booking   *Booking
	Payment   *Payment
	Duplicate bool
}

// =============================================================================
// RECONCILER
// =============================================================================

type Reconciler struct {
	ledger *Ledger
	policy Policy

	now func() time.Time
}

func NewReconciler(ledger *Ledger, policy Policy) *Reconciler {
	return &Reconciler{ledger: ledger, policy: policy, now: time.Now}
}

// WithClock overrides the reconciler's clock. Test hook.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// HandleProviderEvent applies one provider delivery. Safe to call any number
// of times with the same event.
func (r *Reconciler) HandleProviderEvent(ctx context.Context, ev ProviderEvent) (*EventResult, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	// Fast-path duplicate check. The commit below re-checks atomically.
	if dup, err := r.alreadyProcessed(ctx, ev); dup != nil || err != nil {
		return dup, err
	}

	b, err := r.ledger.Get(ctx, ev.BookingID)
	if err != nil {
		return nil, err
	}

	payment := Payment{
		ID:              PaymentID(uuid.NewString()),
		BookingID:       ev.BookingID,
		ProviderEventID: ev.ProviderEventID,
		Amount:          ev.Amount,
		Outcome:         ev.Outcome,
		ReceivedAt:      r.now(),
	}

	var change *StatusChange
	var resultErr error

	switch {
	case ev.Outcome == PaymentFailed:
		// The guest may retry; expiry is the sweeper's call.
		payment.Flag = FlagFailed

	case !ev.Amount.Equal(b.Amount):
		// Never silently accepted, but the record is kept for reconciliation.
		payment.Flag = FlagAmountMismatch
		resultErr = &IntegrityError{
			BookingID:       b.ID,
			ProviderEventID: ev.ProviderEventID,
			Expected:        b.Amount,
			Received:        ev.Amount,
		}

	case b.Status == StatusCanceled:
		// Paid after cancellation: surface for refund, never resurrect.
		payment.Flag = FlagRefundDue

	case b.Status == StatusCompleted:
		payment.Flag = FlagSurplus

	default:
		applied, err := r.ledger.Store().HasAppliedPayment(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("applied payment lookup: %w", err)
		}
		if applied {
			payment.Flag = FlagSurplus
			break
		}
		payment.Flag = FlagApplied
		if b.Status == StatusPending && !r.policy.RequireHostConfirmation {
			change, err = r.ledger.ChangeFor(b, StatusConfirmed, "payment-provider",
				"payment "+ev.ProviderEventID+" succeeded")
			if err != nil {
				return nil, err
			}
		}
	}

	idem := IdempotencyRecord{
		Scope:       ScopeWebhook,
		Key:         ev.ProviderEventID,
		Fingerprint: eventFingerprint(ev),
		Result:      string(payment.ID),
		CreatedAt:   r.now(),
	}

	if err := r.ledger.Store().RecordPayment(ctx, payment, idem, change); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the race against another delivery of the same event.
			if dup, derr := r.alreadyProcessed(ctx, ev); dup != nil || derr != nil {
				return dup, derr
			}
		}
		return nil, err
	}

	if resultErr != nil {
		log.Printf("[Reconciler] integrity failure on booking %s: %v", b.ID, resultErr)
		return &EventResult{Booking: b, Payment: &payment}, resultErr
	}

	if change != nil {
		if b, err = r.ledger.Get(ctx, b.ID); err != nil {
			return nil, err
		}
	}
	return &EventResult{Booking: b, Payment: &payment}, nil
}

// alreadyProcessed returns the stored outcome for a known provider event id.
func (r *Reconciler) alreadyProcessed(ctx context.Context, ev ProviderEvent) (*EventResult, error) {
	rec, err := r.ledger.Store().GetIdempotency(ctx, ScopeWebhook, ev.ProviderEventID)
	if err != nil {
		return nil, fmt.Errorf("webhook idempotency lookup: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	b, err := r.ledger.Get(ctx, ev.BookingID)
	if err != nil {
		return nil, err
	}
	return &EventResult{Booking: b, Duplicate: true}, nil
}

// Payments lists the recorded payments for a booking, oldest first.
func (r *Reconciler) Payments(ctx context.Context, id BookingID) ([]Payment, error) {
	if _, err := r.ledger.Get(ctx, id); err != nil {
		return nil, err
	}
	return r.ledger.Store().Payments(ctx, id)
}

func validateEvent(ev ProviderEvent) error {
	switch {
	case ev.ProviderEventID == "":
		return &ValidationError{Field: "provider_event_id", Message: "required"}
	case ev.BookingID == "":
		return &ValidationError{Field: "booking_id", Message: "required"}
	case ev.Outcome != PaymentSucceeded && ev.Outcome != PaymentFailed:
		return &ValidationError{Field: "outcome", Message: "must be succeeded or failed"}
	}
	return nil
}

func eventFingerprint(ev ProviderEvent) string {
	return fmt.Sprintf("%s|%s|%s", ev.BookingID, ev.Outcome, ev.Amount)
}

/*
coordinator.go - Booking creation and lifecycle orchestration

PURPOSE:
  The Coordinator is the only entry point for creating bookings and the
  guest/host-facing lifecycle operations (cancel, confirm). It stitches the
  interval index and the ledger together under a per-property critical
  section so the no-overlap invariant holds under concurrency.

CREATE FLOW:
  1. Replay check: a known idempotency key returns the original result
     without side effects
  2. Validate input fields (no state touched on violation)
  3. Fetch the property snapshot BEFORE entering the critical section,
     keeping lock hold time free of collaborator I/O
  4. Per-property critical section:
       a. probe the interval index for overlap
       b. persist booking + idempotency record (one atomic store commit)
       c. register the hold in the index
  5. Return the booking with its frozen price terms

  Step 4 closes the partial-failure window by construction: the hold is
  registered only after the ledger commit succeeds, and both happen under
  the same lock, so no concurrent caller can observe a reservation without
  its ledger row or vice versa.

CONCURRENCY:
  One mutex per property id, lazily created. Requests against different
  properties proceed in parallel; two overlapping requests against the same
  property serialize and yield exactly one success and one conflict.

SEE ALSO:
  - interval.go: The index probed inside the critical section
  - ledger.go: Transition legality for cancel/confirm
  - reconciler.go: The payment-driven confirm path
*/
package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PER-PROPERTY LOCK ARENA
// =============================================================================

// propertyLocks hands out one lock per property id. The guarding mutex is
// held only for map access, never across a critical section.
type propertyLocks struct {
	mu    sync.Mutex
	locks map[PropertyID]*chanLock
}

// chanLock is a channel-based mutex so lock acquisition stays interruptible
// by context cancellation before the atomic commit step.
type chanLock struct{ ch chan struct{} }

func newChanLock() *chanLock {
	l := &chanLock{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

// Acquire blocks until the lock is free or the context is done.
func (l *chanLock) Acquire(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *chanLock) Release() { l.ch <- struct{}{} }

func newPropertyLocks() *propertyLocks {
	return &propertyLocks{locks: make(map[PropertyID]*chanLock)}
}

func (pl *propertyLocks) forProperty(id PropertyID) *chanLock {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	l := pl.locks[id]
	if l == nil {
		l = newChanLock()
		pl.locks[id] = l
	}
	return l
}

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	ledger  *Ledger
	index   *Index
	catalog PropertyCatalog
	policy  Policy
	locks   *propertyLocks

	// now is swappable for tests.
	now func() time.Time
}

func NewCoordinator(ledger *Ledger, index *Index, catalog PropertyCatalog, policy Policy) *Coordinator {
	return &Coordinator{
		ledger:  ledger,
		index:   index,
		catalog: catalog,
		policy:  policy,
		locks:   newPropertyLocks(),
		now:     time.Now,
	}
}

// WithClock overrides the coordinator's clock. Test hook.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Ledger exposes the ledger for read paths (listings, history).
func (c *Coordinator) Ledger() *Ledger { return c.ledger }

// RestoreIndex rebuilds the interval index from pending/confirmed ledger
// rows. Called once on startup before serving requests.
func (c *Coordinator) RestoreIndex(ctx context.Context) error {
	active, err := c.ledger.Store().ActiveBookings(ctx)
	if err != nil {
		return fmt.Errorf("restore interval index: %w", err)
	}
	c.index.Rebuild(active)
	return nil
}

// =============================================================================
// CREATE BOOKING
// =============================================================================

// CreateInput carries a booking request. IdempotencyKey is caller-supplied
// and unique per guest; retrying with the same key and arguments returns
// the original booking.
type CreateInput struct {
	PropertyID     PropertyID
	GuestID        GuestID
	StartDate      Date
	EndDate        Date
	Guests         int
	IdempotencyKey string
}

// CreateResult is the booking plus whether it was an idempotent replay.
type CreateResult struct {
	Booking  *Booking
	Replayed bool
}

// fingerprint hashes the arguments that must match on replay. A known key
// with a different fingerprint is key reuse, which is a conflict.
func (in CreateInput) fingerprint() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%d",
		in.PropertyID, in.GuestID, in.StartDate, in.EndDate, in.Guests)))
	return hex.EncodeToString(h[:])
}

// scopedKey namespaces the caller-supplied key by guest, per the uniqueness
// contract: the same key from two guests identifies two different requests.
func (in CreateInput) scopedKey() string {
	return string(in.GuestID) + "/" + in.IdempotencyKey
}

func (c *Coordinator) CreateBooking(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := c.validateInput(in); err != nil {
		return nil, err
	}

	// Replay fast path: no side effects for a known key.
	if res, err := c.replay(ctx, in); res != nil || err != nil {
		return res, err
	}

	// Collaborator I/O happens before the critical section.
	prop, err := c.catalog.Snapshot(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := c.validateAgainstProperty(in, prop); err != nil {
		return nil, err
	}

	lock := c.locks.forProperty(in.PropertyID)
	if err := lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer lock.Release()

	// A racing request may have recorded the same key while we waited.
	if res, err := c.replay(ctx, in); res != nil || err != nil {
		return res, err
	}

	iv := NewInterval(in.StartDate, in.EndDate)
	if conflicting, overlap := c.index.Overlapping(in.PropertyID, iv); overlap {
		return nil, &ConflictError{
			PropertyID:           in.PropertyID,
			Interval:             iv,
			ConflictingBookingID: conflicting,
		}
	}

	now := c.now()
	b := &Booking{
		ID:             BookingID(uuid.NewString()),
		PropertyID:     in.PropertyID,
		GuestID:        in.GuestID,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Guests:         in.Guests,
		Nights:         iv.Nights(),
		PricePerNight:  prop.PricePerNight,
		Amount:         prop.PricePerNight.MulInt(iv.Nights()),
		Status:         StatusPending,
		IdempotencyKey: in.IdempotencyKey,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	idem := IdempotencyRecord{
		Scope:       ScopeBookingCreation,
		Key:         in.scopedKey(),
		Fingerprint: in.fingerprint(),
		Result:      string(b.ID),
		CreatedAt:   now,
	}

	if err := c.ledger.Create(ctx, b, idem); err != nil {
		// Nothing registered in the index: the unit of work aborts whole.
		return nil, err
	}

	// The ledger row exists; registering the hold cannot fail and happens
	// under the same lock, so the pair is observed atomically.
	c.index.TryReserve(in.PropertyID, iv, b.ID)

	return &CreateResult{Booking: b}, nil
}

// replay returns the stored result for a known idempotency key, or nil if
// the key is new.
func (c *Coordinator) replay(ctx context.Context, in CreateInput) (*CreateResult, error) {
	rec, err := c.ledger.Store().GetIdempotency(ctx, ScopeBookingCreation, in.scopedKey())
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Fingerprint != in.fingerprint() {
		return nil, &ConflictError{
			PropertyID: in.PropertyID,
			Message:    fmt.Sprintf("idempotency key %q was already used with different arguments", in.IdempotencyKey),
		}
	}
	b, err := c.ledger.Get(ctx, BookingID(rec.Result))
	if err != nil {
		return nil, err
	}
	return &CreateResult{Booking: b, Replayed: true}, nil
}

func (c *Coordinator) validateInput(in CreateInput) error {
	switch {
	case in.PropertyID == "":
		return &ValidationError{Field: "property_id", Message: "required"}
	case in.GuestID == "":
		return &ValidationError{Field: "guest_id", Message: "required"}
	case in.IdempotencyKey == "":
		return &ValidationError{Field: "idempotency_key", Message: "required"}
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return &ValidationError{Field: "dates", Message: "start_date and end_date are required"}
	case !in.EndDate.After(in.StartDate):
		return &ValidationError{Field: "end_date", Message: "must be after start_date"}
	case in.Guests <= 0:
		return &ValidationError{Field: "guests", Message: "must be positive"}
	}
	if !c.policy.AllowPastCheckIn && in.StartDate.Before(DateOf(c.now())) {
		return &ValidationError{Field: "start_date", Message: "must not be in the past"}
	}
	return nil
}

func (c *Coordinator) validateAgainstProperty(in CreateInput, prop *PropertySnapshot) error {
	nights := DaysBetween(in.StartDate, in.EndDate)
	switch {
	case in.Guests > prop.MaxGuests:
		return &ValidationError{Field: "guests",
			Message: fmt.Sprintf("property sleeps at most %d", prop.MaxGuests)}
	case prop.MinStay > 0 && nights < prop.MinStay:
		return &ValidationError{Field: "end_date",
			Message: fmt.Sprintf("stay must be at least %d nights", prop.MinStay)}
	case prop.MaxStay > 0 && nights > prop.MaxStay:
		return &ValidationError{Field: "end_date",
			Message: fmt.Sprintf("stay must be at most %d nights", prop.MaxStay)}
	}
	return nil
}

// =============================================================================
// CANCEL / CONFIRM
// =============================================================================

// Cancel moves a booking to canceled and frees its dates. Canceling a
// booking that is already canceled or completed is a no-op returning the
// current state: retries must be safe.
func (c *Coordinator) Cancel(ctx context.Context, id BookingID, actor, reason string) (*Booking, error) {
	b, err := c.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return b, nil
	}

	lock := c.locks.forProperty(b.PropertyID)
	if err := lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer lock.Release()

	// Re-read under the lock: the sweeper or a webhook may have moved it.
	if b, err = c.ledger.Get(ctx, id); err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return b, nil
	}

	updated, err := c.ledger.Transition(ctx, b, StatusCanceled, actor, reason)
	if err != nil {
		return nil, err
	}
	c.index.Release(updated.PropertyID, updated.ID)
	return updated, nil
}

// Confirm applies an explicit host confirmation. Permitted only from
// pending. The interval hold is unchanged: it has been held since pending.
func (c *Coordinator) Confirm(ctx context.Context, id BookingID, actor string) (*Booking, error) {
	b, err := c.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.ledger.Transition(ctx, b, StatusConfirmed, actor, "host confirmation")
}

// =============================================================================
// READS
// =============================================================================

// Get returns a booking by id.
func (c *Coordinator) Get(ctx context.Context, id BookingID) (*Booking, error) {
	return c.ledger.Get(ctx, id)
}

// List returns a filtered, paginated booking listing with the total count.
func (c *Coordinator) List(ctx context.Context, filter ListFilter) ([]Booking, int, error) {
	return c.ledger.List(ctx, filter)
}

// History returns a booking's transition audit trail.
func (c *Coordinator) History(ctx context.Context, id BookingID) ([]Transition, error) {
	return c.ledger.History(ctx, id)
}

// CheckAvailability reports whether the range is free for the property.
// Purely advisory: only CreateBooking reserves.
func (c *Coordinator) CheckAvailability(ctx context.Context, propertyID PropertyID, iv Interval) (bool, error) {
	if _, err := c.catalog.Snapshot(ctx, propertyID); err != nil {
		return false, err
	}
	if !iv.End.After(iv.Start) {
		return false, &ValidationError{Field: "end_date", Message: "must be after start_date"}
	}
	_, overlap := c.index.Overlapping(propertyID, iv)
	return !overlap, nil
}

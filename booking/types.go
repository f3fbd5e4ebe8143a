/*
Package booking provides the core reservation engine.

PURPOSE:
  This package contains the types and algorithms that guarantee a rentable
  property is never double-booked for overlapping date ranges, and that a
  booking's lifecycle stays consistent while payment confirmation arrives
  asynchronously from an external provider.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: A calendar day (stays are priced and reserved per night)
  - Money: A decimal amount with a currency (never floats)
  - Booking: The reservation entity with its lifecycle status
  - Payment: A recorded provider event outcome for a booking
  - IdempotencyRecord: Write-once memo of a previously produced result
  - PropertySnapshot: Read-only view of the external Property collaborator

DESIGN PRINCIPLES:
  1. Immutability: A booking's price and amount never change after creation
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing booking/property IDs
  4. Auditability: Every status change records its actor and timestamp

SEE ALSO:
  - interval.go: Per-property interval index (no-overlap invariant)
  - ledger.go: Status transition legality and persistence
  - coordinator.go: Booking creation and lifecycle orchestration
*/
package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Calendar day (stays are half-open date ranges)
// =============================================================================

// Date is a calendar day in UTC. Check-in and check-out times of day are
// irrelevant to reservation conflicts; only the day matters.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }
func (d Date) AddDays(n int) Date            { return Date{Time: d.normalize().AddDate(0, 0, n)} }
func (d Date) IsZero() bool                  { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	u := d.Time.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// DaysBetween returns the number of nights from one date to another.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// =============================================================================
// MONEY - Decimal amount with currency
// =============================================================================

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount string, currency string) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		d = decimal.Zero
	}
	return Money{Amount: d, Currency: currency}
}

func NewMoneyFromDecimal(d decimal.Decimal, currency string) Money {
	return Money{Amount: d, Currency: currency}
}

func (m Money) MulInt(n int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(n))), Currency: m.Currency}
}

func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

func (m Money) String() string { return m.Amount.StringFixed(2) + " " + m.Currency }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookingID string
type PropertyID string
type GuestID string
type PaymentID string

// =============================================================================
// BOOKING - The reservation entity
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool { return s == StatusCanceled || s == StatusCompleted }

// HoldsInterval reports whether a booking in this status occupies its date
// range in the interval index. Only pending and confirmed bookings hold.
func (s Status) HoldsInterval() bool { return s == StatusPending || s == StatusConfirmed }

// Booking is a guest's reservation of a property for [StartDate, EndDate).
//
// INVARIANTS:
//   - EndDate is strictly after StartDate
//   - PricePerNight and Amount are snapshotted at creation and never change,
//     regardless of later property price edits
//   - Version increases by one on every status transition
type Booking struct {
	ID         BookingID
	PropertyID PropertyID
	GuestID    GuestID

	StartDate Date
	EndDate   Date
	Guests    int
	Nights    int

	// Price terms frozen at creation time.
	PricePerNight Money
	Amount        Money

	Status         Status
	IdempotencyKey string
	Version        int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the booking's half-open stay range.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartDate, End: b.EndDate}
}

// Transition records one status change for audit.
type Transition struct {
	BookingID BookingID
	From      Status
	To        Status
	Actor     string
	Reason    string
	At        time.Time
}

// =============================================================================
// PAYMENT - Recorded provider event outcome
// =============================================================================

type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentFailed    PaymentOutcome = "failed"
)

// PaymentFlag marks payments that need operator attention.
type PaymentFlag string

const (
	// FlagApplied marks the one successful payment that confirmed the booking.
	FlagApplied PaymentFlag = "applied"
	// FlagFailed marks a failed attempt; the booking stays pending.
	FlagFailed PaymentFlag = "failed"
	// FlagRefundDue marks a successful payment for an already-canceled booking.
	FlagRefundDue PaymentFlag = "refund_due"
	// FlagAmountMismatch marks a payment whose amount disagrees with the booking.
	FlagAmountMismatch PaymentFlag = "amount_mismatch"
	// FlagSurplus marks a successful payment arriving after one was already applied.
	FlagSurplus PaymentFlag = "surplus"
)

// Payment is an immutable record of one provider event. A booking may
// accumulate several (retries, duplicates) but at most one carries FlagApplied.
type Payment struct {
	ID              PaymentID
	BookingID       BookingID
	ProviderEventID string
	Amount          Money
	Outcome         PaymentOutcome
	Flag            PaymentFlag
	ReceivedAt      time.Time
}

// =============================================================================
// IDEMPOTENCY RECORD - Write-once request memo
// =============================================================================

type IdempotencyScope string

const (
	ScopeBookingCreation IdempotencyScope = "booking_creation"
	ScopeWebhook         IdempotencyScope = "webhook"
)

// IdempotencyRecord remembers the outcome already produced for a key.
// Created on first observation, read on every subsequent one, never mutated.
type IdempotencyRecord struct {
	Scope       IdempotencyScope
	Key         string
	Fingerprint string // hash of the request arguments, detects key reuse
	Result      string // the id of the entity the original request produced
	CreatedAt   time.Time
}

// =============================================================================
// PROPERTY SNAPSHOT - Read-only view of the external collaborator
// =============================================================================

// PropertySnapshot is what the engine reads about a property at booking time.
// The Property itself is owned and mutated by its own collaborator; bookings
// freeze the price they saw.
type PropertySnapshot struct {
	ID            PropertyID
	PricePerNight Money
	MaxGuests     int
	MinStay       int // 0 = no bound
	MaxStay       int // 0 = no bound
}

// PropertyCatalog is the interface to the Property Management collaborator.
type PropertyCatalog interface {
	// Snapshot returns a consistent read of the property, or
	// a NotFoundError if it does not exist.
	Snapshot(ctx context.Context, id PropertyID) (*PropertySnapshot, error)
}

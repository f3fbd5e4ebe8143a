package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgic/booking-engine/booking"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type reconcilerFixture struct {
	*engineFixture
	rec *booking.Reconciler
}

func newReconcilerFixture(t *testing.T, policy booking.Policy) *reconcilerFixture {
	t.Helper()
	f := newEngine(t, policy)
	rec := booking.NewReconciler(booking.NewLedger(f.store), policy).WithClock(testClock)
	return &reconcilerFixture{engineFixture: f, rec: rec}
}

func successEvent(eventID string, b *booking.Booking) booking.ProviderEvent {
	return booking.ProviderEvent{
		ProviderEventID: eventID,
		BookingID:       b.ID,
		Outcome:         booking.PaymentSucceeded,
		Amount:          b.Amount,
	}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestHandleProviderEvent_MatchingPaymentConfirms(t *testing.T) {
	// GIVEN: A pending booking with amount 600.00
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	// WHEN: The provider reports a matching successful payment
	res, err := f.rec.HandleProviderEvent(ctx, successEvent("evt-1", created.Booking))
	require.NoError(t, err)

	// THEN: The booking is confirmed, the payment is the applied one
	assert.Equal(t, booking.StatusConfirmed, res.Booking.Status)
	assert.Equal(t, booking.FlagApplied, res.Payment.Flag)
	assert.False(t, res.Duplicate)

	history, err := f.coord.History(ctx, created.Booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 2, "creation row plus the payment-driven confirm")
	assert.Equal(t, "payment-provider", history[1].Actor)
}

func TestHandleProviderEvent_FailedPaymentKeepsPending(t *testing.T) {
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	ev := successEvent("evt-1", created.Booking)
	ev.Outcome = booking.PaymentFailed
	res, err := f.rec.HandleProviderEvent(ctx, ev)
	require.NoError(t, err)

	assert.Equal(t, booking.StatusPending, res.Booking.Status)
	assert.Equal(t, booking.FlagFailed, res.Payment.Flag)

	// The guest retries and succeeds
	res, err = f.rec.HandleProviderEvent(ctx, successEvent("evt-2", created.Booking))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, res.Booking.Status)
}

// =============================================================================
// IDEMPOTENT DELIVERY
// =============================================================================

func TestHandleProviderEvent_RepeatedDeliveriesAreNoOps(t *testing.T) {
	// GIVEN: A successful payment already processed
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	ev := successEvent("evt-1", created.Booking)
	_, err = f.rec.HandleProviderEvent(ctx, ev)
	require.NoError(t, err)

	// WHEN: The provider redelivers the same event five more times
	for i := 0; i < 5; i++ {
		res, err := f.rec.HandleProviderEvent(ctx, ev)
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Equal(t, booking.StatusConfirmed, res.Booking.Status)
	}

	// THEN: Exactly one payment row and one transition exist
	payments, err := f.rec.Payments(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	history, err := f.coord.History(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestHandleProviderEvent_ConcurrentDeliveries_SingleEffect(t *testing.T) {
	// GIVEN: The same event delivered by 10 concurrent webhook workers
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)
	ev := successEvent("evt-race", created.Booking)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.rec.HandleProviderEvent(ctx, ev)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	payments, err := f.rec.Payments(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "one payment row regardless of delivery count")

	history, err := f.coord.History(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

// =============================================================================
// AMOUNT MISMATCH
// =============================================================================

func TestHandleProviderEvent_AmountMismatchFlaggedNotApplied(t *testing.T) {
	// GIVEN: A pending booking costing 600.00
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	// WHEN: The provider reports 500.00 paid
	ev := successEvent("evt-1", created.Booking)
	ev.Amount = booking.NewMoney("500.00", "USD")
	_, err = f.rec.HandleProviderEvent(ctx, ev)

	// THEN: Integrity error; booking untouched; payment recorded for review
	require.Error(t, err)
	assert.True(t, errors.Is(err, booking.ErrIntegrity))
	var integrity *booking.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "600.00 USD", integrity.Expected.String())
	assert.Equal(t, "500.00 USD", integrity.Received.String())

	b, err := f.coord.Get(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)

	payments, err := f.rec.Payments(ctx, created.Booking.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, booking.FlagAmountMismatch, payments[0].Flag)
}

func TestHandleProviderEvent_CurrencyMismatchIsAMismatch(t *testing.T) {
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	ev := successEvent("evt-1", created.Booking)
	ev.Amount = booking.NewMoney("600.00", "EUR")
	_, err = f.rec.HandleProviderEvent(ctx, ev)

	assert.True(t, errors.Is(err, booking.ErrIntegrity))
}

// =============================================================================
// LATE AND SURPLUS PAYMENTS
// =============================================================================

func TestHandleProviderEvent_PaymentAfterCancelIsRefundDue(t *testing.T) {
	// GIVEN: A booking canceled before its payment arrived
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)
	_, err = f.coord.Cancel(ctx, created.Booking.ID, "guest", "")
	require.NoError(t, err)

	// WHEN: The successful payment lands late
	res, err := f.rec.HandleProviderEvent(ctx, successEvent("evt-late", created.Booking))
	require.NoError(t, err)

	// THEN: Booking stays canceled; payment flagged for refund
	assert.Equal(t, booking.StatusCanceled, res.Booking.Status)
	assert.Equal(t, booking.FlagRefundDue, res.Payment.Flag)
}

func TestHandleProviderEvent_SecondSuccessIsSurplus(t *testing.T) {
	// GIVEN: A booking already paid and confirmed
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)
	_, err = f.rec.HandleProviderEvent(ctx, successEvent("evt-1", created.Booking))
	require.NoError(t, err)

	// WHEN: A different provider event pays the same booking again
	res, err := f.rec.HandleProviderEvent(ctx, successEvent("evt-2", created.Booking))
	require.NoError(t, err)

	// THEN: Recorded as surplus; status unchanged
	assert.Equal(t, booking.FlagSurplus, res.Payment.Flag)
	assert.Equal(t, booking.StatusConfirmed, res.Booking.Status)

	payments, err := f.rec.Payments(ctx, created.Booking.ID)
	require.NoError(t, err)
	applied := 0
	for _, p := range payments {
		if p.Flag == booking.FlagApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied, "at most one applied payment per booking")
}

// =============================================================================
// HOST CONFIRMATION POLICY
// =============================================================================

func TestHandleProviderEvent_HostConfirmationPolicyKeepsPending(t *testing.T) {
	// GIVEN: A deployment where hosts approve bookings
	policy := booking.DefaultPolicy()
	policy.RequireHostConfirmation = true
	f := newReconcilerFixture(t, policy)
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	// WHEN: The payment succeeds
	res, err := f.rec.HandleProviderEvent(ctx, successEvent("evt-1", created.Booking))
	require.NoError(t, err)

	// THEN: Applied, but the booking stays pending until the host confirms
	assert.Equal(t, booking.FlagApplied, res.Payment.Flag)
	assert.Equal(t, booking.StatusPending, res.Booking.Status)

	confirmed, err := f.coord.Confirm(ctx, created.Booking.ID, "host-9")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestHandleProviderEvent_Validation(t *testing.T) {
	f := newReconcilerFixture(t, booking.DefaultPolicy())
	ctx := context.Background()

	cases := []struct {
		name string
		ev   booking.ProviderEvent
	}{
		{"missing event id", booking.ProviderEvent{BookingID: "bk-1", Outcome: booking.PaymentSucceeded}},
		{"missing booking id", booking.ProviderEvent{ProviderEventID: "evt-1", Outcome: booking.PaymentSucceeded}},
		{"unknown outcome", booking.ProviderEvent{ProviderEventID: "evt-1", BookingID: "bk-1", Outcome: "maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.rec.HandleProviderEvent(ctx, tc.ev)
			assert.True(t, errors.Is(err, booking.ErrValidation), "got %v", err)
		})
	}
}

func TestHandleProviderEvent_UnknownBookingNotFound(t *testing.T) {
	f := newReconcilerFixture(t, booking.DefaultPolicy())

	_, err := f.rec.HandleProviderEvent(context.Background(), booking.ProviderEvent{
		ProviderEventID: "evt-1",
		BookingID:       booking.BookingID(fmt.Sprintf("bk-%d", time.Now().UnixNano())),
		Outcome:         booking.PaymentSucceeded,
		Amount:          booking.NewMoney("100.00", "USD"),
	})
	assert.True(t, errors.Is(err, booking.ErrNotFound))
}

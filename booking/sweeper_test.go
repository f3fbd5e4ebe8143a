package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgic/booking-engine/booking"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// sweeperAt builds a sweeper over the fixture whose clock reads the given
// instant. The coordinator keeps the base test clock so creation-time
// validation is unaffected.
func sweeperAt(f *engineFixture, policy booking.Policy, at time.Time) *booking.Sweeper {
	return booking.NewSweeper(f.coord, policy).WithClock(func() time.Time { return at })
}

// =============================================================================
// PENDING EXPIRY
// =============================================================================

func TestSweeper_ExpiresStalePendingAndFreesDates(t *testing.T) {
	// GIVEN: A pending booking created at the base clock, never paid
	policy := booking.DefaultPolicy() // 30m TTL
	f := newEngine(t, policy)
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	// WHEN: The sweeper runs an hour later
	sweeper := sweeperAt(f, policy, testClock().Add(time.Hour))
	completed, expired, err := sweeper.RunNow(ctx)
	require.NoError(t, err)

	// THEN: The booking expired and its dates are bookable again
	assert.Zero(t, completed)
	assert.Equal(t, 1, expired)

	b, err := f.coord.Get(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCanceled, b.Status)

	in := createInput("key-2")
	in.GuestID = "guest-2"
	_, err = f.coord.CreateBooking(ctx, in)
	assert.NoError(t, err, "expired hold must not block rebooking")
}

func TestSweeper_FreshPendingSurvives(t *testing.T) {
	policy := booking.DefaultPolicy()
	f := newEngine(t, policy)
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	// Ten minutes in: well inside the 30 minute TTL
	sweeper := sweeperAt(f, policy, testClock().Add(10*time.Minute))
	_, expired, err := sweeper.RunNow(ctx)
	require.NoError(t, err)

	assert.Zero(t, expired)
	b, err := f.coord.Get(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
}

func TestSweeper_PaidPendingAwaitingHostIsNotExpired(t *testing.T) {
	// GIVEN: Host-approval deployment; booking paid but not yet confirmed
	policy := booking.DefaultPolicy()
	policy.RequireHostConfirmation = true
	f := newEngine(t, policy)
	rec := booking.NewReconciler(booking.NewLedger(f.store), policy).WithClock(testClock)
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)
	res, err := rec.HandleProviderEvent(ctx, successEvent("evt-1", created.Booking))
	require.NoError(t, err)
	require.Equal(t, booking.StatusPending, res.Booking.Status)

	// WHEN: The TTL has long passed
	sweeper := sweeperAt(f, policy, testClock().Add(24*time.Hour))
	_, expired, err := sweeper.RunNow(ctx)
	require.NoError(t, err)

	// THEN: A paid booking is not abandoned; it stays for the host
	assert.Zero(t, expired)
	b, err := f.coord.Get(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
}

func TestSweeper_RepeatPassesAreIdempotent(t *testing.T) {
	policy := booking.DefaultPolicy()
	f := newEngine(t, policy)
	ctx := context.Background()

	_, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)

	sweeper := sweeperAt(f, policy, testClock().Add(time.Hour))
	_, expired, err := sweeper.RunNow(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	// A second pass finds nothing left to do
	completed, expired, err := sweeper.RunNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, completed)
	assert.Zero(t, expired)
}

// =============================================================================
// STAY COMPLETION
// =============================================================================

func TestSweeper_CompletesElapsedConfirmedStays(t *testing.T) {
	// GIVEN: A confirmed stay ending June 14
	policy := booking.DefaultPolicy()
	f := newEngine(t, policy)
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)
	_, err = f.coord.Confirm(ctx, created.Booking.ID, "host")
	require.NoError(t, err)

	// WHEN: The sweeper runs on July 1
	sweeper := sweeperAt(f, policy, time.Date(2026, time.July, 1, 3, 0, 0, 0, time.UTC))
	completed, _, err := sweeper.RunNow(ctx)
	require.NoError(t, err)

	// THEN: The stay is completed and no longer holds its range
	assert.Equal(t, 1, completed)
	b, err := f.coord.Get(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, b.Status)

	free, err := f.coord.CheckAvailability(ctx, "prop-1",
		booking.NewInterval(date(2026, time.June, 10), date(2026, time.June, 14)))
	require.NoError(t, err)
	assert.True(t, free, "completed stay must release its hold")
}

func TestSweeper_InProgressStayNotCompleted(t *testing.T) {
	policy := booking.DefaultPolicy()
	f := newEngine(t, policy)
	ctx := context.Background()

	created, err := f.coord.CreateBooking(ctx, createInput("key-1"))
	require.NoError(t, err)
	_, err = f.coord.Confirm(ctx, created.Booking.ID, "host")
	require.NoError(t, err)

	// Mid-stay: June 12, checkout is June 14
	sweeper := sweeperAt(f, policy, time.Date(2026, time.June, 12, 12, 0, 0, 0, time.UTC))
	completed, _, err := sweeper.RunNow(ctx)
	require.NoError(t, err)

	assert.Zero(t, completed)
	b, err := f.coord.Get(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
}

// =============================================================================
// BACKGROUND LOOP
// =============================================================================

func TestSweeper_StartStop(t *testing.T) {
	policy := booking.DefaultPolicy()
	policy.SweepInterval = 10 * time.Millisecond
	f := newEngine(t, policy)

	sweeper := booking.NewSweeper(f.coord, policy).WithClock(testClock)
	sweeper.Start()
	sweeper.Start() // second Start is a no-op
	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()
	sweeper.Stop() // second Stop is a no-op
}

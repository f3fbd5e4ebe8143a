/*
sweeper.go - Time-based lifecycle sweeper

PURPOSE:
  Advances bookings whose transitions are driven by the clock rather than
  by a request or a webhook:
    - confirmed bookings whose stay has ended   -> completed
    - pending bookings past the TTL, never paid -> canceled (dates freed)

  Without the expiry pass an abandoned checkout would lock inventory
  forever.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each pass is idempotent: a crash mid-pass just redoes the scan
  - Transitions share the coordinator's per-property discipline so a swept
    cancellation releases its hold in the same unit of work as the status
    change
  - RunNow triggers an immediate pass (admin endpoint, tests)

USAGE:
  sweeper := NewSweeper(coordinator, policy)
  sweeper.Start()
  defer sweeper.Stop()

SEE ALSO:
  - coordinator.go: Cancel used for expiry (same release discipline)
  - policy.go: PendingTTL, SweepInterval
*/
package booking

import (
	"context"
	"log"
	"sync"
	"time"
)

type Sweeper struct {
	coord  *Coordinator
	policy Policy

	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSweeper(coord *Coordinator, policy Policy) *Sweeper {
	if policy.SweepInterval <= 0 {
		policy.SweepInterval = DefaultPolicy().SweepInterval
	}
	if policy.PendingTTL <= 0 {
		policy.PendingTTL = DefaultPolicy().PendingTTL
	}
	return &Sweeper{coord: coord, policy: policy, now: time.Now, stop: make(chan struct{})}
}

// WithClock overrides the sweeper's clock. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Start begins the background loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(s.policy.SweepInterval)
	s.wg.Add(1)
	go s.run()
	log.Printf("[Sweeper] started, interval=%v pending_ttl=%v", s.policy.SweepInterval, s.policy.PendingTTL)
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	log.Println("[Sweeper] stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	// First pass immediately on start.
	s.sweep(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	completed, expired, err := s.RunNow(ctx)
	if err != nil {
		log.Printf("[Sweeper] sweep error: %v", err)
	}
	if completed > 0 || expired > 0 {
		log.Printf("[Sweeper] pass done: %d completed, %d expired", completed, expired)
	}
}

// RunNow performs one sweep pass and returns how many bookings were
// completed and how many expired.
func (s *Sweeper) RunNow(ctx context.Context) (completed, expired int, err error) {
	now := s.now()

	n, err := s.completeElapsed(ctx, now)
	completed = n
	if err != nil {
		return completed, 0, err
	}

	expired, err = s.expireStale(ctx, now)
	return completed, expired, err
}

// completeElapsed moves confirmed bookings whose stay ended to completed
// and drops their holds: only pending/confirmed ranges exclude others.
func (s *Sweeper) completeElapsed(ctx context.Context, now time.Time) (int, error) {
	elapsed, err := s.coord.Ledger().Store().ConfirmedEndingBefore(ctx, DateOf(now))
	if err != nil {
		return 0, err
	}

	done := 0
	for i := range elapsed {
		b := &elapsed[i]
		if _, err := s.coord.Ledger().Transition(ctx, b, StatusCompleted, "sweeper", "stay elapsed"); err != nil {
			// Someone else moved it first; the next pass re-evaluates.
			log.Printf("[Sweeper] complete %s: %v", b.ID, err)
			continue
		}
		s.coord.index.Release(b.PropertyID, b.ID)
		done++
	}
	return done, nil
}

// expireStale cancels pending bookings older than the TTL that never
// received an applied payment, freeing their dates for rebooking.
func (s *Sweeper) expireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.policy.PendingTTL)
	stale, err := s.coord.Ledger().Store().PendingCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		b := &stale[i]

		paid, err := s.coord.Ledger().Store().HasAppliedPayment(ctx, b.ID)
		if err != nil {
			log.Printf("[Sweeper] payment lookup %s: %v", b.ID, err)
			continue
		}
		if paid {
			// Paid but awaiting host confirmation: not abandoned.
			continue
		}

		// Cancel shares the coordinator's per-property critical section, so
		// the hold release and the status change form one unit of work.
		updated, err := s.coord.Cancel(ctx, b.ID, "sweeper", "pending booking expired unpaid")
		if err != nil {
			log.Printf("[Sweeper] expire %s: %v", b.ID, err)
			continue
		}
		if updated.Status == StatusCanceled {
			expired++
		}
	}
	return expired, nil
}

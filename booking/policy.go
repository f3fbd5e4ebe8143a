/*
policy.go - Operator-configurable booking policy

PURPOSE:
  Collects the policy toggles the engine consumes. These vary per
  deployment, not per code path: the same engine serves an instant-book
  marketplace and a host-approval one.

SEE ALSO:
  - coordinator.go: AllowPastCheckIn
  - reconciler.go: RequireHostConfirmation
  - sweeper.go: PendingTTL, SweepInterval
*/
package booking

import "time"

// Policy holds deployment-level behavior toggles.
type Policy struct {
	// AllowPastCheckIn permits bookings whose stay already started.
	// Off by default; back-office tooling may enable it.
	AllowPastCheckIn bool

	// RequireHostConfirmation keeps a booking pending after a successful
	// payment until the host explicitly confirms. When false, a matching
	// successful payment auto-confirms.
	RequireHostConfirmation bool

	// PendingTTL is how long a pending booking may sit without an applied
	// payment before the sweeper cancels it and frees its dates.
	PendingTTL time.Duration

	// SweepInterval is how often the sweeper scans the ledger.
	SweepInterval time.Duration
}

// DefaultPolicy returns the settings used when none are configured.
func DefaultPolicy() Policy {
	return Policy{
		AllowPastCheckIn:        false,
		RequireHostConfirmation: false,
		PendingTTL:              30 * time.Minute,
		SweepInterval:           time.Minute,
	}
}

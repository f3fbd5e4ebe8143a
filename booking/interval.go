/*
interval.go - Per-property interval index

PURPOSE:
  Answers "does this date range overlap any currently-held range for this
  property?" and, if not, registers it as held - as one atomic operation.
  This is the structure that enforces the no-double-booking invariant.

OVERLAP RULE:
  Intervals are half-open: [start, end). Two intervals [s1,e1) and [s2,e2)
  overlap iff s1 < e2 AND s2 < e1. A checkout morning equal to the next
  guest's checkin morning is NOT an overlap.

ATOMICITY:
  TryReserve for a given property is atomic with respect to concurrent
  callers for the same property. Calls against different properties never
  block each other: each property owns its own sorted hold list and the
  index-wide lock is held only long enough to find it.

BACKING STRUCTURE:
  A sorted slice per property with binary search, mirroring how the ledger
  keeps transactions ordered. Overlap checks and inserts are O(log n + n)
  for the copy; hold lists are small (active stays for one property).

SEE ALSO:
  - coordinator.go: Calls TryReserve/Release inside the per-property
    critical section, together with the ledger write
  - sweeper.go: Releases holds of expired pending bookings
*/
package booking

import (
	"sort"
	"sync"
)

// =============================================================================
// INTERVAL - Half-open date range [Start, End)
// =============================================================================

type Interval struct {
	Start Date
	End   Date
}

func NewInterval(start, end Date) Interval { return Interval{Start: start, End: end} }

// Overlaps reports whether two half-open intervals share at least one night.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Nights returns the number of nights the interval covers.
func (iv Interval) Nights() int { return DaysBetween(iv.Start, iv.End) }

func (iv Interval) String() string { return "[" + iv.Start.String() + ", " + iv.End.String() + ")" }

// =============================================================================
// INTERVAL INDEX - Arena of per-property hold lists
// =============================================================================

// hold is one registered interval and the booking that owns it.
type hold struct {
	Interval  Interval
	BookingID BookingID
}

// propertyHolds is the sorted hold list for a single property.
// Sorted by Start; non-overlapping by construction.
type propertyHolds struct {
	mu    sync.Mutex
	holds []hold
}

// Index holds, per property, the set of date ranges currently occupied by
// non-terminal bookings. It is rebuilt from the ledger on startup.
type Index struct {
	mu         sync.RWMutex
	properties map[PropertyID]*propertyHolds
}

func NewIndex() *Index {
	return &Index{properties: make(map[PropertyID]*propertyHolds)}
}

// forProperty returns the hold list for a property, creating it on first use.
func (ix *Index) forProperty(id PropertyID) *propertyHolds {
	ix.mu.RLock()
	ph := ix.properties[id]
	ix.mu.RUnlock()
	if ph != nil {
		return ph
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ph = ix.properties[id]; ph == nil {
		ph = &propertyHolds{}
		ix.properties[id] = ph
	}
	return ph
}

// TryReserve atomically checks the interval against all current holds for the
// property and registers it if free. On conflict it returns false and the id
// of one booking already holding an overlapping range.
func (ix *Index) TryReserve(propertyID PropertyID, iv Interval, owner BookingID) (bool, BookingID) {
	ph := ix.forProperty(propertyID)
	ph.mu.Lock()
	defer ph.mu.Unlock()

	if i, conflict := ph.findOverlap(iv); conflict {
		return false, ph.holds[i].BookingID
	}
	ph.insert(hold{Interval: iv, BookingID: owner})
	return true, ""
}

// Release removes a previously registered hold. Releasing an interval that is
// not held is a no-op: cancellation and expiry must be retry-safe.
func (ix *Index) Release(propertyID PropertyID, owner BookingID) {
	ph := ix.forProperty(propertyID)
	ph.mu.Lock()
	defer ph.mu.Unlock()

	for i, h := range ph.holds {
		if h.BookingID == owner {
			ph.holds = append(ph.holds[:i], ph.holds[i+1:]...)
			return
		}
	}
}

// Overlapping returns the id of a booking holding a range that overlaps iv,
// if any. Read-only availability probe.
func (ix *Index) Overlapping(propertyID PropertyID, iv Interval) (BookingID, bool) {
	ph := ix.forProperty(propertyID)
	ph.mu.Lock()
	defer ph.mu.Unlock()

	if i, conflict := ph.findOverlap(iv); conflict {
		return ph.holds[i].BookingID, true
	}
	return "", false
}

// Holds returns the current holds for a property, sorted by start date.
func (ix *Index) Holds(propertyID PropertyID) []Interval {
	ph := ix.forProperty(propertyID)
	ph.mu.Lock()
	defer ph.mu.Unlock()

	out := make([]Interval, len(ph.holds))
	for i, h := range ph.holds {
		out[i] = h.Interval
	}
	return out
}

// Rebuild replaces the index contents from ledger state. Called on startup
// with all pending/confirmed bookings so restarts preserve held ranges.
func (ix *Index) Rebuild(bookings []Booking) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.properties = make(map[PropertyID]*propertyHolds)
	for _, b := range bookings {
		if !b.Status.HoldsInterval() {
			continue
		}
		ph := ix.properties[b.PropertyID]
		if ph == nil {
			ph = &propertyHolds{}
			ix.properties[b.PropertyID] = ph
		}
		ph.insert(hold{Interval: b.Interval(), BookingID: b.ID})
	}
}

// findOverlap locates a hold overlapping iv. Since holds are sorted by start
// and pairwise disjoint, only the neighbor at the insertion point and its
// predecessor can overlap.
func (ph *propertyHolds) findOverlap(iv Interval) (int, bool) {
	i := sort.Search(len(ph.holds), func(i int) bool {
		return ph.holds[i].Interval.Start.AfterOrEqual(iv.Start)
	})
	if i < len(ph.holds) && ph.holds[i].Interval.Overlaps(iv) {
		return i, true
	}
	if i > 0 && ph.holds[i-1].Interval.Overlaps(iv) {
		return i - 1, true
	}
	return 0, false
}

// insert places h keeping the slice sorted by start date.
func (ph *propertyHolds) insert(h hold) {
	i := sort.Search(len(ph.holds), func(i int) bool {
		return ph.holds[i].Interval.Start.After(h.Interval.Start)
	})
	ph.holds = append(ph.holds, hold{})
	copy(ph.holds[i+1:], ph.holds[i:])
	ph.holds[i] = h
}

// Package store provides in-memory implementations of the booking
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lodgic/booking-engine/booking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	bookings    map[booking.BookingID]*booking.Booking
	transitions map[booking.BookingID][]booking.Transition
	payments    map[booking.BookingID][]booking.Payment
	eventIDs    map[string]bool
	idempotency map[idemKey]booking.IdempotencyRecord
}

type idemKey struct {
	Scope booking.IdempotencyScope
	Key   string
}

func NewMemory() *Memory {
	return &Memory{
		bookings:    make(map[booking.BookingID]*booking.Booking),
		transitions: make(map[booking.BookingID][]booking.Transition),
		payments:    make(map[booking.BookingID][]booking.Payment),
		eventIDs:    make(map[string]bool),
		idempotency: make(map[idemKey]booking.IdempotencyRecord),
	}
}

var _ booking.Store = (*Memory)(nil)

// CreateBooking writes the booking and its idempotency record atomically.
func (m *Memory) CreateBooking(_ context.Context, b *booking.Booking, idem booking.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := idemKey{Scope: idem.Scope, Key: idem.Key}
	if _, exists := m.idempotency[k]; exists {
		return &booking.ConflictError{Message: "idempotency key already recorded"}
	}
	if _, exists := m.bookings[b.ID]; exists {
		return &booking.ConflictError{Message: "booking id already exists"}
	}

	cp := *b
	m.bookings[b.ID] = &cp
	m.idempotency[k] = idem
	m.transitions[b.ID] = append(m.transitions[b.ID], booking.Transition{
		BookingID: b.ID,
		From:      "",
		To:        booking.StatusPending,
		Actor:     string(b.GuestID),
		Reason:    "booking created",
		At:        b.CreatedAt,
	})
	return nil
}

func (m *Memory) GetBooking(_ context.Context, id booking.BookingID) (*booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) UpdateStatus(_ context.Context, change booking.StatusChange) (*booking.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStatusLocked(change, time.Now())
}

func (m *Memory) updateStatusLocked(change booking.StatusChange, at time.Time) (*booking.Booking, error) {
	b, ok := m.bookings[change.BookingID]
	if !ok {
		return nil, &booking.NotFoundError{Kind: "booking", ID: string(change.BookingID)}
	}
	if b.Status != change.From || b.Version != change.ExpectedVersion {
		return nil, booking.ErrConcurrentModification
	}

	b.Status = change.To
	b.Version++
	b.UpdatedAt = at
	m.transitions[b.ID] = append(m.transitions[b.ID], booking.Transition{
		BookingID: b.ID,
		From:      change.From,
		To:        change.To,
		Actor:     change.Actor,
		Reason:    change.Reason,
		At:        at,
	})

	cp := *b
	return &cp, nil
}

func (m *Memory) ListBookings(_ context.Context, filter booking.ListFilter) ([]booking.Booking, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []booking.Booking
	for _, b := range m.bookings {
		if !matches(b, filter) {
			continue
		}
		matched = append(matched, *b)
	}

	// Stable default order: created_at descending, id as tiebreaker.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return strings.Compare(string(matched[i].ID), string(matched[j].ID)) < 0
	})

	total := len(matched)
	page, size := normalizePage(filter)
	start := (page - 1) * size
	if start >= total {
		return []booking.Booking{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(b *booking.Booking, f booking.ListFilter) bool {
	if f.GuestID != "" && b.GuestID != f.GuestID {
		return false
	}
	if f.PropertyID != "" && b.PropertyID != f.PropertyID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		if !b.Interval().Overlaps(booking.NewInterval(f.From, f.To)) {
			return false
		}
	}
	return true
}

func normalizePage(f booking.ListFilter) (page, size int) {
	page, size = f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	return page, size
}

func (m *Memory) ActiveBookings(_ context.Context) ([]booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []booking.Booking
	for _, b := range m.bookings {
		if b.Status.HoldsInterval() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *Memory) ConfirmedEndingBefore(_ context.Context, day booking.Date) ([]booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []booking.Booking
	for _, b := range m.bookings {
		if b.Status == booking.StatusConfirmed && b.EndDate.BeforeOrEqual(day) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *Memory) PendingCreatedBefore(_ context.Context, cutoff time.Time) ([]booking.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []booking.Booking
	for _, b := range m.bookings {
		if b.Status == booking.StatusPending && b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *Memory) Transitions(_ context.Context, id booking.BookingID) ([]booking.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]booking.Transition, len(m.transitions[id]))
	copy(out, m.transitions[id])
	return out, nil
}

func (m *Memory) GetIdempotency(_ context.Context, scope booking.IdempotencyScope, key string) (*booking.IdempotencyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.idempotency[idemKey{Scope: scope, Key: key}]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

// RecordPayment writes the payment, idempotency record, and optional status
// change under one lock acquisition: all or nothing.
func (m *Memory) RecordPayment(_ context.Context, p booking.Payment, idem booking.IdempotencyRecord, change *booking.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := idemKey{Scope: idem.Scope, Key: idem.Key}
	if _, exists := m.idempotency[k]; exists {
		return &booking.ConflictError{Message: "provider event already recorded"}
	}
	if m.eventIDs[p.ProviderEventID] {
		return &booking.ConflictError{Message: "provider event already recorded"}
	}

	if change != nil {
		if _, err := m.updateStatusLocked(*change, p.ReceivedAt); err != nil {
			return err
		}
	}
	m.payments[p.BookingID] = append(m.payments[p.BookingID], p)
	m.eventIDs[p.ProviderEventID] = true
	m.idempotency[k] = idem
	return nil
}

func (m *Memory) Payments(_ context.Context, id booking.BookingID) ([]booking.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]booking.Payment, len(m.payments[id]))
	copy(out, m.payments[id])
	return out, nil
}

func (m *Memory) HasAppliedPayment(_ context.Context, id booking.BookingID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.payments[id] {
		if p.Flag == booking.FlagApplied {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// MEMORY CATALOG - PropertyCatalog for tests/dev
// =============================================================================

type MemoryCatalog struct {
	mu         sync.RWMutex
	properties map[booking.PropertyID]booking.PropertySnapshot
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{properties: make(map[booking.PropertyID]booking.PropertySnapshot)}
}

var _ booking.PropertyCatalog = (*MemoryCatalog)(nil)

func (c *MemoryCatalog) Put(p booking.PropertySnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.properties[p.ID] = p
}

func (c *MemoryCatalog) Snapshot(_ context.Context, id booking.PropertyID) (*booking.PropertySnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.properties[id]
	if !ok {
		return nil, &booking.NotFoundError{Kind: "property", ID: string(id)}
	}
	cp := p
	return &cp, nil
}

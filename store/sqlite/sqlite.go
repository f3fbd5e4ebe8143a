/*
Package sqlite provides a SQLite-backed implementation of the booking
storage interfaces.

PURPOSE:
  Implements booking.Store and booking.PropertyCatalog using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

ATOMIC UNITS:
  Every multi-row write (booking + idempotency record, payment +
  idempotency record + status change) runs in a single database
  transaction. The engine's no-orphan guarantees rest on these commits
  being all-or-nothing.

KEY TABLES:
  bookings:            Reservation rows; status is the only mutable field
  booking_transitions: Append-only audit of status changes
  payments:            Append-only provider event records
  idempotency:         Write-once (scope, key) -> result memos
  properties:          Catalog rows for the property collaborator

INDEXES:
  - idx_bookings_property_status_dates: the interval query pattern
  - ux_bookings_guest_key: one idempotency key per guest
  - ux_payments_event: one row per provider event id
  - idempotency primary key (scope, key): replay lookups

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/bookings.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  ledger := booking.NewLedger(st)

SEE ALSO:
  - booking/store.go: Interface definitions and atomicity contracts
  - booking/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lodgic/booking-engine/booking"
)

// Store implements booking.Store and booking.PropertyCatalog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ booking.Store           = (*Store)(nil)
	_ booking.PropertyCatalog = (*Store)(nil)
)

// New creates a SQLite store at the given path. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Bookings: status is the only mutable column
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		guest_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		guests INTEGER NOT NULL,
		nights INTEGER NOT NULL,
		price_per_night TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		idempotency_key TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- The interval query pattern: active holds per property by range
	CREATE INDEX IF NOT EXISTS idx_bookings_property_status_dates
		ON bookings(property_id, status, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_bookings_guest
		ON bookings(guest_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_status_created
		ON bookings(status, created_at);

	-- One idempotency key per guest
	CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_guest_key
		ON bookings(guest_id, idempotency_key);

	-- Append-only status change audit
	CREATE TABLE IF NOT EXISTS booking_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		actor TEXT NOT NULL,
		reason TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_booking
		ON booking_transitions(booking_id);

	-- Append-only payment records; one row per provider event
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		provider_event_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		outcome TEXT NOT NULL,
		flag TEXT NOT NULL,
		received_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_event
		ON payments(provider_event_id);
	CREATE INDEX IF NOT EXISTS idx_payments_booking
		ON payments(booking_id);

	-- Write-once request memos
	CREATE TABLE IF NOT EXISTS idempotency (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		result TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (scope, key)
	);

	-- Property catalog (owned by the property collaborator)
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price_per_night TEXT NOT NULL,
		currency TEXT NOT NULL,
		max_guests INTEGER NOT NULL,
		min_stay INTEGER NOT NULL DEFAULT 0,
		max_stay INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BOOKING STORE (booking.Store interface)
// =============================================================================

// CreateBooking writes the booking row, its idempotency record, and the
// initial audit transition in one database transaction.
func (s *Store) CreateBooking(ctx context.Context, b *booking.Booking, idem booking.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", booking.ErrStoreUnavailable, err)
	}
	defer sqlTx.Rollback()

	if err := insertIdempotency(ctx, sqlTx, idem); err != nil {
		return err
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO bookings
		(id, property_id, guest_id, start_date, end_date, guests, nights,
		 price_per_night, amount, currency, status, idempotency_key, version,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.PropertyID, b.GuestID,
		b.StartDate.String(), b.EndDate.String(), b.Guests, b.Nights,
		b.PricePerNight.Amount.String(), b.Amount.Amount.String(), b.Amount.Currency,
		b.Status, b.IdempotencyKey, b.Version,
		b.CreatedAt.UTC().Format(time.RFC3339), b.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &booking.ConflictError{Message: "booking with this idempotency key already exists"}
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := insertTransition(ctx, sqlTx, booking.Transition{
		BookingID: b.ID,
		From:      "",
		To:        booking.StatusPending,
		Actor:     string(b.GuestID),
		Reason:    "booking created",
		At:        b.CreatedAt,
	}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

const bookingColumns = `id, property_id, guest_id, start_date, end_date, guests, nights,
	price_per_night, amount, currency, status, idempotency_key, version, created_at, updated_at`

func (s *Store) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateStatus applies a guarded status change plus its audit row in one
// database transaction. The WHERE clause is the optimistic guard.
func (s *Store) UpdateStatus(ctx context.Context, change booking.StatusChange) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", booking.ErrStoreUnavailable, err)
	}
	defer sqlTx.Rollback()

	if err := applyStatusChange(ctx, sqlTx, change, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, change.BookingID)
	return scanBooking(row)
}

func applyStatusChange(ctx context.Context, tx *sql.Tx, change booking.StatusChange, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`,
		change.To, at.Format(time.RFC3339),
		change.BookingID, change.From, change.ExpectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return booking.ErrConcurrentModification
	}

	return insertTransition(ctx, tx, booking.Transition{
		BookingID: change.BookingID,
		From:      change.From,
		To:        change.To,
		Actor:     change.Actor,
		Reason:    change.Reason,
		At:        at,
	})
}

func insertTransition(ctx context.Context, tx *sql.Tx, tr booking.Transition) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO booking_transitions (booking_id, from_status, to_status, actor, reason, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tr.BookingID, tr.From, tr.To, tr.Actor, nullString(tr.Reason),
		tr.At.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

func (s *Store) ListBookings(ctx context.Context, filter booking.ListFilter) ([]booking.Booking, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := buildFilter(filter)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where +
		` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, size, (page-1)*size)

	bookings, err := s.queryBookings(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func buildFilter(f booking.ListFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.GuestID != "" {
		clauses = append(clauses, "guest_id = ?")
		args = append(args, f.GuestID)
	}
	if f.PropertyID != "" {
		clauses = append(clauses, "property_id = ?")
		args = append(args, f.PropertyID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		// Half-open overlap: start < to AND from < end
		clauses = append(clauses, "start_date < ? AND ? < end_date")
		args = append(args, f.To.String(), f.From.String())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) ActiveBookings(ctx context.Context) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status IN (?, ?) ORDER BY created_at ASC`,
		booking.StatusPending, booking.StatusConfirmed)
}

func (s *Store) ConfirmedEndingBefore(ctx context.Context, day booking.Date) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status = ? AND end_date <= ? ORDER BY end_date ASC`,
		booking.StatusConfirmed, day.String())
}

func (s *Store) PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status = ? AND created_at < ? ORDER BY created_at ASC`,
		booking.StatusPending, cutoff.UTC().Format(time.RFC3339))
}

func (s *Store) Transitions(ctx context.Context, id booking.BookingID) ([]booking.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT booking_id, from_status, to_status, actor, reason, at
		FROM booking_transitions WHERE booking_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []booking.Transition
	for rows.Next() {
		var tr booking.Transition
		var reason sql.NullString
		var at string
		if err := rows.Scan(&tr.BookingID, &tr.From, &tr.To, &tr.Actor, &reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.Reason = reason.String
		tr.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// =============================================================================
// IDEMPOTENCY STORE
// =============================================================================

func (s *Store) GetIdempotency(ctx context.Context, scope booking.IdempotencyScope, key string) (*booking.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT scope, key, fingerprint, result, created_at
		FROM idempotency WHERE scope = ? AND key = ?`, scope, key)

	var rec booking.IdempotencyRecord
	var createdAt string
	err := row.Scan(&rec.Scope, &rec.Key, &rec.Fingerprint, &rec.Result, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query idempotency record: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

func insertIdempotency(ctx context.Context, tx *sql.Tx, rec booking.IdempotencyRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO idempotency (scope, key, fingerprint, result, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Scope, rec.Key, rec.Fingerprint, rec.Result,
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &booking.ConflictError{Message: "idempotency key already recorded"}
		}
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

// RecordPayment writes the payment, its idempotency record, and the optional
// status change in one database transaction.
func (s *Store) RecordPayment(ctx context.Context, p booking.Payment, idem booking.IdempotencyRecord, change *booking.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", booking.ErrStoreUnavailable, err)
	}
	defer sqlTx.Rollback()

	if err := insertIdempotency(ctx, sqlTx, idem); err != nil {
		return err
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO payments
		(id, booking_id, provider_event_id, amount, currency, outcome, flag, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BookingID, p.ProviderEventID,
		p.Amount.Amount.String(), p.Amount.Currency,
		p.Outcome, p.Flag, p.ReceivedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &booking.ConflictError{Message: "provider event already recorded"}
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	if change != nil {
		if err := applyStatusChange(ctx, sqlTx, *change, p.ReceivedAt.UTC()); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func (s *Store) Payments(ctx context.Context, id booking.BookingID) ([]booking.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, booking_id, provider_event_id, amount, currency, outcome, flag, received_at
		FROM payments WHERE booking_id = ? ORDER BY received_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []booking.Payment
	for rows.Next() {
		var p booking.Payment
		var amount, currency, receivedAt string
		if err := rows.Scan(&p.ID, &p.BookingID, &p.ProviderEventID,
			&amount, &currency, &p.Outcome, &p.Flag, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = booking.NewMoney(amount, currency)
		p.ReceivedAt, _ = time.Parse(time.RFC3339, receivedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) HasAppliedPayment(ctx context.Context, id booking.BookingID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE booking_id = ? AND flag = ?`,
		id, booking.FlagApplied,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// PROPERTY CATALOG (booking.PropertyCatalog interface)
// =============================================================================

// PropertyRecord is a catalog row. Bookings only ever read the snapshot
// view; price edits here never touch existing bookings.
type PropertyRecord struct {
	ID            booking.PropertyID
	Name          string
	PricePerNight booking.Money
	MaxGuests     int
	MinStay       int
	MaxStay       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *Store) Snapshot(ctx context.Context, id booking.PropertyID) (*booking.PropertySnapshot, error) {
	rec, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &booking.NotFoundError{Kind: "property", ID: string(id)}
	}
	return &booking.PropertySnapshot{
		ID:            rec.ID,
		PricePerNight: rec.PricePerNight,
		MaxGuests:     rec.MaxGuests,
		MinStay:       rec.MinStay,
		MaxStay:       rec.MaxStay,
	}, nil
}

func (s *Store) SaveProperty(ctx context.Context, rec PropertyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties
		(id, name, price_per_night, currency, max_guests, min_stay, max_stay, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price_per_night = excluded.price_per_night,
			currency = excluded.currency,
			max_guests = excluded.max_guests,
			min_stay = excluded.min_stay,
			max_stay = excluded.max_stay,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Name,
		rec.PricePerNight.Amount.String(), rec.PricePerNight.Currency,
		rec.MaxGuests, rec.MinStay, rec.MaxStay,
		rec.CreatedAt.UTC().Format(time.RFC3339), rec.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save property: %w", err)
	}
	return nil
}

func (s *Store) GetProperty(ctx context.Context, id booking.PropertyID) (*PropertyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_per_night, currency, max_guests, min_stay, max_stay, created_at, updated_at
		FROM properties WHERE id = ?`, id)
	rec, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (s *Store) ListProperties(ctx context.Context) ([]PropertyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_per_night, currency, max_guests, min_stay, max_stay, created_at, updated_at
		FROM properties ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var out []PropertyRecord
	for rows.Next() {
		rec, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryBookings(ctx context.Context, query string, args ...any) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (*booking.Booking, error) {
	var (
		b          booking.Booking
		start, end string
		price, amt string
		currency   string
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(&b.ID, &b.PropertyID, &b.GuestID, &start, &end, &b.Guests, &b.Nights,
		&price, &amt, &currency, &b.Status, &b.IdempotencyKey, &b.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	b.StartDate, _ = booking.ParseDate(start)
	b.EndDate, _ = booking.ParseDate(end)
	b.PricePerNight = booking.NewMoney(price, currency)
	b.Amount = booking.NewMoney(amt, currency)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

func scanProperty(row rowScanner) (*PropertyRecord, error) {
	var (
		rec                  PropertyRecord
		price, currency      string
		createdAt, updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.Name, &price, &currency,
		&rec.MaxGuests, &rec.MinStay, &rec.MaxStay, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan property: %w", err)
	}
	rec.PricePerNight = booking.NewMoney(price, currency)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

/*
handlers_test.go - End-to-end tests for the HTTP API

Exercises the full stack: router -> handlers -> coordinator/reconciler ->
sqlite (in-memory). Covers status code mapping, idempotent replays, and
the double-booking conflict surface.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lodgic/booking-engine/booking"
	"github.com/lodgic/booking-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router  http.Handler
	store   *sqlite.Store
	sweeper *booking.Sweeper
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	policy := booking.DefaultPolicy()
	ledger := booking.NewLedger(st)
	coord := booking.NewCoordinator(ledger, booking.NewIndex(), st, policy)
	rec := booking.NewReconciler(ledger, policy)
	sweeper := booking.NewSweeper(coord, policy)

	h := NewHandler(st, coord, rec, sweeper)
	return &testServer{router: NewRouter(h), store: st, sweeper: sweeper}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v (body %s)", err, rr.Body.String())
	}
	return v
}

// Stay dates a month out so past-check-in validation stays quiet.
func testDates() (string, string) {
	start := time.Now().UTC().AddDate(0, 1, 0)
	end := start.AddDate(0, 0, 4)
	return start.Format("2006-01-02"), end.Format("2006-01-02")
}

func (ts *testServer) seedProperty(t *testing.T) {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/properties", SavePropertyRequest{
		ID:            "prop-1",
		Name:          "Sea View Loft",
		PricePerNight: "150.00",
		Currency:      "USD",
		MaxGuests:     4,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Failed to seed property: %d %s", rr.Code, rr.Body.String())
	}
}

func createRequest(key string) CreateBookingRequest {
	start, end := testDates()
	return CreateBookingRequest{
		PropertyID:     "prop-1",
		GuestID:        "guest-1",
		StartDate:      start,
		EndDate:        end,
		Guests:         2,
		IdempotencyKey: key,
	}
}

// =============================================================================
// BOOKING CREATION
// =============================================================================

func TestAPI_CreateBooking_ReturnsTermsAndCreated(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	rr := ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decode[CreateBookingResponse](t, rr)
	if resp.Booking.Status != "pending" {
		t.Errorf("Expected pending status, got %s", resp.Booking.Status)
	}
	if resp.Terms.Amount != "600.00" || resp.Terms.Currency != "USD" {
		t.Errorf("Expected terms 600.00 USD, got %s %s", resp.Terms.Amount, resp.Terms.Currency)
	}
	if resp.Replayed {
		t.Error("Fresh booking must not be a replay")
	}
}

func TestAPI_CreateBooking_ReplayReturns200(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	first := decode[CreateBookingResponse](t, ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1")))

	rr := ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 for replay, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[CreateBookingResponse](t, rr)
	if !resp.Replayed {
		t.Error("Expected replayed=true")
	}
	if resp.Booking.ID != first.Booking.ID {
		t.Errorf("Replay must return the original booking, got %s vs %s", resp.Booking.ID, first.Booking.ID)
	}
}

func TestAPI_CreateBooking_OverlapIs409(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	if rr := ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1")); rr.Code != http.StatusCreated {
		t.Fatalf("Setup booking failed: %d", rr.Code)
	}

	second := createRequest("key-2")
	second.GuestID = "guest-2"
	rr := ts.do(t, http.MethodPost, "/api/bookings", second)
	if rr.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAPI_CreateBooking_ValidationIs400(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	bad := createRequest("key-1")
	bad.Guests = 0
	if rr := ts.do(t, http.MethodPost, "/api/bookings", bad); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero guests, got %d", rr.Code)
	}

	malformed := createRequest("key-2")
	malformed.StartDate = "June 10th"
	if rr := ts.do(t, http.MethodPost, "/api/bookings", malformed); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed date, got %d", rr.Code)
	}
}

func TestAPI_CreateBooking_UnknownPropertyIs404(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAPI_CreateBooking_HeaderIdempotencyKey(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	body := createRequest("")
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "hdr-key-1")
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201 with header key, got %d: %s", rr.Code, rr.Body.String())
	}
}

// =============================================================================
// LIFECYCLE ENDPOINTS
// =============================================================================

func TestAPI_CancelAndForbiddenConfirm(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	created := decode[CreateBookingResponse](t, ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1")))
	id := created.Booking.ID

	rr := ts.do(t, http.MethodPost, "/api/bookings/"+id+"/cancel", CancelRequest{Actor: "guest-1", Reason: "plans changed"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on cancel, got %d: %s", rr.Code, rr.Body.String())
	}
	if b := decode[BookingDTO](t, rr); b.Status != "canceled" {
		t.Errorf("Expected canceled, got %s", b.Status)
	}

	// Cancel again: idempotent no-op, still 200
	if rr := ts.do(t, http.MethodPost, "/api/bookings/"+id+"/cancel", nil); rr.Code != http.StatusOK {
		t.Errorf("Repeat cancel should be 200, got %d", rr.Code)
	}

	// Confirming a canceled booking is a forbidden transition
	rr = ts.do(t, http.MethodPost, "/api/bookings/"+id+"/confirm", ConfirmRequest{Actor: "host"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAPI_GetBookingAndHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	created := decode[CreateBookingResponse](t, ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1")))
	id := created.Booking.ID

	rr := ts.do(t, http.MethodGet, "/api/bookings/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	if rr := ts.do(t, http.MethodGet, "/api/bookings/no-such-id", nil); rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown booking, got %d", rr.Code)
	}

	history := decode[[]TransitionDTO](t, ts.do(t, http.MethodGet, "/api/bookings/"+id+"/history", nil))
	if len(history) != 1 || history[0].To != "pending" {
		t.Errorf("Expected single creation transition, got %+v", history)
	}
}

func TestAPI_ListBookings_Paginated(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	start := time.Now().UTC().AddDate(0, 1, 0)
	for i := 0; i < 3; i++ {
		req := createRequest(fmt.Sprintf("key-%d", i))
		req.StartDate = start.AddDate(0, 0, i*10).Format("2006-01-02")
		req.EndDate = start.AddDate(0, 0, i*10+4).Format("2006-01-02")
		if rr := ts.do(t, http.MethodPost, "/api/bookings", req); rr.Code != http.StatusCreated {
			t.Fatalf("Setup booking %d failed: %d %s", i, rr.Code, rr.Body.String())
		}
	}

	resp := decode[BookingListResponse](t, ts.do(t, http.MethodGet, "/api/bookings?guest_id=guest-1&page=1&page_size=2", nil))
	if resp.Total != 3 {
		t.Errorf("Expected total 3, got %d", resp.Total)
	}
	if len(resp.Bookings) != 2 {
		t.Errorf("Expected page of 2, got %d", len(resp.Bookings))
	}
}

// =============================================================================
// PAYMENT WEBHOOK
// =============================================================================

func TestAPI_PaymentEvent_ConfirmsAndDeduplicates(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	created := decode[CreateBookingResponse](t, ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1")))

	ev := PaymentEventRequest{
		ProviderEventID: "evt-1",
		BookingID:       created.Booking.ID,
		Outcome:         "succeeded",
		Amount:          "600.00",
		Currency:        "USD",
	}
	rr := ts.do(t, http.MethodPost, "/api/payments/events", ev)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[PaymentEventResponse](t, rr)
	if resp.BookingStatus != "confirmed" {
		t.Errorf("Expected confirmed, got %s", resp.BookingStatus)
	}

	// Redelivery acknowledges without effect
	rr = ts.do(t, http.MethodPost, "/api/payments/events", ev)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on redelivery, got %d", rr.Code)
	}
	if resp := decode[PaymentEventResponse](t, rr); !resp.Duplicate {
		t.Error("Expected duplicate=true")
	}

	payments := decode[[]PaymentDTO](t, ts.do(t, http.MethodGet, "/api/bookings/"+created.Booking.ID+"/payments", nil))
	if len(payments) != 1 {
		t.Errorf("Expected one payment row, got %d", len(payments))
	}
}

func TestAPI_PaymentEvent_AmountMismatchIs409(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	created := decode[CreateBookingResponse](t, ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1")))

	rr := ts.do(t, http.MethodPost, "/api/payments/events", PaymentEventRequest{
		ProviderEventID: "evt-1",
		BookingID:       created.Booking.ID,
		Outcome:         "succeeded",
		Amount:          "500.00",
		Currency:        "USD",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rr.Code, rr.Body.String())
	}

	// Booking untouched
	b := decode[BookingDTO](t, ts.do(t, http.MethodGet, "/api/bookings/"+created.Booking.ID, nil))
	if b.Status != "pending" {
		t.Errorf("Expected pending after mismatch, got %s", b.Status)
	}
}

// =============================================================================
// PROPERTIES AND AVAILABILITY
// =============================================================================

func TestAPI_Availability(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	start, end := testDates()
	path := "/api/properties/prop-1/availability?start_date=" + start + "&end_date=" + end

	resp := decode[AvailabilityResponse](t, ts.do(t, http.MethodGet, path, nil))
	if !resp.Available {
		t.Error("Expected range to be free")
	}

	if rr := ts.do(t, http.MethodPost, "/api/bookings", createRequest("key-1")); rr.Code != http.StatusCreated {
		t.Fatalf("Setup booking failed: %d", rr.Code)
	}

	resp = decode[AvailabilityResponse](t, ts.do(t, http.MethodGet, path, nil))
	if resp.Available {
		t.Error("Expected range to be held after booking")
	}
}

func TestAPI_SaveProperty_Validation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/properties", SavePropertyRequest{
		ID: "prop-1", PricePerNight: "-10.00", Currency: "USD", MaxGuests: 4,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative price, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/properties", SavePropertyRequest{
		PricePerNight: "100.00", Currency: "USD", MaxGuests: 4,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing id, got %d", rr.Code)
	}
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAPI_AdminSweep(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProperty(t)

	rr := ts.do(t, http.MethodPost, "/api/admin/sweep", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[SweepResponse](t, rr)
	if resp.Completed != 0 || resp.Expired != 0 {
		t.Errorf("Fresh database should sweep nothing, got %+v", resp)
	}
}

func TestAPI_Health(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
}

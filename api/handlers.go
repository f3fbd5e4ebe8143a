/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes the booking engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine.

ENDPOINTS:
  Bookings:
    POST   /api/bookings                  Create booking (idempotent)
    GET    /api/bookings                  List with filters + pagination
    GET    /api/bookings/{id}             Fetch one
    GET    /api/bookings/{id}/history     Status transition audit trail
    GET    /api/bookings/{id}/payments    Recorded payments
    POST   /api/bookings/{id}/cancel      Idempotent cancel
    POST   /api/bookings/{id}/confirm     Host confirmation

  Payments:
    POST   /api/payments/events           Provider webhook (at-least-once safe)

  Properties (admin/demo):
    GET    /api/properties                List catalog
    POST   /api/properties                Create
    PUT    /api/properties/{id}           Update price/caps
    GET    /api/properties/{id}/availability  Range probe

  Admin:
    POST   /api/admin/sweep               Manual sweeper pass

ERROR HANDLING:
  Engine errors map to HTTP status by kind:
  - 400: validation errors
  - 404: property/booking not found
  - 409: overlap conflict, idempotency key reuse, amount mismatch
  - 422: forbidden status transition
  - 500: infrastructure failures
  Idempotent replays are NOT errors: they return 200 with replayed=true.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lodgic/booking-engine/booking"
	"github.com/lodgic/booking-engine/store/sqlite"
)

const timeLayout = time.RFC3339

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Coordinator *booking.Coordinator
	Reconciler  *booking.Reconciler
	Sweeper     *booking.Sweeper
}

func NewHandler(store *sqlite.Store, coord *booking.Coordinator, rec *booking.Reconciler, sweeper *booking.Sweeper) *Handler {
	return &Handler{Store: store, Coordinator: coord, Reconciler: rec, Sweeper: sweeper}
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking creates a pending booking and returns its payment terms.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	start, err := booking.ParseDate(req.StartDate)
	if err != nil && req.StartDate != "" {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
		return
	}
	end, err := booking.ParseDate(req.EndDate)
	if err != nil && req.EndDate != "" {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", err)
		return
	}

	res, err := h.Coordinator.CreateBooking(r.Context(), booking.CreateInput{
		PropertyID:     booking.PropertyID(req.PropertyID),
		GuestID:        booking.GuestID(req.GuestID),
		StartDate:      start,
		EndDate:        end,
		Guests:         req.Guests,
		IdempotencyKey: key,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, CreateBookingResponse{
		Booking: toBookingDTO(res.Booking),
		Terms: PaymentTermsDTO{
			Amount:   res.Booking.Amount.Amount.StringFixed(2),
			Currency: res.Booking.Amount.Currency,
		},
		Replayed: res.Replayed,
	})
}

// GetBooking returns a single booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Coordinator.Get(r.Context(), booking.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// ListBookings returns a filtered, paginated listing.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := booking.ListFilter{
		GuestID:    booking.GuestID(q.Get("guest_id")),
		PropertyID: booking.PropertyID(q.Get("property_id")),
		Status:     booking.Status(q.Get("status")),
	}
	if v := q.Get("from"); v != "" {
		d, err := booking.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD", err)
			return
		}
		filter.From = d
	}
	if v := q.Get("to"); v != "" {
		d, err := booking.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD", err)
			return
		}
		filter.To = d
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	bookings, total, err := h.Coordinator.List(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]BookingDTO, len(bookings))
	for i := range bookings {
		dtos[i] = toBookingDTO(&bookings[i])
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	writeJSON(w, http.StatusOK, BookingListResponse{
		Bookings: dtos,
		Total:    total,
		Page:     page,
		PageSize: size,
	})
}

// CancelBooking cancels a booking; repeats are no-ops.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Actor == "" {
		req.Actor = "api"
	}

	b, err := h.Coordinator.Cancel(r.Context(), booking.BookingID(chi.URLParam(r, "id")), req.Actor, req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// ConfirmBooking applies host confirmation to a pending booking.
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Actor == "" {
		req.Actor = "host"
	}

	b, err := h.Coordinator.Confirm(r.Context(), booking.BookingID(chi.URLParam(r, "id")), req.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// BookingHistory returns the transition audit trail.
func (h *Handler) BookingHistory(w http.ResponseWriter, r *http.Request) {
	trs, err := h.Coordinator.History(r.Context(), booking.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]TransitionDTO, len(trs))
	for i, tr := range trs {
		dtos[i] = TransitionDTO{
			From:   string(tr.From),
			To:     string(tr.To),
			Actor:  tr.Actor,
			Reason: tr.Reason,
			At:     tr.At.UTC().Format(timeLayout),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// BookingPayments returns recorded payments for a booking.
func (h *Handler) BookingPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Reconciler.Payments(r.Context(), booking.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT WEBHOOK
// =============================================================================

// PaymentEvent ingests one provider delivery. Safe under retries: duplicate
// event ids acknowledge without mutating anything.
func (h *Handler) PaymentEvent(w http.ResponseWriter, r *http.Request) {
	var req PaymentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Reconciler.HandleProviderEvent(r.Context(), booking.ProviderEvent{
		ProviderEventID: req.ProviderEventID,
		BookingID:       booking.BookingID(req.BookingID),
		Outcome:         booking.PaymentOutcome(req.Outcome),
		Amount:          booking.NewMoney(req.Amount, req.Currency),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentEventResponse{
		BookingStatus: string(res.Booking.Status),
		Duplicate:     res.Duplicate,
	})
}

// =============================================================================
// PROPERTY HANDLERS (admin/demo surface)
// =============================================================================

// ListProperties returns the catalog.
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListProperties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list properties", err)
		return
	}

	dtos := make([]PropertyDTO, len(records))
	for i, rec := range records {
		dtos[i] = toPropertyDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveProperty creates or updates a catalog property. Existing bookings keep
// their snapshotted price regardless.
func (h *Handler) SaveProperty(w http.ResponseWriter, r *http.Request) {
	var req SavePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.ID = id
	}

	price := booking.NewMoney(req.PricePerNight, req.Currency)
	switch {
	case req.ID == "":
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	case !price.IsPositive():
		writeError(w, http.StatusBadRequest, "price_per_night must be positive", nil)
		return
	case req.MaxGuests <= 0:
		writeError(w, http.StatusBadRequest, "max_guests must be positive", nil)
		return
	}

	now := time.Now()
	rec := sqlite.PropertyRecord{
		ID:            booking.PropertyID(req.ID),
		Name:          req.Name,
		PricePerNight: price,
		MaxGuests:     req.MaxGuests,
		MinStay:       req.MinStay,
		MaxStay:       req.MaxStay,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.Store.SaveProperty(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save property", err)
		return
	}
	writeJSON(w, http.StatusOK, toPropertyDTO(rec))
}

// Availability answers whether a range is free. Advisory only: booking is
// the sole reservation path.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	id := booking.PropertyID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	start, err := booking.ParseDate(q.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
		return
	}
	end, err := booking.ParseDate(q.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", err)
		return
	}

	free, err := h.Coordinator.CheckAvailability(r.Context(), id, booking.NewInterval(start, end))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		PropertyID: string(id),
		StartDate:  start.String(),
		EndDate:    end.String(),
		Available:  free,
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSweep runs one sweeper pass immediately.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	completed, expired, err := h.Sweeper.RunNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Completed: completed, Expired: expired})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine error kinds onto HTTP statuses. Callers must
// be able to tell business rejections from transient infrastructure failures.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, booking.ErrIntegrity):
		writeError(w, http.StatusConflict, "Payment amount mismatch", err)
	case errors.Is(err, booking.ErrConflict):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, booking.ErrForbiddenTransition):
		writeError(w, http.StatusUnprocessableEntity, "Forbidden status transition", err)
	case errors.Is(err, booking.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "Concurrent modification, retry", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

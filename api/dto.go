/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing field
  renaming and API evolution without breaking clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Structural validation (parseable dates, known outcome values) happens in
  handlers; business validation lives in the booking package so it cannot
  be bypassed by other transports.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/lodgic/booking-engine/booking"
	"github.com/lodgic/booking-engine/store/sqlite"
)

// =============================================================================
// BOOKING TYPES
// =============================================================================

// CreateBookingRequest is the request to create a booking. The idempotency
// key may alternatively be supplied via the Idempotency-Key header.
type CreateBookingRequest struct {
	PropertyID     string `json:"property_id"`
	GuestID        string `json:"guest_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Guests         int    `json:"guests"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// BookingDTO represents a booking in API responses.
type BookingDTO struct {
	ID            string `json:"id"`
	PropertyID    string `json:"property_id"`
	GuestID       string `json:"guest_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Guests        int    `json:"guests"`
	Nights        int    `json:"nights"`
	PricePerNight string `json:"price_per_night"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Version       int64  `json:"version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// CreateBookingResponse wraps the booking with its payment terms. Replayed
// marks idempotent repeats.
type CreateBookingResponse struct {
	Booking  BookingDTO      `json:"booking"`
	Terms    PaymentTermsDTO `json:"payment_terms"`
	Replayed bool            `json:"replayed,omitempty"`
}

// PaymentTermsDTO is what the guest owes for the stay.
type PaymentTermsDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// BookingListResponse is a page of bookings with the total match count.
type BookingListResponse struct {
	Bookings []BookingDTO `json:"bookings"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// CancelRequest names who cancels and why.
type CancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// ConfirmRequest names the confirming host.
type ConfirmRequest struct {
	Actor string `json:"actor"`
}

// TransitionDTO is one audit trail entry.
type TransitionDTO struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
	At     string `json:"at"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PaymentEventRequest is the provider webhook payload.
type PaymentEventRequest struct {
	ProviderEventID string `json:"provider_event_id"`
	BookingID       string `json:"booking_id"`
	Outcome         string `json:"outcome"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
}

// PaymentEventResponse acknowledges a webhook delivery.
type PaymentEventResponse struct {
	BookingStatus string `json:"booking_status"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

// PaymentDTO represents one recorded provider event.
type PaymentDTO struct {
	ID              string `json:"id"`
	ProviderEventID string `json:"provider_event_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Outcome         string `json:"outcome"`
	Flag            string `json:"flag"`
	ReceivedAt      string `json:"received_at"`
}

// =============================================================================
// PROPERTY TYPES
// =============================================================================

// PropertyDTO represents a catalog property.
type PropertyDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PricePerNight string `json:"price_per_night"`
	Currency      string `json:"currency"`
	MaxGuests     int    `json:"max_guests"`
	MinStay       int    `json:"min_stay,omitempty"`
	MaxStay       int    `json:"max_stay,omitempty"`
}

// SavePropertyRequest creates or updates a catalog property.
type SavePropertyRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PricePerNight string `json:"price_per_night"`
	Currency      string `json:"currency"`
	MaxGuests     int    `json:"max_guests"`
	MinStay       int    `json:"min_stay,omitempty"`
	MaxStay       int    `json:"max_stay,omitempty"`
}

// AvailabilityResponse answers a date range probe.
type AvailabilityResponse struct {
	PropertyID string `json:"property_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Available  bool   `json:"available"`
}

// SweepResponse reports a manual sweeper pass.
type SweepResponse struct {
	Completed int `json:"completed"`
	Expired   int `json:"expired"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toBookingDTO(b *booking.Booking) BookingDTO {
	return BookingDTO{
		ID:            string(b.ID),
		PropertyID:    string(b.PropertyID),
		GuestID:       string(b.GuestID),
		StartDate:     b.StartDate.String(),
		EndDate:       b.EndDate.String(),
		Guests:        b.Guests,
		Nights:        b.Nights,
		PricePerNight: b.PricePerNight.Amount.StringFixed(2),
		Amount:        b.Amount.Amount.StringFixed(2),
		Currency:      b.Amount.Currency,
		Status:        string(b.Status),
		Version:       b.Version,
		CreatedAt:     b.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:     b.UpdatedAt.UTC().Format(timeLayout),
	}
}

func toPaymentDTO(p booking.Payment) PaymentDTO {
	return PaymentDTO{
		ID:              string(p.ID),
		ProviderEventID: p.ProviderEventID,
		Amount:          p.Amount.Amount.StringFixed(2),
		Currency:        p.Amount.Currency,
		Outcome:         string(p.Outcome),
		Flag:            string(p.Flag),
		ReceivedAt:      p.ReceivedAt.UTC().Format(timeLayout),
	}
}

func toPropertyDTO(rec sqlite.PropertyRecord) PropertyDTO {
	return PropertyDTO{
		ID:            string(rec.ID),
		Name:          rec.Name,
		PricePerNight: rec.PricePerNight.Amount.StringFixed(2),
		Currency:      rec.PricePerNight.Currency,
		MaxGuests:     rec.MaxGuests,
		MinStay:       rec.MinStay,
		MaxStay:       rec.MaxStay,
	}
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/booking-engine/internal/domain"
)

// ============================================================================
// BOOKING STATUSES
// ============================================================================

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus is set by the external payment collaborator
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ParsePaymentStatus validates an incoming payment status
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch status := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return status, true
	default:
		return "", false
	}
}

// DeviceInfo stores the parsed client device metadata
type DeviceInfo map[string]interface{}

func (d DeviceInfo) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *DeviceInfo) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, d)
}

// ============================================================================
// BOOKING (bookings table)
// ============================================================================

// Booking is a seat booking on one travel option
type Booking struct {
	ID               int64         `json:"id" db:"id"`
	BookingReference string        `json:"booking_reference" db:"booking_reference"`
	UserID           uuid.UUID     `json:"user_id" db:"user_id"`
	TravelOptionID   int64         `json:"travel_option_id" db:"travel_option_id"`
	FromCity         string        `json:"from_city" db:"from_city"`
	ToCity           string        `json:"to_city" db:"to_city"`
	TravelDate       time.Time     `json:"travel_date" db:"travel_date"`
	OperatorName     string        `json:"operator_name" db:"operator_name"`
	Status           BookingStatus `json:"status" db:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status" db:"payment_status"`
	SeatNumbers      SeatNumbers   `json:"seat_numbers" db:"seat_numbers"`
	PassengerCount   int           `json:"passenger_count" db:"passenger_count"`

	// Fare inputs and stored breakdown
	CostPerPassenger float64 `json:"cost_per_passenger" db:"cost_per_passenger"`
	TaxPerPassenger  float64 `json:"tax_per_passenger" db:"tax_per_passenger"`
	BaseAmount       float64 `json:"base_amount" db:"base_amount"`
	TaxAmount        float64 `json:"tax_amount" db:"tax_amount"`
	SurchargeAmount  float64 `json:"surcharge_amount" db:"surcharge_amount"`
	TotalAmount      float64 `json:"total_amount" db:"total_amount"`
	FareWarning      *string `json:"fare_warning,omitempty" db:"fare_warning"`

	DeviceInfo    DeviceInfo `json:"device_info,omitempty" db:"device_info"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`

	// Related data (not in DB, populated by queries)
	Passengers []Passenger `json:"passengers,omitempty" db:"-"`
}

// FareBreakdown is the decomposition of a booking total
type FareBreakdown struct {
	PassengerCount   int     `json:"passenger_count"`
	CostPerPassenger float64 `json:"cost_per_passenger"`
	TaxPerPassenger  float64 `json:"tax_per_passenger"`
	BaseAmount       float64 `json:"base_amount"`
	TaxAmount        float64 `json:"tax_amount"`
	SurchargeAmount  float64 `json:"surcharge_amount"`
	TotalAmount      float64 `json:"total_amount"`
	IntegrityWarning string  `json:"integrity_warning,omitempty"`
}

// HasIntegrityWarning reports whether the inputs produced an inconsistent breakdown
func (f FareBreakdown) HasIntegrityWarning() bool {
	return f.IntegrityWarning != ""
}

// ============================================================================
// REQUESTS
// ============================================================================

// CreateBookingRequest is the request-scoped input of a booking creation
type CreateBookingRequest struct {
	UserID           uuid.UUID        `json:"-"`
	TravelOptionID   int64            `json:"travel_id"`
	FromCity         string           `json:"from_city"`
	ToCity           string           `json:"to_city"`
	TravelDate       string           `json:"travel_date"` // YYYY-MM-DD
	OperatorName     string           `json:"operator_name"`
	CostPerPassenger float64          `json:"cost_per_passenger"`
	TaxPerPassenger  float64          `json:"tax_per_passenger"`
	SelectedSeats    []string         `json:"selected_seats"`
	TotalWithSeats   float64          `json:"total_with_seats"`
	Passengers       []PassengerInput `json:"passengers"`

	DeviceInfo DeviceInfo `json:"-"`
	RequestID  string     `json:"-"`
}

// Validate checks required fields and passenger/seat parity.
// It never touches the database.
func (r *CreateBookingRequest) Validate() error {
	if r.UserID == uuid.Nil {
		return domain.ValidationError{Field: "user_id", Msg: "is required"}
	}
	if r.TravelOptionID <= 0 {
		return domain.ValidationError{Field: "travel_id", Msg: "is required"}
	}
	required := []struct{ field, value string }{
		{"from_city", r.FromCity},
		{"to_city", r.ToCity},
		{"travel_date", r.TravelDate},
		{"operator_name", r.OperatorName},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return domain.ValidationError{Field: f.field, Msg: "is required"}
		}
	}
	if _, err := r.ParsedTravelDate(); err != nil {
		return domain.ValidationError{Field: "travel_date", Msg: "must be formatted as YYYY-MM-DD", Err: err}
	}
	if r.CostPerPassenger <= 0 {
		return domain.ValidationError{Field: "cost_per_passenger", Msg: "must be greater than zero"}
	}
	if r.TaxPerPassenger < 0 {
		return domain.ValidationError{Field: "tax_per_passenger", Msg: "must not be negative"}
	}
	if r.TotalWithSeats <= 0 {
		return domain.ValidationError{Field: "total_with_seats", Msg: "must be greater than zero"}
	}
	if len(r.Passengers) == 0 {
		return domain.ValidationError{Field: "passengers", Msg: "must not be empty"}
	}
	if len(r.SelectedSeats) == 0 {
		return domain.ValidationError{Field: "selected_seats", Msg: "must not be empty"}
	}
	if len(r.Passengers) != len(r.SelectedSeats) {
		return domain.ValidationError{
			Field: "passengers",
			Msg:   fmt.Sprintf("passenger count (%d) must equal selected seat count (%d)", len(r.Passengers), len(r.SelectedSeats)),
		}
	}

	selected := make(map[string]bool, len(r.SelectedSeats))
	for _, seat := range r.SelectedSeats {
		seat = strings.TrimSpace(seat)
		if seat == "" {
			return domain.ValidationError{Field: "selected_seats", Msg: "must not contain blank seat numbers"}
		}
		if selected[seat] {
			return domain.ValidationError{Field: "selected_seats", Msg: fmt.Sprintf("seat %s selected more than once", seat)}
		}
		selected[seat] = true
	}

	assigned := make(map[string]bool, len(r.Passengers))
	for i, p := range r.Passengers {
		if err := p.validate(i); err != nil {
			return err
		}
		seat := strings.TrimSpace(p.SeatNo)
		if !selected[seat] {
			return domain.ValidationError{Field: fmt.Sprintf("passengers[%d].seat_no", i), Msg: fmt.Sprintf("seat %s is not among the selected seats", seat)}
		}
		if assigned[seat] {
			return domain.ValidationError{Field: fmt.Sprintf("passengers[%d].seat_no", i), Msg: fmt.Sprintf("seat %s is assigned to more than one passenger", seat)}
		}
		assigned[seat] = true
	}

	return nil
}

// ParsedTravelDate parses TravelDate as a calendar date
func (r *CreateBookingRequest) ParsedTravelDate() (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(r.TravelDate))
}

// CancelBookingRequest identifies the booking and who asks for the cancellation
type CancelBookingRequest struct {
	BookingID   int64
	RequestedBy uuid.UUID
	Privileged  bool // admins may cancel any booking
	Reason      string
}

// BookSeatsRequest attaches specific seats to an existing booking (operational tooling)
type BookSeatsRequest struct {
	TravelOptionID int64     `json:"travel_id" binding:"required"`
	BookingID      int64     `json:"-"`
	UserID         uuid.UUID `json:"user_id"`
	SeatNumbers    []string  `json:"seat_numbers" binding:"required,min=1"`
	TotalPrice     float64   `json:"total_price" binding:"gte=0"`
}

// ResetSeatsRequest releases one seat, or every seat when SeatNo is nil
type ResetSeatsRequest struct {
	TravelOptionID int64   `json:"-"`
	SeatNo         *string `json:"seat_no,omitempty"`
}

// UpdatePaymentStatusRequest is sent by the payment collaborator
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// ============================================================================
// RESULTS
// ============================================================================

// SeatAssignment pairs a passenger with the seat they hold
type SeatAssignment struct {
	PassengerID   int64  `json:"passenger_id"`
	PassengerName string `json:"passenger_name"`
	SeatNo        string `json:"seat_no"`
}

// CreateBookingResult is returned by a successful booking creation
type CreateBookingResult struct {
	BookingID       int64            `json:"booking_id"`
	Reference       string           `json:"reference"`
	Status          BookingStatus    `json:"status"`
	TotalAmount     float64          `json:"total_amount"`
	PassengerCount  int              `json:"passenger_count"`
	Fare            FareBreakdown    `json:"fare"`
	SeatAssignments []SeatAssignment `json:"seat_assignments"`
	HoldExpiresAt   *time.Time       `json:"hold_expires_at,omitempty"`
}

// CancelBookingResult lists the seats a cancellation released
type CancelBookingResult struct {
	BookingID int64    `json:"booking_id"`
	Reference string   `json:"reference"`
	Released  []string `json:"released"`
}

// BookSeatsResult exposes the raw per-seat reservation outcome
type BookSeatsResult struct {
	BookedSeats []string             `json:"booked_seats"`
	FailedSeats []domain.SeatFailure `json:"failed_seats"`
	TotalBooked int                  `json:"total_booked"`
	TotalFailed int                  `json:"total_failed"`
}

// BookingView is the read projection of a booking
type BookingView struct {
	*Booking
	Fare FareBreakdown `json:"fare"`
}

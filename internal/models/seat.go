package models

import (
	"strconv"
	"time"
	"unicode"

	"github.com/smarttransit/booking-engine/internal/domain"
)

// SeatStatus represents the status of a seat on a travel option
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHeld      SeatStatus = "held"   // reserved by a pending booking until hold_expires_at
	SeatStatusBooked    SeatStatus = "booked" // confirmed
)

// Seat represents one seat of a travel option (seats table)
type Seat struct {
	ID               int64      `json:"id" db:"id"`
	TravelOptionID   int64      `json:"travel_option_id" db:"travel_option_id"`
	SeatNo           string     `json:"seat_no" db:"seat_no"`
	SeatType         string     `json:"seat_type" db:"seat_type"` // class or berth category
	RowNumber        int        `json:"row_number" db:"row_number"`
	Position         int        `json:"position" db:"position"`
	Price            float64    `json:"price" db:"price"` // seat surcharge
	Status           SeatStatus `json:"status" db:"status"`
	BookingReference *string    `json:"booking_reference,omitempty" db:"booking_reference"`
	HoldExpiresAt    *time.Time `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// IsAvailable reports whether the seat carries no booking reference
func (s Seat) IsAvailable() bool {
	return s.Status == SeatStatusAvailable
}

// SeatSummary provides a quick overview of seat availability for a travel option
type SeatSummary struct {
	TravelOptionID int64 `json:"travel_option_id" db:"travel_option_id"`
	TotalSeats     int   `json:"total_seats" db:"total_seats"`
	AvailableSeats int   `json:"available_seats" db:"available_seats"`
	HeldSeats      int   `json:"held_seats" db:"held_seats"`
	BookedSeats    int   `json:"booked_seats" db:"booked_seats"`
}

// ReservationResult is the per-seat outcome of a reservation attempt
type ReservationResult struct {
	Booked []string             `json:"booked"`
	Failed []domain.SeatFailure `json:"failed"`
}

// HasFailures reports whether any requested seat was refused
func (r *ReservationResult) HasFailures() bool {
	return len(r.Failed) > 0
}

// SeatNoLess orders seat numbers naturally: "2A" < "10A", "1A" < "1B".
func SeatNoLess(a, b string) bool {
	an, arest := splitSeatNo(a)
	bn, brest := splitSeatNo(b)
	if an != bn {
		return an < bn
	}
	if arest != brest {
		return arest < brest
	}
	return a < b
}

// splitSeatNo returns the leading number (-1 when absent) and the remainder
func splitSeatNo(s string) (int, string) {
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	if i == 0 {
		return -1, s
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return -1, s
	}
	return n, s[i:]
}

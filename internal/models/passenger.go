package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/smarttransit/booking-engine/internal/domain"
)

// Passenger is one traveller of a booking, bound to exactly one seat (passengers table)
type Passenger struct {
	ID             int64     `json:"id" db:"id"`
	BookingID      int64     `json:"booking_id" db:"booking_id"`
	TravelOptionID int64     `json:"travel_option_id" db:"travel_option_id"`
	SeatNo         string    `json:"seat_no" db:"seat_no"`
	FullName       string    `json:"full_name" db:"full_name"`
	Email          string    `json:"email" db:"email"`
	Phone          string    `json:"phone" db:"phone"`
	IDType         *string   `json:"id_type,omitempty" db:"id_type"`     // passport, nic, ...
	IDNumber       *string   `json:"id_number,omitempty" db:"id_number"` // document number
	Age            *int      `json:"age,omitempty" db:"age"`
	Gender         *string   `json:"gender,omitempty" db:"gender"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PassengerInput is a passenger as submitted with a booking request
type PassengerInput struct {
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone"`
	SeatNo   string  `json:"seat_no"`
	IDType   *string `json:"id_type,omitempty"`
	IDNumber *string `json:"id_number,omitempty"`
	Age      *int    `json:"age,omitempty"`
	Gender   *string `json:"gender,omitempty"`
}

func (p PassengerInput) validate(index int) error {
	required := []struct{ field, value string }{
		{"full_name", p.FullName},
		{"email", p.Email},
		{"phone", p.Phone},
		{"seat_no", p.SeatNo},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return domain.ValidationError{Field: fmt.Sprintf("passengers[%d].%s", index, f.field), Msg: "is required"}
		}
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > 130) {
		return domain.ValidationError{Field: fmt.Sprintf("passengers[%d].age", index), Msg: "is out of range"}
	}
	return nil
}

package models

import (
	"strings"
	"time"
)

// TravelMode is the transport mode of a travel option
type TravelMode string

const (
	TravelModeBus    TravelMode = "bus"
	TravelModeTrain  TravelMode = "train"
	TravelModeFlight TravelMode = "flight"
)

// ParseTravelMode normalises a mode string; ok is false for unknown modes
func ParseTravelMode(s string) (TravelMode, bool) {
	switch mode := TravelMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case TravelModeBus, TravelModeTrain, TravelModeFlight:
		return mode, true
	default:
		return "", false
	}
}

// TravelOption is a published, bookable departure (travel_options table)
type TravelOption struct {
	ID              int64      `json:"id" db:"id"`
	Mode            TravelMode `json:"mode" db:"mode"`
	OperatorName    string     `json:"operator_name" db:"operator_name"`
	Origin          string     `json:"origin" db:"origin"`
	Destination     string     `json:"destination" db:"destination"`
	DepartureAt     time.Time  `json:"departure_at" db:"departure_at"`
	ArrivalAt       *time.Time `json:"arrival_at,omitempty" db:"arrival_at"`
	BaseCost        float64    `json:"base_cost" db:"base_cost"`
	TaxPerPassenger float64    `json:"tax_per_passenger" db:"tax_per_passenger"`
	IsPublished     bool       `json:"is_published" db:"is_published"`
	AvailableSeats  int        `json:"available_seats" db:"available_seats"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

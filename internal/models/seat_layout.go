package models

// BerthType is a train berth bucket
type BerthType string

const (
	BerthLower  BerthType = "lower"
	BerthMiddle BerthType = "middle"
	BerthUpper  BerthType = "upper"
	BerthSide   BerthType = "side"
)

// SeatRow groups the seats of one row (bus and flight layouts)
type SeatRow struct {
	Row   int    `json:"row"`
	Seats []Seat `json:"seats"`
}

// TrainBerths holds the four fixed berth buckets of a train layout
type TrainBerths struct {
	Lower  []Seat `json:"lower"`
	Middle []Seat `json:"middle"`
	Upper  []Seat `json:"upper"`
	Side   []Seat `json:"side"`
}

// Count returns the number of seats placed in a bucket
func (b *TrainBerths) Count() int {
	return len(b.Lower) + len(b.Middle) + len(b.Upper) + len(b.Side)
}

// SeatLayout is the mode-specific grouped view of a seat list.
// Rows is set for bus and flight, Berths for train.
type SeatLayout struct {
	Mode   TravelMode   `json:"mode"`
	Rows   []SeatRow    `json:"rows,omitempty"`
	Berths *TrainBerths `json:"berths,omitempty"`
}

// SeatMap is the full seat map of one travel option
type SeatMap struct {
	TravelOptionID int64       `json:"travel_option_id"`
	Mode           TravelMode  `json:"mode"`
	TotalSeats     int         `json:"total_seats"`
	AvailableSeats int         `json:"available_seats"`
	HeldSeats      int         `json:"held_seats"`
	BookedSeats    int         `json:"booked_seats"`
	Layout         *SeatLayout `json:"layout"`
	Seats          []Seat      `json:"seats"`
}

package services

import (
	"sort"
	"strings"

	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
)

// berthAliases maps stored seat types onto the four train buckets
var berthAliases = map[string]models.BerthType{
	"lower":      models.BerthLower,
	"lb":         models.BerthLower,
	"middle":     models.BerthMiddle,
	"mb":         models.BerthMiddle,
	"upper":      models.BerthUpper,
	"ub":         models.BerthUpper,
	"side":       models.BerthSide,
	"sl":         models.BerthSide,
	"su":         models.BerthSide,
	"side_lower": models.BerthSide,
	"side_upper": models.BerthSide,
}

// SeatLayoutProjector turns a flat seat list into a mode-specific grouped layout
type SeatLayoutProjector struct{}

// NewSeatLayoutProjector creates a new SeatLayoutProjector
func NewSeatLayoutProjector() *SeatLayoutProjector {
	return &SeatLayoutProjector{}
}

// Project groups seats for display. The input slice is not modified.
//
// Train seats whose type matches no berth bucket are left out of the
// grouped view; the flat list stays authoritative for reservations.
func (p *SeatLayoutProjector) Project(seats []models.Seat, mode models.TravelMode) (*models.SeatLayout, error) {
	switch mode {
	case models.TravelModeBus:
		return &models.SeatLayout{Mode: mode, Rows: groupByRow(seats, true)}, nil
	case models.TravelModeFlight:
		return &models.SeatLayout{Mode: mode, Rows: groupByRow(seats, false)}, nil
	case models.TravelModeTrain:
		return &models.SeatLayout{Mode: mode, Berths: groupByBerth(seats)}, nil
	default:
		return nil, domain.ValidationError{Field: "mode", Msg: "must be one of bus, train, flight"}
	}
}

// groupByRow returns rows in ascending order. With sortSeats the seats of a
// row are ordered by seat number, otherwise they keep their input order.
func groupByRow(seats []models.Seat, sortSeats bool) []models.SeatRow {
	byRow := make(map[int][]models.Seat)
	rowNumbers := make([]int, 0)
	for _, s := range seats {
		if _, ok := byRow[s.RowNumber]; !ok {
			rowNumbers = append(rowNumbers, s.RowNumber)
		}
		byRow[s.RowNumber] = append(byRow[s.RowNumber], s)
	}
	sort.Ints(rowNumbers)

	rows := make([]models.SeatRow, 0, len(rowNumbers))
	for _, n := range rowNumbers {
		rowSeats := byRow[n]
		if sortSeats {
			sort.SliceStable(rowSeats, func(i, j int) bool {
				return models.SeatNoLess(rowSeats[i].SeatNo, rowSeats[j].SeatNo)
			})
		}
		rows = append(rows, models.SeatRow{Row: n, Seats: rowSeats})
	}
	return rows
}

func groupByBerth(seats []models.Seat) *models.TrainBerths {
	berths := &models.TrainBerths{
		Lower:  []models.Seat{},
		Middle: []models.Seat{},
		Upper:  []models.Seat{},
		Side:   []models.Seat{},
	}
	for _, s := range seats {
		switch berthAliases[strings.ToLower(strings.TrimSpace(s.SeatType))] {
		case models.BerthLower:
			berths.Lower = append(berths.Lower, s)
		case models.BerthMiddle:
			berths.Middle = append(berths.Middle, s)
		case models.BerthUpper:
			berths.Upper = append(berths.Upper, s)
		case models.BerthSide:
			berths.Side = append(berths.Side, s)
		}
	}
	return berths
}

package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/database"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
)

// SeatMapService renders the seat map of a travel option
type SeatMapService struct {
	travelOptions *database.TravelOptionRepository
	inventory     *database.SeatInventoryRepository
	projector     *SeatLayoutProjector
	cache         *SeatMapCache
	logger        *logrus.Logger
}

// NewSeatMapService creates a new SeatMapService
func NewSeatMapService(
	travelOptions *database.TravelOptionRepository,
	inventory *database.SeatInventoryRepository,
	projector *SeatLayoutProjector,
	cache *SeatMapCache,
	logger *logrus.Logger,
) *SeatMapService {
	return &SeatMapService{
		travelOptions: travelOptions,
		inventory:     inventory,
		projector:     projector,
		cache:         cache,
		logger:        logger,
	}
}

// GetSeatMap returns the flat seat list and its grouped layout.
// An empty mode uses the travel option's own mode.
func (s *SeatMapService) GetSeatMap(ctx context.Context, travelOptionID int64, mode string) (*models.SeatMap, error) {
	if travelOptionID <= 0 {
		return nil, domain.ValidationError{Field: "travel_id", Msg: "must be a positive integer"}
	}

	var requested models.TravelMode
	if strings.TrimSpace(mode) != "" {
		parsed, ok := models.ParseTravelMode(mode)
		if !ok {
			return nil, domain.ValidationError{Field: "mode", Msg: "must be one of bus, train, flight"}
		}
		requested = parsed
	}

	return s.cache.Get(ctx, travelOptionID, string(requested), func(ctx context.Context) (*models.SeatMap, error) {
		return s.build(ctx, travelOptionID, requested)
	})
}

func (s *SeatMapService) build(ctx context.Context, travelOptionID int64, mode models.TravelMode) (*models.SeatMap, error) {
	option, err := s.travelOptions.GetByID(ctx, travelOptionID)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = option.Mode
	}

	seats, err := s.inventory.ListSeats(ctx, travelOptionID)
	if err != nil {
		return nil, err
	}
	if seats == nil {
		seats = []models.Seat{}
	}

	layout, err := s.projector.Project(seats, mode)
	if err != nil {
		return nil, err
	}

	seatMap := &models.SeatMap{
		TravelOptionID: travelOptionID,
		Mode:           mode,
		TotalSeats:     len(seats),
		Layout:         layout,
		Seats:          seats,
	}
	for _, seat := range seats {
		switch seat.Status {
		case models.SeatStatusAvailable:
			seatMap.AvailableSeats++
		case models.SeatStatusHeld:
			seatMap.HeldSeats++
		case models.SeatStatusBooked:
			seatMap.BookedSeats++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"travel_option_id": travelOptionID,
		"mode":             mode,
		"total_seats":      seatMap.TotalSeats,
	}).Debug("Seat map built")

	return seatMap, nil
}

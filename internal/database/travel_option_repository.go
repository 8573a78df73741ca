package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
)

// TravelOptionRepository reads published travel options
type TravelOptionRepository struct {
	db DB
}

// NewTravelOptionRepository creates a new TravelOptionRepository
func NewTravelOptionRepository(db DB) *TravelOptionRepository {
	return &TravelOptionRepository{db: db}
}

// GetByID returns a published travel option with its live available seat count
func (r *TravelOptionRepository) GetByID(ctx context.Context, id int64) (*models.TravelOption, error) {
	var option models.TravelOption
	err := r.db.GetContext(ctx, &option, `
		SELECT
			t.id, t.mode, t.operator_name, t.origin, t.destination, t.departure_at,
			t.arrival_at, t.base_cost, t.tax_per_passenger, t.is_published, t.created_at,
			(SELECT COUNT(*) FROM seats s WHERE s.travel_option_id = t.id AND s.status = 'available') AS available_seats
		FROM travel_options t
		WHERE t.id = $1 AND t.is_published = true`,
		id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "travel option", ID: strconv.FormatInt(id, 10)}
		}
		return nil, fmt.Errorf("failed to get travel option: %w", err)
	}
	return &option, nil
}

package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
)

const bookingColumns = `
	id, booking_reference, user_id, travel_option_id, from_city, to_city, travel_date,
	operator_name, status, payment_status, seat_numbers, passenger_count,
	cost_per_passenger, tax_per_passenger, base_amount, tax_amount, surcharge_amount,
	total_amount, fare_warning, device_info, hold_expires_at, cancelled_at, created_at, updated_at`

const passengerColumns = `
	id, booking_id, travel_option_id, seat_no, full_name, email, phone,
	id_type, id_number, age, gender, created_at`

// BookingRepository handles bookings and their passengers
type BookingRepository struct {
	db DB

	// referenceSuffix produces the random numeric part of a booking reference
	referenceSuffix func() (string, error)
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db, referenceSuffix: randomDigits(6)}
}

func randomDigits(n int) func() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < n; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	return func() (string, error) {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate random digits: %w", err)
		}
		s := v.String()
		for len(s) < n {
			s = "0" + s
		}
		return s, nil
	}
}

// GenerateReference generates a unique booking reference
// Format: PREFIX-YYYYMMDD-NNNNNN (e.g. BK-20261017-004271)
func (r *BookingRepository) GenerateReference(ctx context.Context, tx *sqlx.Tx, prefix string, attempts int, now time.Time) (string, error) {
	dateStr := now.Format("20060102")

	for i := 0; i < attempts; i++ {
		suffix, err := r.referenceSuffix()
		if err != nil {
			return "", domain.PersistenceError{Op: "generate booking reference", Err: err}
		}
		ref := fmt.Sprintf("%s-%s-%s", prefix, dateStr, suffix)

		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`, ref); err != nil {
			return "", classifyError("check booking reference", err)
		}
		if count == 0 {
			return ref, nil
		}
	}

	return "", domain.PersistenceError{
		Op:  "generate booking reference",
		Msg: "no unique reference after " + strconv.Itoa(attempts) + " attempts",
	}
}

// Insert stores a new booking row and fills its id and timestamps
func (r *BookingRepository) Insert(ctx context.Context, tx *sqlx.Tx, b *models.Booking) error {
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO bookings (
			booking_reference, user_id, travel_option_id, from_city, to_city, travel_date,
			operator_name, status, payment_status, seat_numbers, passenger_count,
			cost_per_passenger, tax_per_passenger, device_info, hold_expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		b.BookingReference, b.UserID, b.TravelOptionID, b.FromCity, b.ToCity, b.TravelDate,
		b.OperatorName, b.Status, b.PaymentStatus, b.SeatNumbers, b.PassengerCount,
		b.CostPerPassenger, b.TaxPerPassenger, b.DeviceInfo, b.HoldExpiresAt,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return classifyError("insert booking", err)
	}
	return nil
}

// InsertPassengers stores one passenger row per input, bound to the booking
func (r *BookingRepository) InsertPassengers(ctx context.Context, tx *sqlx.Tx, bookingID, travelOptionID int64, inputs []models.PassengerInput) ([]models.Passenger, error) {
	passengers := make([]models.Passenger, 0, len(inputs))
	for _, in := range inputs {
		p := models.Passenger{
			BookingID:      bookingID,
			TravelOptionID: travelOptionID,
			SeatNo:         in.SeatNo,
			FullName:       in.FullName,
			Email:          in.Email,
			Phone:          in.Phone,
			IDType:         in.IDType,
			IDNumber:       in.IDNumber,
			Age:            in.Age,
			Gender:         in.Gender,
		}
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO passengers (
				booking_id, travel_option_id, seat_no, full_name, email, phone,
				id_type, id_number, age, gender
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at`,
			p.BookingID, p.TravelOptionID, p.SeatNo, p.FullName, p.Email, p.Phone,
			p.IDType, p.IDNumber, p.Age, p.Gender,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return nil, classifyError("insert passenger", err)
		}
		passengers = append(passengers, p)
	}
	return passengers, nil
}

// UpdateFare persists a fare breakdown onto the booking row
func (r *BookingRepository) UpdateFare(ctx context.Context, tx *sqlx.Tx, bookingID int64, fare models.FareBreakdown) error {
	var warning *string
	if fare.HasIntegrityWarning() {
		warning = &fare.IntegrityWarning
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET base_amount = $1, tax_amount = $2, surcharge_amount = $3, total_amount = $4,
		    fare_warning = $5, updated_at = NOW()
		WHERE id = $6`,
		fare.BaseAmount, fare.TaxAmount, fare.SurchargeAmount, fare.TotalAmount, warning, bookingID)
	if err != nil {
		return classifyError("update booking fare", err)
	}
	return nil
}

// GetForUpdate reads and locks a booking row for the rest of the transaction
func (r *BookingRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, bookingID int64) (*models.Booking, error) {
	var b models.Booking
	err := tx.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "booking", ID: strconv.FormatInt(bookingID, 10)}
		}
		return nil, classifyError("lock booking", err)
	}
	return &b, nil
}

// GetByID returns a booking without its passengers
func (r *BookingRepository) GetByID(ctx context.Context, bookingID int64) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError{Resource: "booking", ID: strconv.FormatInt(bookingID, 10)}
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListByUser returns a user's bookings, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// GetPassengers returns the passengers of a booking in insertion order
func (r *BookingRepository) GetPassengers(ctx context.Context, bookingID int64) ([]models.Passenger, error) {
	passengers := []models.Passenger{}
	err := r.db.SelectContext(ctx, &passengers, `SELECT `+passengerColumns+` FROM passengers WHERE booking_id = $1 ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get passengers: %w", err)
	}
	return passengers, nil
}

// MarkCancelled transitions a booking to cancelled
func (r *BookingRepository) MarkCancelled(ctx context.Context, tx *sqlx.Tx, bookingID int64, paymentStatus models.PaymentStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'cancelled', payment_status = $1, hold_expires_at = NULL,
		    cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $2`,
		paymentStatus, bookingID)
	if err != nil {
		return classifyError("cancel booking", err)
	}
	return nil
}

// UpdateStatus sets booking and payment status together
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, bookingID int64, status models.BookingStatus, paymentStatus models.PaymentStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, payment_status = $2, hold_expires_at = NULL, updated_at = NOW()
		WHERE id = $3`,
		status, paymentStatus, bookingID)
	if err != nil {
		return classifyError("update booking status", err)
	}
	return nil
}

// AppendSeats adds operationally booked seats to a booking and charges their price as surcharge
func (r *BookingRepository) AppendSeats(ctx context.Context, tx *sqlx.Tx, bookingID int64, seats models.SeatNumbers, extra float64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET seat_numbers = seat_numbers || $1::text[],
		    surcharge_amount = surcharge_amount + $2,
		    total_amount = total_amount + $2,
		    updated_at = NOW()
		WHERE id = $3`,
		seats, extra, bookingID)
	if err != nil {
		return classifyError("append booking seats", err)
	}
	return nil
}

// ListExpiredHolds returns pending bookings whose seat hold lapsed before now
func (r *BookingRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	ids := []int64{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM bookings
		WHERE status = 'pending' AND hold_expires_at IS NOT NULL AND hold_expires_at < $1
		ORDER BY hold_expires_at
		LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	return ids, nil
}

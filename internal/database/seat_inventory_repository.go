package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
)

// ReserveRequest asks for a set of seats to be attached to one booking reference
type ReserveRequest struct {
	TravelOptionID   int64
	BookingReference string
	SeatNumbers      []string
	Status           models.SeatStatus // held or booked
	HoldUntil        *time.Time        // only for held seats
}

// lockedSeat is the projection read while holding the row lock
type lockedSeat struct {
	ID               int64             `db:"id"`
	SeatNo           string            `db:"seat_no"`
	Status           models.SeatStatus `db:"status"`
	BookingReference *string           `db:"booking_reference"`
}

func (s lockedSeat) heldBy(bookingReference string) bool {
	return s.Status != models.SeatStatusAvailable && s.BookingReference != nil && *s.BookingReference == bookingReference
}

// SeatInventoryRepository owns every transition of seat rows
type SeatInventoryRepository struct {
	db          DB
	lockTimeout time.Duration
}

// NewSeatInventoryRepository creates a new SeatInventoryRepository
func NewSeatInventoryRepository(db DB, lockTimeout time.Duration) *SeatInventoryRepository {
	return &SeatInventoryRepository{db: db, lockTimeout: lockTimeout}
}

// setLockTimeout bounds row lock waits for the rest of the transaction
func (r *SeatInventoryRepository) setLockTimeout(ctx context.Context, tx *sqlx.Tx) error {
	ms := r.lockTimeout.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)); err != nil {
		return classifyError("set lock timeout", err)
	}
	return nil
}

// lock acquires row locks on the requested seats in canonical order
func (r *SeatInventoryRepository) lock(ctx context.Context, tx *sqlx.Tx, q SeatLockQuery) (map[string]lockedSeat, error) {
	if err := r.setLockTimeout(ctx, tx); err != nil {
		return nil, err
	}

	query, args, err := q.ForUpdate(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to build seat lock query: %w", err)
	}

	var rows []lockedSeat
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classifyError("lock seats", err)
	}

	locked := make(map[string]lockedSeat, len(rows))
	for _, row := range rows {
		locked[row.SeatNo] = row
	}
	return locked, nil
}

// Reserve locks the requested seats and attaches every available one to the
// booking reference. Seats that are taken or unknown are reported, not skipped.
// A lock-wait timeout aborts the whole attempt with a retryable error.
func (r *SeatInventoryRepository) Reserve(ctx context.Context, tx *sqlx.Tx, req ReserveRequest) (*models.ReservationResult, error) {
	if req.Status != models.SeatStatusHeld && req.Status != models.SeatStatusBooked {
		return nil, fmt.Errorf("invalid reservation status: %s", req.Status)
	}
	if req.BookingReference == "" {
		return nil, fmt.Errorf("booking reference is required")
	}

	q := SeatLockQuery{TravelOptionID: req.TravelOptionID, SeatNumbers: req.SeatNumbers}.Normalize()
	result := &models.ReservationResult{Booked: []string{}, Failed: []domain.SeatFailure{}}
	if len(q.SeatNumbers) == 0 {
		return result, nil
	}

	locked, err := r.lock(ctx, tx, q)
	if err != nil {
		return nil, err
	}

	grantable := make([]string, 0, len(q.SeatNumbers))
	for _, seatNo := range q.SeatNumbers {
		seat, ok := locked[seatNo]
		switch {
		case !ok:
			result.Failed = append(result.Failed, domain.SeatFailure{SeatNo: seatNo, Reason: domain.ReasonSeatNotFound})
		case seat.Status != models.SeatStatusAvailable:
			result.Failed = append(result.Failed, domain.SeatFailure{SeatNo: seatNo, Reason: domain.ReasonSeatAlreadyBooked})
		default:
			grantable = append(grantable, seatNo)
		}
	}

	if len(grantable) == 0 {
		return result, nil
	}

	var holdUntil *time.Time
	if req.Status == models.SeatStatusHeld {
		holdUntil = req.HoldUntil
	}

	query, args, err := sqlx.In(`
		UPDATE seats
		SET status = ?, booking_reference = ?, hold_expires_at = ?, updated_at = NOW()
		WHERE travel_option_id = ? AND seat_no IN (?) AND status = 'available'`,
		req.Status, req.BookingReference, holdUntil, req.TravelOptionID, grantable)
	if err != nil {
		return nil, fmt.Errorf("failed to build reserve query: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return nil, classifyError("reserve seats", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, classifyError("reserve seats", err)
	}
	// Rows are locked, so anything else means the lock did not cover the update.
	if int(affected) != len(grantable) {
		return nil, domain.PersistenceError{
			Op:  "reserve seats",
			Msg: fmt.Sprintf("expected to reserve %d seats, updated %d", len(grantable), affected),
		}
	}

	result.Booked = grantable
	return result, nil
}

// Release locks the given seats and frees them regardless of their holder.
// Only administrative resets use it; bookings release through ReleaseOwned.
func (r *SeatInventoryRepository) Release(ctx context.Context, tx *sqlx.Tx, travelOptionID int64, seatNumbers []string) (int, error) {
	q := SeatLockQuery{TravelOptionID: travelOptionID, SeatNumbers: seatNumbers}.Normalize()
	if len(q.SeatNumbers) == 0 {
		return 0, nil
	}

	if _, err := r.lock(ctx, tx, q); err != nil {
		return 0, err
	}

	query, args, err := sqlx.In(`
		UPDATE seats
		SET status = 'available', booking_reference = NULL, hold_expires_at = NULL, updated_at = NOW()
		WHERE travel_option_id = ? AND seat_no IN (?)`,
		travelOptionID, q.SeatNumbers)
	if err != nil {
		return 0, fmt.Errorf("failed to build release query: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, classifyError("release seats", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, classifyError("release seats", err)
	}
	return int(affected), nil
}

// ReleaseOwned locks the given seats and frees those still attached to
// bookingReference. Seats reset or taken by another booking since are left
// alone. The freed seats are returned in lock order.
func (r *SeatInventoryRepository) ReleaseOwned(ctx context.Context, tx *sqlx.Tx, travelOptionID int64, bookingReference string, seatNumbers []string) ([]string, error) {
	if bookingReference == "" {
		return nil, fmt.Errorf("booking reference is required")
	}
	q := SeatLockQuery{TravelOptionID: travelOptionID, SeatNumbers: seatNumbers}.Normalize()
	owned := make([]string, 0, len(q.SeatNumbers))
	if len(q.SeatNumbers) == 0 {
		return owned, nil
	}

	locked, err := r.lock(ctx, tx, q)
	if err != nil {
		return nil, err
	}
	for _, seatNo := range q.SeatNumbers {
		if seat, ok := locked[seatNo]; ok && seat.heldBy(bookingReference) {
			owned = append(owned, seatNo)
		}
	}
	if len(owned) == 0 {
		return owned, nil
	}

	query, args, err := sqlx.In(`
		UPDATE seats
		SET status = 'available', booking_reference = NULL, hold_expires_at = NULL, updated_at = NOW()
		WHERE travel_option_id = ? AND seat_no IN (?) AND booking_reference = ?`,
		travelOptionID, owned, bookingReference)
	if err != nil {
		return nil, fmt.Errorf("failed to build release query: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return nil, classifyError("release seats", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, classifyError("release seats", err)
	}
	if int(affected) != len(owned) {
		return nil, domain.PersistenceError{
			Op:  "release seats",
			Msg: fmt.Sprintf("expected to release %d seats, updated %d", len(owned), affected),
		}
	}
	return owned, nil
}

// Confirm moves seats held by bookingReference to booked.
// It returns how many seats were confirmed; seats held by someone else are left alone.
func (r *SeatInventoryRepository) Confirm(ctx context.Context, tx *sqlx.Tx, travelOptionID int64, bookingReference string, seatNumbers []string) (int, error) {
	q := SeatLockQuery{TravelOptionID: travelOptionID, SeatNumbers: seatNumbers}.Normalize()
	if len(q.SeatNumbers) == 0 {
		return 0, nil
	}

	if _, err := r.lock(ctx, tx, q); err != nil {
		return 0, err
	}

	query, args, err := sqlx.In(`
		UPDATE seats
		SET status = 'booked', hold_expires_at = NULL, updated_at = NOW()
		WHERE travel_option_id = ? AND seat_no IN (?) AND booking_reference = ? AND status = 'held'`,
		travelOptionID, q.SeatNumbers, bookingReference)
	if err != nil {
		return 0, fmt.Errorf("failed to build confirm query: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, classifyError("confirm seats", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, classifyError("confirm seats", err)
	}
	return int(affected), nil
}

// ResetSeats frees one seat, or every seat of the travel option when seatNo is nil,
// without touching bookings. Administrative use only.
func (r *SeatInventoryRepository) ResetSeats(ctx context.Context, travelOptionID int64, seatNo *string) (int, error) {
	var released int
	err := WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if seatNo != nil {
			n, err := r.Release(ctx, tx, travelOptionID, []string{*seatNo})
			if err != nil {
				return err
			}
			if n == 0 {
				return domain.NotFoundError{Resource: "seat", ID: *seatNo}
			}
			released = n
			return nil
		}

		if err := r.setLockTimeout(ctx, tx); err != nil {
			return err
		}
		query, args := SeatLockQuery{TravelOptionID: travelOptionID}.AllForUpdate(tx)
		var rows []lockedSeat
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return classifyError("lock seats", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE seats
			SET status = 'available', booking_reference = NULL, hold_expires_at = NULL, updated_at = NOW()
			WHERE travel_option_id = $1 AND status <> 'available'`,
			travelOptionID)
		if err != nil {
			return classifyError("reset seats", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return classifyError("reset seats", err)
		}
		released = int(affected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// ListSeats returns every seat of a travel option in stored order
func (r *SeatInventoryRepository) ListSeats(ctx context.Context, travelOptionID int64) ([]models.Seat, error) {
	var seats []models.Seat
	err := r.db.SelectContext(ctx, &seats, `
		SELECT id, travel_option_id, seat_no, seat_type, row_number, position, price,
		       status, booking_reference, hold_expires_at, updated_at
		FROM seats
		WHERE travel_option_id = $1
		ORDER BY id`,
		travelOptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	return seats, nil
}

// GetSummary counts seats per status
func (r *SeatInventoryRepository) GetSummary(ctx context.Context, travelOptionID int64) (*models.SeatSummary, error) {
	summary := &models.SeatSummary{TravelOptionID: travelOptionID}
	err := r.db.GetContext(ctx, summary, `
		SELECT
			$1::bigint AS travel_option_id,
			COUNT(*) AS total_seats,
			COUNT(*) FILTER (WHERE status = 'available') AS available_seats,
			COUNT(*) FILTER (WHERE status = 'held') AS held_seats,
			COUNT(*) FILTER (WHERE status = 'booked') AS booked_seats
		FROM seats
		WHERE travel_option_id = $1`,
		travelOptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get seat summary: %w", err)
	}
	return summary, nil
}

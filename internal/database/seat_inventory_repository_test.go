package database

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lockedSeatCols = []string{"id", "seat_no", "status", "booking_reference"}

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresDB{DB: sqlx.NewDb(db, "postgres")}, mock
}

func beginTx(t *testing.T, db *PostgresDB, mock sqlmock.Sqlmock) *sqlx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	return tx
}

func expectLock(mock sqlmock.Sqlmock, timeout string, args ...driver.Value) *sqlmock.ExpectedQuery {
	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("SET LOCAL lock_timeout = '%s'", timeout))).
		WillReturnResult(sqlmock.NewResult(0, 0))
	return mock.ExpectQuery(`SELECT id, seat_no, status, booking_reference\s+FROM seats\s+WHERE travel_option_id = \$1 AND seat_no IN`).
		WithArgs(args...)
}

func TestSeatLockQuery(t *testing.T) {
	db, _ := newMockDB(t)

	t.Run("Sorted And Deduplicated", func(t *testing.T) {
		q := SeatLockQuery{TravelOptionID: 5, SeatNumbers: []string{"1B", " 1A", "1B", "", "10A"}}
		query, args, err := q.ForUpdate(db)
		require.NoError(t, err)

		assert.Equal(t, []interface{}{int64(5), "10A", "1A", "1B"}, args)
		assert.Contains(t, query, "seat_no IN ($2, $3, $4)")
		assert.Contains(t, query, `ORDER BY seat_no COLLATE "C"`)
		assert.Contains(t, query, "FOR UPDATE")
	})

	t.Run("Empty Set", func(t *testing.T) {
		_, _, err := SeatLockQuery{TravelOptionID: 5, SeatNumbers: []string{" "}}.ForUpdate(db)
		assert.ErrorIs(t, err, errEmptySeatSet)
	})

	t.Run("All Seats", func(t *testing.T) {
		query, args := SeatLockQuery{TravelOptionID: 7}.AllForUpdate(db)
		assert.Equal(t, []interface{}{int64(7)}, args)
		assert.Contains(t, query, "WHERE travel_option_id = $1")
		assert.Contains(t, query, "FOR UPDATE")
	})
}

func TestReserve(t *testing.T) {
	ctx := context.Background()
	holdUntil := time.Date(2026, 10, 17, 12, 10, 0, 0, time.UTC)

	t.Run("All Seats Available", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, 3*time.Second)
		tx := beginTx(t, db, mock)

		expectLock(mock, "3000ms", int64(5), "2A", "2B").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).
				AddRow(11, "2A", "available", nil).
				AddRow(12, "2B", "available", nil))
		mock.ExpectExec(`UPDATE seats\s+SET status = \$1, booking_reference = \$2, hold_expires_at = \$3`).
			WithArgs("held", "BK-20261017-000001", holdUntil, int64(5), "2A", "2B").
			WillReturnResult(sqlmock.NewResult(0, 2))

		result, err := repo.Reserve(ctx, tx, ReserveRequest{
			TravelOptionID:   5,
			BookingReference: "BK-20261017-000001",
			SeatNumbers:      []string{"2B", "2A"},
			Status:           models.SeatStatusHeld,
			HoldUntil:        &holdUntil,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2A", "2B"}, result.Booked)
		assert.Empty(t, result.Failed)
		assert.False(t, result.HasFailures())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Booked And Missing Seats Are Reported", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, 3*time.Second)
		tx := beginTx(t, db, mock)

		ref := "BK-OTHER"
		expectLock(mock, "3000ms", int64(5), "1A", "1B", "9Z").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).
				AddRow(1, "1A", "booked", ref).
				AddRow(2, "1B", "available", nil))
		mock.ExpectExec(`UPDATE seats`).
			WithArgs("booked", "BK-NEW", nil, int64(5), "1B").
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := repo.Reserve(ctx, tx, ReserveRequest{
			TravelOptionID:   5,
			BookingReference: "BK-NEW",
			SeatNumbers:      []string{"1A", "1B", "9Z"},
			Status:           models.SeatStatusBooked,
			HoldUntil:        &holdUntil, // ignored for booked seats
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1B"}, result.Booked)
		assert.Equal(t, []domain.SeatFailure{
			{SeatNo: "1A", Reason: domain.ReasonSeatAlreadyBooked},
			{SeatNo: "9Z", Reason: domain.ReasonSeatNotFound},
		}, result.Failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Held Seat Counts As Booked", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, time.Second)
		tx := beginTx(t, db, mock)

		expectLock(mock, "1000ms", int64(5), "3C").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).AddRow(3, "3C", "held", "BK-PENDING"))

		result, err := repo.Reserve(ctx, tx, ReserveRequest{
			TravelOptionID: 5, BookingReference: "BK-NEW", SeatNumbers: []string{"3C"}, Status: models.SeatStatusHeld,
		})
		require.NoError(t, err)
		assert.Empty(t, result.Booked)
		assert.Equal(t, []domain.SeatFailure{{SeatNo: "3C", Reason: domain.ReasonSeatAlreadyBooked}}, result.Failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Second Caller Sees First Caller's Seat", func(t *testing.T) {
		// Two reservations of 1A serialized by the row lock: the second reads the committed state.
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, time.Second)

		tx1 := beginTx(t, db, mock)
		expectLock(mock, "1000ms", int64(5), "1A").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).AddRow(1, "1A", "available", nil))
		mock.ExpectExec(`UPDATE seats`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		first, err := repo.Reserve(ctx, tx1, ReserveRequest{TravelOptionID: 5, BookingReference: "BK-A", SeatNumbers: []string{"1A"}, Status: models.SeatStatusHeld})
		require.NoError(t, err)
		require.NoError(t, tx1.Commit())

		tx2 := beginTx(t, db, mock)
		expectLock(mock, "1000ms", int64(5), "1A").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).AddRow(1, "1A", "held", "BK-A"))

		second, err := repo.Reserve(ctx, tx2, ReserveRequest{TravelOptionID: 5, BookingReference: "BK-B", SeatNumbers: []string{"1A"}, Status: models.SeatStatusHeld})
		require.NoError(t, err)

		assert.Equal(t, []string{"1A"}, first.Booked)
		assert.Empty(t, second.Booked)
		assert.Equal(t, []domain.SeatFailure{{SeatNo: "1A", Reason: domain.ReasonSeatAlreadyBooked}}, second.Failed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lock Timeout Is Retryable", func(t *testing.T) {
		drivers := map[string]error{
			"lib/pq": &pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"},
			"pgx":    &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"},
		}
		for name, lockErr := range drivers {
			t.Run(name, func(t *testing.T) {
				db, mock := newMockDB(t)
				repo := NewSeatInventoryRepository(db, time.Second)
				tx := beginTx(t, db, mock)

				expectLock(mock, "1000ms", int64(5), "1A").WillReturnError(lockErr)

				result, err := repo.Reserve(ctx, tx, ReserveRequest{TravelOptionID: 5, BookingReference: "BK-A", SeatNumbers: []string{"1A"}, Status: models.SeatStatusHeld})
				assert.Nil(t, result)
				require.Error(t, err)
				assert.True(t, domain.IsPersistence(err))
				assert.True(t, IsLockTimeout(err))
				assert.Contains(t, err.Error(), "seat lock wait timed out")
				assert.NoError(t, mock.ExpectationsWereMet())
			})
		}
	})

	t.Run("Rows Affected Mismatch", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, time.Second)
		tx := beginTx(t, db, mock)

		expectLock(mock, "1000ms", int64(5), "1A", "1B").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).
				AddRow(1, "1A", "available", nil).
				AddRow(2, "1B", "available", nil))
		mock.ExpectExec(`UPDATE seats`).WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := repo.Reserve(ctx, tx, ReserveRequest{TravelOptionID: 5, BookingReference: "BK-A", SeatNumbers: []string{"1A", "1B"}, Status: models.SeatStatusHeld})
		require.Error(t, err)
		assert.True(t, domain.IsPersistence(err))
	})

	t.Run("Invalid Status", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, time.Second)
		tx := beginTx(t, db, mock)

		_, err := repo.Reserve(ctx, tx, ReserveRequest{TravelOptionID: 5, BookingReference: "BK-A", SeatNumbers: []string{"1A"}, Status: models.SeatStatusAvailable})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("Releases Exactly The Given Seats", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, 2*time.Second)
		tx := beginTx(t, db, mock)

		expectLock(mock, "2000ms", int64(5), "2A", "2B").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).
				AddRow(1, "2A", "booked", "BK-1").
				AddRow(2, "2B", "booked", "BK-1"))
		mock.ExpectExec(`UPDATE seats\s+SET status = 'available', booking_reference = NULL`).
			WithArgs(int64(5), "2A", "2B").
			WillReturnResult(sqlmock.NewResult(0, 2))

		n, err := repo.Release(ctx, tx, 5, []string{"2B", "2A", "2A"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty List Is A No-op", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, time.Second)
		tx := beginTx(t, db, mock)

		n, err := repo.Release(ctx, tx, 5, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReleaseOwned(t *testing.T) {
	ctx := context.Background()

	t.Run("Skips Seats Held By Another Reference", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, 2*time.Second)
		tx := beginTx(t, db, mock)

		expectLock(mock, "2000ms", int64(5), "2A", "2B", "2C").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).
				AddRow(1, "2A", "held", "BK-OTHER").
				AddRow(2, "2B", "held", "BK-1").
				AddRow(3, "2C", "booked", "BK-1"))
		mock.ExpectExec(`UPDATE seats\s+SET status = 'available', booking_reference = NULL.*AND booking_reference = \$4`).
			WithArgs(int64(5), "2B", "2C", "BK-1").
			WillReturnResult(sqlmock.NewResult(0, 2))

		released, err := repo.ReleaseOwned(ctx, tx, 5, "BK-1", []string{"2C", "2A", "2B"})
		require.NoError(t, err)
		assert.Equal(t, []string{"2B", "2C"}, released)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Reset Seats Are Not Touched", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, 2*time.Second)
		tx := beginTx(t, db, mock)

		expectLock(mock, "2000ms", int64(5), "2A").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).AddRow(1, "2A", "available", nil))

		released, err := repo.ReleaseOwned(ctx, tx, 5, "BK-1", []string{"2A"})
		require.NoError(t, err)
		assert.Empty(t, released)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Row Count Mismatch Is A Persistence Error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, 2*time.Second)
		tx := beginTx(t, db, mock)

		expectLock(mock, "2000ms", int64(5), "2A").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).AddRow(1, "2A", "held", "BK-1"))
		mock.ExpectExec(`UPDATE seats\s+SET status = 'available'`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.ReleaseOwned(ctx, tx, 5, "BK-1", []string{"2A"})
		var pErr domain.PersistenceError
		assert.ErrorAs(t, err, &pErr)
	})
}

func TestConfirm(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSeatInventoryRepository(db, time.Second)
	tx := beginTx(t, db, mock)

	expectLock(mock, "1000ms", int64(5), "2A").
		WillReturnRows(sqlmock.NewRows(lockedSeatCols).AddRow(1, "2A", "held", "BK-1"))
	mock.ExpectExec(`UPDATE seats\s+SET status = 'booked'`).
		WithArgs(int64(5), "2A", "BK-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Confirm(context.Background(), tx, 5, "BK-1", []string{"2A"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetSeats(t *testing.T) {
	ctx := context.Background()

	t.Run("Single Seat", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, time.Second)
		seat := "4D"

		mock.ExpectBegin()
		expectLock(mock, "1000ms", int64(5), "4D").
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).AddRow(9, "4D", "booked", "BK-9"))
		mock.ExpectExec(`UPDATE seats`).WithArgs(int64(5), "4D").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		n, err := repo.ResetSeats(ctx, 5, &seat)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Seat", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, time.Second)
		seat := "99Z"

		mock.ExpectBegin()
		expectLock(mock, "1000ms", int64(5), "99Z").WillReturnRows(sqlmock.NewRows(lockedSeatCols))
		mock.ExpectExec(`UPDATE seats`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.ResetSeats(ctx, 5, &seat)
		assert.True(t, domain.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("All Seats", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSeatInventoryRepository(db, time.Second)

		mock.ExpectBegin()
		mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, seat_no, status, booking_reference\s+FROM seats\s+WHERE travel_option_id = \$1\s+ORDER BY`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(lockedSeatCols).
				AddRow(1, "1A", "booked", "BK-1").
				AddRow(2, "1B", "available", nil).
				AddRow(3, "1C", "held", "BK-2"))
		mock.ExpectExec(`UPDATE seats`).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		n, err := repo.ResetSeats(ctx, 5, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetSummary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSeatInventoryRepository(db, time.Second)

	mock.ExpectQuery(`COUNT\(\*\) FILTER`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"travel_option_id", "total_seats", "available_seats", "held_seats", "booked_seats"}).
			AddRow(5, 40, 30, 4, 6))

	summary, err := repo.GetSummary(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 40, summary.TotalSeats)
	assert.Equal(t, 30, summary.AvailableSeats)
	assert.Equal(t, 4, summary.HeldSeats)
	assert.Equal(t, 6, summary.BookedSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

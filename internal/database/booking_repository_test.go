package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingCols = []string{
	"id", "booking_reference", "user_id", "travel_option_id", "from_city", "to_city", "travel_date",
	"operator_name", "status", "payment_status", "seat_numbers", "passenger_count",
	"cost_per_passenger", "tax_per_passenger", "base_amount", "tax_amount", "surcharge_amount",
	"total_amount", "fare_warning", "device_info", "hold_expires_at", "cancelled_at", "created_at", "updated_at",
}

func bookingRow(id int64, userID uuid.UUID, status string, seats string) *sqlmock.Rows {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(bookingCols).AddRow(
		id, "BK-20261017-123456", userID.String(), 5, "Colombo", "Kandy", now,
		"SLTB Express", status, "unpaid", seats, 2,
		100.0, 10.0, 200.0, 20.0, 30.0,
		250.0, nil, []byte(`{"platform":"android"}`), nil, nil, now, now,
	)
}

func sequence(values ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		v := values[i%len(values)]
		i++
		return v, nil
	}
}

func TestGenerateReference(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	t.Run("Retries On Collision", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		repo.referenceSuffix = sequence("111111", "222222")
		tx := beginTx(t, db, mock)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`)).
			WithArgs("BK-20261017-111111").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`)).
			WithArgs("BK-20261017-222222").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		ref, err := repo.GenerateReference(ctx, tx, "BK", 10, now)
		require.NoError(t, err)
		assert.Equal(t, "BK-20261017-222222", ref)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Exhaustion Is A Persistence Error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		repo.referenceSuffix = sequence("333333")
		tx := beginTx(t, db, mock)

		for i := 0; i < 3; i++ {
			mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		}

		ref, err := repo.GenerateReference(ctx, tx, "BK", 3, now)
		assert.Empty(t, ref)
		require.Error(t, err)
		assert.True(t, domain.IsPersistence(err))
		assert.Contains(t, err.Error(), "3 attempts")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Default Suffix Is Six Digits", func(t *testing.T) {
		suffix, err := randomDigits(6)()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, suffix)
	})
}

func TestInsertBookingAndPassengers(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	tx := beginTx(t, db, mock)
	now := time.Now()

	booking := &models.Booking{
		BookingReference: "BK-20261017-123456",
		UserID:           uuid.New(),
		TravelOptionID:   5,
		FromCity:         "Colombo",
		ToCity:           "Kandy",
		TravelDate:       now,
		OperatorName:     "SLTB Express",
		Status:           models.BookingStatusPending,
		PaymentStatus:    models.PaymentStatusUnpaid,
		SeatNumbers:      models.SeatNumbers{"2A", "2B"},
		PassengerCount:   2,
		CostPerPassenger: 100,
		TaxPerPassenger:  10,
	}

	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(
			booking.BookingReference, booking.UserID.String(), int64(5), "Colombo", "Kandy", sqlmock.AnyArg(),
			"SLTB Express", "pending", "unpaid", `{"2A","2B"}`, 2,
			100.0, 10.0, sqlmock.AnyArg(), nil,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(77, now, now))

	require.NoError(t, repo.Insert(ctx, tx, booking))
	assert.Equal(t, int64(77), booking.ID)

	mock.ExpectQuery(`INSERT INTO passengers`).
		WithArgs(int64(77), int64(5), "2A", "Nimal", "nimal@example.com", "0771234567", nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, now))
	mock.ExpectQuery(`INSERT INTO passengers`).
		WithArgs(int64(77), int64(5), "2B", "Kamala", "kamala@example.com", "0712345678", nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(2, now))

	passengers, err := repo.InsertPassengers(ctx, tx, 77, 5, []models.PassengerInput{
		{FullName: "Nimal", Email: "nimal@example.com", Phone: "0771234567", SeatNo: "2A"},
		{FullName: "Kamala", Email: "kamala@example.com", Phone: "0712345678", SeatNo: "2B"},
	})
	require.NoError(t, err)
	require.Len(t, passengers, 2)
	assert.Equal(t, int64(2), passengers[1].ID)
	assert.Equal(t, "2B", passengers[1].SeatNo)

	mock.ExpectExec(`UPDATE bookings\s+SET base_amount = \$1`).
		WithArgs(200.0, 20.0, 30.0, 250.0, nil, int64(77)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateFare(ctx, tx, 77, models.FareBreakdown{BaseAmount: 200, TaxAmount: 20, SurchargeAmount: 30, TotalAmount: 250})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBooking_StoreFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	tx := beginTx(t, db, mock)

	mock.ExpectQuery(`INSERT INTO bookings`).WillReturnError(fmt.Errorf("connection reset by peer"))

	err := repo.Insert(context.Background(), tx, &models.Booking{UserID: uuid.New()})
	require.Error(t, err)
	assert.True(t, domain.IsPersistence(err))
}

func TestGetForUpdate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		tx := beginTx(t, db, mock)

		mock.ExpectQuery(`(?s)SELECT .+ FROM bookings WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(77)).
			WillReturnRows(bookingRow(77, userID, "pending", `{2A,2B}`))

		b, err := repo.GetForUpdate(ctx, tx, 77)
		require.NoError(t, err)
		assert.Equal(t, userID, b.UserID)
		assert.Equal(t, models.SeatNumbers{"2A", "2B"}, b.SeatNumbers)
		assert.Equal(t, models.BookingStatusPending, b.Status)
		assert.Equal(t, "android", b.DeviceInfo["platform"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Malformed Seat List Decodes Empty", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		tx := beginTx(t, db, mock)

		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(bookingRow(78, userID, "pending", `["2A",`))

		b, err := repo.GetForUpdate(ctx, tx, 78)
		require.NoError(t, err)
		assert.Empty(t, b.SeatNumbers)
	})

	t.Run("Not Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewBookingRepository(db)
		tx := beginTx(t, db, mock)

		mock.ExpectQuery(`FOR UPDATE`).WillReturnError(sql.ErrNoRows)

		b, err := repo.GetForUpdate(ctx, tx, 404)
		assert.Nil(t, b)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`FROM bookings\s+WHERE user_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs(userID.String(), 20, 0).
		WillReturnRows(bookingRow(77, userID, "confirmed", `{2A,2B}`))

	bookings, err := repo.ListByUser(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusConfirmed, bookings[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListExpiredHolds(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT id FROM bookings\s+WHERE status = 'pending' AND hold_expires_at IS NOT NULL`).
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(9))

	ids, err := repo.ListExpiredHolds(context.Background(), now, 50)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 9}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

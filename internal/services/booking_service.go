package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/config"
	"github.com/smarttransit/booking-engine/internal/database"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
	"github.com/smarttransit/booking-engine/pkg/validator"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// BookingServiceConfig holds the booking lifecycle settings
type BookingServiceConfig struct {
	HoldTTL           time.Duration
	ReferencePrefix   string
	ReferenceAttempts int
	SurchargePolicy   string
}

// BookingServiceConfigFrom maps the loaded booking configuration
func BookingServiceConfigFrom(cfg config.BookingConfig) BookingServiceConfig {
	return BookingServiceConfig{
		HoldTTL:           cfg.HoldTTL,
		ReferencePrefix:   cfg.ReferencePrefix,
		ReferenceAttempts: cfg.ReferenceAttempts,
		SurchargePolicy:   cfg.SurchargePolicy,
	}
}

// BookingService coordinates booking creation, cancellation and the
// payment driven lifecycle. Every mutation runs in exactly one transaction.
type BookingService struct {
	db            database.DB
	bookings      *database.BookingRepository
	inventory     *database.SeatInventoryRepository
	travelOptions *database.TravelOptionRepository
	fares         *FareDecomposer
	contacts      *validator.ContactValidator
	cache         *SeatMapCache
	events        BookingEventPublisher
	config        BookingServiceConfig
	logger        *logrus.Logger
	now           func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(
	db database.DB,
	bookings *database.BookingRepository,
	inventory *database.SeatInventoryRepository,
	travelOptions *database.TravelOptionRepository,
	fares *FareDecomposer,
	cache *SeatMapCache,
	events BookingEventPublisher,
	cfg BookingServiceConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		db:            db,
		bookings:      bookings,
		inventory:     inventory,
		travelOptions: travelOptions,
		fares:         fares,
		contacts:      validator.NewContactValidator(),
		cache:         cache,
		events:        events,
		config:        cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// Create books the selected seats for the given passengers.
//
// Validation happens before any transaction is opened. The reference, the
// booking row, the seat holds, the passengers and the fare breakdown are
// written in one transaction; any seat that cannot be reserved rolls the
// whole booking back and is reported in the returned ConflictError.
func (s *BookingService) Create(ctx context.Context, req *models.CreateBookingRequest) (*models.CreateBookingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.validateContacts(req.Passengers); err != nil {
		return nil, err
	}

	fare, err := s.fares.Compute(FareInput{
		CostPerPassenger: req.CostPerPassenger,
		TaxPerPassenger:  req.TaxPerPassenger,
		PassengerCount:   len(req.Passengers),
		GrandTotal:       req.TotalWithSeats,
	})
	if err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"request_id":       req.RequestID,
		"user_id":          req.UserID,
		"travel_option_id": req.TravelOptionID,
		"seats":            req.SelectedSeats,
	})

	if fare.HasIntegrityWarning() {
		if s.config.SurchargePolicy != config.SurchargePolicyWarn {
			return nil, domain.ValidationError{Field: "total_with_seats", Msg: fare.IntegrityWarning}
		}
		logger.WithField("surcharge", fare.SurchargeAmount).Warn("Fare integrity warning: " + fare.IntegrityWarning)
	}

	travelDate, err := req.ParsedTravelDate()
	if err != nil {
		return nil, domain.ValidationError{Field: "travel_date", Msg: "must be formatted as YYYY-MM-DD", Err: err}
	}

	if _, err := s.travelOptions.GetByID(ctx, req.TravelOptionID); err != nil {
		return nil, err
	}

	now := s.now()
	holdUntil := now.Add(s.config.HoldTTL)
	seats := make(models.SeatNumbers, 0, len(req.SelectedSeats))
	for _, seat := range req.SelectedSeats {
		seats = append(seats, strings.TrimSpace(seat))
	}

	booking := &models.Booking{
		UserID:           req.UserID,
		TravelOptionID:   req.TravelOptionID,
		FromCity:         strings.TrimSpace(req.FromCity),
		ToCity:           strings.TrimSpace(req.ToCity),
		TravelDate:       travelDate,
		OperatorName:     strings.TrimSpace(req.OperatorName),
		Status:           models.BookingStatusPending,
		PaymentStatus:    models.PaymentStatusUnpaid,
		SeatNumbers:      seats,
		PassengerCount:   len(req.Passengers),
		CostPerPassenger: req.CostPerPassenger,
		TaxPerPassenger:  req.TaxPerPassenger,
		DeviceInfo:       req.DeviceInfo,
		HoldExpiresAt:    &holdUntil,
	}

	var passengers []models.Passenger
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ref, err := s.bookings.GenerateReference(ctx, tx, s.config.ReferencePrefix, s.config.ReferenceAttempts, now)
		if err != nil {
			return err
		}
		booking.BookingReference = ref

		if err := s.bookings.Insert(ctx, tx, booking); err != nil {
			return err
		}

		result, err := s.inventory.Reserve(ctx, tx, database.ReserveRequest{
			TravelOptionID:   booking.TravelOptionID,
			BookingReference: ref,
			SeatNumbers:      booking.SeatNumbers,
			Status:           models.SeatStatusHeld,
			HoldUntil:        &holdUntil,
		})
		if err != nil {
			return err
		}
		if result.HasFailures() {
			return domain.ConflictError{Resource: "seat", Failures: result.Failed}
		}

		passengers, err = s.bookings.InsertPassengers(ctx, tx, booking.ID, booking.TravelOptionID, req.Passengers)
		if err != nil {
			return err
		}

		return s.bookings.UpdateFare(ctx, tx, booking.ID, fare)
	})
	if err != nil {
		logger.WithError(err).Warn("Booking creation rolled back")
		return nil, err
	}

	booking.BaseAmount = fare.BaseAmount
	booking.TaxAmount = fare.TaxAmount
	booking.SurchargeAmount = fare.SurchargeAmount
	booking.TotalAmount = fare.TotalAmount

	logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  booking.BookingReference,
		"total":      fare.TotalAmount,
	}).Info("Booking created")

	s.cache.Invalidate(ctx, booking.TravelOptionID)
	s.publish(ctx, NewBookingEvent(BookingEventCreated, booking, fare, passengers, ""))

	assignments := make([]models.SeatAssignment, 0, len(passengers))
	for _, p := range passengers {
		assignments = append(assignments, models.SeatAssignment{
			PassengerID:   p.ID,
			PassengerName: p.FullName,
			SeatNo:        p.SeatNo,
		})
	}

	return &models.CreateBookingResult{
		BookingID:       booking.ID,
		Reference:       booking.BookingReference,
		Status:          booking.Status,
		TotalAmount:     fare.TotalAmount,
		PassengerCount:  booking.PassengerCount,
		Fare:            fare,
		SeatAssignments: assignments,
		HoldExpiresAt:   booking.HoldExpiresAt,
	}, nil
}

// validateContacts checks email and phone format and stores the normalised values
func (s *BookingService) validateContacts(passengers []models.PassengerInput) error {
	for i := range passengers {
		email, err := s.contacts.ValidateEmail(passengers[i].Email)
		if err != nil {
			return domain.ValidationError{Field: fmt.Sprintf("passengers[%d].email", i), Msg: err.Error(), Err: err}
		}
		phone, err := s.contacts.ValidatePhone(passengers[i].Phone)
		if err != nil {
			return domain.ValidationError{Field: fmt.Sprintf("passengers[%d].phone", i), Msg: err.Error(), Err: err}
		}
		passengers[i].Email = email
		passengers[i].Phone = phone
		passengers[i].SeatNo = strings.TrimSpace(passengers[i].SeatNo)
		passengers[i].FullName = strings.TrimSpace(passengers[i].FullName)
	}
	return nil
}

// ============================================================================
// CANCEL / EXPIRE
// ============================================================================

// Cancel releases the booking's seats and marks it cancelled.
// Non-privileged callers only see their own bookings.
func (s *BookingService) Cancel(ctx context.Context, req models.CancelBookingRequest) (*models.CancelBookingResult, error) {
	if req.BookingID <= 0 {
		return nil, domain.ValidationError{Field: "booking_id", Msg: "must be a positive integer"}
	}

	var (
		booking  *models.Booking
		released []string
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, req.BookingID)
		if err != nil {
			return err
		}
		if !req.Privileged && b.UserID != req.RequestedBy {
			return domain.NotFoundError{Resource: "booking", ID: fmt.Sprint(req.BookingID)}
		}
		if b.Status == models.BookingStatusCancelled {
			return domain.ConflictError{Resource: "booking", Msg: "booking is already cancelled"}
		}

		released, err = s.releaseAndCancel(ctx, tx, b, b.PaymentStatus)
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  booking.BookingReference,
		"released":   released,
		"privileged": req.Privileged,
		"reason":     req.Reason,
	}).Info("Booking cancelled")

	s.cache.Invalidate(ctx, booking.TravelOptionID)
	s.publish(ctx, NewBookingEvent(BookingEventCancelled, booking, s.fares.DecomposeBooking(booking), nil, req.Reason))

	return &models.CancelBookingResult{
		BookingID: booking.ID,
		Reference: booking.BookingReference,
		Released:  released,
	}, nil
}

// ExpireHold cancels a pending booking whose seat hold has lapsed.
// It reports false when the booking no longer qualifies.
func (s *BookingService) ExpireHold(ctx context.Context, bookingID int64) (bool, error) {
	var booking *models.Booking
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.BookingStatusPending || b.HoldExpiresAt == nil || b.HoldExpiresAt.After(s.now()) {
			return nil
		}
		if _, err := s.releaseAndCancel(ctx, tx, b, b.PaymentStatus); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil || booking == nil {
		return false, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  booking.BookingReference,
	}).Info("Seat hold expired, booking cancelled")

	s.cache.Invalidate(ctx, booking.TravelOptionID)
	s.publish(ctx, NewBookingEvent(BookingEventCancelled, booking, s.fares.DecomposeBooking(booking), nil, "hold expired"))
	return true, nil
}

// ExpireLapsedHolds expires up to limit bookings whose hold has lapsed.
// A failure on one booking is logged and does not stop the others.
func (s *BookingService) ExpireLapsedHolds(ctx context.Context, limit int) (int, error) {
	ids, err := s.bookings.ListExpiredHolds(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		ok, err := s.ExpireHold(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", id).Warn("Failed to expire seat hold")
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

// releaseAndCancel frees the seats recorded on b that are still attached to
// its reference and transitions it to cancelled. A booking without a
// decodable seat list releases nothing.
func (s *BookingService) releaseAndCancel(ctx context.Context, tx *sqlx.Tx, b *models.Booking, paymentStatus models.PaymentStatus) ([]string, error) {
	released := []string{}
	if len(b.SeatNumbers) == 0 {
		s.logger.WithField("booking_id", b.ID).Warn("Booking has no decodable seat list, releasing nothing")
	} else {
		var err error
		released, err = s.inventory.ReleaseOwned(ctx, tx, b.TravelOptionID, b.BookingReference, b.SeatNumbers)
		if err != nil {
			return nil, err
		}
		if recorded := len(database.SeatLockQuery{SeatNumbers: b.SeatNumbers}.Normalize().SeatNumbers); len(released) != recorded {
			s.logger.WithFields(logrus.Fields{
				"booking_id": b.ID,
				"reference":  b.BookingReference,
				"recorded":   recorded,
				"released":   released,
			}).Warn("Some recorded seats no longer belong to the booking")
		}
	}

	if err := s.bookings.MarkCancelled(ctx, tx, b.ID, paymentStatus); err != nil {
		return nil, err
	}

	now := s.now()
	b.Status = models.BookingStatusCancelled
	b.PaymentStatus = paymentStatus
	b.HoldExpiresAt = nil
	b.CancelledAt = &now
	return released, nil
}

// ============================================================================
// PAYMENT
// ============================================================================

// UpdatePaymentStatus applies a payment outcome reported by the payment collaborator.
//
//	paid     pending -> confirmed, held seats become booked
//	failed   pending -> cancelled, seats released
//	refunded confirmed -> cancelled with seats released, or cancelled stays cancelled
func (s *BookingService) UpdatePaymentStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) (*models.Booking, error) {
	var (
		booking   *models.Booking
		eventType BookingEventType
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		booking = b

		switch status {
		case models.PaymentStatusPaid:
			if b.Status == models.BookingStatusConfirmed && b.PaymentStatus == models.PaymentStatusPaid {
				return nil
			}
			if b.Status != models.BookingStatusPending {
				return domain.ConflictError{Resource: "booking", Msg: fmt.Sprintf("cannot confirm a %s booking", b.Status)}
			}
			expected := len(database.SeatLockQuery{SeatNumbers: b.SeatNumbers}.Normalize().SeatNumbers)
			n, err := s.inventory.Confirm(ctx, tx, b.TravelOptionID, b.BookingReference, b.SeatNumbers)
			if err != nil {
				return err
			}
			if n != expected {
				return domain.ConflictError{
					Resource: "booking",
					Msg:      fmt.Sprintf("seat hold lapsed: confirmed %d of %d seats", n, expected),
				}
			}
			if err := s.bookings.UpdateStatus(ctx, tx, b.ID, models.BookingStatusConfirmed, models.PaymentStatusPaid); err != nil {
				return err
			}
			b.Status = models.BookingStatusConfirmed
			b.PaymentStatus = models.PaymentStatusPaid
			b.HoldExpiresAt = nil
			eventType = BookingEventConfirmed

		case models.PaymentStatusFailed:
			if b.Status != models.BookingStatusPending {
				return domain.ConflictError{Resource: "booking", Msg: fmt.Sprintf("cannot fail payment of a %s booking", b.Status)}
			}
			if _, err := s.releaseAndCancel(ctx, tx, b, models.PaymentStatusFailed); err != nil {
				return err
			}
			eventType = BookingEventCancelled

		case models.PaymentStatusRefunded:
			if b.PaymentStatus != models.PaymentStatusPaid {
				return domain.ConflictError{Resource: "booking", Msg: "only paid bookings can be refunded"}
			}
			switch b.Status {
			case models.BookingStatusConfirmed:
				if _, err := s.releaseAndCancel(ctx, tx, b, models.PaymentStatusRefunded); err != nil {
					return err
				}
				eventType = BookingEventCancelled
			case models.BookingStatusCancelled:
				if err := s.bookings.UpdateStatus(ctx, tx, b.ID, models.BookingStatusCancelled, models.PaymentStatusRefunded); err != nil {
					return err
				}
				b.PaymentStatus = models.PaymentStatusRefunded
			default:
				return domain.ConflictError{Resource: "booking", Msg: fmt.Sprintf("cannot refund a %s booking", b.Status)}
			}

		default:
			return domain.ValidationError{Field: "payment_status", Msg: fmt.Sprintf("cannot set payment status to %q", status)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"reference":      booking.BookingReference,
		"status":         booking.Status,
		"payment_status": booking.PaymentStatus,
	}).Info("Booking payment status updated")

	if eventType != "" {
		s.cache.Invalidate(ctx, booking.TravelOptionID)
		var passengers []models.Passenger
		if eventType == BookingEventConfirmed {
			if passengers, err = s.bookings.GetPassengers(ctx, booking.ID); err != nil {
				s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to load passengers for confirmation event")
			}
		}
		s.publish(ctx, NewBookingEvent(eventType, booking, s.fares.DecomposeBooking(booking), passengers, string(status)))
	}
	return booking, nil
}

// ============================================================================
// OPERATIONAL
// ============================================================================

// BookSeats books specific seats straight onto an existing booking and
// returns the raw per-seat outcome. Seats that succeed are committed even
// when others fail; their price share is added to the booking's surcharge.
// Seats added to a pending booking are held until the booking's hold expires.
func (s *BookingService) BookSeats(ctx context.Context, req models.BookSeatsRequest) (*models.BookSeatsResult, error) {
	if req.TravelOptionID <= 0 {
		return nil, domain.ValidationError{Field: "travel_id", Msg: "must be a positive integer"}
	}
	if req.BookingID <= 0 {
		return nil, domain.ValidationError{Field: "booking_id", Msg: "must be a positive integer"}
	}
	if req.TotalPrice < 0 {
		return nil, domain.ValidationError{Field: "total_price", Msg: "must not be negative"}
	}
	requested := database.SeatLockQuery{SeatNumbers: req.SeatNumbers}.Normalize().SeatNumbers
	if len(requested) == 0 {
		return nil, domain.ValidationError{Field: "seat_numbers", Msg: "must not be empty"}
	}

	var (
		booking *models.Booking
		result  *models.ReservationResult
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := s.bookings.GetForUpdate(ctx, tx, req.BookingID)
		if err != nil {
			return err
		}
		if b.TravelOptionID != req.TravelOptionID {
			return domain.ValidationError{Field: "travel_id", Msg: "booking belongs to a different travel option"}
		}
		if req.UserID != uuid.Nil && b.UserID != req.UserID {
			return domain.ValidationError{Field: "user_id", Msg: "booking belongs to a different user"}
		}
		if b.Status == models.BookingStatusCancelled {
			return domain.ConflictError{Resource: "booking", Msg: "booking is cancelled"}
		}

		// A pending booking's seats must stay held so payment can confirm them together.
		reserve := database.ReserveRequest{
			TravelOptionID:   b.TravelOptionID,
			BookingReference: b.BookingReference,
			SeatNumbers:      requested,
			Status:           models.SeatStatusBooked,
		}
		if b.Status == models.BookingStatusPending {
			if b.HoldExpiresAt == nil || !b.HoldExpiresAt.After(s.now()) {
				return domain.ConflictError{Resource: "booking", Msg: "seat hold has lapsed"}
			}
			reserve.Status = models.SeatStatusHeld
			reserve.HoldUntil = b.HoldExpiresAt
		}

		result, err = s.inventory.Reserve(ctx, tx, reserve)
		if err != nil {
			return err
		}

		if len(result.Booked) > 0 {
			extra := req.TotalPrice * float64(len(result.Booked)) / float64(len(requested))
			if err := s.bookings.AppendSeats(ctx, tx, b.ID, result.Booked, extra); err != nil {
				return err
			}
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":       booking.ID,
		"travel_option_id": booking.TravelOptionID,
		"booked":           result.Booked,
		"failed":           len(result.Failed),
	}).Info("Seats booked onto existing booking")

	if len(result.Booked) > 0 {
		s.cache.Invalidate(ctx, booking.TravelOptionID)
	}

	return &models.BookSeatsResult{
		BookedSeats: result.Booked,
		FailedSeats: result.Failed,
		TotalBooked: len(result.Booked),
		TotalFailed: len(result.Failed),
	}, nil
}

// ResetSeats frees one or all seats of a travel option without touching bookings
func (s *BookingService) ResetSeats(ctx context.Context, req models.ResetSeatsRequest) (int, error) {
	if req.TravelOptionID <= 0 {
		return 0, domain.ValidationError{Field: "travel_id", Msg: "must be a positive integer"}
	}
	if req.SeatNo != nil {
		seatNo := strings.TrimSpace(*req.SeatNo)
		if seatNo == "" {
			return 0, domain.ValidationError{Field: "seat_no", Msg: "must not be blank"}
		}
		req.SeatNo = &seatNo
	}

	if _, err := s.travelOptions.GetByID(ctx, req.TravelOptionID); err != nil {
		return 0, err
	}

	released, err := s.inventory.ResetSeats(ctx, req.TravelOptionID, req.SeatNo)
	if err != nil {
		return 0, err
	}

	fields := logrus.Fields{"travel_option_id": req.TravelOptionID, "released": released}
	if req.SeatNo != nil {
		fields["seat_no"] = *req.SeatNo
	}
	s.logger.WithFields(fields).Warn("Seats reset administratively")

	s.cache.Invalidate(ctx, req.TravelOptionID)
	return released, nil
}

// ============================================================================
// READS
// ============================================================================

// Get returns a booking with its passengers and fare breakdown.
// Non-privileged callers only see their own bookings.
func (s *BookingService) Get(ctx context.Context, bookingID int64, requester uuid.UUID, privileged bool) (*models.BookingView, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !privileged && b.UserID != requester {
		return nil, domain.NotFoundError{Resource: "booking", ID: fmt.Sprint(bookingID)}
	}

	passengers, err := s.bookings.GetPassengers(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Passengers = passengers

	return &models.BookingView{Booking: b, Fare: s.fares.DecomposeBooking(b)}, nil
}

// ListByUser returns a page of the user's bookings, newest first
func (s *BookingService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BookingView, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	bookings, err := s.bookings.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]models.BookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, models.BookingView{Booking: &bookings[i], Fare: s.fares.DecomposeBooking(&bookings[i])})
	}
	return views, nil
}

// publish hands an event to the notification sender. Delivery failures never
// affect the committed booking.
func (s *BookingService) publish(ctx context.Context, event BookingEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event":      event.Type,
			"booking_id": event.BookingID,
		}).Error("Failed to publish booking event")
	}
}

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/middleware"
	"github.com/smarttransit/booking-engine/internal/models"
	"github.com/smarttransit/booking-engine/internal/utils"
)

// BookingCoordinator is the booking lifecycle used by the HTTP layer
type BookingCoordinator interface {
	Create(ctx context.Context, req *models.CreateBookingRequest) (*models.CreateBookingResult, error)
	Cancel(ctx context.Context, req models.CancelBookingRequest) (*models.CancelBookingResult, error)
	Get(ctx context.Context, bookingID int64, requester uuid.UUID, privileged bool) (*models.BookingView, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BookingView, error)
	UpdatePaymentStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) (*models.Booking, error)
	BookSeats(ctx context.Context, req models.BookSeatsRequest) (*models.BookSeatsResult, error)
	ResetSeats(ctx context.Context, req models.ResetSeatsRequest) (int, error)
}

// BookingHandler handles passenger booking endpoints
type BookingHandler struct {
	bookings BookingCoordinator
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingCoordinator, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// CancelBookingBody is the optional body of a cancellation
type CancelBookingBody struct {
	Reason string `json:"reason"`
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User context not found"})
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userCtx.UserID
	req.DeviceInfo = utils.DeviceInfoFromRequest(c)
	req.RequestID = middleware.GetRequestID(c)

	result, err := h.bookings.Create(c.Request.Context(), &req)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User context not found"})
		return
	}
	id, err := parseIDParam(c, "id", "booking_id")
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	view, err := h.bookings.Get(c.Request.Context(), id, userCtx.UserID, userCtx.IsAdmin())
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListMyBookings handles GET /api/v1/bookings?limit=&offset=
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User context not found"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		RespondDomainError(c, h.logger, domain.ValidationError{Field: "limit", Msg: "must be an integer", Err: err})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		RespondDomainError(c, h.logger, domain.ValidationError{Field: "offset", Msg: "must be an integer", Err: err})
		return
	}

	bookings, err := h.bookings.ListByUser(c.Request.Context(), userCtx.UserID, limit, offset)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
		"limit":    limit,
		"offset":   offset,
	})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User context not found"})
		return
	}
	id, err := parseIDParam(c, "id", "booking_id")
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	var body CancelBookingBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
	}

	result, err := h.bookings.Cancel(c.Request.Context(), models.CancelBookingRequest{
		BookingID:   id,
		RequestedBy: userCtx.UserID,
		Privileged:  userCtx.IsAdmin(),
		Reason:      body.Reason,
	})
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

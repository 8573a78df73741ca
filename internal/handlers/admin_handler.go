package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/middleware"
	"github.com/smarttransit/booking-engine/internal/models"
)

// AdminHandler handles operator and payment collaborator endpoints
type AdminHandler struct {
	bookings BookingCoordinator
	logger   *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(bookings BookingCoordinator, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{bookings: bookings, logger: logger}
}

// ===================================================================
// PAYMENT
// ===================================================================

// UpdatePaymentStatus handles PUT /api/v1/admin/bookings/:id/payment-status
func (h *AdminHandler) UpdatePaymentStatus(c *gin.Context) {
	id, err := parseIDParam(c, "id", "booking_id")
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	var req models.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	status, ok := models.ParsePaymentStatus(req.PaymentStatus)
	if !ok {
		RespondDomainError(c, h.logger, domain.ValidationError{Field: "payment_status", Msg: "must be one of paid, failed, refunded"})
		return
	}

	booking, err := h.bookings.UpdatePaymentStatus(c.Request.Context(), id, status)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	h.audit(c).WithFields(logrus.Fields{
		"booking_id":     id,
		"payment_status": status,
		"status":         booking.Status,
	}).Info("Payment status updated")

	c.JSON(http.StatusOK, booking)
}

// ===================================================================
// SEAT OPERATIONS
// ===================================================================

// BookSeats handles POST /api/v1/admin/bookings/:id/seats
// Seats that cannot be booked are reported, the rest are committed.
func (h *AdminHandler) BookSeats(c *gin.Context) {
	id, err := parseIDParam(c, "id", "booking_id")
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	var req models.BookSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.BookingID = id

	result, err := h.bookings.BookSeats(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	h.audit(c).WithFields(logrus.Fields{
		"booking_id":   id,
		"total_booked": result.TotalBooked,
		"total_failed": result.TotalFailed,
	}).Info("Seats attached to booking")

	c.JSON(http.StatusOK, result)
}

// ResetSeats handles POST /api/v1/admin/travel-options/:id/reset-seats
// An empty body resets every seat of the travel option.
func (h *AdminHandler) ResetSeats(c *gin.Context) {
	id, err := parseIDParam(c, "id", "travel_id")
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	var req models.ResetSeatsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	req.TravelOptionID = id

	count, err := h.bookings.ResetSeats(c.Request.Context(), req)
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	h.audit(c).WithFields(logrus.Fields{
		"travel_option_id": id,
		"seats_reset":      count,
	}).Warn("Seats reset to available")

	c.JSON(http.StatusOK, gin.H{
		"message":     "Seats reset successfully",
		"seats_reset": count,
	})
}

func (h *AdminHandler) audit(c *gin.Context) *logrus.Entry {
	fields := logrus.Fields{"request_id": middleware.GetRequestID(c)}
	if userCtx, ok := middleware.GetUserContext(c); ok {
		fields["actor_id"] = userCtx.UserID
		fields["actor_roles"] = userCtx.Roles
	}
	return h.logger.WithFields(fields)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/middleware"
)

// retryAfterSeconds is advertised on 503 responses caused by lock contention
const retryAfterSeconds = 1

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error       string               `json:"error"`
	Message     string               `json:"message"`
	Field       string               `json:"field,omitempty"`
	FailedSeats []domain.SeatFailure `json:"failed_seats,omitempty"`
	RequestID   string               `json:"request_id,omitempty"`
}

// RespondDomainError translates a service error into an HTTP response
func RespondDomainError(c *gin.Context, logger *logrus.Logger, err error) {
	resp := ErrorResponse{RequestID: middleware.GetRequestID(c)}
	status := http.StatusInternalServerError

	var (
		validationErr  domain.ValidationError
		notFoundErr    domain.NotFoundError
		conflictErr    domain.ConflictError
		persistenceErr domain.PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		resp.Error = "validation_error"
		resp.Message = validationErr.Error()
		resp.Field = validationErr.Field
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
		resp.Error = "not_found"
		resp.Message = notFoundErr.Error()
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
		resp.Error = "conflict"
		resp.Message = conflictErr.Error()
		resp.FailedSeats = conflictErr.Failures
	case errors.As(err, &persistenceErr):
		status = http.StatusServiceUnavailable
		resp.Error = "temporarily_unavailable"
		resp.Message = "The request could not be completed, please retry"
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	default:
		resp.Error = "internal_error"
		resp.Message = "An unexpected error occurred"
	}

	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": resp.RequestID,
			"path":       c.FullPath(),
		}).Error("Request failed")
	}
	_ = c.Error(err)
	c.JSON(status, resp)
}

// respondBindError reports a malformed request body
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     "invalid_request",
		Message:   err.Error(),
		RequestID: middleware.GetRequestID(c),
	})
}

// parseIDParam reads a positive integer path parameter
func parseIDParam(c *gin.Context, name, field string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ValidationError{Field: field, Msg: "must be a positive integer", Err: err}
	}
	return id, nil
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/models"
)

// SeatMapProvider renders seat maps
type SeatMapProvider interface {
	GetSeatMap(ctx context.Context, travelOptionID int64, mode string) (*models.SeatMap, error)
}

// SeatMapHandler serves the public seat map
type SeatMapHandler struct {
	seatMaps SeatMapProvider
	logger   *logrus.Logger
}

// NewSeatMapHandler creates a new SeatMapHandler
func NewSeatMapHandler(seatMaps SeatMapProvider, logger *logrus.Logger) *SeatMapHandler {
	return &SeatMapHandler{seatMaps: seatMaps, logger: logger}
}

// GetSeatMap handles GET /api/v1/travel-options/:id/seat-map?mode=bus
func (h *SeatMapHandler) GetSeatMap(c *gin.Context) {
	id, err := parseIDParam(c, "id", "travel_id")
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}

	seatMap, err := h.seatMaps.GetSeatMap(c.Request.Context(), id, c.Query("mode"))
	if err != nil {
		RespondDomainError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, seatMap)
}

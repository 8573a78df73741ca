package services

import (
	"fmt"
	"math"

	"github.com/smarttransit/booking-engine/internal/domain"
	"github.com/smarttransit/booking-engine/internal/models"
)

// FareTolerance is the absolute error allowed between a total and its components
const FareTolerance = 1e-6

// FareInput are the upstream figures a booking total is decomposed from
type FareInput struct {
	CostPerPassenger float64
	TaxPerPassenger  float64
	PassengerCount   int
	GrandTotal       float64
}

// FareDecomposer splits a grand total into base fare, tax and seat surcharge.
// Every place that shows or re-derives a booking's amounts goes through it.
type FareDecomposer struct{}

// NewFareDecomposer creates a new FareDecomposer
func NewFareDecomposer() *FareDecomposer {
	return &FareDecomposer{}
}

// Compute decomposes in. A negative surcharge is returned unchanged with an
// integrity warning; deciding what to do with it is up to the caller.
func (d *FareDecomposer) Compute(in FareInput) (models.FareBreakdown, error) {
	if in.PassengerCount <= 0 {
		return models.FareBreakdown{}, domain.ValidationError{Field: "passenger_count", Msg: "must be greater than zero"}
	}
	if in.CostPerPassenger < 0 {
		return models.FareBreakdown{}, domain.ValidationError{Field: "cost_per_passenger", Msg: "must not be negative"}
	}
	if in.TaxPerPassenger < 0 {
		return models.FareBreakdown{}, domain.ValidationError{Field: "tax_per_passenger", Msg: "must not be negative"}
	}
	if in.GrandTotal < 0 {
		return models.FareBreakdown{}, domain.ValidationError{Field: "total_with_seats", Msg: "must not be negative"}
	}

	n := float64(in.PassengerCount)
	base := in.CostPerPassenger * n
	tax := in.TaxPerPassenger * n
	surcharge := in.GrandTotal - base - tax
	if math.Abs(surcharge) < FareTolerance {
		surcharge = 0
	}

	breakdown := models.FareBreakdown{
		PassengerCount:   in.PassengerCount,
		CostPerPassenger: in.CostPerPassenger,
		TaxPerPassenger:  in.TaxPerPassenger,
		BaseAmount:       base,
		TaxAmount:        tax,
		SurchargeAmount:  surcharge,
		TotalAmount:      in.GrandTotal,
	}
	if surcharge < 0 {
		breakdown.IntegrityWarning = fmt.Sprintf(
			"seat surcharge is negative (%.2f): total %.2f is below base %.2f plus tax %.2f",
			surcharge, in.GrandTotal, base, tax)
	}
	return breakdown, nil
}

// DecomposeBooking re-derives a stored booking's breakdown
func (d *FareDecomposer) DecomposeBooking(b *models.Booking) models.FareBreakdown {
	breakdown, err := d.Compute(FareInput{
		CostPerPassenger: b.CostPerPassenger,
		TaxPerPassenger:  b.TaxPerPassenger,
		PassengerCount:   b.PassengerCount,
		GrandTotal:       b.TotalAmount,
	})
	if err != nil {
		// Rows without usable inputs keep their stored figures.
		return models.FareBreakdown{
			PassengerCount:   b.PassengerCount,
			CostPerPassenger: b.CostPerPassenger,
			TaxPerPassenger:  b.TaxPerPassenger,
			BaseAmount:       b.BaseAmount,
			TaxAmount:        b.TaxAmount,
			SurchargeAmount:  b.SurchargeAmount,
			TotalAmount:      b.TotalAmount,
		}
	}
	return breakdown
}

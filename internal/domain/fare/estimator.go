package fare

import (
	"fmt"
	"math"
)

// CommissionRate is the platform's fixed cut, applied only to the partial
// fare. Tips and additional compensation are never part of the commission
// base.
const CommissionRate = 0.15

// PricingResult is the full price breakdown for a delivery quote.
type PricingResult struct {
	PartialPrice     float64 `json:"partial_price"`
	TotalPrice       float64 `json:"total_price"`
	DurationMins     float64 `json:"duration_mins"`
	CommissionAmount float64 `json:"commission_amount"`
	DriverEarnings   float64 `json:"driver_earnings"`
	FormattedPrice   string  `json:"formatted_price"`
}

// Estimator defines the interface for fare and ETA estimation.
type Estimator interface {
	// EstimateDuration returns the expected travel time in minutes.
	EstimateDuration(distanceKm float64) float64
	// EstimateFare returns the partial fare in pesos, rounded to the nearest
	// whole peso.
	EstimateFare(distanceKm, basePrice float64) (float64, error)
	// Quote returns the full price breakdown for the given inputs.
	Quote(distanceKm, basePrice, tip, additionalCompensation float64) (PricingResult, error)
}

// StandardEstimator implements the default Hatid fare model.
type StandardEstimator struct{}

// NewStandardEstimator creates a new StandardEstimator.
func NewStandardEstimator() *StandardEstimator {
	return &StandardEstimator{}
}

// EstimateDuration converts distance to minutes using assumed average speeds
// per distance band:
//   - ≤7km: 30 km/h (urban center)
//   - ≤15km: 35 km/h (city edge or nearby)
//   - else: 40 km/h (inter-city)
//
// A zero distance yields zero minutes.
func (e *StandardEstimator) EstimateDuration(distanceKm float64) float64 {
	switch {
	case distanceKm <= 7:
		return (distanceKm / 30) * 60
	case distanceKm <= 15:
		return (distanceKm / 35) * 60
	default:
		return (distanceKm / 40) * 60
	}
}

// EstimateFare computes the partial fare: basePrice + distance * per-km rate,
// rounded to the nearest peso. The per-km rate is tiered by distance band.
func (e *StandardEstimator) EstimateFare(distanceKm, basePrice float64) (float64, error) {
	if distanceKm < 0 {
		return 0, fmt.Errorf("distance cannot be negative")
	}

	rate := perKmRate(distanceKm)
	return math.Round(basePrice + distanceKm*rate), nil
}

// Quote computes the full breakdown. The commission is taken from the partial
// fare only; tip and additional compensation raise the total (and therefore
// the driver's earnings) without affecting the commission.
func (e *StandardEstimator) Quote(distanceKm, basePrice, tip, additionalCompensation float64) (PricingResult, error) {
	partial, err := e.EstimateFare(distanceKm, basePrice)
	if err != nil {
		return PricingResult{}, err
	}

	total := partial + tip + additionalCompensation
	commission := partial * CommissionRate

	return PricingResult{
		PartialPrice:     partial,
		TotalPrice:       total,
		DurationMins:     e.EstimateDuration(distanceKm),
		CommissionAmount: commission,
		DriverEarnings:   total - commission,
		FormattedPrice:   fmt.Sprintf("₱%.2f", total),
	}, nil
}

// perKmRate returns the tiered per-km rate in pesos.
func perKmRate(distanceKm float64) float64 {
	switch {
	case distanceKm <= 2:
		return 10.5
	case distanceKm <= 6:
		return 11
	case distanceKm <= 10:
		return 12.5
	default:
		return 13.5
	}
}

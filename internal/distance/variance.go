package distance

import (
	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
)

// Band categorizes the deviation between system- and user-reported distance.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

var (
	bandLowCeiling    = decimal.NewFromInt(10)
	bandMediumCeiling = decimal.NewFromInt(20)
	hundred           = decimal.NewFromInt(100)
)

// Variance returns the percentage deviation of manualKm from systemKm,
// rounded to 2 decimal places. A zero system distance yields 0: an employee
// cannot be penalized for missing system data.
func Variance(systemKm, manualKm decimal.Decimal) (decimal.Decimal, error) {
	if systemKm.IsNegative() || manualKm.IsNegative() {
		return decimal.Zero, internal.ErrInvalidDistance
	}
	if systemKm.IsZero() {
		return decimal.Zero, nil
	}
	return manualKm.Sub(systemKm).Abs().Div(systemKm).Mul(hundred).Round(2), nil
}

// Categorize maps a variance percent to a band. Boundaries are inclusive on
// the lower band: 10.00 is low, 20.00 is medium.
func Categorize(percent decimal.Decimal) Band {
	switch {
	case percent.LessThanOrEqual(bandLowCeiling):
		return BandLow
	case percent.LessThanOrEqual(bandMediumCeiling):
		return BandMedium
	default:
		return BandHigh
	}
}

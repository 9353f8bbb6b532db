package distance

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
)

const earthRadiusKm = 6371.0

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return internal.ErrInvalidCoordinate
	}
	return nil
}

// Haversine returns the great-circle distance between two points in
// kilometres, rounded to 2 decimal places.
func Haversine(origin, dest Coordinate) decimal.Decimal {
	lat1 := origin.Lat * math.Pi / 180
	lat2 := dest.Lat * math.Pi / 180
	dLat := (dest.Lat - origin.Lat) * math.Pi / 180
	dLng := (dest.Lng - origin.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return decimal.NewFromFloat(earthRadiusKm * c).Round(2)
}

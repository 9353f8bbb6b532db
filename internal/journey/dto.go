package journey

import (
	"strings"

	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/distance"
	"github.com/waypoint-hq/field-expense/internal/expense"
)

type StartJourneyDTO struct {
	StartLat float64 `json:"start_lat"`
	StartLng float64 `json:"start_lng"`
	Notes    string  `json:"notes,omitempty"`
}

func (d *StartJourneyDTO) Validate() error {
	return distance.Coordinate{Lat: d.StartLat, Lng: d.StartLng}.Validate()
}

type EndJourneyDTO struct {
	EndLat           float64  `json:"end_lat"`
	EndLng           float64  `json:"end_lng"`
	ManualDistanceKm *float64 `json:"manual_distance_km,omitempty"`
}

func (d *EndJourneyDTO) Validate() error {
	if err := (distance.Coordinate{Lat: d.EndLat, Lng: d.EndLng}).Validate(); err != nil {
		return err
	}
	if d.ManualDistanceKm != nil && *d.ManualDistanceKm < 0 {
		return internal.ErrInvalidDistance
	}
	return nil
}

type CancelJourneyDTO struct {
	Reason string `json:"reason"`
}

func (d *CancelJourneyDTO) Validate() error {
	if strings.TrimSpace(d.Reason) == "" {
		return internal.ErrMissingReason
	}
	return nil
}

// EndJourneyResult pairs the completed journey with the expense it spawned.
type EndJourneyResult struct {
	Journey *Journey         `json:"journey"`
	Expense *expense.Expense `json:"expense"`
}

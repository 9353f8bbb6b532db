package journey

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal/distance"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Journey is one tracked trip. At most one active journey may exist per
// employee; the row is mutated once on end or cancel and is immutable
// afterwards except the expense back-reference, the running approved-expense
// total and the async duration enrichment.
type Journey struct {
	ID                      int64            `json:"id" gorm:"primaryKey"`
	UserID                  int64            `json:"user_id" gorm:"column:user_id;not null;index"`
	StartLat                decimal.Decimal  `json:"start_lat" gorm:"column:start_lat;type:numeric(9,6);not null"`
	StartLng                decimal.Decimal  `json:"start_lng" gorm:"column:start_lng;type:numeric(9,6);not null"`
	EndLat                  *decimal.Decimal `json:"end_lat,omitempty" gorm:"column:end_lat;type:numeric(9,6)"`
	EndLng                  *decimal.Decimal `json:"end_lng,omitempty" gorm:"column:end_lng;type:numeric(9,6)"`
	StartedAt               time.Time        `json:"started_at" gorm:"column:started_at;not null"`
	EndedAt                 *time.Time       `json:"ended_at,omitempty" gorm:"column:ended_at"`
	Status                  string           `json:"status" gorm:"not null;default:active;index"`
	DistanceKm              decimal.Decimal  `json:"distance_km" gorm:"column:distance_km;type:numeric(10,2)"`
	DurationMin             *decimal.Decimal `json:"duration_min,omitempty" gorm:"column:duration_min;type:numeric(10,2)"`
	DistanceSource          string           `json:"distance_source,omitempty" gorm:"column:distance_source"`
	ExpenseID               *int64           `json:"expense_id,omitempty" gorm:"column:expense_id"`
	AdditionalExpensesTotal decimal.Decimal  `json:"additional_expenses_total" gorm:"column:additional_expenses_total;type:numeric(14,2);not null"`
	Notes                   string           `json:"notes,omitempty"`
	CancelReason            string           `json:"cancel_reason,omitempty" gorm:"column:cancel_reason"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

func (Journey) TableName() string {
	return "journeys"
}

func (j *Journey) IsActive() bool {
	return j.Status == StatusActive
}

func (j *Journey) StartCoordinate() distance.Coordinate {
	return distance.Coordinate{Lat: j.StartLat.InexactFloat64(), Lng: j.StartLng.InexactFloat64()}
}

func (j *Journey) EndCoordinate() distance.Coordinate {
	if j.EndLat == nil || j.EndLng == nil {
		return distance.Coordinate{}
	}
	return distance.Coordinate{Lat: j.EndLat.InexactFloat64(), Lng: j.EndLng.InexactFloat64()}
}

type RepositoryAPI interface {
	Create(ctx context.Context, j *Journey) error
	GetByID(ctx context.Context, id int64) (*Journey, error)
	GetActiveByUser(ctx context.Context, userID int64) (*Journey, error)
	Update(ctx context.Context, j *Journey) error
	SetDuration(ctx context.Context, id int64, durationMin decimal.Decimal) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Journey, error)
}

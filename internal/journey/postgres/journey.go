package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/journey"
	"gorm.io/gorm"
)

// JourneyRepository implements journey.RepositoryAPI and the approval
// engine's expense.JourneyStore using GORM.
type JourneyRepository struct {
	db *gorm.DB
}

func NewJourneyRepository(db *gorm.DB) *JourneyRepository {
	return &JourneyRepository{db: db}
}

func (r *JourneyRepository) Create(ctx context.Context, j *journey.Journey) error {
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *JourneyRepository) GetByID(ctx context.Context, id int64) (*journey.Journey, error) {
	var j journey.Journey
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&j).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrJourneyNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (r *JourneyRepository) GetActiveByUser(ctx context.Context, userID int64) (*journey.Journey, error) {
	var j journey.Journey
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, journey.StatusActive).
		First(&j).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrJourneyNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (r *JourneyRepository) Update(ctx context.Context, j *journey.Journey) error {
	j.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(j).Error
}

func (r *JourneyRepository) SetDuration(ctx context.Context, id int64, durationMin decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&journey.Journey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"duration_min": durationMin,
			"updated_at":   time.Now(),
		}).Error
}

func (r *JourneyRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*journey.Journey, error) {
	var journeys []*journey.Journey
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&journeys).Error
	return journeys, err
}

// BelongsTo reports whether the journey exists and is owned by userID.
func (r *JourneyRepository) BelongsTo(ctx context.Context, journeyID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&journey.Journey{}).
		Where("id = ? AND user_id = ?", journeyID, userID).
		Count(&count).Error
	return count > 0, err
}

// AddExpensesTotal increments the journey's running approved-expense total
// atomically in SQL.
func (r *JourneyRepository) AddExpensesTotal(ctx context.Context, journeyID int64, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&journey.Journey{}).
		Where("id = ?", journeyID).
		Updates(map[string]interface{}{
			"additional_expenses_total": gorm.Expr("additional_expenses_total + ?", amount),
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrJourneyNotFound
	}
	return nil
}

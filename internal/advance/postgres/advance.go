package postgres

import (
	"context"
	"time"

	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/advance"
	"gorm.io/gorm"
)

// AdvanceRepository implements advance.RepositoryAPI using GORM. Soft
// deletes go through gorm.DeletedAt so deleted rows vanish from all queries.
type AdvanceRepository struct {
	db *gorm.DB
}

func NewAdvanceRepository(db *gorm.DB) *AdvanceRepository {
	return &AdvanceRepository{db: db}
}

func (r *AdvanceRepository) Create(ctx context.Context, a *advance.Advance) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AdvanceRepository) GetByID(ctx context.Context, id int64) (*advance.Advance, error) {
	var a advance.Advance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrAdvanceNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AdvanceRepository) Update(ctx context.Context, a *advance.Advance) error {
	a.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AdvanceRepository) SoftDelete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&advance.Advance{}, id).Error
}

func (r *AdvanceRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*advance.Advance, error) {
	var advances []*advance.Advance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&advances).Error
	return advances, err
}

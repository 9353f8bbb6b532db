package postgres

import (
	"context"

	"github.com/waypoint-hq/field-expense/internal/audit"
	"gorm.io/gorm"
)

// AuditRepository implements audit.RepositoryAPI using GORM.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) ListByTarget(ctx context.Context, targetType string, targetID int64) ([]*audit.Entry, error) {
	var entries []*audit.Entry
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/monthlock"
	"gorm.io/gorm"
)

// MonthLockRepository implements monthlock.RepositoryAPI using GORM.
type MonthLockRepository struct {
	db *gorm.DB
}

func NewMonthLockRepository(db *gorm.DB) *MonthLockRepository {
	return &MonthLockRepository{db: db}
}

func (r *MonthLockRepository) Get(ctx context.Context, userID int64, year, month int) (*monthlock.MonthLock, error) {
	var lock monthlock.MonthLock
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND month = ?", userID, year, month).
		First(&lock).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrMonthLockNotFound
		}
		return nil, err
	}
	return &lock, nil
}

func (r *MonthLockRepository) Upsert(ctx context.Context, lock *monthlock.MonthLock) error {
	lock.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(lock).Error
}

func (r *MonthLockRepository) ListByUser(ctx context.Context, userID int64) ([]*monthlock.MonthLock, error) {
	var locks []*monthlock.MonthLock
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("year DESC, month DESC").
		Find(&locks).Error
	return locks, err
}

func (r *MonthLockRepository) SummarizeMonth(ctx context.Context, userID int64, year, month int) (*monthlock.ClosingSummary, error) {
	periodStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	var rows []struct {
		Status string
		Count  int
		Total  decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Table("expenses").
		Select("status, COUNT(*) AS count, COALESCE(SUM(COALESCE(approved_amount, amount)), 0) AS total").
		Where("user_id = ? AND expense_date >= ? AND expense_date < ?", userID, periodStart, periodEnd).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := &monthlock.ClosingSummary{
		PendingTotal:  decimal.Zero,
		ApprovedTotal: decimal.Zero,
		RejectedTotal: decimal.Zero,
		AdvanceTotal:  decimal.Zero,
		CapturedAt:    time.Now().UTC(),
	}
	for _, row := range rows {
		switch row.Status {
		case "pending":
			summary.PendingCount, summary.PendingTotal = row.Count, row.Total
		case "approved":
			summary.ApprovedCount, summary.ApprovedTotal = row.Count, row.Total
		case "rejected":
			summary.RejectedCount, summary.RejectedTotal = row.Count, row.Total
		}
	}

	var advanceTotal decimal.NullDecimal
	err = r.db.WithContext(ctx).
		Table("advances").
		Select("SUM(amount)").
		Where("user_id = ? AND status = ? AND deleted_at IS NULL AND created_at >= ? AND created_at < ?",
			userID, "completed", periodStart, periodEnd).
		Scan(&advanceTotal).Error
	if err != nil {
		return nil, err
	}
	if advanceTotal.Valid {
		summary.AdvanceTotal = advanceTotal.Decimal
	}

	return summary, nil
}

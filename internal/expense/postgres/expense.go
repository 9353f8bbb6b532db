package postgres

import (
	"context"
	"time"

	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/expense"
	"github.com/waypoint-hq/field-expense/internal/user"
	userpg "github.com/waypoint-hq/field-expense/internal/user/postgres"
	"gorm.io/gorm"
)

// ExpenseRepository implements expense.RepositoryAPI using GORM.
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, e *expense.Expense) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expense.Expense, error) {
	var e expense.Expense
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *ExpenseRepository) Update(ctx context.Context, e *expense.Expense) error {
	e.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&expense.Expense{}, id).Error
}

// UpdateApproval writes the terminal approval/rejection fields. The status
// guard in the WHERE clause makes the transition first-writer-wins: a row
// that already left pending is reported as lost, not overwritten.
func (r *ExpenseRepository) UpdateApproval(ctx context.Context, e *expense.Expense) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&expense.Expense{}).
		Where("id = ? AND status = ?", e.ID, expense.StatusPending).
		Updates(map[string]interface{}{
			"status":            e.Status,
			"approved_option":   e.ApprovedOption,
			"approved_amount":   e.ApprovedAmount,
			"approved_by":       e.ApprovedBy,
			"approval_notes":    e.ApprovalNotes,
			"rejection_reason":  e.RejectionReason,
			"admin_distance_km": e.AdminDistanceKm,
			"processed_at":      e.ProcessedAt,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ExpenseRepository) List(ctx context.Context, scope user.Scope, filter expense.ListFilter) ([]*expense.Expense, error) {
	q := userpg.Scoped(r.db.WithContext(ctx), scope, "user_id")

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.UserID > 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var expenses []*expense.Expense
	err := q.Order("expense_date DESC, id DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&expenses).Error
	return expenses, err
}

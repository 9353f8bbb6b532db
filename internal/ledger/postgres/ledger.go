package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/ledger"
	"gorm.io/gorm"
)

// LedgerRepository implements ledger.RepositoryAPI on top of the users,
// advances and expenses tables.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, int64, error) {
	var row struct {
		AdvanceBalance decimal.Decimal
		BalanceVersion int64
	}
	err := r.db.WithContext(ctx).
		Table("users").
		Select("advance_balance, balance_version").
		Where("id = ?", userID).
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, 0, internal.ErrUserNotFound
		}
		return decimal.Zero, 0, err
	}
	return row.AdvanceBalance, row.BalanceVersion, nil
}

func (r *LedgerRepository) CompareAndSwapBalance(ctx context.Context, userID int64, version int64, newBalance decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Table("users").
		Where("id = ? AND balance_version = ?", userID, version).
		Updates(map[string]interface{}{
			"advance_balance": newBalance,
			"balance_version": gorm.Expr("balance_version + 1"),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerRepository) ListEvents(ctx context.Context, userID int64) ([]ledger.Event, error) {
	var credits []struct {
		ID          int64
		Amount      decimal.Decimal
		CompletedAt *time.Time
		CreatedAt   time.Time
	}
	err := r.db.WithContext(ctx).
		Table("advances").
		Select("id, amount, completed_at, created_at").
		Where("user_id = ? AND status = ? AND deleted_at IS NULL", userID, "completed").
		Find(&credits).Error
	if err != nil {
		return nil, err
	}

	var debits []struct {
		ID             int64
		ApprovedAmount decimal.Decimal
		ProcessedAt    *time.Time
		CreatedAt      time.Time
	}
	err = r.db.WithContext(ctx).
		Table("expenses").
		Select("id, approved_amount, processed_at, created_at").
		Where("user_id = ? AND status = ?", userID, "approved").
		Find(&debits).Error
	if err != nil {
		return nil, err
	}

	events := make([]ledger.Event, 0, len(credits)+len(debits))
	for _, c := range credits {
		at := c.CreatedAt
		if c.CompletedAt != nil {
			at = *c.CompletedAt
		}
		events = append(events, ledger.Event{
			Kind:   ledger.KindAdvanceCredit,
			RefID:  c.ID,
			Amount: c.Amount,
			At:     at,
		})
	}
	for _, d := range debits {
		at := d.CreatedAt
		if d.ProcessedAt != nil {
			at = *d.ProcessedAt
		}
		events = append(events, ledger.Event{
			Kind:   ledger.KindExpenseDebit,
			RefID:  d.ID,
			Amount: d.ApprovedAmount,
			At:     at,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.Before(events[j].At)
	})
	return events, nil
}

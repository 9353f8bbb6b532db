package monthlock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MonthLock freezes one (user, year, month) period against financial
// mutation. Re-locking a reopened period is allowed; the reopen fields and
// the audit trail preserve the unlock history.
type MonthLock struct {
	ID           int64      `json:"id" gorm:"primaryKey"`
	UserID       int64      `json:"user_id" gorm:"column:user_id;not null;uniqueIndex:idx_month_locks_period,priority:1"`
	Year         int        `json:"year" gorm:"not null;uniqueIndex:idx_month_locks_period,priority:2"`
	Month        int        `json:"month" gorm:"not null;uniqueIndex:idx_month_locks_period,priority:3"`
	IsLocked     bool       `json:"is_locked" gorm:"column:is_locked;not null"`
	ClosedBy     *int64     `json:"closed_by,omitempty" gorm:"column:closed_by"`
	ClosedAt     *time.Time `json:"closed_at,omitempty" gorm:"column:closed_at"`
	ReopenedBy   *int64     `json:"reopened_by,omitempty" gorm:"column:reopened_by"`
	ReopenedAt   *time.Time `json:"reopened_at,omitempty" gorm:"column:reopened_at"`
	ReopenReason string     `json:"reopen_reason,omitempty" gorm:"column:reopen_reason"`
	Summary      string     `json:"summary,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (MonthLock) TableName() string {
	return "month_locks"
}

// ClosingSummary is the point-in-time financial snapshot captured when a
// period is locked.
type ClosingSummary struct {
	PendingCount  int             `json:"pending_count"`
	PendingTotal  decimal.Decimal `json:"pending_total"`
	ApprovedCount int             `json:"approved_count"`
	ApprovedTotal decimal.Decimal `json:"approved_total"`
	RejectedCount int             `json:"rejected_count"`
	RejectedTotal decimal.Decimal `json:"rejected_total"`
	AdvanceTotal  decimal.Decimal `json:"advance_total"`
	CapturedAt    time.Time       `json:"captured_at"`
}

func (l *MonthLock) SetSummary(s ClosingSummary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	l.Summary = string(raw)
	return nil
}

type RepositoryAPI interface {
	Get(ctx context.Context, userID int64, year, month int) (*MonthLock, error)
	Upsert(ctx context.Context, lock *MonthLock) error
	ListByUser(ctx context.Context, userID int64) ([]*MonthLock, error)
	// SummarizeMonth aggregates expense totals by status plus the completed
	// advance total for the period.
	SummarizeMonth(ctx context.Context, userID int64, year, month int) (*ClosingSummary, error)
}

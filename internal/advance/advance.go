package advance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	PaymentMethodCash         = "cash"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodUPI          = "upi"
	PaymentMethodCheque       = "cheque"
)

// Advance is a cash credit handed to an employee against future expenses.
// Only completed advances count toward the balance; soft-deleted rows are
// excluded from every query and from ledger replay.
type Advance struct {
	ID            int64           `json:"id" gorm:"primaryKey"`
	UserID        int64           `json:"user_id" gorm:"column:user_id;not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	PaymentMethod string          `json:"payment_method" gorm:"column:payment_method;not null"`
	Status        string          `json:"status" gorm:"not null;default:pending"`
	AddedBy       int64           `json:"added_by" gorm:"column:added_by;not null"`
	Notes         string          `json:"notes,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" gorm:"column:completed_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `json:"-" gorm:"index"`
}

func (Advance) TableName() string {
	return "advances"
}

func (a *Advance) IsPending() bool {
	return a.Status == StatusPending
}

func validPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodUPI, PaymentMethodCheque:
		return true
	}
	return false
}

type RepositoryAPI interface {
	Create(ctx context.Context, a *Advance) error
	GetByID(ctx context.Context, id int64) (*Advance, error)
	Update(ctx context.Context, a *Advance) error
	SoftDelete(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Advance, error)
}

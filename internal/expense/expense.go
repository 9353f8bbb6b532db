package expense

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal/user"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	CategoryGeneral = "general"
	CategoryJourney = "journey"
)

const (
	TypeTravel       = "travel"
	TypeFuel         = "fuel"
	TypeFood         = "food"
	TypeLodging      = "lodging"
	TypeToll         = "toll"
	TypeRepair       = "repair"
	TypeMachineVisit = "machine_visit"
	TypeOther        = "other"
)

// Approval-distance options: which distance source prices the expense.
const (
	OptionSystemDistance = 1
	OptionManualDistance = 2
	OptionAdminDistance  = 3
)

// Expense is a reimbursable spend record, optionally tied to a journey.
// Status moves pending → approved or pending → rejected, both terminal;
// the approval fields are written exactly once at that transition.
type Expense struct {
	ID               int64            `json:"id" gorm:"primaryKey"`
	UserID           int64            `json:"user_id" gorm:"column:user_id;not null;index"`
	JourneyID        *int64           `json:"journey_id,omitempty" gorm:"column:journey_id"`
	Category         string           `json:"category" gorm:"not null;default:general"`
	ExpenseType      string           `json:"expense_type" gorm:"column:expense_type;not null"`
	ExpenseDate      time.Time        `json:"expense_date" gorm:"column:expense_date;type:date;not null"`
	Description      string           `json:"description"`
	Amount           decimal.Decimal  `json:"amount" gorm:"type:numeric(14,2);not null"`
	SystemDistanceKm decimal.Decimal  `json:"system_distance_km" gorm:"column:system_distance_km;type:numeric(10,2)"`
	ManualDistanceKm decimal.Decimal  `json:"manual_distance_km" gorm:"column:manual_distance_km;type:numeric(10,2)"`
	AdminDistanceKm  *decimal.Decimal `json:"admin_distance_km,omitempty" gorm:"column:admin_distance_km;type:numeric(10,2)"`
	DistanceRate     decimal.Decimal  `json:"distance_rate" gorm:"column:distance_rate;type:numeric(10,2)"`
	Status           string           `json:"status" gorm:"not null;default:pending;index"`
	ApprovedOption   *int             `json:"approved_option,omitempty" gorm:"column:approved_option"`
	ApprovedAmount   *decimal.Decimal `json:"approved_amount,omitempty" gorm:"column:approved_amount;type:numeric(14,2)"`
	ApprovedBy       *int64           `json:"approved_by,omitempty" gorm:"column:approved_by"`
	ApprovalNotes    string           `json:"approval_notes,omitempty" gorm:"column:approval_notes"`
	RejectionReason  string           `json:"rejection_reason,omitempty" gorm:"column:rejection_reason"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty" gorm:"column:processed_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (Expense) TableName() string {
	return "expenses"
}

func (e *Expense) IsPending() bool {
	return e.Status == StatusPending
}

func (e *Expense) IsJourneyExpense() bool {
	return e.Category == CategoryJourney
}

func validExpenseType(t string) bool {
	switch t {
	case TypeTravel, TypeFuel, TypeFood, TypeLodging, TypeToll, TypeRepair, TypeMachineVisit, TypeOther:
		return true
	}
	return false
}

// ListFilter narrows expense queries; zero values mean "no filter".
type ListFilter struct {
	Status   string
	Category string
	UserID   int64
	Limit    int
	Offset   int
}

type RepositoryAPI interface {
	Create(ctx context.Context, e *Expense) error
	GetByID(ctx context.Context, id int64) (*Expense, error)
	Update(ctx context.Context, e *Expense) error
	Delete(ctx context.Context, id int64) error
	// UpdateApproval writes the terminal state guarded by status=pending in
	// the WHERE clause; it reports false when the row was already processed.
	UpdateApproval(ctx context.Context, e *Expense) (bool, error)
	List(ctx context.Context, scope user.Scope, filter ListFilter) ([]*Expense, error)
}

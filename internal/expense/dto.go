package expense

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
)

type CreateExpenseDTO struct {
	Category         string    `json:"category"`
	ExpenseType      string    `json:"expense_type"`
	ExpenseDate      time.Time `json:"expense_date"`
	Description      string    `json:"description"`
	Amount           *float64  `json:"amount,omitempty"`
	JourneyID        *int64    `json:"journey_id,omitempty"`
	ManualDistanceKm *float64  `json:"manual_distance_km,omitempty"`
}

func (d *CreateExpenseDTO) Validate() error {
	if d.Category == "" {
		d.Category = CategoryGeneral
	}
	if d.Category != CategoryGeneral && d.Category != CategoryJourney {
		return internal.NewValidationError("category must be general or journey", internal.ErrCodeValidationFailed)
	}
	if !validExpenseType(d.ExpenseType) {
		return internal.NewValidationError("unknown expense type", internal.ErrCodeValidationFailed)
	}
	if d.ExpenseDate.IsZero() {
		return internal.NewValidationError("expense_date is required", internal.ErrCodeValidationFailed)
	}
	if d.Category == CategoryJourney && d.JourneyID == nil {
		return internal.NewValidationError("journey_id is required for journey expenses", internal.ErrCodeMissingJourney)
	}
	if d.Category == CategoryGeneral && d.JourneyID != nil {
		return internal.NewValidationError("journey_id is only valid for journey expenses", internal.ErrCodeValidationFailed)
	}
	if d.Amount != nil && *d.Amount < 0 {
		return internal.NewValidationError("amount cannot be negative", internal.ErrCodeInvalidAmount)
	}
	if d.ManualDistanceKm != nil && *d.ManualDistanceKm < 0 {
		return internal.ErrInvalidDistance
	}
	return nil
}

type UpdateExpenseDTO struct {
	ExpenseType      *string  `json:"expense_type,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Amount           *float64 `json:"amount,omitempty"`
	ManualDistanceKm *float64 `json:"manual_distance_km,omitempty"`
}

type ApproveDTO struct {
	Option          int      `json:"option"`
	AdminDistanceKm *float64 `json:"admin_distance_km,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

func (d *ApproveDTO) Validate() error {
	if d.Option < OptionSystemDistance || d.Option > OptionAdminDistance {
		return internal.NewValidationError("option must be 1 (system), 2 (manual) or 3 (admin)", internal.ErrCodeValidationFailed)
	}
	if d.AdminDistanceKm != nil && *d.AdminDistanceKm < 0 {
		return internal.ErrInvalidDistance
	}
	return nil
}

type RejectDTO struct {
	Reason string `json:"reason"`
}

func (d *RejectDTO) Validate() error {
	if strings.TrimSpace(d.Reason) == "" {
		return internal.ErrMissingReason
	}
	return nil
}

type BulkApproveDTO struct {
	ExpenseIDs     []int64  `json:"expense_ids"`
	Option         int      `json:"option"`
	MaxVariancePct *float64 `json:"max_variance_pct,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

func (d *BulkApproveDTO) Validate() error {
	if len(d.ExpenseIDs) == 0 {
		return internal.NewValidationError("expense_ids cannot be empty", internal.ErrCodeValidationFailed)
	}
	if d.Option < OptionSystemDistance || d.Option > OptionAdminDistance {
		return internal.NewValidationError("option must be 1 (system), 2 (manual) or 3 (admin)", internal.ErrCodeValidationFailed)
	}
	if d.MaxVariancePct != nil && *d.MaxVariancePct < 0 {
		return internal.NewValidationError("max_variance_pct cannot be negative", internal.ErrCodeValidationFailed)
	}
	return nil
}

// ApprovalResult reports one approval with the employee's balance before
// and after the ledger debit, rounded to 2 decimals.
type ApprovalResult struct {
	Expense        *Expense `json:"expense"`
	ApprovedAmount float64  `json:"approved_amount"`
	BalanceBefore  float64  `json:"balance_before"`
	BalanceAfter   float64  `json:"balance_after"`
}

type BulkItemResult struct {
	ExpenseID      int64   `json:"expense_id"`
	ApprovedAmount float64 `json:"approved_amount"`
	BalanceAfter   float64 `json:"balance_after"`
}

type BulkItemFailure struct {
	ExpenseID int64  `json:"expense_id"`
	Reason    string `json:"reason"`
}

// BulkResult reports a bulk approval: per-item outcomes plus the count of
// journey items excluded up front by the variance filter.
type BulkResult struct {
	Approved      []BulkItemResult  `json:"approved"`
	Failed        []BulkItemFailure `json:"failed"`
	TotalApproved int               `json:"total_approved"`
	TotalFailed   int               `json:"total_failed"`
	TotalFiltered int               `json:"total_filtered"`
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

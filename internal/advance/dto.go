package advance

import (
	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
)

type CreateAdvanceDTO struct {
	UserID        int64   `json:"user_id"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

func (d *CreateAdvanceDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationError("user_id is required", internal.ErrCodeValidationFailed)
	}
	if d.Amount <= 0 {
		return internal.NewValidationError("amount must be a positive number", internal.ErrCodeInvalidAmount)
	}
	if !validPaymentMethod(d.PaymentMethod) {
		return internal.NewValidationError("unknown payment method", internal.ErrCodeValidationFailed)
	}
	if d.Status != "" && d.Status != StatusPending && d.Status != StatusCompleted {
		return internal.NewValidationError("status must be pending or completed", internal.ErrCodeValidationFailed)
	}
	return nil
}

type UpdateStatusDTO struct {
	Status string `json:"status"`
}

// AdvanceResponse is the API view of an advance. Note carries the ledger's
// informational message about negative-balance clearing, when relevant.
type AdvanceResponse struct {
	*Advance
	BalanceBefore *float64 `json:"balance_before,omitempty"`
	BalanceAfter  *float64 `json:"balance_after,omitempty"`
	Note          string   `json:"note,omitempty"`
}

func roundedFloat(d decimal.Decimal) *float64 {
	f := d.Round(2).InexactFloat64()
	return &f
}

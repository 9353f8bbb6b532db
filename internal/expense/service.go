package expense

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/audit"
	"github.com/waypoint-hq/field-expense/internal/distance"
	"github.com/waypoint-hq/field-expense/internal/ledger"
	"github.com/waypoint-hq/field-expense/internal/user"
)

// JourneyStore is the slice of journey storage the approval engine needs.
type JourneyStore interface {
	// BelongsTo reports whether the journey exists and is owned by userID.
	BelongsTo(ctx context.Context, journeyID, userID int64) (bool, error)
	// AddExpensesTotal increments the journey's running approved-expense total.
	AddExpensesTotal(ctx context.Context, journeyID int64, amount decimal.Decimal) error
}

// LedgerAPI debits the owning employee's balance on approval.
type LedgerAPI interface {
	Debit(ctx context.Context, userID int64, amount decimal.Decimal) (*ledger.Movement, error)
}

// LockGate blocks mutation of expenses dated inside a locked month.
type LockGate interface {
	AssertUnlocked(ctx context.Context, userID int64, date time.Time) error
}

// RatesProvider supplies configured tariffs with documented defaults.
type RatesProvider interface {
	RatePerKm() float64
	CostPerMachineVisit() float64
}

type Service struct {
	repo     RepositoryAPI
	journeys JourneyStore
	ledger   LedgerAPI
	locks    LockGate
	rates    RatesProvider
	audit    audit.Recorder
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, journeys JourneyStore, ledgerAPI LedgerAPI, locks LockGate, rates RatesProvider, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		journeys: journeys,
		ledger:   ledgerAPI,
		locks:    locks,
		rates:    rates,
		audit:    recorder,
		logger:   logger,
	}
}

func (s *Service) CreateExpense(ctx context.Context, actor *user.User, dto *CreateExpenseDTO) (*Expense, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.locks.AssertUnlocked(ctx, actor.ID, dto.ExpenseDate); err != nil {
		return nil, err
	}

	exp := &Expense{
		UserID:      actor.ID,
		Category:    dto.Category,
		ExpenseType: dto.ExpenseType,
		ExpenseDate: dto.ExpenseDate,
		Description: dto.Description,
		Status:      StatusPending,
	}

	if dto.Amount != nil {
		exp.Amount = decimal.NewFromFloat(*dto.Amount).Round(2)
	} else if dto.ExpenseType == TypeMachineVisit {
		exp.Amount = decimal.NewFromFloat(s.rates.CostPerMachineVisit()).Round(2)
	}

	if dto.ManualDistanceKm != nil {
		exp.ManualDistanceKm = decimal.NewFromFloat(*dto.ManualDistanceKm).Round(2)
	}

	if dto.Category == CategoryJourney {
		owned, err := s.journeys.BelongsTo(ctx, *dto.JourneyID, actor.ID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, internal.ErrJourneyNotFound
		}
		exp.JourneyID = dto.JourneyID
		exp.DistanceRate = decimal.NewFromFloat(s.rates.RatePerKm()).Round(2)
	}

	if err := s.repo.Create(ctx, exp); err != nil {
		return nil, err
	}

	s.logger.Info("expense created",
		"expense_id", exp.ID,
		"user_id", actor.ID,
		"category", exp.Category,
		"amount", exp.Amount.String())
	s.audit.Record(ctx, audit.ActionExpenseCreated, actor.ID, "expense", exp.ID, map[string]any{
		"category": exp.Category,
		"amount":   exp.Amount.String(),
	})
	return exp, nil
}

// JourneyExpenseInput seeds the expense spawned when a journey ends. Amount
// is priced at completion time as distance × rate.
type JourneyExpenseInput struct {
	UserID           int64
	JourneyID        int64
	SystemDistanceKm decimal.Decimal
	ManualDistanceKm decimal.Decimal
	Rate             decimal.Decimal
	Description      string
}

func (s *Service) CreateJourneyExpense(ctx context.Context, in JourneyExpenseInput) (*Expense, error) {
	exp := &Expense{
		UserID:           in.UserID,
		JourneyID:        &in.JourneyID,
		Category:         CategoryJourney,
		ExpenseType:      TypeTravel,
		ExpenseDate:      time.Now().UTC(),
		Description:      in.Description,
		Amount:           in.SystemDistanceKm.Mul(in.Rate).Round(2),
		SystemDistanceKm: in.SystemDistanceKm,
		ManualDistanceKm: in.ManualDistanceKm,
		DistanceRate:     in.Rate,
		Status:           StatusPending,
	}
	if err := s.repo.Create(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *Service) GetByID(ctx context.Context, actor *user.User, id int64) (*Expense, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.UserID != actor.ID && !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	return exp, nil
}

func (s *Service) List(ctx context.Context, actor *user.User, filter ListFilter) ([]*Expense, error) {
	return s.repo.List(ctx, user.ScopeFor(actor), filter)
}

func (s *Service) UpdateExpense(ctx context.Context, actor *user.User, id int64, dto *UpdateExpenseDTO) (*Expense, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.UserID != actor.ID && !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	if !exp.IsPending() {
		return nil, internal.ErrAlreadyProcessed
	}
	if err := s.locks.AssertUnlocked(ctx, exp.UserID, exp.ExpenseDate); err != nil {
		return nil, err
	}

	if dto.ExpenseType != nil {
		if !validExpenseType(*dto.ExpenseType) {
			return nil, internal.NewValidationError("unknown expense type", internal.ErrCodeValidationFailed)
		}
		exp.ExpenseType = *dto.ExpenseType
	}
	if dto.Description != nil {
		exp.Description = *dto.Description
	}
	if dto.Amount != nil {
		if *dto.Amount < 0 {
			return nil, internal.NewValidationError("amount cannot be negative", internal.ErrCodeInvalidAmount)
		}
		exp.Amount = decimal.NewFromFloat(*dto.Amount).Round(2)
	}
	if dto.ManualDistanceKm != nil {
		if *dto.ManualDistanceKm < 0 {
			return nil, internal.ErrInvalidDistance
		}
		exp.ManualDistanceKm = decimal.NewFromFloat(*dto.ManualDistanceKm).Round(2)
	}

	if err := s.repo.Update(ctx, exp); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.ActionExpenseUpdated, actor.ID, "expense", exp.ID, nil)
	return exp, nil
}

func (s *Service) DeleteExpense(ctx context.Context, actor *user.User, id int64) error {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if exp.UserID != actor.ID && !actor.IsAdmin() {
		return internal.ErrUnauthorizedAccess
	}
	if !exp.IsPending() {
		return internal.ErrAlreadyProcessed
	}
	if err := s.locks.AssertUnlocked(ctx, exp.UserID, exp.ExpenseDate); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.ActionExpenseDeleted, actor.ID, "expense", id, nil)
	return nil
}

// Approve runs the approval state machine on one expense. The selected
// distance source prices the distance cost; the approved amount is the
// stored estimate plus that cost for every expense type.
//
// For journey expenses Amount was already seeded at completion time as
// distance × rate, so this formula counts the distance cost twice. That is
// the documented behavior of the approval workflow and is kept verbatim
// pending a product decision; see DESIGN.md and the engine tests.
func (s *Service) Approve(ctx context.Context, approver *user.User, expenseID int64, dto *ApproveDTO) (*ApprovalResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	exp, err := s.repo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if !exp.IsPending() {
		return nil, internal.ErrAlreadyProcessed
	}
	if err := s.locks.AssertUnlocked(ctx, exp.UserID, exp.ExpenseDate); err != nil {
		return nil, err
	}

	var selected decimal.Decimal
	switch dto.Option {
	case OptionSystemDistance:
		selected = exp.SystemDistanceKm
	case OptionManualDistance:
		selected = exp.ManualDistanceKm
	case OptionAdminDistance:
		if dto.AdminDistanceKm != nil {
			d := decimal.NewFromFloat(*dto.AdminDistanceKm).Round(2)
			exp.AdminDistanceKm = &d
		}
		if exp.AdminDistanceKm == nil {
			return nil, internal.ErrMissingAdminDistance
		}
		selected = *exp.AdminDistanceKm
	}

	if !exp.DistanceRate.IsPositive() {
		return nil, internal.ErrMissingRate
	}

	distanceCost := selected.Mul(exp.DistanceRate)
	approvedAmount := exp.Amount.Add(distanceCost).Round(2)

	now := time.Now().UTC()
	option := dto.Option
	exp.Status = StatusApproved
	exp.ApprovedOption = &option
	exp.ApprovedAmount = &approvedAmount
	exp.ApprovedBy = &approver.ID
	exp.ApprovalNotes = dto.Notes
	exp.ProcessedAt = &now

	won, err := s.repo.UpdateApproval(ctx, exp)
	if err != nil {
		return nil, err
	}
	if !won {
		// another approver got there first
		return nil, internal.ErrAlreadyProcessed
	}

	if exp.JourneyID != nil {
		if err := s.journeys.AddExpensesTotal(ctx, *exp.JourneyID, approvedAmount); err != nil {
			return nil, err
		}
	}

	movement, err := s.ledger.Debit(ctx, exp.UserID, approvedAmount)
	if err != nil {
		return nil, err
	}

	s.logger.Info("expense approved",
		"expense_id", exp.ID,
		"user_id", exp.UserID,
		"approved_by", approver.ID,
		"option", option,
		"approved_amount", approvedAmount.String())
	s.audit.Record(ctx, audit.ActionExpenseApproved, approver.ID, "expense", exp.ID, map[string]any{
		"option":          option,
		"approved_amount": approvedAmount.String(),
	})

	return &ApprovalResult{
		Expense:        exp,
		ApprovedAmount: round2(approvedAmount),
		BalanceBefore:  round2(movement.Before),
		BalanceAfter:   round2(movement.After),
	}, nil
}

// Reject moves a pending expense to its terminal rejected state. The reason
// is mandatory; neither the balance nor journey totals are touched.
func (s *Service) Reject(ctx context.Context, approver *user.User, expenseID int64, dto *RejectDTO) (*Expense, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	exp, err := s.repo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if !exp.IsPending() {
		return nil, internal.ErrAlreadyProcessed
	}
	if err := s.locks.AssertUnlocked(ctx, exp.UserID, exp.ExpenseDate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	exp.Status = StatusRejected
	exp.RejectionReason = dto.Reason
	exp.ApprovedBy = &approver.ID
	exp.ProcessedAt = &now

	won, err := s.repo.UpdateApproval(ctx, exp)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, internal.ErrAlreadyProcessed
	}

	s.logger.Info("expense rejected", "expense_id", exp.ID, "rejected_by", approver.ID, "reason", dto.Reason)
	s.audit.Record(ctx, audit.ActionExpenseRejected, approver.ID, "expense", exp.ID, map[string]any{
		"reason": dto.Reason,
	})
	return exp, nil
}

// BulkApprove processes expenses strictly in input order with per-item
// failure isolation: a failed item is recorded and processing continues,
// prior successes are never rolled back. When a variance threshold is
// given, journey expenses exceeding it are excluded up front and counted
// as filtered rather than attempted.
func (s *Service) BulkApprove(ctx context.Context, approver *user.User, dto *BulkApproveDTO) (*BulkResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var maxVariance *decimal.Decimal
	if dto.MaxVariancePct != nil {
		v := decimal.NewFromFloat(*dto.MaxVariancePct)
		maxVariance = &v
	}

	result := &BulkResult{
		Approved: []BulkItemResult{},
		Failed:   []BulkItemFailure{},
	}

	for _, id := range dto.ExpenseIDs {
		if maxVariance != nil {
			exp, err := s.repo.GetByID(ctx, id)
			if err != nil {
				result.Failed = append(result.Failed, BulkItemFailure{ExpenseID: id, Reason: err.Error()})
				continue
			}
			if exp.IsJourneyExpense() {
				variance, err := distance.Variance(exp.SystemDistanceKm, exp.ManualDistanceKm)
				if err != nil {
					result.Failed = append(result.Failed, BulkItemFailure{ExpenseID: id, Reason: err.Error()})
					continue
				}
				if variance.GreaterThan(*maxVariance) {
					result.TotalFiltered++
					s.logger.Info("bulk approve: expense filtered by variance threshold",
						"expense_id", id,
						"variance_pct", variance.String(),
						"max_variance_pct", maxVariance.String())
					continue
				}
			}
		}

		item, err := s.Approve(ctx, approver, id, &ApproveDTO{Option: dto.Option, Notes: dto.Notes})
		if err != nil {
			result.Failed = append(result.Failed, BulkItemFailure{ExpenseID: id, Reason: err.Error()})
			continue
		}
		result.Approved = append(result.Approved, BulkItemResult{
			ExpenseID:      id,
			ApprovedAmount: item.ApprovedAmount,
			BalanceAfter:   item.BalanceAfter,
		})
	}

	result.TotalApproved = len(result.Approved)
	result.TotalFailed = len(result.Failed)

	s.logger.Info("bulk approval finished",
		"approver_id", approver.ID,
		"total_approved", result.TotalApproved,
		"total_failed", result.TotalFailed,
		"total_filtered", result.TotalFiltered)
	return result, nil
}

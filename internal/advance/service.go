package advance

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/audit"
	"github.com/waypoint-hq/field-expense/internal/ledger"
	"github.com/waypoint-hq/field-expense/internal/user"
)

// LedgerAPI is the slice of the balance ledger the advance service needs.
type LedgerAPI interface {
	Credit(ctx context.Context, userID int64, amount decimal.Decimal) (*ledger.Movement, error)
	Debit(ctx context.Context, userID int64, amount decimal.Decimal) (*ledger.Movement, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type Service struct {
	repo   RepositoryAPI
	ledger LedgerAPI
	users  UserGetter
	audit  audit.Recorder
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, ledgerAPI LedgerAPI, users UserGetter, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledgerAPI,
		users:  users,
		audit:  recorder,
		logger: logger,
	}
}

// Create records an advance for an employee. The default status is
// completed (the cash was already handed over), which credits the ledger
// immediately; pending is allowed for scheduled payouts.
func (s *Service) Create(ctx context.Context, actor *user.User, dto *CreateAdvanceDTO) (*AdvanceResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, dto.UserID); err != nil {
		return nil, err
	}

	status := dto.Status
	if status == "" {
		status = StatusCompleted
	}

	adv := &Advance{
		UserID:        dto.UserID,
		Amount:        decimal.NewFromFloat(dto.Amount).Round(2),
		PaymentMethod: dto.PaymentMethod,
		Status:        status,
		AddedBy:       actor.ID,
		Notes:         dto.Notes,
	}
	if status == StatusCompleted {
		now := time.Now().UTC()
		adv.CompletedAt = &now
	}

	if err := s.repo.Create(ctx, adv); err != nil {
		return nil, err
	}

	resp := &AdvanceResponse{Advance: adv}
	if status == StatusCompleted {
		movement, err := s.ledger.Credit(ctx, adv.UserID, adv.Amount)
		if err != nil {
			return nil, err
		}
		resp.BalanceBefore = roundedFloat(movement.Before)
		resp.BalanceAfter = roundedFloat(movement.After)
		resp.Note = ledger.CreditNote(movement)
	}

	s.logger.Info("advance created",
		"advance_id", adv.ID,
		"user_id", adv.UserID,
		"amount", adv.Amount.String(),
		"status", adv.Status,
		"added_by", actor.ID)
	s.audit.Record(ctx, audit.ActionAdvanceCreated, actor.ID, "advance", adv.ID, map[string]any{
		"user_id": adv.UserID,
		"amount":  adv.Amount.String(),
		"status":  adv.Status,
	})
	return resp, nil
}

// Complete moves a pending advance to completed and credits the ledger.
func (s *Service) Complete(ctx context.Context, actor *user.User, advanceID int64) (*AdvanceResponse, error) {
	adv, err := s.repo.GetByID(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	if !adv.IsPending() {
		return nil, internal.ErrAdvanceNotPending
	}

	now := time.Now().UTC()
	adv.Status = StatusCompleted
	adv.CompletedAt = &now
	if err := s.repo.Update(ctx, adv); err != nil {
		return nil, err
	}

	movement, err := s.ledger.Credit(ctx, adv.UserID, adv.Amount)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.ActionAdvanceCompleted, actor.ID, "advance", adv.ID, nil)
	return &AdvanceResponse{
		Advance:       adv,
		BalanceBefore: roundedFloat(movement.Before),
		BalanceAfter:  roundedFloat(movement.After),
		Note:          ledger.CreditNote(movement),
	}, nil
}

// Cancel voids an advance. Cancelling a completed advance debits the
// credited amount back so the stored scalar keeps matching replay.
func (s *Service) Cancel(ctx context.Context, actor *user.User, advanceID int64) (*AdvanceResponse, error) {
	adv, err := s.repo.GetByID(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	if adv.Status == StatusCancelled {
		return nil, internal.ErrAlreadyProcessed
	}

	wasCompleted := adv.Status == StatusCompleted
	adv.Status = StatusCancelled
	adv.CompletedAt = nil
	if err := s.repo.Update(ctx, adv); err != nil {
		return nil, err
	}

	resp := &AdvanceResponse{Advance: adv}
	if wasCompleted {
		movement, err := s.ledger.Debit(ctx, adv.UserID, adv.Amount)
		if err != nil {
			return nil, err
		}
		resp.BalanceBefore = roundedFloat(movement.Before)
		resp.BalanceAfter = roundedFloat(movement.After)
	}

	s.audit.Record(ctx, audit.ActionAdvanceCancelled, actor.ID, "advance", adv.ID, nil)
	return resp, nil
}

// Delete soft-deletes an advance, debiting back first when it had already
// been credited.
func (s *Service) Delete(ctx context.Context, actor *user.User, advanceID int64) error {
	adv, err := s.repo.GetByID(ctx, advanceID)
	if err != nil {
		return err
	}

	if adv.Status == StatusCompleted {
		if _, err := s.ledger.Debit(ctx, adv.UserID, adv.Amount); err != nil {
			return err
		}
	}

	if err := s.repo.SoftDelete(ctx, advanceID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.ActionAdvanceDeleted, actor.ID, "advance", advanceID, nil)
	return nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Advance, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

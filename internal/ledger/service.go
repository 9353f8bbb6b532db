package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
)

// maxCASAttempts bounds the optimistic-concurrency retry loop on a single
// balance update before giving up with a version conflict.
const maxCASAttempts = 5

// Service maintains each employee's advance balance. The stored scalar is
// updated incrementally through a compare-and-swap on the user's balance
// version so concurrent approvals on the same employee cannot lose updates.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Credit adds amount to a user's balance.
func (s *Service) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (*Movement, error) {
	return s.apply(ctx, userID, amount)
}

// Debit subtracts amount from a user's balance. Balances have no floor:
// going negative is valid and never clamped.
func (s *Service) Debit(ctx context.Context, userID int64, amount decimal.Decimal) (*Movement, error) {
	return s.apply(ctx, userID, amount.Neg())
}

func (s *Service) apply(ctx context.Context, userID int64, delta decimal.Decimal) (*Movement, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		before, version, err := s.repo.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}

		after := before.Add(delta).Round(2)
		swapped, err := s.repo.CompareAndSwapBalance(ctx, userID, version, after)
		if err != nil {
			return nil, err
		}
		if swapped {
			s.logger.Info("balance updated",
				"user_id", userID,
				"delta", delta.String(),
				"balance_before", before.String(),
				"balance_after", after.String())
			return &Movement{UserID: userID, Before: before, After: after}, nil
		}

		s.logger.Debug("balance version conflict, retrying", "user_id", userID, "attempt", attempt+1)
	}

	return nil, internal.ErrBalanceConflict
}

// Replay reconstructs the balance from all completed advances (credits) and
// approved expenses (debits) in chronological order. The final running
// balance must equal the stored scalar; the result carries both so callers
// can alert on divergence.
func (s *Service) Replay(ctx context.Context, userID int64) (*Replay, error) {
	stored, _, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ListEvents(ctx, userID)
	if err != nil {
		return nil, err
	}

	running := decimal.Zero
	entries := make([]ReplayEntry, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case KindAdvanceCredit:
			running = running.Add(ev.Amount)
		case KindExpenseDebit:
			running = running.Sub(ev.Amount)
		}
		running = running.Round(2)
		entries = append(entries, ReplayEntry{
			Kind:    ev.Kind,
			RefID:   ev.RefID,
			Amount:  ev.Amount,
			Running: running,
			At:      ev.At,
		})
	}

	replay := &Replay{
		UserID:       userID,
		Entries:      entries,
		FinalRunning: running,
		StoredScalar: stored,
		Consistent:   running.Equal(stored),
	}
	if !replay.Consistent {
		s.logger.Error("ledger replay diverges from stored balance",
			"user_id", userID,
			"replayed", running.String(),
			"stored", stored.String())
	}
	return replay, nil
}

// CreditNote describes what an advance did to a negative balance. It is
// informational only; the credit itself is plain addition.
func CreditNote(m *Movement) string {
	if !m.Before.IsNegative() {
		return ""
	}
	if m.After.IsNegative() {
		return fmt.Sprintf("balance remains negative; shortfall of %s", m.After.Abs().StringFixed(2))
	}
	return fmt.Sprintf("negative balance cleared; surplus of %s", m.After.StringFixed(2))
}

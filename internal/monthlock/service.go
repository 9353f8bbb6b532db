package monthlock

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/audit"
)

// Service is the period gate. Every expense mutation consults AssertUnlocked
// with the expense's date before touching storage, regardless of actor role.
type Service struct {
	repo   RepositoryAPI
	audit  audit.Recorder
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: recorder, logger: logger}
}

func (s *Service) IsLocked(ctx context.Context, userID int64, year, month int) (bool, error) {
	lock, err := s.repo.Get(ctx, userID, year, month)
	if err != nil {
		if err == internal.ErrMonthLockNotFound {
			return false, nil
		}
		return false, err
	}
	return lock.IsLocked, nil
}

// AssertUnlocked fails with PERIOD_LOCKED when date falls in a locked month
// for the given user.
func (s *Service) AssertUnlocked(ctx context.Context, userID int64, date time.Time) error {
	locked, err := s.IsLocked(ctx, userID, date.Year(), int(date.Month()))
	if err != nil {
		return err
	}
	if locked {
		return internal.ErrPeriodLocked
	}
	return nil
}

// Lock closes a period and captures a financial snapshot for audit.
// Re-locking a previously reopened period is permitted.
func (s *Service) Lock(ctx context.Context, userID int64, year, month int, closedBy int64) (*MonthLock, error) {
	if month < 1 || month > 12 {
		return nil, internal.NewValidationError("month must be between 1 and 12", internal.ErrCodeValidationFailed)
	}

	summary, err := s.repo.SummarizeMonth(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	lock, err := s.repo.Get(ctx, userID, year, month)
	if err != nil {
		if err != internal.ErrMonthLockNotFound {
			return nil, err
		}
		lock = &MonthLock{UserID: userID, Year: year, Month: month}
	}

	now := time.Now().UTC()
	lock.IsLocked = true
	lock.ClosedBy = &closedBy
	lock.ClosedAt = &now
	if err := lock.SetSummary(*summary); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, lock); err != nil {
		return nil, err
	}

	s.logger.Info("period locked", "user_id", userID, "year", year, "month", month, "closed_by", closedBy)
	s.audit.Record(ctx, audit.ActionMonthLocked, closedBy, "month_lock", lock.ID, map[string]any{
		"user_id": userID,
		"year":    year,
		"month":   month,
	})
	return lock, nil
}

// Unlock reopens a period. A reason is mandatory and both the reason and
// the actor are recorded; the original closing snapshot is kept.
func (s *Service) Unlock(ctx context.Context, userID int64, year, month int, reopenedBy int64, reason string) (*MonthLock, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, internal.ErrMissingReason
	}

	lock, err := s.repo.Get(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lock.IsLocked = false
	lock.ReopenedBy = &reopenedBy
	lock.ReopenedAt = &now
	lock.ReopenReason = reason

	if err := s.repo.Upsert(ctx, lock); err != nil {
		return nil, err
	}

	s.logger.Info("period unlocked", "user_id", userID, "year", year, "month", month, "reopened_by", reopenedBy, "reason", reason)
	s.audit.Record(ctx, audit.ActionMonthUnlocked, reopenedBy, "month_lock", lock.ID, map[string]any{
		"user_id": userID,
		"year":    year,
		"month":   month,
		"reason":  reason,
	})
	return lock, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*MonthLock, error) {
	return s.repo.ListByUser(ctx, userID)
}

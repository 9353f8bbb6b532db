package journey

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/audit"
	"github.com/waypoint-hq/field-expense/internal/distance"
	"github.com/waypoint-hq/field-expense/internal/expense"
	"github.com/waypoint-hq/field-expense/internal/user"
)

// ExpenseSpawner creates the pending expense linked to a completed journey.
type ExpenseSpawner interface {
	CreateJourneyExpense(ctx context.Context, in expense.JourneyExpenseInput) (*expense.Expense, error)
}

// DistanceAPI is the slice of the estimator the journey service uses.
type DistanceAPI interface {
	Estimate(ctx context.Context, origin, dest distance.Coordinate, opts distance.EstimateOptions) (*distance.Estimate, error)
	Duration(ctx context.Context, origin, dest distance.Coordinate) (decimal.Decimal, error)
}

type RatesProvider interface {
	RatePerKm() float64
}

type Service struct {
	repo      RepositoryAPI
	expenses  ExpenseSpawner
	estimator DistanceAPI
	rates     RatesProvider
	audit     audit.Recorder
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, expenses ExpenseSpawner, estimator DistanceAPI, rates RatesProvider, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		expenses:  expenses,
		estimator: estimator,
		rates:     rates,
		audit:     recorder,
		logger:    logger,
	}
}

// Start opens a journey. An employee may have at most one active journey.
func (s *Service) Start(ctx context.Context, actor *user.User, dto *StartJourneyDTO) (*Journey, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	active, err := s.repo.GetActiveByUser(ctx, actor.ID)
	if err != nil && err != internal.ErrJourneyNotFound {
		return nil, err
	}
	if active != nil {
		return nil, internal.ErrDuplicateActiveJourney
	}

	j := &Journey{
		UserID:    actor.ID,
		StartLat:  decimal.NewFromFloat(dto.StartLat),
		StartLng:  decimal.NewFromFloat(dto.StartLng),
		StartedAt: time.Now().UTC(),
		Status:    StatusActive,
		Notes:     dto.Notes,
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Info("journey started", "journey_id", j.ID, "user_id", actor.ID)
	s.audit.Record(ctx, audit.ActionJourneyStarted, actor.ID, "journey", j.ID, nil)
	return j, nil
}

// End completes a journey: the Haversine distance is authoritative for the
// system distance, the spawned expense is priced at distance × rate, and a
// best-effort duration lookup runs detached so it can never delay or alter
// this response.
func (s *Service) End(ctx context.Context, actor *user.User, journeyID int64, dto *EndJourneyDTO) (*EndJourneyResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	j, err := s.repo.GetByID(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if j.UserID != actor.ID && !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	if !j.IsActive() {
		return nil, internal.ErrJourneyNotActive
	}

	endCoord := distance.Coordinate{Lat: dto.EndLat, Lng: dto.EndLng}
	est, err := s.estimator.Estimate(ctx, j.StartCoordinate(), endCoord, distance.EstimateOptions{})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	endLat := decimal.NewFromFloat(dto.EndLat)
	endLng := decimal.NewFromFloat(dto.EndLng)
	j.EndLat = &endLat
	j.EndLng = &endLng
	j.EndedAt = &now
	j.Status = StatusCompleted
	j.DistanceKm = est.DistanceKm
	j.DistanceSource = string(est.Source)

	if err := s.repo.Update(ctx, j); err != nil {
		return nil, err
	}

	manualDistance := est.DistanceKm
	if dto.ManualDistanceKm != nil {
		manualDistance = decimal.NewFromFloat(*dto.ManualDistanceKm).Round(2)
	}

	rate := decimal.NewFromFloat(s.rates.RatePerKm()).Round(2)
	exp, err := s.expenses.CreateJourneyExpense(ctx, expense.JourneyExpenseInput{
		UserID:           j.UserID,
		JourneyID:        j.ID,
		SystemDistanceKm: est.DistanceKm,
		ManualDistanceKm: manualDistance,
		Rate:             rate,
		Description:      "travel reimbursement for journey",
	})
	if err != nil {
		return nil, err
	}

	j.ExpenseID = &exp.ID
	if err := s.repo.Update(ctx, j); err != nil {
		return nil, err
	}

	// Fire-and-forget duration enrichment. The result lands on the journey
	// row for subsequent reads only; it is never merged into this response.
	go s.enrichDuration(j.ID, j.StartCoordinate(), endCoord)

	s.logger.Info("journey ended",
		"journey_id", j.ID,
		"user_id", j.UserID,
		"distance_km", est.DistanceKm.String(),
		"distance_source", est.Source,
		"expense_id", exp.ID)
	s.audit.Record(ctx, audit.ActionJourneyEnded, actor.ID, "journey", j.ID, map[string]any{
		"distance_km": est.DistanceKm.String(),
		"expense_id":  exp.ID,
	})

	return &EndJourneyResult{Journey: j, Expense: exp}, nil
}

func (s *Service) enrichDuration(journeyID int64, origin, dest distance.Coordinate) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	durationMin, err := s.estimator.Duration(ctx, origin, dest)
	if err != nil {
		s.logger.Debug("duration enrichment skipped", "journey_id", journeyID, "error", err)
		return
	}
	if err := s.repo.SetDuration(ctx, journeyID, durationMin); err != nil {
		s.logger.Error("failed to persist journey duration", "journey_id", journeyID, "error", err)
	}
}

func (s *Service) Cancel(ctx context.Context, actor *user.User, journeyID int64, dto *CancelJourneyDTO) (*Journey, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	j, err := s.repo.GetByID(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if j.UserID != actor.ID && !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	if !j.IsActive() {
		return nil, internal.ErrJourneyNotActive
	}

	now := time.Now().UTC()
	j.Status = StatusCancelled
	j.EndedAt = &now
	j.CancelReason = dto.Reason
	if err := s.repo.Update(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Info("journey cancelled", "journey_id", j.ID, "user_id", j.UserID, "reason", dto.Reason)
	s.audit.Record(ctx, audit.ActionJourneyCancelled, actor.ID, "journey", j.ID, map[string]any{
		"reason": dto.Reason,
	})
	return j, nil
}

func (s *Service) GetByID(ctx context.Context, actor *user.User, journeyID int64) (*Journey, error) {
	j, err := s.repo.GetByID(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if j.UserID != actor.ID && !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	return j, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Journey, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

package user

import (
	"context"
	"log/slog"

	"github.com/waypoint-hq/field-expense/internal"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, scope Scope, limit, offset int) ([]*User, error) {
	return s.repo.List(ctx, scope, limit, offset)
}

package user

import (
	"context"
	"log/slog"

	"github.com/munezero-grace/student-registration-backend/internal/events"
)

type Service interface {
	ListUsers(ctx context.Context, params ListParams) (*ListResult, error)
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, id string, fields UpdateFields) (*User, error)
	DeleteUser(ctx context.Context, id string) error
}

type service struct {
	repo     Repository
	producer events.Producer
	logger   *slog.Logger
}

func NewService(repo Repository, producer events.Producer, logger *slog.Logger) Service {
	return &service{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

func (s *service) ListUsers(ctx context.Context, params ListParams) (*ListResult, error) {
	params.Normalize()

	users, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	totalPages := total / params.Limit
	if total%params.Limit != 0 {
		totalPages++
	}

	return &ListResult{
		Data: Projections(users),
		Pagination: Pagination{
			Total:      total,
			Page:       params.Page,
			Limit:      params.Limit,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) UpdateUser(ctx context.Context, id string, fields UpdateFields) (*User, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	if fields.Role != nil && !fields.Role.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.UpdateGuarded(ctx, id, fields)
}

func (s *service) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	deleted, err := s.repo.DeleteGuarded(ctx, id)
	if err != nil {
		return err
	}

	// Lifecycle event is best effort; deletion already committed
	if s.producer != nil {
		if err := s.producer.Publish(ctx, events.UserDeleted(deleted.ID, deleted.Email)); err != nil {
			s.logger.WarnContext(ctx, "failed to publish user.deleted event", "error", err)
		}
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/fixitnow/fixitnow-api/internal/models"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Delete(ctx context.Context, id int64) error
}

// UserService exposes profile reads and the admin user directory. Account
// creation lives in AuthService; role changes are out of scope entirely.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// Get returns a user by identifier.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// ListByRole returns users holding the given role, optionally filtered by a
// name/email search term.
func (s *UserService) ListByRole(ctx context.Context, role models.UserRole, search string) ([]models.User, error) {
	users, err := s.repo.List(ctx, models.UserFilter{Role: &role, Search: search})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}

// Remove deletes a user account; admin only.
func (s *UserService) Remove(ctx context.Context, id int64, actorRole models.UserRole) error {
	if actorRole != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete users")
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.logger.Info("user deleted", zap.Int64("user_id", id))
	return nil
}

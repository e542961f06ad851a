package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// UserService is the only writer of user profiles and their role.
type UserService struct {
	users  repository.UserRepository
	now    func() time.Time
	logger *zap.Logger
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo repository.UserRepository
	Clock    func() time.Time
	Logger   *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	s := &UserService{users: deps.UserRepo, now: deps.Clock, logger: deps.Logger}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateUser merges in into users/{id}. Fields absent from in keep their
// stored value, the role defaults to employee and createdAt is written on
// every call.
func (s *UserService) CreateUser(ctx context.Context, id string, in domain.UserInput) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError("user id is required", nil)
	}
	if in.Role == "" {
		in.Role = domain.RoleEmployee
	}
	return s.users.Upsert(ctx, id, in, s.now())
}

// GetUser returns nil without error when the profile does not exist.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetAllUsers scans the whole collection.
func (s *UserService) GetAllUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// UpdateUserRole writes a single role field.
func (s *UserService) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	parsed, ok := domain.LookupRole(string(role))
	if !ok {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}
	return s.users.UpdateRole(ctx, id, parsed)
}

// DeleteUser removes the profile document only. Issues filed by the user
// are kept.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

// UpdatePushToken stores the device token on the profile.
func (s *UserService) UpdatePushToken(ctx context.Context, id, token string) error {
	if strings.TrimSpace(token) == "" {
		return apperrors.NewValidationError("push token is required", nil)
	}
	return s.users.UpdatePushToken(ctx, id, token)
}

// UpdateFullName renames the user without touching createdAt.
func (s *UserService) UpdateFullName(ctx context.Context, id, fullName string) error {
	return s.users.UpdateFullName(ctx, id, strings.TrimSpace(fullName))
}

// WatchUser streams the profile of id; nil means the document is absent.
func (s *UserService) WatchUser(ctx context.Context, id string, onUser func(*domain.User), onError docstore.ErrorFunc) docstore.Unsubscribe {
	return s.users.Watch(ctx, id, onUser, onError)
}

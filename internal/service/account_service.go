package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/identity"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// AccountService couples identity provider accounts with user profiles.
type AccountService struct {
	provider  identity.Provider
	users     *UserService
	bootstrap map[string]domain.Role
	logger    *zap.Logger
}

// AccountDependencies bundles collaborators for the account service.
type AccountDependencies struct {
	Provider identity.Provider
	Users    *UserService
	// BootstrapRoles maps lower-cased emails to the role granted at
	// registration and login. Empty unless explicitly enabled.
	BootstrapRoles map[string]domain.Role
	Logger         *zap.Logger
}

// AccountResult is a signed-in session plus the role its profile was
// written with.
type AccountResult struct {
	Session *identity.Session
	Role    domain.Role
}

// NewAccountService constructs the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	s := &AccountService{
		provider:  deps.Provider,
		users:     deps.Users,
		bootstrap: deps.BootstrapRoles,
		logger:    deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Register creates the account, sets its display name and writes the
// profile. The role is employee unless the email is on the bootstrap list.
func (s *AccountService) Register(ctx context.Context, email, password, fullName string) (*AccountResult, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, apperrors.NewValidationError("full name is required", nil)
	}
	session, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	uid := session.Identity.UID
	if err := s.provider.UpdateProfile(ctx, uid, fullName); err != nil {
		return nil, err
	}
	session.Identity.DisplayName = fullName

	role := domain.RoleEmployee
	if granted, ok := s.bootstrapRole(session.Identity.Email); ok {
		role = granted
		s.logger.Info("bootstrap role granted at registration", zap.String("uid", uid), zap.String("role", role.String()))
	}
	if err := s.users.CreateUser(ctx, uid, domain.UserInput{
		Email:    session.Identity.Email,
		FullName: fullName,
		Role:     role,
	}); err != nil {
		return nil, err
	}
	return &AccountResult{Session: session, Role: role}, nil
}

// Login signs in. Bootstrap emails get their role merged onto the
// profile; everyone else keeps the stored role.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AccountResult, error) {
	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	uid := session.Identity.UID

	if granted, ok := s.bootstrapRole(session.Identity.Email); ok {
		if err := s.users.CreateUser(ctx, uid, domain.UserInput{Email: session.Identity.Email, Role: granted}); err != nil {
			s.logger.Warn("bootstrap role merge failed", zap.String("uid", uid), zap.Error(err))
		}
	}

	role := domain.RoleEmployee
	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		s.logger.Warn("profile lookup failed at login", zap.String("uid", uid), zap.Error(err))
	} else if user != nil {
		role = user.Role
	}
	return &AccountResult{Session: session, Role: role}, nil
}

// Logout ends the session; its auth-state streams report unauthenticated.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	return s.provider.SignOut(ctx, token)
}

// UpdateProfile renames the user on both the account and the profile.
func (s *AccountService) UpdateProfile(ctx context.Context, uid, fullName string) error {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return apperrors.NewValidationError("full name is required", nil)
	}
	if err := s.provider.UpdateProfile(ctx, uid, fullName); err != nil {
		return err
	}
	return s.users.UpdateFullName(ctx, uid, fullName)
}

func (s *AccountService) bootstrapRole(email string) (domain.Role, bool) {
	if len(s.bootstrap) == 0 {
		return "", false
	}
	role, ok := s.bootstrap[strings.ToLower(strings.TrimSpace(email))]
	return role, ok
}

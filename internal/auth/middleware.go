package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/identity"
	"github.com/spec-kit/issue-service/internal/repository"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	// uidKey is read by the request logger.
	uidKey = "uid"
)

// Principal represents the authenticated caller.
type Principal struct {
	Identity identity.Identity
	Role     domain.Role
	Token    string
}

// UID is the caller's stable user id.
func (p *Principal) UID() string {
	return p.Identity.UID
}

// AuthMiddleware validates bearer tokens and loads the caller's role from
// their profile document.
type AuthMiddleware struct {
	provider identity.Provider
	users    repository.UserRepository
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(provider identity.Provider, users repository.UserRepository, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{provider: provider, users: users, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	id, err := m.provider.Verify(c.UserContext(), token)
	if err != nil {
		if authErr, ok := identity.AsAuthError(err); ok {
			return apperrors.NewUnauthorized(authErr.Message)
		}
		return apperrors.MapError(err)
	}

	principal := &Principal{Identity: *id, Role: domain.RoleEmployee, Token: token}
	user, err := m.users.GetByID(c.UserContext(), id.UID)
	switch {
	case err == nil:
		principal.Role = user.Role
	case errors.Is(err, docstore.ErrNotFound):
	default:
		// The role falls back to employee, the least privileged tree.
		m.logger.Warn("profile lookup failed; treating caller as employee",
			zap.String("uid", id.UID), zap.Error(err))
	}

	c.Locals(principalKey, principal)
	c.Locals(uidKey, id.UID)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		// EventSource cannot set headers, so streams may pass the token
		// as a query parameter.
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return parts[1], nil
}

package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/identity"
	"github.com/spec-kit/issue-service/internal/nav"
	"github.com/spec-kit/issue-service/internal/observability"
	"github.com/spec-kit/issue-service/internal/session"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

const sessionResolveTimeout = 5 * time.Second

// SessionHandler serves the role resolution controller: once as a JSON
// snapshot and live as server-sent events.
type SessionHandler struct {
	deps     session.Dependencies
	provider identity.Provider
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewSessionHandler constructs handler.
func NewSessionHandler(deps session.Dependencies, provider identity.Provider, metrics *observability.Metrics, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{deps: deps, provider: provider, metrics: metrics, logger: logger}
}

// Get handles GET /session. It waits for the first resolved role and
// falls back to the employee tree when that takes too long.
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	resolved := make(chan session.State, 1)
	ctrl := session.NewController(h.deps, func(s session.State) {
		if s.Authenticated && !s.Loading {
			offerLatest(resolved, s)
		}
	})

	ctx, cancel := context.WithTimeout(c.UserContext(), sessionResolveTimeout)
	defer cancel()
	ctrl.SignedIn(ctx, principal.UID())
	defer ctrl.SignedOut()

	select {
	case s := <-resolved:
		return c.JSON(fiber.Map{"data": s})
	case <-ctx.Done():
		h.logger.Warn("role resolution timed out; serving employee tree", zap.String("uid", principal.UID()))
		tree := nav.ForRole(domain.RoleEmployee)
		return c.JSON(fiber.Map{"data": session.State{
			Authenticated: true,
			UserID:        principal.UID(),
			Role:          tree.Role,
			Tree:          &tree,
		}})
	}
}

// Stream handles GET /session/stream. Each state change is one "state"
// event; the stream ends after the session signs out.
func (h *SessionHandler) Stream(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id := principal.Identity

	source := func(ctx context.Context, emit func(session.State)) func() {
		ctrl := session.NewController(h.deps, emit)
		events := h.provider.AuthState().Stream(ctx, id)
		go ctrl.Run(ctx, events)
		return func() {}
	}
	signedOut := func(s session.State) bool { return !s.Authenticated }
	return streamSnapshots(c, h.metrics, "state", source, signedOut)
}

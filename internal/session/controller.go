// Package session resolves which navigation tree an authenticated session
// mounts and keeps it in step with live changes to the user's role.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/identity"
	"github.com/spec-kit/issue-service/internal/nav"
	"github.com/spec-kit/issue-service/internal/push"
)

const registrationTimeout = 10 * time.Second

// State is what the client renders. Tree is nil until the role is known
// and while signed out.
type State struct {
	Loading       bool        `json:"loading"`
	Authenticated bool        `json:"authenticated"`
	UserID        string      `json:"userId,omitempty"`
	Role          domain.Role `json:"role,omitempty"`
	Tree          *nav.Tree   `json:"tree,omitempty"`
}

// Profiles is the slice of the user service the controller needs.
type Profiles interface {
	WatchUser(ctx context.Context, id string, onUser func(*domain.User), onError docstore.ErrorFunc) docstore.Unsubscribe
	UpdatePushToken(ctx context.Context, id, token string) error
}

// Observer receives every state change in order. It runs with the
// controller locked and must not call back into it.
type Observer func(State)

// Dependencies bundles collaborators for a controller.
type Dependencies struct {
	Profiles  Profiles
	Registrar push.Registrar
	Logger    *zap.Logger
}

// Controller is the role resolution state machine for one session. At
// most one profile watch is open, and only while authenticated.
type Controller struct {
	profiles  Profiles
	registrar push.Registrar
	logger    *zap.Logger
	observer  Observer

	mu         sync.Mutex
	state      State
	resolved   bool
	generation uint64
	stop       func()
}

// NewController constructs a signed-out controller.
func NewController(deps Dependencies, observer Observer) *Controller {
	c := &Controller{
		profiles:  deps.Profiles,
		registrar: deps.Registrar,
		logger:    deps.Logger,
		observer:  observer,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Run consumes auth-state events until ctx ends or the stream closes;
// either tears the session down.
func (c *Controller) Run(ctx context.Context, events <-chan identity.AuthEvent) {
	defer c.SignedOut()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Authenticated() {
				c.SignedIn(ctx, ev.UserID)
			} else {
				c.SignedOut()
			}
		}
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SignedIn opens the profile watch for uid. Repeating the current uid is
// a no-op; a different uid replaces the previous session.
func (c *Controller) SignedIn(ctx context.Context, uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Authenticated && c.state.UserID == uid {
		return
	}
	c.teardownLocked()

	c.generation++
	gen := c.generation
	c.resolved = false
	c.setLocked(State{Loading: true, Authenticated: true, UserID: uid})

	watchCtx, cancel := context.WithCancel(ctx)
	unsubscribe := c.profiles.WatchUser(watchCtx, uid,
		func(user *domain.User) { c.onProfile(gen, user) },
		func(err error) { c.onError(gen, uid, err) },
	)
	c.stop = func() {
		unsubscribe()
		cancel()
	}

	go c.registerDevice(ctx, uid)
}

// SignedOut closes the profile watch and clears the role.
func (c *Controller) SignedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Authenticated && c.stop == nil {
		return
	}
	c.teardownLocked()
	c.setLocked(State{})
}

func (c *Controller) onProfile(gen uint64, user *domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	role := domain.RoleEmployee
	if user != nil {
		role = user.Role
	}
	c.resolved = true
	c.applyRoleLocked(role)
}

// onError keeps the last resolved role; before any snapshot the session
// falls back to employee.
func (c *Controller) onError(gen uint64, uid string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.logger.Warn("profile subscription failed", zap.String("uid", uid), zap.Error(err))
	role := domain.RoleEmployee
	if c.resolved {
		role = c.state.Role
	}
	c.applyRoleLocked(role)
}

func (c *Controller) applyRoleLocked(role domain.Role) {
	tree := nav.ForRole(role)
	next := c.state
	next.Loading = false
	next.Role = tree.Role
	next.Tree = &tree
	c.setLocked(next)
}

func (c *Controller) setLocked(s State) {
	c.state = s
	if c.observer != nil {
		c.observer(s)
	}
}

func (c *Controller) teardownLocked() {
	c.generation++
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.resolved = false
}

// registerDevice copies the device token the client last registered onto
// the profile. It outlives a session that ends early. Failures are logged
// and never affect role resolution.
func (c *Controller) registerDevice(parent context.Context, uid string) {
	if c.registrar == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), registrationTimeout)
	defer cancel()

	token, err := c.registrar.Token(ctx, uid)
	if err != nil {
		c.logger.Warn("push registration lookup failed", zap.String("uid", uid), zap.Error(err))
		return
	}
	if token == "" {
		return
	}
	if err := c.profiles.UpdatePushToken(ctx, uid, token); err != nil {
		c.logger.Warn("push token not saved", zap.String("uid", uid), zap.Error(err))
	}
}

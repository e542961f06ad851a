package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/issue-service/internal/docstore"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/identity"
	"github.com/spec-kit/issue-service/internal/push"
	"github.com/spec-kit/issue-service/internal/repository"
	"github.com/spec-kit/issue-service/internal/service"
)

type fixture struct {
	store  *docstore.MemoryStore
	users  *service.UserService
	states chan State
	ctrl   *Controller
	logs   *observer.ObservedLogs
}

func newFixture(t *testing.T, registrar push.Registrar) *fixture {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	store := docstore.NewMemoryStore()
	users := service.NewUserService(service.UserDependencies{UserRepo: repository.NewUserRepository(store, nil)})
	f := &fixture{store: store, users: users, states: make(chan State, 64), logs: logs}
	f.ctrl = NewController(Dependencies{Profiles: users, Registrar: registrar, Logger: zap.New(core)}, func(s State) {
		select {
		case f.states <- s:
		default:
		}
	})
	return f
}

// waitFor returns the first observed state that satisfies ok.
func (f *fixture) waitFor(t *testing.T, what string, ok func(State) bool) State {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case s := <-f.states:
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s; current %+v", what, f.ctrl.State())
			return State{}
		}
	}
}

func resolvedAs(role domain.Role) func(State) bool {
	return func(s State) bool {
		return !s.Loading && s.Authenticated && s.Tree != nil && s.Tree.Role == role
	}
}

func TestController_MissingProfileIsEmployee(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.ctrl.SignedIn(ctx, "u1")
	loading := f.waitFor(t, "loading", func(s State) bool { return s.Loading })
	if loading.Tree != nil || loading.UserID != "u1" {
		t.Errorf("loading state = %+v", loading)
	}
	s := f.waitFor(t, "employee", resolvedAs(domain.RoleEmployee))
	if s.Role != domain.RoleEmployee {
		t.Errorf("role = %q", s.Role)
	}
}

func TestController_FollowsRoleChanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.store.Set(ctx, repository.UsersCollection, "u1", map[string]any{"role": "MANAGER"}, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	f.ctrl.SignedIn(ctx, "u1")
	f.waitFor(t, "manager", resolvedAs(domain.RoleManager))

	if err := f.users.UpdateUserRole(ctx, "u1", domain.RoleAdmin); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	s := f.waitFor(t, "admin", resolvedAs(domain.RoleAdmin))
	if !s.Tree.Allows("UserManagement") {
		t.Errorf("admin tree = %+v", s.Tree)
	}

	if err := f.store.Set(ctx, repository.UsersCollection, "u1", map[string]any{"role": "owner"}, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	f.waitFor(t, "fallback to employee", resolvedAs(domain.RoleEmployee))
}

func TestController_SignOutTearsDown(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = f.users.CreateUser(ctx, "u1", domain.UserInput{Role: domain.RoleManager})
	f.ctrl.SignedIn(ctx, "u1")
	f.waitFor(t, "manager", resolvedAs(domain.RoleManager))

	f.ctrl.SignedOut()
	if s := f.ctrl.State(); s.Authenticated || s.Tree != nil || s.Role != "" {
		t.Fatalf("state after sign-out = %+v", s)
	}

	_ = f.users.UpdateUserRole(ctx, "u1", domain.RoleAdmin)
	time.Sleep(50 * time.Millisecond)
	if s := f.ctrl.State(); s.Authenticated {
		t.Errorf("stale snapshot revived session: %+v", s)
	}
}

func TestController_SwitchingUsersDropsOldWatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = f.users.CreateUser(ctx, "a", domain.UserInput{Role: domain.RoleAdmin})
	_ = f.users.CreateUser(ctx, "b", domain.UserInput{Role: domain.RoleEmployee})

	f.ctrl.SignedIn(ctx, "a")
	f.waitFor(t, "admin", resolvedAs(domain.RoleAdmin))
	f.ctrl.SignedIn(ctx, "b")
	f.waitFor(t, "employee", resolvedAs(domain.RoleEmployee))

	_ = f.users.UpdateUserRole(ctx, "a", domain.RoleManager)
	time.Sleep(50 * time.Millisecond)
	if s := f.ctrl.State(); s.UserID != "b" || s.Role != domain.RoleEmployee {
		t.Errorf("state = %+v", s)
	}
}

func TestController_ErrorKeepsLastRole(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = f.users.CreateUser(ctx, "u1", domain.UserInput{Role: domain.RoleAdmin})
	f.ctrl.SignedIn(ctx, "u1")
	f.waitFor(t, "admin", resolvedAs(domain.RoleAdmin))

	f.store.FailWatches(repository.UsersCollection, errors.New("unavailable"))
	time.Sleep(50 * time.Millisecond)
	if s := f.ctrl.State(); s.Role != domain.RoleAdmin || s.Loading {
		t.Errorf("state after error = %+v", s)
	}
	if f.logs.FilterMessage("profile subscription failed").Len() != 1 {
		t.Error("subscription error should be logged")
	}
}

type failingProfiles struct{}

func (failingProfiles) WatchUser(_ context.Context, _ string, _ func(*domain.User), onError docstore.ErrorFunc) docstore.Unsubscribe {
	go onError(errors.New("permission denied"))
	return func() {}
}

func (failingProfiles) UpdatePushToken(context.Context, string, string) error {
	return nil
}

func TestController_ErrorBeforeFirstSnapshotIsEmployee(t *testing.T) {
	states := make(chan State, 8)
	ctrl := NewController(Dependencies{Profiles: failingProfiles{}}, func(s State) { states <- s })
	ctrl.SignedIn(context.Background(), "u1")

	deadline := time.After(time.Second)
	for {
		select {
		case s := <-states:
			if s.Loading {
				continue
			}
			if s.Role != domain.RoleEmployee || s.Tree == nil {
				t.Errorf("state = %+v", s)
			}
			return
		case <-deadline:
			t.Fatal("loading never ended")
		}
	}
}

type stubRegistrar struct {
	mu    sync.Mutex
	token string
	err   error
}

func (r *stubRegistrar) Register(_ context.Context, _, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
	return nil
}

func (r *stubRegistrar) Token(context.Context, string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token, r.err
}

func TestController_StoresRegisteredPushToken(t *testing.T) {
	registrar := &stubRegistrar{token: "ExponentPushToken[xyz]"}
	f := newFixture(t, registrar)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.ctrl.SignedIn(ctx, "u1")
	f.waitFor(t, "employee", resolvedAs(domain.RoleEmployee))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		user, _ := f.users.GetUser(ctx, "u1")
		if user != nil && user.PushToken == "ExponentPushToken[xyz]" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("push token was not stored on the profile")
}

func TestController_PushFailureDoesNotBlockRole(t *testing.T) {
	registrar := &stubRegistrar{err: errors.New("redis down")}
	f := newFixture(t, registrar)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = f.users.CreateUser(ctx, "u1", domain.UserInput{Role: domain.RoleManager})
	f.ctrl.SignedIn(ctx, "u1")
	f.waitFor(t, "manager", resolvedAs(domain.RoleManager))

	deadline := time.Now().Add(time.Second)
	for f.logs.FilterMessage("push registration lookup failed").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("registration failure was not logged")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestController_RunFollowsAuthStream(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = f.users.CreateUser(ctx, "u1", domain.UserInput{Role: domain.RoleAdmin})
	hub := identity.NewHub()
	stream := hub.Stream(ctx, identity.Identity{UID: "u1", SessionID: "s1"})

	done := make(chan struct{})
	go func() {
		f.ctrl.Run(ctx, stream)
		close(done)
	}()
	f.waitFor(t, "admin", resolvedAs(domain.RoleAdmin))

	hub.SignedOut("s1")
	f.waitFor(t, "signed out", func(s State) bool { return !s.Authenticated })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the stream closed")
	}
}

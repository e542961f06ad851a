package config

import (
	"testing"
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DocStore.Backend != DocStoreMemory {
		t.Errorf("backend = %q, want memory", cfg.DocStore.Backend)
	}
	if cfg.Identity.Provider != IdentityLocal {
		t.Errorf("provider = %q, want local", cfg.Identity.Provider)
	}
	if cfg.Push.Relay != PushLog {
		t.Errorf("relay = %q, want log", cfg.Push.Relay)
	}
	if cfg.Auth.BootstrapRoles != nil {
		t.Errorf("bootstrap roles must be off by default, got %v", cfg.Auth.BootstrapRoles)
	}
	if cfg.App.RequestTimeout() != 30*time.Second {
		t.Errorf("request timeout = %s", cfg.App.RequestTimeout())
	}
}

func TestLoadBootstrapRolesRequiresOptIn(t *testing.T) {
	t.Setenv("AUTH_BOOTSTRAP_ROLES", "boss@x.com=admin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Auth.BootstrapRoles) != 0 {
		t.Fatalf("roles applied without opt-in: %v", cfg.Auth.BootstrapRoles)
	}

	t.Setenv("AUTH_ALLOW_BOOTSTRAP_ROLES", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.BootstrapRoles["boss@x.com"] != domain.RoleAdmin {
		t.Fatalf("roles = %v", cfg.Auth.BootstrapRoles)
	}
}

func TestLoadRejectsBadBackends(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown docstore", map[string]string{"DOCSTORE_BACKEND": "mongo"}},
		{"postgres without dsn", map[string]string{"DOCSTORE_BACKEND": "postgres"}},
		{"firestore without project", map[string]string{"DOCSTORE_BACKEND": "firestore"}},
		{"unknown identity", map[string]string{"IDENTITY_PROVIDER": "ldap"}},
		{"fcm without project", map[string]string{"PUSH_RELAY": "fcm"}},
		{"bad bootstrap role", map[string]string{"AUTH_ALLOW_BOOTSTRAP_ROLES": "true", "AUTH_BOOTSTRAP_ROLES": "a@x.com=owner"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseBootstrapRoles(t *testing.T) {
	roles, err := ParseBootstrapRoles(" Admin@X.com = ADMIN , m@x.com=manager,, ")
	if err != nil {
		t.Fatalf("ParseBootstrapRoles: %v", err)
	}
	want := map[string]domain.Role{"admin@x.com": domain.RoleAdmin, "m@x.com": domain.RoleManager}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v", roles)
	}
	for email, role := range want {
		if roles[email] != role {
			t.Errorf("roles[%s] = %s, want %s", email, roles[email], role)
		}
	}

	if _, err := ParseBootstrapRoles("no-equals-sign"); err == nil {
		t.Error("expected error for malformed entry")
	}
}

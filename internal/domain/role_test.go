package domain

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"", RoleEmployee},
		{"employee", RoleEmployee},
		{"manager", RoleManager},
		{"MANAGER", RoleManager},
		{"Admin", RoleAdmin},
		{"  admin ", RoleAdmin},
		{"superuser", RoleEmployee},
	}
	for _, tt := range tests {
		if got := ParseRole(tt.in); got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookupRole(t *testing.T) {
	if r, ok := LookupRole("Manager"); !ok || r != RoleManager {
		t.Errorf("LookupRole(Manager) = %q, %v", r, ok)
	}
	if _, ok := LookupRole("owner"); ok {
		t.Error("LookupRole(owner) should fail")
	}
}

func TestIssueStatusValid(t *testing.T) {
	for _, s := range IssueStatuses {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []IssueStatus{"", "OPEN", "Closed"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	b := a.Add(1500 * time.Millisecond)
	if !(FormatTime(a) < FormatTime(b)) {
		t.Fatalf("%s should sort before %s", FormatTime(a), FormatTime(b))
	}
	parsed, err := ParseTime(FormatTime(b))
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !parsed.Equal(b) {
		t.Errorf("round trip = %v, want %v", parsed, b)
	}
}

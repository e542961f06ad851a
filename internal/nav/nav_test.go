package nav

import (
	"testing"

	"github.com/spec-kit/issue-service/internal/domain"
)

func TestForRole_SelectsMatchingTree(t *testing.T) {
	tests := []struct {
		raw      string
		wantRole domain.Role
		wantTab  string
	}{
		{"employee", domain.RoleEmployee, "Home"},
		{"Manager", domain.RoleManager, "Manager"},
		{"ADMIN", domain.RoleAdmin, "Admin"},
		{"", domain.RoleEmployee, "Home"},
		{"superuser", domain.RoleEmployee, "Home"},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			tree := ForRole(domain.ParseRole(tc.raw))
			if tree.Role != tc.wantRole {
				t.Errorf("role = %s, want %s", tree.Role, tc.wantRole)
			}
			if tree.Tabs[0].Name != tc.wantTab {
				t.Errorf("first tab = %s, want %s", tree.Tabs[0].Name, tc.wantTab)
			}
		})
	}
}

func TestForRole_TreesAreDisjointWhereItMatters(t *testing.T) {
	employee := ForRole(domain.RoleEmployee)
	manager := ForRole(domain.RoleManager)
	admin := ForRole(domain.RoleAdmin)

	if employee.Allows(ScreenAnalytics) || employee.Allows(ScreenUserManagement) {
		t.Error("employee tree exposes staff screens")
	}
	if !employee.Allows(ScreenCreateIssue) {
		t.Error("employee tree must offer CreateIssue")
	}
	if manager.Allows(ScreenUserManagement) || !manager.Allows(ScreenAnalytics) {
		t.Error("manager tree has wrong staff screens")
	}
	if !admin.Allows(ScreenUserManagement) || admin.Allows(ScreenCreateIssue) {
		t.Error("admin tree has wrong screens")
	}
}

func TestForRole_ReturnsIndependentCopies(t *testing.T) {
	a := ForRole(domain.RoleEmployee)
	a.Tabs[2].Screens[0] = "Mutated"
	if ForRole(domain.RoleEmployee).Tabs[2].Screens[0] != ScreenProfileMain {
		t.Fatal("shared profile tab was mutated")
	}
}

func TestForRole_PanicsOutsideClosedSet(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	ForRole(domain.Role("owner"))
}

func TestTreeScreensDeduplicated(t *testing.T) {
	screens := ForRole(domain.RoleEmployee).Screens()
	seen := map[string]bool{}
	for _, s := range screens {
		if seen[s] {
			t.Fatalf("duplicate screen %s", s)
		}
		seen[s] = true
	}
}

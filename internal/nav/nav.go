// Package nav selects the navigation tree a role is allowed to mount.
package nav

import (
	"fmt"

	"github.com/spec-kit/issue-service/internal/domain"
)

// Screen names shared by the trees.
const (
	ScreenDashboard        = "Dashboard"
	ScreenCreateIssue      = "CreateIssue"
	ScreenIssueList        = "IssueList"
	ScreenIssueDetails     = "IssueDetails"
	ScreenNotifications    = "Notifications"
	ScreenSettings         = "Settings"
	ScreenProfileMain      = "ProfileMain"
	ScreenManagerDashboard = "ManagerDashboard"
	ScreenAnalytics        = "Analytics"
	ScreenAdminDashboard   = "AdminDashboard"
	ScreenUserManagement   = "UserManagement"
)

// Tab is one bottom tab and the stack of screens behind it. The first
// screen is the tab's initial route.
type Tab struct {
	Name    string   `json:"name"`
	Screens []string `json:"screens"`
}

// Tree is the complete navigation a session may mount.
type Tree struct {
	Role domain.Role `json:"role"`
	Tabs []Tab       `json:"tabs"`
}

// Screens lists every screen reachable in the tree, without duplicates.
func (t Tree) Screens() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tab := range t.Tabs {
		for _, s := range tab.Screens {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Allows reports whether screen is reachable in the tree.
func (t Tree) Allows(screen string) bool {
	for _, tab := range t.Tabs {
		for _, s := range tab.Screens {
			if s == screen {
				return true
			}
		}
	}
	return false
}

var profileTab = Tab{Name: "Profile", Screens: []string{ScreenProfileMain, ScreenSettings}}

// ForRole returns the tree for role. Every Role has a tree; a value
// outside the closed set is a programming error and panics.
func ForRole(role domain.Role) Tree {
	switch role {
	case domain.RoleEmployee:
		return Tree{Role: role, Tabs: []Tab{
			{Name: "Home", Screens: []string{
				ScreenDashboard, ScreenCreateIssue, ScreenIssueList,
				ScreenIssueDetails, ScreenNotifications, ScreenSettings,
			}},
			{Name: "MyIssues", Screens: []string{ScreenIssueList, ScreenIssueDetails}},
			cloneTab(profileTab),
		}}
	case domain.RoleManager:
		return Tree{Role: role, Tabs: []Tab{
			{Name: "Manager", Screens: []string{
				ScreenManagerDashboard, ScreenIssueList, ScreenIssueDetails,
				ScreenAnalytics, ScreenNotifications, ScreenSettings,
			}},
			{Name: "AllIssues", Screens: []string{ScreenIssueList, ScreenIssueDetails}},
			cloneTab(profileTab),
		}}
	case domain.RoleAdmin:
		return Tree{Role: role, Tabs: []Tab{
			{Name: "Admin", Screens: []string{
				ScreenAdminDashboard, ScreenUserManagement, ScreenAnalytics,
				ScreenNotifications, ScreenSettings, ScreenIssueList, ScreenIssueDetails,
			}},
			{Name: "GlobalIssues", Screens: []string{ScreenIssueList}},
			cloneTab(profileTab),
		}}
	}
	panic(fmt.Sprintf("nav: no tree for role %q", role))
}

func cloneTab(t Tab) Tab {
	return Tab{Name: t.Name, Screens: append([]string(nil), t.Screens...)}
}

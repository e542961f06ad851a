package domain

import "strings"

// Role is the closed set of user roles. The zero value is not a valid role;
// use ParseRole to obtain one from stored data.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a stored role value onto a Role. Matching is
// case-insensitive and anything unrecognised (including "") is an employee.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	default:
		return RoleEmployee
	}
}

// LookupRole is the strict variant of ParseRole used for admin input.
func LookupRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// IsStaff reports whether the role sees the global issue list.
func (r Role) IsStaff() bool {
	return r == RoleManager || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

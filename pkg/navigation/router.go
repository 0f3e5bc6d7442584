// Package navigation resolves where an authenticated (or anonymous) user lands.
//
// Role strings are parsed exactly once into a closed Role variant; every caller
// switches on that variant instead of comparing strings.
package navigation

import "strings"

// Role is the closed set of roles the app routes on.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleParent
)

// String returns the canonical lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleParent:
		return "parent"
	default:
		return "unknown"
	}
}

// ParseRole maps a raw role string onto the Role variant, case-insensitively.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin
	case "parent":
		return RoleParent
	default:
		return RoleUnknown
	}
}

// Destination is a top-level screen set.
type Destination string

const (
	DestinationLogin           Destination = "login"
	DestinationAdminDashboard  Destination = "admin_dashboard"
	DestinationParentDashboard Destination = "parent_dashboard"
)

// Resolve picks the landing destination. Unknown roles fall back to login.
func Resolve(sessionPresent bool, role string) Destination {
	if !sessionPresent {
		return DestinationLogin
	}
	return ForRole(ParseRole(role))
}

// ForRole returns the dashboard for an authenticated role.
func ForRole(role Role) Destination {
	switch role {
	case RoleAdmin:
		return DestinationAdminDashboard
	case RoleParent:
		return DestinationParentDashboard
	default:
		return DestinationLogin
	}
}

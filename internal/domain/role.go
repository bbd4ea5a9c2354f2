package domain

import "strings"

// Role enumerates the roles a caller or a managed user can hold.
type Role string

const (
	// RoleNone marks a caller whose token carries no role claim.
	RoleNone  Role = ""
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes raw input into a Role. Unknown values map to RoleNone and false.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStaff:
		return RoleStaff, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return RoleNone, false
	}
}

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

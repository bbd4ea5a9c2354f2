package domain

// Caller is the verified identity of whoever invoked a command. It is built by the
// transport layer from a verified token and never from request payloads.
type Caller struct {
	Authenticated bool
	ID            string
	Role          Role
}

// Anonymous returns a caller without a verified identity.
func Anonymous() Caller {
	return Caller{}
}

// NewCaller returns an authenticated caller.
func NewCaller(id string, role Role) Caller {
	return Caller{Authenticated: id != "", ID: id, Role: role}
}

// IsAdmin reports whether the caller holds the admin role claim.
func (c Caller) IsAdmin() bool {
	return c.Authenticated && c.Role == RoleAdmin
}

// System is the caller used for reactive triggers raised by the platform itself.
func System() Caller {
	return Caller{Authenticated: true, ID: "system"}
}

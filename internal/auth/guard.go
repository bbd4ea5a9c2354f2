package auth

import (
	"github.com/spec-kit/user-admin-service/internal/domain"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

// Requirement names what a command demands from its caller.
type Requirement int

const (
	// RequireAuthenticated accepts any verified caller.
	RequireAuthenticated Requirement = iota
	// RequireAdmin accepts callers holding the admin role claim.
	RequireAdmin
	// RequireSelf accepts callers acting on their own identity.
	RequireSelf
	// RequireNone accepts anyone, including system triggers.
	RequireNone
)

func (r Requirement) String() string {
	switch r {
	case RequireAuthenticated:
		return "authenticated"
	case RequireAdmin:
		return "admin"
	case RequireSelf:
		return "self"
	case RequireNone:
		return "none"
	default:
		return "unknown"
	}
}

// Authorize checks the caller against a requirement. targetID is only read for RequireSelf.
func Authorize(caller domain.Caller, req Requirement, targetID string) error {
	if req == RequireNone {
		return nil
	}
	if !caller.Authenticated || caller.ID == "" {
		return apperrors.NewUnauthenticated("authentication required")
	}
	switch req {
	case RequireAuthenticated:
		return nil
	case RequireAdmin:
		if !caller.IsAdmin() {
			return apperrors.NewPermissionDenied("admin role required")
		}
		return nil
	case RequireSelf:
		if targetID == "" || caller.ID != targetID {
			return apperrors.NewPermissionDenied("callers may only change their own account")
		}
		return nil
	default:
		return apperrors.NewPermissionDenied("unsupported authorization requirement")
	}
}

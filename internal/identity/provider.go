package identity

import (
	"context"

	"github.com/spec-kit/user-admin-service/internal/domain"
)

// NewIdentity is the input of CreateIdentity.
type NewIdentity struct {
	Email       string
	Password    string
	DisplayName string
	PhoneNumber string
}

// IdentityUpdate lists identity fields to change. Empty strings are left untouched.
// A nil PhoneNumber is left untouched and a pointer to "" removes the stored number.
type IdentityUpdate struct {
	DisplayName string
	PhoneNumber *string
	Password    string
}

// Provider is the identity provider as seen by the command layer. Implementations classify
// provider failures into errorutil codes: duplicate email is ALREADY_EXISTS, unknown id is
// NOT_FOUND, rejected input is INVALID_ARGUMENT and anything else is INTERNAL.
type Provider interface {
	CreateIdentity(ctx context.Context, in NewIdentity) (string, error)
	GetIdentity(ctx context.Context, id string) (domain.IdentityRecord, error)
	UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) error
	DeleteIdentity(ctx context.Context, id string) error
	SetRoleClaim(ctx context.Context, id string, role domain.Role) error
}

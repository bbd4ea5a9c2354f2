package profile

import (
	"context"

	"github.com/spec-kit/user-admin-service/internal/domain"
)

// Store persists profile documents keyed by identity id.
// DeleteProfile of a missing document is not an error; UpdateProfile of one is NOT_FOUND.
type Store interface {
	PutProfile(ctx context.Context, id string, p domain.Profile) error
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error
	DeleteProfile(ctx context.Context, id string) error
}

package command_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/spec-kit/user-admin-service/internal/domain"
	"github.com/spec-kit/user-admin-service/internal/identity"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

type storedIdentity struct {
	email       string
	password    string
	displayName string
	phoneNumber string
	role        domain.Role
}

// fakeProvider is an in-memory identity provider with per-operation fault injection.
type fakeProvider struct {
	mu      sync.Mutex
	users   map[string]*storedIdentity
	nextID  int
	calls   []string
	failing map[string]error

	// dropRoleClaims accepts SetRoleClaim without storing it, like a realm that
	// refuses unmanaged attributes.
	dropRoleClaims bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{users: map[string]*storedIdentity{}, failing: map[string]error{}}
}

func (f *fakeProvider) failOn(op string, err error) { f.failing[op] = err }

func (f *fakeProvider) record(op string) error {
	f.calls = append(f.calls, op)
	return f.failing[op]
}

func (f *fakeProvider) seed(id, email string, role domain.Role) {
	f.users[id] = &storedIdentity{email: email, displayName: email, role: role}
}

func (f *fakeProvider) CreateIdentity(_ context.Context, in identity.NewIdentity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create"); err != nil {
		return "", err
	}
	for _, u := range f.users {
		if u.email == in.Email {
			return "", apperrors.NewAlreadyExists("email already in use", nil)
		}
	}
	f.nextID++
	id := fmt.Sprintf("uid-%d", f.nextID)
	f.users[id] = &storedIdentity{email: in.Email, password: in.Password, displayName: in.DisplayName, phoneNumber: in.PhoneNumber}
	return id, nil
}

func (f *fakeProvider) GetIdentity(_ context.Context, id string) (domain.IdentityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.IdentityRecord{}, apperrors.NewNotFound("user", nil)
	}
	return domain.IdentityRecord{
		ID:          id,
		Email:       u.email,
		DisplayName: u.displayName,
		PhoneNumber: u.phoneNumber,
		Claims:      map[string]string{"role": u.role.String()},
	}, nil
}

func (f *fakeProvider) UpdateIdentity(_ context.Context, id string, update identity.IdentityUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("update"); err != nil {
		return err
	}
	u, ok := f.users[id]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	if update.DisplayName != "" {
		u.displayName = update.DisplayName
	}
	if update.PhoneNumber != nil {
		u.phoneNumber = *update.PhoneNumber
	}
	if update.Password != "" {
		u.password = update.Password
	}
	return nil
}

func (f *fakeProvider) DeleteIdentity(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete"); err != nil {
		return err
	}
	if _, ok := f.users[id]; !ok {
		return apperrors.NewNotFound("user", nil)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeProvider) SetRoleClaim(_ context.Context, id string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("set_role"); err != nil {
		return err
	}
	u, ok := f.users[id]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	if !f.dropRoleClaims {
		u.role = role
	}
	return nil
}

// fakeStore is an in-memory profile store with per-operation fault injection.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	calls    []string
	failing  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: map[string]domain.Profile{}, failing: map[string]error{}}
}

func (f *fakeStore) failOn(op string, err error) { f.failing[op] = err }

func (f *fakeStore) record(op string) error {
	f.calls = append(f.calls, op)
	return f.failing[op]
}

func (f *fakeStore) PutProfile(_ context.Context, id string, p domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("put"); err != nil {
		return err
	}
	f.profiles[id] = p
	return nil
}

func (f *fakeStore) stored(id string) (domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return domain.Profile{}, apperrors.NewNotFound("profile", nil)
	}
	return p, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("update"); err != nil {
		return err
	}
	p, ok := f.profiles[id]
	if !ok {
		return apperrors.NewNotFound("profile", nil)
	}
	p.Name = update.Name
	p.Department = update.Department
	p.Role = update.Role
	p.PhoneNumber = update.PhoneNumber
	f.profiles[id] = p
	return nil
}

func (f *fakeStore) DeleteProfile(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete"); err != nil {
		return err
	}
	delete(f.profiles, id)
	return nil
}

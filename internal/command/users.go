package command

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/auth"
	"github.com/spec-kit/user-admin-service/internal/domain"
	"github.com/spec-kit/user-admin-service/internal/events"
	"github.com/spec-kit/user-admin-service/internal/identity"
	"github.com/spec-kit/user-admin-service/internal/validation"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

const roleClaim = "role"

// CreateUser registers the identity, sets its role claim and stores the profile.
// If a step after identity creation fails, the new identity is deleted again.
func (s *Service) CreateUser(ctx context.Context, caller domain.Caller, req domain.CreateUserRequest) (res Result, err error) {
	ctx, end := s.begin(ctx, "create_user")
	defer end(&err)

	if err = auth.Authorize(caller, s.createPolicy, ""); err != nil {
		return Result{}, err
	}
	if req, err = validation.CreateUser(req); err != nil {
		return Result{}, err
	}

	var id string
	plan := Plan{Name: "create_user", Steps: []Step{
		{
			Name: "create_identity",
			Do: func(ctx context.Context) error {
				newID, err := s.identity.CreateIdentity(ctx, identity.NewIdentity{
					Email:       req.Email,
					Password:    req.Password,
					DisplayName: req.Name,
					PhoneNumber: req.PhoneNumber,
				})
				id = newID
				return err
			},
			Compensate: func(ctx context.Context) error {
				return ignoreNotFound(s.identity.DeleteIdentity(ctx, id))
			},
		},
		{
			Name: "set_role_claim",
			Do: func(ctx context.Context) error {
				return s.applyRoleClaim(ctx, id, req.Role)
			},
		},
		{
			Name: "put_profile",
			Do: func(ctx context.Context) error {
				return s.profiles.PutProfile(ctx, id, domain.Profile{
					Name:        req.Name,
					Email:       req.Email,
					PhoneNumber: req.PhoneNumber,
					Department:  req.Department,
					Role:        req.Role,
				})
			},
		},
	}}
	if err = s.runner.Run(ctx, plan); err != nil {
		return Result{}, err
	}

	s.logger.Info("user created", zap.String("identity_id", id), zap.String("actor_id", caller.ID), zap.String("role", req.Role.String()))
	s.publish(ctx, events.New(events.EventUserCreated, id, caller, events.UserCreatedPayload{
		Email:      req.Email,
		Department: req.Department,
		Role:       req.Role,
	}))
	return Result{Success: true, Message: fmt.Sprintf("user %s (%s) created", req.Name, req.Email)}, nil
}

// UpdateUser changes display fields and role on both records. An empty phone number clears
// the stored one. Updates are last-writer-wins and safe to retry, so nothing is compensated.
func (s *Service) UpdateUser(ctx context.Context, caller domain.Caller, req domain.UpdateUserRequest) (res Result, err error) {
	ctx, end := s.begin(ctx, "update_user")
	defer end(&err)

	if err = auth.Authorize(caller, auth.RequireAdmin, ""); err != nil {
		return Result{}, err
	}
	if req, err = validation.UpdateUser(req); err != nil {
		return Result{}, err
	}

	plan := Plan{Name: "update_user", Steps: []Step{
		{
			Name: "update_identity",
			Do: func(ctx context.Context) error {
				return s.identity.UpdateIdentity(ctx, req.ID, identity.IdentityUpdate{
					DisplayName: req.Name,
					PhoneNumber: &req.PhoneNumber,
				})
			},
		},
		{
			Name: "set_role_claim",
			Do: func(ctx context.Context) error {
				return s.applyRoleClaim(ctx, req.ID, req.Role)
			},
		},
		{
			Name: "update_profile",
			Do: func(ctx context.Context) error {
				return s.profiles.UpdateProfile(ctx, req.ID, domain.ProfileUpdate{
					Name:        req.Name,
					PhoneNumber: req.PhoneNumber,
					Department:  req.Department,
					Role:        req.Role,
				})
			},
		},
	}}
	if err = s.runner.Run(ctx, plan); err != nil {
		return Result{}, err
	}

	s.logger.Info("user updated", zap.String("identity_id", req.ID), zap.String("actor_id", caller.ID))
	s.publish(ctx, events.New(events.EventUserUpdated, req.ID, caller, events.UserUpdatedPayload{
		Department: req.Department,
		Role:       req.Role,
	}))
	return Result{Success: true, Message: fmt.Sprintf("user %s updated", req.Name)}, nil
}

// DeleteUser removes the identity and then the profile. Admins cannot delete themselves.
// When the identity is already gone the profile is still removed and NOT_FOUND is returned.
func (s *Service) DeleteUser(ctx context.Context, caller domain.Caller, req domain.DeleteUserRequest) (res Result, err error) {
	ctx, end := s.begin(ctx, "delete_user")
	defer end(&err)

	if err = auth.Authorize(caller, auth.RequireAdmin, ""); err != nil {
		return Result{}, err
	}
	if req, err = validation.DeleteUser(req); err != nil {
		return Result{}, err
	}
	if req.ID == caller.ID {
		return Result{}, apperrors.NewPermissionDenied("admins cannot delete their own account")
	}

	identityMissing := false
	plan := Plan{Name: "delete_user", Steps: []Step{
		{
			Name: "delete_identity",
			Do: func(ctx context.Context) error {
				err := s.identity.DeleteIdentity(ctx, req.ID)
				if apperrors.Is(err, apperrors.CodeNotFound) {
					identityMissing = true
					return nil
				}
				return err
			},
		},
		{
			Name: "delete_profile",
			Do: func(ctx context.Context) error {
				return s.profiles.DeleteProfile(ctx, req.ID)
			},
		},
	}}
	if err = s.runner.Run(ctx, plan); err != nil {
		return Result{}, err
	}
	if identityMissing {
		return Result{}, apperrors.NewNotFound("user", map[string]any{"id": req.ID})
	}

	s.logger.Info("user deleted", zap.String("identity_id", req.ID), zap.String("actor_id", caller.ID))
	s.publish(ctx, events.New(events.EventUserDeleted, req.ID, caller, nil))
	return Result{Success: true, Message: fmt.Sprintf("user %s deleted", req.ID)}, nil
}

// UpdatePassword lets a caller change their own password. Ownership is checked before the
// payload so a foreign id is refused whatever the password looks like.
func (s *Service) UpdatePassword(ctx context.Context, caller domain.Caller, req domain.UpdatePasswordRequest) (res PasswordResult, err error) {
	ctx, end := s.begin(ctx, "update_password")
	defer end(&err)

	if err = auth.Authorize(caller, auth.RequireSelf, req.ID); err != nil {
		return PasswordResult{}, err
	}
	if req, err = validation.UpdatePassword(req); err != nil {
		return PasswordResult{}, err
	}

	plan := Plan{Name: "update_password", Steps: []Step{
		{
			Name: "update_identity",
			Do: func(ctx context.Context) error {
				return s.identity.UpdateIdentity(ctx, req.ID, identity.IdentityUpdate{Password: req.Password})
			},
		},
	}}
	if err = s.runner.Run(ctx, plan); err != nil {
		return PasswordResult{}, err
	}

	s.logger.Info("password updated", zap.String("identity_id", req.ID))
	s.publish(ctx, events.New(events.EventUserPasswordUpdated, req.ID, caller, nil))
	return PasswordResult{Status: StatusPasswordUpdated}, nil
}

// OnProfileDeleted removes the identity whose profile document was deleted. An identity that
// is already gone counts as cleaned up. Other failures are returned to the trigger's owner.
func (s *Service) OnProfileDeleted(ctx context.Context, id string) (err error) {
	ctx, end := s.begin(ctx, "on_profile_deleted")
	defer end(&err)

	caller := domain.System()
	if err = auth.Authorize(caller, auth.RequireNone, id); err != nil {
		return err
	}
	if id == "" {
		return apperrors.NewInvalidArgument("id", "id is required")
	}

	alreadyAbsent := false
	plan := Plan{Name: "on_profile_deleted", Steps: []Step{
		{
			Name: "delete_identity",
			Do: func(ctx context.Context) error {
				err := s.identity.DeleteIdentity(ctx, id)
				if apperrors.Is(err, apperrors.CodeNotFound) {
					alreadyAbsent = true
					return nil
				}
				return err
			},
		},
	}}
	if err = s.runner.Run(ctx, plan); err != nil {
		s.logger.Error("identity cleanup failed", zap.String("identity_id", id), zap.Error(err))
		return err
	}

	s.logger.Info("identity cleaned up", zap.String("identity_id", id), zap.Bool("already_absent", alreadyAbsent))
	s.publish(ctx, events.New(events.EventIdentityCleanedUp, id, caller, events.IdentityCleanedUpPayload{AlreadyAbsent: alreadyAbsent}))
	return nil
}

// applyRoleClaim sets the role claim and reads it back. The identity provider may accept
// the write and still drop an attribute its realm is not configured to store.
func (s *Service) applyRoleClaim(ctx context.Context, id string, role domain.Role) error {
	if err := s.identity.SetRoleClaim(ctx, id, role); err != nil {
		return err
	}
	rec, err := s.identity.GetIdentity(ctx, id)
	if err != nil {
		return err
	}
	if got := rec.Claims[roleClaim]; got != role.String() {
		s.logger.Error("role claim not stored by identity provider",
			zap.String("identity_id", id),
			zap.String("want", role.String()),
			zap.String("got", got),
		)
		return apperrors.NewInternal("role claim was not stored by the identity provider", nil)
	}
	return nil
}

func ignoreNotFound(err error) error {
	if apperrors.Is(err, apperrors.CodeNotFound) {
		return nil
	}
	return err
}

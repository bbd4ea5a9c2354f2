package command

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/auth"
	"github.com/spec-kit/user-admin-service/internal/events"
	"github.com/spec-kit/user-admin-service/internal/identity"
	"github.com/spec-kit/user-admin-service/internal/observability"
	"github.com/spec-kit/user-admin-service/internal/profile"
)

// Create user policies.
const (
	CreatePolicyAdmin         = "admin"
	CreatePolicyAuthenticated = "authenticated"
)

// Result is the response of createUser, updateUser and deleteUser.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PasswordResult is the response of updatePassword.
type PasswordResult struct {
	Status string `json:"status"`
}

// StatusPasswordUpdated is the status reported after a successful password change.
const StatusPasswordUpdated = "password_updated"

// Deps bundles the collaborators of Service.
type Deps struct {
	Identity   identity.Provider
	Profiles   profile.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	// CreatePolicy is CreatePolicyAdmin or CreatePolicyAuthenticated.
	CreatePolicy string
}

// Service runs the user admin commands: guard, validate, then identity before profile.
type Service struct {
	identity     identity.Provider
	profiles     profile.Store
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	metrics      *observability.Metrics
	runner       *Runner
	createPolicy auth.Requirement
}

// NewService builds the command service.
func NewService(deps Deps) (*Service, error) {
	if deps.Identity == nil || deps.Profiles == nil {
		return nil, fmt.Errorf("command service requires identity provider and profile store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher(logger)
	}

	var createPolicy auth.Requirement
	switch deps.CreatePolicy {
	case "", CreatePolicyAdmin:
		createPolicy = auth.RequireAdmin
	case CreatePolicyAuthenticated:
		createPolicy = auth.RequireAuthenticated
	default:
		return nil, fmt.Errorf("unknown create user policy %q", deps.CreatePolicy)
	}

	return &Service{
		identity:     deps.Identity,
		profiles:     deps.Profiles,
		dispatcher:   dispatcher,
		logger:       logger,
		metrics:      deps.Metrics,
		runner:       NewRunner(logger, deps.Metrics),
		createPolicy: createPolicy,
	}, nil
}

// CreatePolicy reports the requirement applied to createUser.
func (s *Service) CreatePolicy() auth.Requirement {
	return s.createPolicy
}

// publish emits an event after the command took effect. Listener failures never fail the command.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event listeners failed",
			zap.String("event_type", string(event.Type)),
			zap.String("subject_id", event.SubjectID),
			zap.Error(err))
	}
}

// begin opens the span of a command. The returned func must be deferred with the final error.
func (s *Service) begin(ctx context.Context, name string) (context.Context, func(*error)) {
	ctx, span := observability.StartSpan(ctx, "command."+name)
	return ctx, func(errp *error) {
		observability.SetError(span, *errp)
		span.End()
		s.metrics.RecordCommand(name, *errp)
	}
}

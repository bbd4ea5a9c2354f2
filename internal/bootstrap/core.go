// Package bootstrap wires the dependencies shared by the api and worker processes.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/audit"
	"github.com/spec-kit/user-admin-service/internal/command"
	"github.com/spec-kit/user-admin-service/internal/config"
	"github.com/spec-kit/user-admin-service/internal/events"
	"github.com/spec-kit/user-admin-service/internal/identity"
	"github.com/spec-kit/user-admin-service/internal/observability"
	"github.com/spec-kit/user-admin-service/internal/persistence"
	"github.com/spec-kit/user-admin-service/internal/profile"
)

// Core holds the connected stores and the command service.
type Core struct {
	Metrics    *observability.Metrics
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Mongo      *persistence.Mongo
	Dispatcher events.Dispatcher
	Identity   *identity.KeycloakProvider
	Profiles   *profile.MongoStore
	Commands   *command.Service

	shutdownTracing func(context.Context) error
}

// NewCore connects every store and builds the command service. On error, whatever was
// already opened is closed again.
func NewCore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Core, err error) {
	core := &Core{Metrics: observability.NewMetrics()}
	defer func() {
		if err != nil {
			core.Close(context.WithoutCancel(ctx))
		}
	}()

	core.shutdownTracing, err = observability.SetupTracing(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	core.Postgres, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pool := core.Postgres.PoolHandle(); pool != nil && cfg.Postgres.RunMigrations {
		if err = persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	core.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)

	core.Mongo, err = persistence.NewMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	core.Dispatcher = events.NewInMemoryDispatcher(logger)
	var auditRepo audit.Repository
	if pool := core.Postgres.PoolHandle(); pool != nil {
		auditRepo = audit.NewRepository(pool)
	}
	audit.NewListener(core.Dispatcher, auditRepo, logger).RegisterHandlers()

	core.Identity = identity.NewKeycloakProvider(keycloakConfig(cfg.Keycloak), logger)
	core.Profiles = profile.NewMongoStore(core.Mongo.Profiles(), logger)

	core.Commands, err = command.NewService(command.Deps{
		Identity:     core.Identity,
		Profiles:     core.Profiles,
		Dispatcher:   core.Dispatcher,
		Logger:       logger,
		Metrics:      core.Metrics,
		CreatePolicy: cfg.Policy.CreateUser,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("create user policy", zap.String("requirement", core.Commands.CreatePolicy().String()))

	return core, nil
}

// Close releases every opened resource.
func (c *Core) Close(ctx context.Context) {
	if c.Mongo != nil {
		c.Mongo.Close(ctx)
	}
	c.Redis.Close()
	c.Postgres.Close()
	if c.shutdownTracing != nil {
		_ = c.shutdownTracing(ctx)
	}
}

func keycloakConfig(cfg config.KeycloakConfig) identity.KeycloakConfig {
	return identity.KeycloakConfig{
		URL:   cfg.URL,
		Realm: cfg.Realm,
		Token: identity.AdminTokenConfig{
			KeycloakURL:  cfg.URL,
			Realm:        cfg.AdminRealm,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Username:     cfg.Username,
			Password:     cfg.Password,
			Timeout:      cfg.Timeout(),
		},
	}
}

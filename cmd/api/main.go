package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/user-admin-service/internal/api/http"
	"github.com/spec-kit/user-admin-service/internal/api/http/handlers"
	"github.com/spec-kit/user-admin-service/internal/auth"
	"github.com/spec-kit/user-admin-service/internal/bootstrap"
	"github.com/spec-kit/user-admin-service/internal/config"
	"github.com/spec-kit/user-admin-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, err := bootstrap.NewCore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}

	verifier, closeVerifier, err := newVerifier(cfg.Auth, logger)
	if err != nil {
		logger.Fatal("failed to init token verifier", zap.Error(err))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, core.Metrics, cfg.App.RequestTimeout())

	checks := []handlers.Check{
		{Name: "redis", Ping: core.Redis.Ping},
		{Name: "mongo", Ping: core.Mongo.Ping},
	}
	if core.Postgres.PoolHandle() != nil {
		checks = append(checks, handlers.Check{Name: "postgres", Ping: core.Postgres.Ping})
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Users:          handlers.NewUsersHandler(core.Commands),
		AuthMiddleware: auth.NewAuthMiddleware(verifier, logger),
		Metrics:        core.Metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	_ = closeVerifier()
	core.Close(shutdownCtx)
}

// newVerifier prefers the identity provider's JWKS and falls back to the shared HS256 secret.
func newVerifier(cfg config.AuthConfig, logger *zap.Logger) (auth.Verifier, func() error, error) {
	if cfg.JWKSURL != "" {
		v, err := auth.NewJWKSVerifier(auth.JWKSConfig{
			JWKSURL:   cfg.JWKSURL,
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			RoleClaim: cfg.RoleClaim,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	}
	logger.Warn("AUTH_JWKS_URL not set; verifying caller tokens with the shared HS256 secret")
	return auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes), func() error { return nil }, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/domain"
)

// JWKS verification errors.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingSubject  = errors.New("missing subject claim")
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
)

// JWKSConfig configures verification of identity-provider issued tokens.
type JWKSConfig struct {
	JWKSURL         string
	Issuer          string
	Audience        string
	RoleClaim       string
	Leeway          time.Duration
	RefreshInterval time.Duration
}

const (
	defaultJWKSLeeway   = 30 * time.Second
	defaultJWKSRefresh  = time.Hour
	defaultRoleClaimKey = "role"
)

// JWKSVerifier validates RS/ES signed tokens against a remote key set.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	cfg    JWKSConfig
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewJWKSVerifier fetches the key set and keeps it refreshed in the background until Close.
func NewJWKSVerifier(cfg JWKSConfig, logger *zap.Logger) (*JWKSVerifier, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("%w: JWKS URL is required", ErrJWKSFetchFailed)
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = defaultJWKSLeeway
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = defaultJWKSRefresh
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = defaultRoleClaimKey
	}

	ctx, cancel := context.WithCancel(context.Background())

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Ctx:             ctx,
		RefreshInterval: cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("failed to refresh JWKS", zap.Error(err))
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	jwks, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	logger.Info("jwks verifier ready", zap.String("jwks_url", cfg.JWKSURL))
	return &JWKSVerifier{jwks: jwks, cfg: cfg, logger: logger, cancel: cancel}, nil
}

// Verify implements Verifier.
func (v *JWKSVerifier) Verify(_ context.Context, tokenString string) (domain.Caller, error) {
	if tokenString == "" {
		return domain.Anonymous(), ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc, opts...)
	if err != nil {
		return domain.Anonymous(), fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Anonymous(), ErrInvalidToken
	}
	return CallerFromClaims(claims, v.cfg.RoleClaim)
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() error {
	if v.cancel != nil {
		v.cancel()
	}
	return nil
}

// CallerFromClaims maps raw claims to a Caller. The custom role claim wins; otherwise
// realm_access.roles is searched, admin taking precedence over staff.
func CallerFromClaims(claims jwt.MapClaims, roleClaim string) (domain.Caller, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Anonymous(), ErrMissingSubject
	}

	if raw, ok := claims[roleClaim].(string); ok {
		if role, valid := domain.ParseRole(raw); valid {
			return domain.NewCaller(sub, role), nil
		}
	}

	role := domain.RoleNone
	if realmAccess, ok := claims["realm_access"].(map[string]any); ok {
		if roles, ok := realmAccess["roles"].([]any); ok {
			for _, r := range roles {
				name, _ := r.(string)
				parsed, valid := domain.ParseRole(name)
				if !valid {
					continue
				}
				if parsed == domain.RoleAdmin {
					role = parsed
					break
				}
				role = parsed
			}
		}
	}
	return domain.NewCaller(sub, role), nil
}

package auth_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/auth"
	"github.com/spec-kit/user-admin-service/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 5)

	token, exp, err := tm.GenerateToken("uid-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	caller, err := tm.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.NewCaller("uid-1", domain.RoleAdmin), caller)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 5)

	t.Run("wrong secret", func(t *testing.T) {
		other := auth.NewTokenManager("other-secret", 5)
		token, _, err := other.GenerateToken("uid-1", domain.RoleAdmin)
		require.NoError(t, err)

		caller, err := tm.Verify(context.Background(), token)
		assert.Error(t, err)
		assert.False(t, caller.Authenticated)
	})

	t.Run("expired", func(t *testing.T) {
		claims := &auth.Claims{
			Role: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "uid-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = tm.Verify(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("unknown role claim becomes no role", func(t *testing.T) {
		claims := &auth.Claims{
			Role: "owner",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "uid-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		caller, err := tm.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.True(t, caller.Authenticated)
		assert.Equal(t, domain.RoleNone, caller.Role)
	})
}

func TestCallerFromClaims(t *testing.T) {
	t.Run("custom role claim", func(t *testing.T) {
		caller, err := auth.CallerFromClaims(jwt.MapClaims{"sub": "u", "role": "staff"}, "role")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleStaff, caller.Role)
	})

	t.Run("realm roles fallback prefers admin", func(t *testing.T) {
		claims := jwt.MapClaims{
			"sub":          "u",
			"realm_access": map[string]any{"roles": []any{"offline_access", "staff", "admin"}},
		}
		caller, err := auth.CallerFromClaims(claims, "role")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, caller.Role)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := auth.CallerFromClaims(jwt.MapClaims{"role": "admin"}, "role")
		assert.ErrorIs(t, err, auth.ErrMissingSubject)
	})
}

func TestNewJWKSVerifier_RequiresURL(t *testing.T) {
	_, err := auth.NewJWKSVerifier(auth.JWKSConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, auth.ErrJWKSFetchFailed)
}

func TestAuthMiddleware(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 5)
	mw := auth.NewAuthMiddleware(tm, zap.NewNop())

	app := fiber.New()
	app.Get("/whoami", mw.Handle, func(c *fiber.Ctx) error {
		caller := auth.CallerFromContext(c)
		return c.JSON(fiber.Map{"authenticated": caller.Authenticated, "id": caller.ID, "role": caller.Role})
	})

	token, _, err := tm.GenerateToken("uid-7", domain.RoleStaff)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "valid token", header: "Bearer " + token, want: `{"authenticated":true,"id":"uid-7","role":"staff"}`},
		{name: "no header", header: "", want: `{"authenticated":false,"id":"","role":""}`},
		{name: "garbage token", header: "Bearer nope", want: `{"authenticated":false,"id":"","role":""}`},
		{name: "wrong scheme", header: "Basic " + token, want: `{"authenticated":false,"id":"","role":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(body))
		})
	}
}

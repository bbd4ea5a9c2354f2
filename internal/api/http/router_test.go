package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/user-admin-service/internal/api/http"
	"github.com/spec-kit/user-admin-service/internal/api/http/handlers"
	"github.com/spec-kit/user-admin-service/internal/auth"
	"github.com/spec-kit/user-admin-service/internal/command"
	"github.com/spec-kit/user-admin-service/internal/domain"
	"github.com/spec-kit/user-admin-service/internal/observability"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

const testSecret = "test-secret"

type stubCommands struct {
	caller     domain.Caller
	create     domain.CreateUserRequest
	update     domain.UpdateUserRequest
	deleteReq  domain.DeleteUserRequest
	password   domain.UpdatePasswordRequest
	err        error
	panicOnHit bool
	// openCreate switches createUser to the authenticated policy.
	openCreate bool
}

func (s *stubCommands) CreatePolicy() auth.Requirement {
	if s.openCreate {
		return auth.RequireAuthenticated
	}
	return auth.RequireAdmin
}

func (s *stubCommands) CreateUser(_ context.Context, caller domain.Caller, req domain.CreateUserRequest) (command.Result, error) {
	if s.panicOnHit {
		panic("boom")
	}
	s.caller, s.create = caller, req
	if s.err != nil {
		return command.Result{}, s.err
	}
	return command.Result{Success: true, Message: "user " + req.Name + " (" + req.Email + ") created"}, nil
}

func (s *stubCommands) UpdateUser(_ context.Context, caller domain.Caller, req domain.UpdateUserRequest) (command.Result, error) {
	s.caller, s.update = caller, req
	if s.err != nil {
		return command.Result{}, s.err
	}
	return command.Result{Success: true, Message: "user " + req.Name + " updated"}, nil
}

func (s *stubCommands) DeleteUser(_ context.Context, caller domain.Caller, req domain.DeleteUserRequest) (command.Result, error) {
	s.caller, s.deleteReq = caller, req
	if s.err != nil {
		return command.Result{}, s.err
	}
	return command.Result{Success: true, Message: "user " + req.ID + " deleted"}, nil
}

func (s *stubCommands) UpdatePassword(_ context.Context, caller domain.Caller, req domain.UpdatePasswordRequest) (command.PasswordResult, error) {
	s.caller, s.password = caller, req
	if s.err != nil {
		return command.PasswordResult{}, s.err
	}
	return command.PasswordResult{Status: command.StatusPasswordUpdated}, nil
}

func newTestApp(t *testing.T, commands *stubCommands, checks ...handlers.Check) (*fiber.App, *auth.TokenManager, *observability.Metrics) {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(testSecret, 15)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("user-admin-service", "test", checks...),
		Users:          handlers.NewUsersHandler(commands),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, logger),
		Metrics:        metrics,
	})
	return app, tokens, metrics
}

func bearer(t *testing.T, tokens *auth.TokenManager, id string, role domain.Role) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(id, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, app *fiber.App, method, path, authz, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func TestCreateUser_ForwardsCallerAndPayload(t *testing.T) {
	commands := &stubCommands{}
	app, tokens, _ := newTestApp(t, commands)

	resp, body := doJSON(t, app, http.MethodPost, "/v1/users", bearer(t, tokens, "admin-1", domain.RoleAdmin),
		`{"email":"a@b.com","password":"secret1","name":"Ann","phoneNumber":"123","department":"Ops","role":"staff"}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "user Ann (a@b.com) created", body["message"])
	assert.Equal(t, domain.NewCaller("admin-1", domain.RoleAdmin), commands.caller)
	assert.Equal(t, domain.CreateUserRequest{
		Email: "a@b.com", Password: "secret1", Name: "Ann", PhoneNumber: "123", Department: "Ops", Role: domain.RoleStaff,
	}, commands.create)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRoutes_PassPathID(t *testing.T) {
	commands := &stubCommands{}
	app, tokens, _ := newTestApp(t, commands)
	authz := bearer(t, tokens, "admin-1", domain.RoleAdmin)

	resp, body := doJSON(t, app, http.MethodPut, "/v1/users/uid-7", authz, `{"name":"Bo","department":"Ops","role":"admin"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user Bo updated", body["message"])
	assert.Equal(t, "uid-7", commands.update.ID)

	resp, body = doJSON(t, app, http.MethodDelete, "/v1/users/uid-8", authz, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user uid-8 deleted", body["message"])
	assert.Equal(t, "uid-8", commands.deleteReq.ID)

	resp, body = doJSON(t, app, http.MethodPut, "/v1/users/admin-1/password", authz, `{"password":"secret2"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "password_updated", body["status"])
	assert.Equal(t, domain.UpdatePasswordRequest{ID: "admin-1", Password: "secret2"}, commands.password)
}

func TestRoutes_InvalidTokenYieldsAnonymousCaller(t *testing.T) {
	commands := &stubCommands{}
	app, _, _ := newTestApp(t, commands)

	doJSON(t, app, http.MethodDelete, "/v1/users/uid-1", "Bearer not-a-token", "")
	assert.Equal(t, domain.Anonymous(), commands.caller)
}

func TestErrorRendering(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "unauthenticated", err: apperrors.NewUnauthenticated("authentication required"), status: http.StatusUnauthorized, code: apperrors.CodeUnauthenticated},
		{name: "permission denied", err: apperrors.NewPermissionDenied("admin role required"), status: http.StatusForbidden, code: apperrors.CodePermissionDenied},
		{name: "invalid argument", err: apperrors.NewInvalidArgument("email", "email format is invalid"), status: http.StatusBadRequest, code: apperrors.CodeInvalidArgument},
		{name: "not found", err: apperrors.NewNotFound("user", map[string]any{"id": "uid-1"}), status: http.StatusNotFound, code: apperrors.CodeNotFound},
		{name: "already exists", err: apperrors.NewAlreadyExists("email already in use", nil), status: http.StatusConflict, code: apperrors.CodeAlreadyExists},
		{name: "unclassified", err: errors.New("db exploded"), status: http.StatusInternalServerError, code: apperrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, _ := newTestApp(t, &stubCommands{err: tt.err})

			resp, body := doJSON(t, app, http.MethodDelete, "/v1/users/uid-1", "", "")
			assert.Equal(t, tt.status, resp.StatusCode)
			errBody, ok := body["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.code, errBody["code"])
			assert.NotContains(t, errBody["message"], "db exploded")
		})
	}
}

func TestErrorRendering_Details(t *testing.T) {
	app, _, _ := newTestApp(t, &stubCommands{err: apperrors.NewInvalidArgument("password", "password must be at least 6 characters")})

	_, body := doJSON(t, app, http.MethodPut, "/v1/users/uid-1/password", "", `{"password":"x"}`)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "password", details["field"])
}

func TestMalformedBody(t *testing.T) {
	commands := &stubCommands{}
	app, tokens, _ := newTestApp(t, commands)
	admin := bearer(t, tokens, "admin-1", domain.RoleAdmin)
	staff := bearer(t, tokens, "staff-1", domain.RoleStaff)

	tests := []struct {
		name   string
		method string
		path   string
		authz  string
		status int
		code   string
	}{
		{name: "create without token", method: http.MethodPost, path: "/v1/users", status: http.StatusUnauthorized, code: apperrors.CodeUnauthenticated},
		{name: "create as staff", method: http.MethodPost, path: "/v1/users", authz: staff, status: http.StatusForbidden, code: apperrors.CodePermissionDenied},
		{name: "create as admin", method: http.MethodPost, path: "/v1/users", authz: admin, status: http.StatusBadRequest, code: apperrors.CodeInvalidArgument},
		{name: "update without token", method: http.MethodPut, path: "/v1/users/uid-1", status: http.StatusUnauthorized, code: apperrors.CodeUnauthenticated},
		{name: "update as staff", method: http.MethodPut, path: "/v1/users/uid-1", authz: staff, status: http.StatusForbidden, code: apperrors.CodePermissionDenied},
		{name: "update as admin", method: http.MethodPut, path: "/v1/users/uid-1", authz: admin, status: http.StatusBadRequest, code: apperrors.CodeInvalidArgument},
		{name: "password for someone else", method: http.MethodPut, path: "/v1/users/other/password", authz: staff, status: http.StatusForbidden, code: apperrors.CodePermissionDenied},
		{name: "own password", method: http.MethodPut, path: "/v1/users/staff-1/password", authz: staff, status: http.StatusBadRequest, code: apperrors.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, tt.method, tt.path, tt.authz, `{"email":`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["error"].(map[string]any)["code"])
		})
	}
	assert.Equal(t, domain.Caller{}, commands.caller, "commands never run on an unparseable body")
}

func TestMalformedBody_AuthenticatedPolicy(t *testing.T) {
	app, tokens, _ := newTestApp(t, &stubCommands{openCreate: true})

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/users", bearer(t, tokens, "staff-1", domain.RoleStaff), `{"email":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	app, _, _ := newTestApp(t, &stubCommands{})

	resp, body := doJSON(t, app, http.MethodGet, "/v1/nothing-here", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, body["error"].(map[string]any)["code"])
}

func TestPanicIsRecovered(t *testing.T) {
	app, _, _ := newTestApp(t, &stubCommands{panicOnHit: true})

	resp, body := doJSON(t, app, http.MethodPost, "/v1/users", "", `{}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, apperrors.CodeInternal, body["error"].(map[string]any)["code"])
}

func TestHealth(t *testing.T) {
	healthy := handlers.Check{Name: "mongo", Ping: func(context.Context) error { return nil }}
	down := handlers.Check{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	app, _, _ := newTestApp(t, &stubCommands{}, healthy)
	resp, body := doJSON(t, app, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])

	resp, body = doJSON(t, app, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["dependencies"].(map[string]any)["mongo"])

	app, _, _ = newTestApp(t, &stubCommands{}, healthy, down)
	resp, body = doJSON(t, app, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "connection refused", details["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t, &stubCommands{})
	doJSON(t, app, http.MethodGet, "/health/live", "", "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}

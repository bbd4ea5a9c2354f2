package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/domain"
)

const callerKey = "auth_caller"

// AuthMiddleware verifies bearer tokens and stores the resulting caller.
// Requests without a valid token carry an anonymous caller; commands decide whether that is enough.
type AuthMiddleware struct {
	verifier Verifier
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(verifier Verifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Handle resolves the caller for the request.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	caller := domain.Anonymous()

	if token, ok := bearerToken(c.Get(fiber.HeaderAuthorization)); ok {
		verified, err := m.verifier.Verify(c.UserContext(), token)
		if err != nil {
			m.logger.Debug("rejected bearer token", zap.String("path", c.Path()), zap.Error(err))
		} else {
			caller = verified
		}
	}

	c.Locals(callerKey, caller)
	return c.Next()
}

// CallerFromContext retrieves the caller resolved by AuthMiddleware.
func CallerFromContext(c *fiber.Ctx) domain.Caller {
	caller, ok := c.Locals(callerKey).(domain.Caller)
	if !ok {
		return domain.Anonymous()
	}
	return caller
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

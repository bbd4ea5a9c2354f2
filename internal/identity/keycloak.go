package identity

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-admin-service/internal/domain"
	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

const (
	attrDisplayName = "displayName"
	attrPhoneNumber = "phoneNumber"
	attrRole        = "role"

	usersPath = "/admin/realms/{realm}/users"
	userPath  = "/admin/realms/{realm}/users/{id}"
)

// KeycloakConfig configures the admin API client.
type KeycloakConfig struct {
	URL   string
	Realm string
	Token AdminTokenConfig
}

// KeycloakProvider implements Provider against the Keycloak Admin REST API.
// The role claim is stored as the "role" user attribute, which a user-attribute
// protocol mapper copies into issued tokens. The realm must accept that attribute:
// either declare "role" in the user profile as editable by admins only, or set the
// unmanaged attribute policy to ADMIN_EDIT. Under the default DISABLED policy
// Keycloak drops the attribute on PUT and still answers 204.
type KeycloakProvider struct {
	client *resty.Client
	tokens *AdminTokenManager
	logger *zap.Logger
}

type userRepresentation struct {
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username,omitempty"`
	Email         string              `json:"email,omitempty"`
	EmailVerified bool                `json:"emailVerified"`
	FirstName     string              `json:"firstName,omitempty"`
	Enabled       bool                `json:"enabled"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
	Credentials   []credential        `json:"credentials,omitempty"`
}

type credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type keycloakError struct {
	Error            string `json:"error"`
	ErrorMessage     string `json:"errorMessage"`
	ErrorDescription string `json:"error_description"`
}

func (e keycloakError) text() string {
	for _, s := range []string{e.ErrorMessage, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// NewKeycloakProvider builds a provider with its own admin token manager.
func NewKeycloakProvider(cfg KeycloakConfig, logger *zap.Logger) *KeycloakProvider {
	if cfg.Token.KeycloakURL == "" {
		cfg.Token.KeycloakURL = cfg.URL
	}
	timeout := cfg.Token.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetPathParam("realm", cfg.Realm)

	return &KeycloakProvider{
		client: client,
		tokens: NewAdminTokenManager(cfg.Token),
		logger: logger,
	}
}

// CreateIdentity registers a new user and returns the id Keycloak assigned to it.
func (p *KeycloakProvider) CreateIdentity(ctx context.Context, in NewIdentity) (string, error) {
	user := userRepresentation{
		Username:  in.Email,
		Email:     in.Email,
		FirstName: in.DisplayName,
		Enabled:   true,
		Attributes: map[string][]string{
			attrDisplayName: {in.DisplayName},
		},
		Credentials: []credential{{Type: "password", Value: in.Password}},
	}
	if in.PhoneNumber != "" {
		user.Attributes[attrPhoneNumber] = []string{in.PhoneNumber}
	}

	resp, err := p.send(ctx, http.MethodPost, usersPath, func(r *resty.Request) *resty.Request {
		return r.SetBody(user)
	})
	if err != nil {
		return "", err
	}

	switch resp.StatusCode() {
	case http.StatusCreated:
	case http.StatusConflict:
		return "", apperrors.NewAlreadyExists("email already in use", map[string]any{"email": in.Email})
	default:
		return "", p.classify(resp, "create identity", "")
	}

	id := path.Base(resp.Header().Get("Location"))
	if id == "" || id == "." || id == "/" {
		return "", apperrors.NewInternal("identity provider returned no id", nil)
	}
	p.logger.Debug("identity created", zap.String("identity_id", id))
	return id, nil
}

// GetIdentity returns the provider's view of a user.
func (p *KeycloakProvider) GetIdentity(ctx context.Context, id string) (domain.IdentityRecord, error) {
	user, err := p.getUser(ctx, id)
	if err != nil {
		return domain.IdentityRecord{}, err
	}

	claims := make(map[string]string, len(user.Attributes))
	for key, values := range user.Attributes {
		if len(values) > 0 {
			claims[key] = values[0]
		}
	}
	return domain.IdentityRecord{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: firstAttr(user.Attributes, attrDisplayName, user.FirstName),
		PhoneNumber: firstAttr(user.Attributes, attrPhoneNumber, ""),
		Claims:      claims,
	}, nil
}

// UpdateIdentity merges profile fields into the user and resets the password when one is given.
func (p *KeycloakProvider) UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) error {
	if update.DisplayName != "" || update.PhoneNumber != nil {
		err := p.modifyUser(ctx, id, func(user *userRepresentation) {
			if update.DisplayName != "" {
				user.FirstName = update.DisplayName
				user.Attributes[attrDisplayName] = []string{update.DisplayName}
			}
			switch {
			case update.PhoneNumber == nil:
			case *update.PhoneNumber == "":
				delete(user.Attributes, attrPhoneNumber)
			default:
				user.Attributes[attrPhoneNumber] = []string{*update.PhoneNumber}
			}
		})
		if err != nil {
			return err
		}
	}

	if update.Password == "" {
		return nil
	}
	cred := credential{Type: "password", Value: update.Password}
	resp, err := p.send(ctx, http.MethodPut, userPath+"/reset-password", func(r *resty.Request) *resty.Request {
		return r.SetPathParam("id", id).SetBody(cred)
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusOK {
		return p.classify(resp, "reset password", id)
	}
	return nil
}

// DeleteIdentity removes the user. An unknown id is NOT_FOUND.
func (p *KeycloakProvider) DeleteIdentity(ctx context.Context, id string) error {
	resp, err := p.send(ctx, http.MethodDelete, userPath, func(r *resty.Request) *resty.Request {
		return r.SetPathParam("id", id)
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusOK {
		return p.classify(resp, "delete identity", id)
	}
	return nil
}

// SetRoleClaim stores role in the user's "role" attribute, keeping other attributes.
func (p *KeycloakProvider) SetRoleClaim(ctx context.Context, id string, role domain.Role) error {
	if !role.Valid() {
		return apperrors.NewInvalidArgument("role", "unknown role "+role.String())
	}
	return p.modifyUser(ctx, id, func(user *userRepresentation) {
		user.Attributes[attrRole] = []string{role.String()}
	})
}

func (p *KeycloakProvider) getUser(ctx context.Context, id string) (*userRepresentation, error) {
	var user userRepresentation
	resp, err := p.send(ctx, http.MethodGet, userPath, func(r *resty.Request) *resty.Request {
		return r.SetPathParam("id", id).SetResult(&user)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, p.classify(resp, "get identity", id)
	}
	if user.Attributes == nil {
		user.Attributes = map[string][]string{}
	}
	return &user, nil
}

// modifyUser reads the current representation, applies mutate and writes it back.
// Keycloak replaces the attribute map as a whole on PUT.
func (p *KeycloakProvider) modifyUser(ctx context.Context, id string, mutate func(*userRepresentation)) error {
	user, err := p.getUser(ctx, id)
	if err != nil {
		return err
	}
	mutate(user)
	user.Credentials = nil

	resp, err := p.send(ctx, http.MethodPut, userPath, func(r *resty.Request) *resty.Request {
		return r.SetPathParam("id", id).SetBody(user)
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusOK {
		return p.classify(resp, "update identity", id)
	}
	return nil
}

// send executes an admin API call. A 401 invalidates the cached admin token and the
// request is sent once more with a fresh one.
func (p *KeycloakProvider) send(ctx context.Context, method, url string, build func(*resty.Request) *resty.Request) (*resty.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := p.tokens.GetToken(ctx)
		if err != nil {
			p.logger.Error("keycloak admin token unavailable", zap.Error(err))
			return nil, apperrors.NewInternal("identity provider unavailable", err)
		}

		resp, err := build(p.client.R().SetContext(ctx).SetAuthToken(token)).
			SetError(&keycloakError{}).
			Execute(method, url)
		if err != nil {
			p.logger.Error("keycloak admin call failed", zap.String("method", method), zap.String("path", url), zap.Error(err))
			return nil, apperrors.NewInternal("identity provider unavailable", err)
		}
		if resp.StatusCode() == http.StatusUnauthorized && attempt == 0 {
			p.tokens.InvalidateToken()
			continue
		}
		return resp, nil
	}
}

func (p *KeycloakProvider) classify(resp *resty.Response, op, id string) error {
	msg := resp.String()
	if kcErr, ok := resp.Error().(*keycloakError); ok && kcErr.text() != "" {
		msg = kcErr.text()
	}

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	case http.StatusConflict:
		return apperrors.NewAlreadyExists(msg, nil)
	case http.StatusBadRequest:
		return apperrors.NewInvalidArgument(badRequestField(msg), msg)
	}

	p.logger.Error("keycloak admin call rejected",
		zap.String("op", op),
		zap.String("identity_id", id),
		zap.Int("status_code", resp.StatusCode()),
		zap.String("body", msg),
	)
	return apperrors.NewInternal(op+" failed", &statusError{status: resp.StatusCode(), body: msg})
}

// badRequestField guesses the offending field from Keycloak's error text,
// e.g. "invalidPasswordMinLengthMessage" or "invalidEmailMessage".
func badRequestField(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "password"):
		return "password"
	case strings.Contains(lower, "email"):
		return "email"
	case strings.Contains(lower, "phone"):
		return "phoneNumber"
	default:
		return ""
	}
}

func firstAttr(attrs map[string][]string, key, fallback string) string {
	if values := attrs[key]; len(values) > 0 && values[0] != "" {
		return values[0]
	}
	return fallback
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return http.StatusText(e.status) + ": " + e.body
}

package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTokenBuffer = 30 * time.Second
	defaultHTTPTimeout = 30 * time.Second
)

// AdminTokenConfig configures how the admin API token is obtained.
type AdminTokenConfig struct {
	KeycloakURL string
	// Realm the admin client authenticates against, usually "master".
	Realm    string
	ClientID string
	// ClientSecret selects the client_credentials grant; otherwise the password grant is used.
	ClientSecret string
	Username     string
	Password     string
	TokenBuffer  time.Duration
	Timeout      time.Duration
}

// AdminTokenManager caches an admin API token and refreshes it shortly before expiry.
type AdminTokenManager struct {
	cfg    AdminTokenConfig
	client *resty.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

type adminTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewAdminTokenManager builds a token manager.
func NewAdminTokenManager(cfg AdminTokenConfig) *AdminTokenManager {
	if cfg.TokenBuffer == 0 {
		cfg.TokenBuffer = defaultTokenBuffer
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	cfg.KeycloakURL = strings.TrimSuffix(cfg.KeycloakURL, "/")

	client := resty.New().
		SetBaseURL(cfg.KeycloakURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &AdminTokenManager{cfg: cfg, client: client}
}

// GetToken returns a valid admin token, fetching a new one when needed.
func (m *AdminTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	if m.fresh() {
		token := m.token
		m.mu.RUnlock()
		return token, nil
	}
	m.mu.RUnlock()

	return m.refresh(ctx)
}

// InvalidateToken drops the cached token so the next GetToken fetches a new one.
func (m *AdminTokenManager) InvalidateToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expiresAt = time.Time{}
}

func (m *AdminTokenManager) fresh() bool {
	return m.token != "" && time.Now().Add(m.cfg.TokenBuffer).Before(m.expiresAt)
}

func (m *AdminTokenManager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// another goroutine may have refreshed while we waited for the lock
	if m.fresh() {
		return m.token, nil
	}

	var body adminTokenResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetPathParam("realm", m.cfg.Realm).
		SetFormData(m.formData()).
		SetResult(&body).
		Post("/realms/{realm}/protocol/openid-connect/token")
	if err != nil {
		return "", fmt.Errorf("admin token request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("admin token request failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("admin token response carried no access_token")
	}

	m.token = body.AccessToken
	m.expiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return m.token, nil
}

func (m *AdminTokenManager) formData() map[string]string {
	data := map[string]string{"client_id": m.cfg.ClientID}
	if m.cfg.ClientSecret != "" {
		data["grant_type"] = "client_credentials"
		data["client_secret"] = m.cfg.ClientSecret
		return data
	}
	data["grant_type"] = "password"
	data["username"] = m.cfg.Username
	data["password"] = m.cfg.Password
	return data
}

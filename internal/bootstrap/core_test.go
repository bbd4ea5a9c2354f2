package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/user-admin-service/internal/config"
)

func TestKeycloakConfig(t *testing.T) {
	got := keycloakConfig(config.KeycloakConfig{
		URL:          "http://kc:8080",
		Realm:        "staff",
		AdminRealm:   "master",
		ClientID:     "admin-cli",
		ClientSecret: "s3cret",
		TimeoutSec:   5,
	})

	assert.Equal(t, "http://kc:8080", got.URL)
	assert.Equal(t, "staff", got.Realm)
	assert.Equal(t, "http://kc:8080", got.Token.KeycloakURL)
	assert.Equal(t, "master", got.Token.Realm)
	assert.Equal(t, "admin-cli", got.Token.ClientID)
	assert.Equal(t, "s3cret", got.Token.ClientSecret)
	assert.Equal(t, 5*time.Second, got.Token.Timeout)
}

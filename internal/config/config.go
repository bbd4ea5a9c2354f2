package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Keycloak KeycloakConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Tracing  TracingConfig
	Policy   PolicyConfig
	Worker   WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds the audit database connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MongoConfig points at the profile document store.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// KeycloakConfig configures the identity provider admin client.
type KeycloakConfig struct {
	URL          string
	Realm        string
	AdminRealm   string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	TimeoutSec   int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how caller tokens are verified. JWKSURL takes precedence over JWTSecret.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	JWKSURL               string
	Issuer                string
	Audience              string
	RoleClaim             string
}

// TracingConfig enables OTLP export when Endpoint is set.
type TracingConfig struct {
	Endpoint string
	Enabled  bool
}

// PolicyConfig holds authorization policy decisions that must stay explicit.
type PolicyConfig struct {
	// CreateUser is "admin" (default) or "authenticated".
	CreateUser string
}

// WorkerConfig tunes the profile deletion worker.
type WorkerConfig struct {
	DedupeTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "user-admin-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
			Database:   getEnv("MONGO_DATABASE", "useradmin"),
			Collection: getEnv("MONGO_PROFILE_COLLECTION", "users"),
		},
		Keycloak: KeycloakConfig{
			URL:          getEnv("KEYCLOAK_URL", "http://127.0.0.1:8090"),
			Realm:        getEnv("KEYCLOAK_REALM", "staff"),
			AdminRealm:   getEnv("KEYCLOAK_ADMIN_REALM", "master"),
			ClientID:     getEnv("KEYCLOAK_CLIENT_ID", "admin-cli"),
			ClientSecret: os.Getenv("KEYCLOAK_CLIENT_SECRET"),
			Username:     os.Getenv("KEYCLOAK_ADMIN_USERNAME"),
			Password:     os.Getenv("KEYCLOAK_ADMIN_PASSWORD"),
			TimeoutSec:   getEnvAsInt("KEYCLOAK_TIMEOUT_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			JWKSURL:               os.Getenv("AUTH_JWKS_URL"),
			Issuer:                os.Getenv("AUTH_ISSUER"),
			Audience:              os.Getenv("AUTH_AUDIENCE"),
			RoleClaim:             getEnv("AUTH_ROLE_CLAIM", "role"),
		},
		Tracing: TracingConfig{
			Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Enabled:  getEnvAsBool("OTEL_ENABLED", true),
		},
		Policy: PolicyConfig{
			CreateUser: strings.ToLower(getEnv("CREATE_USER_POLICY", "admin")),
		},
		Worker: WorkerConfig{
			DedupeTTLMinutes: getEnvAsInt("WORKER_DEDUPE_TTL_MINUTES", 1440),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Policy.CreateUser {
	case "admin", "authenticated":
	default:
		return fmt.Errorf("invalid CREATE_USER_POLICY %q: want admin or authenticated", c.Policy.CreateUser)
	}
	if c.Auth.JWKSURL == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("either AUTH_JWKS_URL or AUTH_JWT_SECRET must be set")
	}
	if c.Keycloak.ClientSecret == "" && c.Keycloak.Username == "" {
		return fmt.Errorf("KEYCLOAK_CLIENT_SECRET or KEYCLOAK_ADMIN_USERNAME must be set")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the admin API timeout.
func (k KeycloakConfig) Timeout() time.Duration {
	if k.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(k.TimeoutSec) * time.Second
}

// DedupeTTL returns how long processed trigger deliveries are remembered.
func (w WorkerConfig) DedupeTTL() time.Duration {
	if w.DedupeTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(w.DedupeTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

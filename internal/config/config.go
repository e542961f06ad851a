package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/issue-service/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Firebase FirebaseConfig
	DocStore DocStoreConfig
	Identity IdentityConfig
	Push     PushConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	EventQueueSize        int
	NotificationWorkers   int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for the local identity
// provider and the bootstrap role list.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// BootstrapRoles assigns roles to specific emails at registration and
	// login. Only populated when AUTH_ALLOW_BOOTSTRAP_ROLES is true.
	BootstrapRoles map[string]domain.Role
}

// FirebaseConfig locates the Firebase project used by the firestore store,
// the firebase identity provider and the fcm relay.
type FirebaseConfig struct {
	ProjectID             string
	CredentialsFile       string
	FirestoreDatabase     string
	FirestoreEmulatorHost string
	AuthEmulatorHost      string
}

// Enabled reports whether a project is configured.
func (f FirebaseConfig) Enabled() bool {
	return f.ProjectID != ""
}

// DocStoreConfig selects the document store backend.
type DocStoreConfig struct {
	Backend string
}

// IdentityConfig selects the identity provider.
type IdentityConfig struct {
	Provider string
}

// PushConfig selects and configures the push relay.
type PushConfig struct {
	Relay             string
	ExpoEndpoint      string
	ExpoAccessToken   string
	TimeoutSeconds    int
	TokenInboxTTLSecs int
}

// Backend and provider names accepted in configuration.
const (
	DocStoreMemory    = "memory"
	DocStorePostgres  = "postgres"
	DocStoreFirestore = "firestore"

	IdentityLocal    = "local"
	IdentityFirebase = "firebase"

	PushLog  = "log"
	PushExpo = "expo"
	PushFCM  = "fcm"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	var bootstrap map[string]domain.Role
	if getEnvAsBool("AUTH_ALLOW_BOOTSTRAP_ROLES", false) {
		bootstrap, err = ParseBootstrapRoles(os.Getenv("AUTH_BOOTSTRAP_ROLES"))
		if err != nil {
			return nil, fmt.Errorf("invalid AUTH_BOOTSTRAP_ROLES: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "issue-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			EventQueueSize:        getEnvAsInt("EVENT_QUEUE_SIZE", 256),
			NotificationWorkers:   getEnvAsInt("NOTIFICATION_WORKERS", 2),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapRoles:        bootstrap,
		},
		Firebase: FirebaseConfig{
			ProjectID:             os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsFile:       os.Getenv("FIREBASE_CREDENTIALS_FILE"),
			FirestoreDatabase:     getEnv("FIRESTORE_DATABASE", "(default)"),
			FirestoreEmulatorHost: os.Getenv("FIRESTORE_EMULATOR_HOST"),
			AuthEmulatorHost:      os.Getenv("FIREBASE_AUTH_EMULATOR_HOST"),
		},
		DocStore: DocStoreConfig{
			Backend: strings.ToLower(getEnv("DOCSTORE_BACKEND", DocStoreMemory)),
		},
		Identity: IdentityConfig{
			Provider: strings.ToLower(getEnv("IDENTITY_PROVIDER", IdentityLocal)),
		},
		Push: PushConfig{
			Relay:             strings.ToLower(getEnv("PUSH_RELAY", PushLog)),
			ExpoEndpoint:      getEnv("PUSH_EXPO_ENDPOINT", "https://exp.host/--/api/v2/push/send"),
			ExpoAccessToken:   os.Getenv("PUSH_EXPO_ACCESS_TOKEN"),
			TimeoutSeconds:    getEnvAsInt("PUSH_TIMEOUT_SECONDS", 10),
			TokenInboxTTLSecs: getEnvAsInt("PUSH_TOKEN_INBOX_TTL_SECONDS", 86400),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DocStore.Backend {
	case DocStoreMemory:
	case DocStorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("DOCSTORE_BACKEND=postgres requires POSTGRES_DSN")
		}
	case DocStoreFirestore:
		if !c.Firebase.Enabled() {
			return fmt.Errorf("DOCSTORE_BACKEND=firestore requires FIREBASE_PROJECT_ID")
		}
	default:
		return fmt.Errorf("unknown DOCSTORE_BACKEND %q", c.DocStore.Backend)
	}

	switch c.Identity.Provider {
	case IdentityLocal:
	case IdentityFirebase:
		if !c.Firebase.Enabled() {
			return fmt.Errorf("IDENTITY_PROVIDER=firebase requires FIREBASE_PROJECT_ID")
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.Identity.Provider)
	}

	switch c.Push.Relay {
	case PushLog, PushExpo:
	case PushFCM:
		if !c.Firebase.Enabled() {
			return fmt.Errorf("PUSH_RELAY=fcm requires FIREBASE_PROJECT_ID")
		}
	default:
		return fmt.Errorf("unknown PUSH_RELAY %q", c.Push.Relay)
	}
	return nil
}

// ParseBootstrapRoles parses "email=role,email=role". Emails are compared
// lower-cased; an unknown role is an error.
func ParseBootstrapRoles(raw string) (map[string]domain.Role, error) {
	roles := make(map[string]domain.Role)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, roleName, ok := strings.Cut(entry, "=")
		email = strings.ToLower(strings.TrimSpace(email))
		if !ok || email == "" {
			return nil, fmt.Errorf("entry %q is not email=role", entry)
		}
		role, ok := domain.LookupRole(roleName)
		if !ok {
			return nil, fmt.Errorf("entry %q has unknown role %q", entry, roleName)
		}
		roles[email] = role
	}
	return roles, nil
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

// AccessTokenTTL returns the lifetime of issued session tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// Timeout bounds a single relay call.
func (p PushConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// TokenInboxTTL is how long a registered device token stays claimable.
func (p PushConfig) TokenInboxTTL() time.Duration {
	return time.Duration(p.TokenInboxTTLSecs) * time.Second
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

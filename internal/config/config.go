package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Blob         BlobConfig
	Mailbox      MailboxConfig
	Intake       IntakeConfig
	Notification NotificationConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// BootstrapAdmin creates the first ADMIN account at startup when both
	// email and password are set and no staff member holds that email.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// BlobConfig points at the S3-compatible document bucket. An empty Endpoint
// keeps documents in process memory.
type BlobConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// MailboxConfig holds Microsoft Graph credentials for the shared intake mailbox.
type MailboxConfig struct {
	TenantID      string
	ClientID      string
	ClientSecret  string
	SharedMailbox string
	GraphBaseURL  string
	AuthorityURL  string
	ClientState   string
	TokenCacheKey string
	TimeoutSec    int
}

// Enabled reports whether enough credentials are present to reach Graph.
func (m MailboxConfig) Enabled() bool {
	return m.TenantID != "" && m.ClientID != "" && m.ClientSecret != "" && m.SharedMailbox != ""
}

// Timeout returns the per-request Graph timeout.
func (m MailboxConfig) Timeout() time.Duration {
	if m.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutSec) * time.Second
}

// IntakeConfig bounds the public form and email intake.
type IntakeConfig struct {
	MaxAttachmentBytes int64
	MaxAttachments     int
	ProfileRetries     int
	// AsyncWebhook queues webhook notifications for the intake workers and
	// acknowledges immediately instead of returning per-message results.
	AsyncWebhook bool
	Workers      int
	QueueSize    int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
	Backlog    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))
	maxAttachmentMB := getEnvAsInt("INTAKE_MAX_ATTACHMENT_MB", 10)

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "travel-approval-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
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
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminEmail:    getEnv("AUTH_BOOTSTRAP_ADMIN_EMAIL", ""),
			BootstrapAdminPassword: getEnv("AUTH_BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Blob: BlobConfig{
			Endpoint:      os.Getenv("BLOB_ENDPOINT"),
			AccessKey:     os.Getenv("BLOB_ACCESS_KEY"),
			SecretKey:     os.Getenv("BLOB_SECRET_KEY"),
			Bucket:        getEnv("BLOB_BUCKET", "travel-documents"),
			Region:        getEnv("BLOB_REGION", "us-east-1"),
			UseSSL:        getEnvAsBool("BLOB_USE_SSL", true),
			PublicBaseURL: os.Getenv("BLOB_PUBLIC_BASE_URL"),
		},
		Mailbox: MailboxConfig{
			TenantID:      os.Getenv("GRAPH_TENANT_ID"),
			ClientID:      os.Getenv("GRAPH_CLIENT_ID"),
			ClientSecret:  os.Getenv("GRAPH_CLIENT_SECRET"),
			SharedMailbox: os.Getenv("GRAPH_SHARED_MAILBOX"),
			GraphBaseURL:  getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
			AuthorityURL:  getEnv("GRAPH_AUTHORITY_URL", "https://login.microsoftonline.com"),
			ClientState:   os.Getenv("GRAPH_WEBHOOK_CLIENT_STATE"),
			TokenCacheKey: getEnv("GRAPH_TOKEN_CACHE_KEY", "travel-approval:graph-token"),
			TimeoutSec:    getEnvAsInt("GRAPH_TIMEOUT_SECONDS", 30),
		},
		Intake: IntakeConfig{
			MaxAttachmentBytes: int64(maxAttachmentMB) * 1024 * 1024,
			MaxAttachments:     getEnvAsInt("INTAKE_MAX_ATTACHMENTS", 20),
			ProfileRetries:     getEnvAsInt("INTAKE_PROFILE_RETRIES", 3),
			AsyncWebhook:       getEnvAsBool("INTAKE_ASYNC_WEBHOOK", false),
			Workers:            getEnvAsInt("INTAKE_WORKERS", 4),
			QueueSize:          getEnvAsInt("INTAKE_QUEUE_SIZE", 256),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			Backlog:    getEnvAsInt("NOTIFY_BACKLOG", 256),
		},
	}

	return cfg, nil
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

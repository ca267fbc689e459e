package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	// EnvFileLoaded is false when no .env file was found
	EnvFileLoaded bool

	// Identity backend
	AdminEmail        string
	BackendAPIKey     string
	IdentityBaseURL   string
	TokenBaseURL      string
	VerifyRedirectURL string

	// Key-value store
	StoreBackend   string
	RedisURL       string
	RedisKeyPrefix string
	DatabaseURL    string

	// Durable local storage (pending verification, guest cart, session)
	LocalStorePath string

	VerifyPollInterval     time.Duration
	ResendCooldown         time.Duration
	PendingVerificationTTL time.Duration
	NotificationTTL        time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3PresignTTL time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists; the caller warns once logging is up
	envErr := godotenv.Load()

	var errs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := getDurationEnv(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	cfg := &Config{
		EnvFileLoaded:  envErr == nil,
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://localhost:5173")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "development"),

		AdminEmail:        strings.TrimSpace(getEnv("ADMIN_EMAIL", "")),
		BackendAPIKey:     getEnv("BACKEND_API_KEY", ""),
		IdentityBaseURL:   strings.TrimRight(getEnv("IDENTITY_BASE_URL", "https://identitytoolkit.googleapis.com"), "/"),
		TokenBaseURL:      strings.TrimRight(getEnv("TOKEN_BASE_URL", "https://securetoken.googleapis.com"), "/"),
		VerifyRedirectURL: getEnv("VERIFY_REDIRECT_URL", "http://localhost:8080/app.html"),

		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", StoreBackendRedis)),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "storefront"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		LocalStorePath: getEnv("LOCAL_STORE_PATH", "storefront-local.db"),

		VerifyPollInterval:     duration("VERIFY_POLL_INTERVAL", 3*time.Second),
		ResendCooldown:         duration("RESEND_COOLDOWN", 60*time.Second),
		PendingVerificationTTL: duration("PENDING_VERIFICATION_TTL", 24*time.Hour),
		NotificationTTL:        duration("NOTIFICATION_TTL", 3*time.Second),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),

		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3PresignTTL: duration("S3_PRESIGN_TTL", 15*time.Minute),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate reports configuration the service cannot start without
func (c *Config) Validate() error {
	var missing []string
	if c.AdminEmail == "" {
		missing = append(missing, "ADMIN_EMAIL")
	}
	if c.BackendAPIKey == "" {
		missing = append(missing, "BACKEND_API_KEY")
	}
	if c.IdentityBaseURL == "" {
		missing = append(missing, "IDENTITY_BASE_URL")
	}
	if c.TokenBaseURL == "" {
		missing = append(missing, "TOKEN_BASE_URL")
	}
	if c.LocalStorePath == "" {
		missing = append(missing, "LOCAL_STORE_PATH")
	}

	switch c.StoreBackend {
	case StoreBackendRedis:
		if c.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	durations := map[string]time.Duration{
		"VERIFY_POLL_INTERVAL":     c.VerifyPollInterval,
		"RESEND_COOLDOWN":          c.ResendCooldown,
		"PENDING_VERIFICATION_TTL": c.PendingVerificationTTL,
		"NOTIFICATION_TTL":         c.NotificationTTL,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}

	return nil
}

// GoogleEnabled reports whether Google sign-in is configured
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// BlobEnabled reports whether product image uploads are configured
func (c *Config) BlobEnabled() bool {
	return c.S3Bucket != ""
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

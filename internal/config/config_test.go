package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_EMAIL", "owner@example.com")
	t.Setenv("BACKEND_API_KEY", "test-key")
}

// chdir switches the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreBackendRedis, cfg.StoreBackend)
	assert.Equal(t, 3*time.Second, cfg.VerifyPollInterval)
	assert.Equal(t, 60*time.Second, cfg.ResendCooldown)
	assert.Equal(t, 24*time.Hour, cfg.PendingVerificationTTL)
	assert.Equal(t, 3*time.Second, cfg.NotificationTTL)
	assert.Equal(t, "https://identitytoolkit.googleapis.com", cfg.IdentityBaseURL)
	assert.False(t, cfg.GoogleEnabled())
	assert.False(t, cfg.BlobEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ReportsEnvFile(t *testing.T) {
	setRequiredEnv(t)

	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.EnvFileLoaded)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STOREFRONT_ENV_MARKER=1\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("STOREFRONT_ENV_MARKER") })
	chdir(t, dir)

	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.EnvFileLoaded)
	assert.Equal(t, "1", os.Getenv("STOREFRONT_ENV_MARKER"))
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VERIFY_POLL_INTERVAL", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "VERIFY_POLL_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing admin email",
			mutate:  func(c *Config) { c.AdminEmail = "" },
			wantErr: "ADMIN_EMAIL",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.BackendAPIKey = "" },
			wantErr: "BACKEND_API_KEY",
		},
		{
			name: "postgres without database url",
			mutate: func(c *Config) {
				c.StoreBackend = StoreBackendPostgres
				c.DatabaseURL = ""
			},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.StoreBackend = "mongo" },
			wantErr: "unsupported STORE_BACKEND",
		},
		{
			name:    "non-positive poll interval",
			mutate:  func(c *Config) { c.VerifyPollInterval = 0 },
			wantErr: "VERIFY_POLL_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, parseOrigins(" http://a, ,http://b "))
	assert.Empty(t, parseOrigins(""))
}

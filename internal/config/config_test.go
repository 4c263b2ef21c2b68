package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("REPLICATE_API_TOKEN", "test-token")
	t.Setenv("S3_BUCKET", "test-bucket")
	t.Setenv("CDN_BASE_URL", "https://cdn.example")
	t.Setenv("AUTH_SECRET", "test-secret")
}

func TestLoad_RequiredVariables(t *testing.T) {
	clearEnv := func() {
		os.Unsetenv("PORT")
		os.Unsetenv("REPLICATE_API_TOKEN")
		os.Unsetenv("REPLICATE_MODEL_VERSION")
		os.Unsetenv("S3_BUCKET")
		os.Unsetenv("S3_REGION")
		os.Unsetenv("CDN_BASE_URL")
		os.Unsetenv("AUTH_SECRET")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("LOG_FORMAT")
		os.Unsetenv("LOG_LEVEL")
	}

	t.Run("missing REPLICATE_API_TOKEN returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("S3_BUCKET", "test-bucket")
		t.Setenv("CDN_BASE_URL", "https://cdn.example")
		t.Setenv("AUTH_SECRET", "test-secret")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrReplicateTokenRequired)
	})

	t.Run("missing S3_BUCKET returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("REPLICATE_API_TOKEN", "test-token")
		t.Setenv("CDN_BASE_URL", "https://cdn.example")
		t.Setenv("AUTH_SECRET", "test-secret")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrS3BucketRequired)
	})

	t.Run("missing CDN_BASE_URL returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("REPLICATE_API_TOKEN", "test-token")
		t.Setenv("S3_BUCKET", "test-bucket")
		t.Setenv("AUTH_SECRET", "test-secret")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCDNBaseURLRequired)
	})

	t.Run("missing AUTH_SECRET returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("REPLICATE_API_TOKEN", "test-token")
		t.Setenv("S3_BUCKET", "test-bucket")
		t.Setenv("CDN_BASE_URL", "https://cdn.example")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthSecretRequired)
	})

	t.Run("all required variables present succeeds", func(t *testing.T) {
		clearEnv()
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "test-token", cfg.ReplicateAPIToken)
		assert.Equal(t, "test-bucket", cfg.S3Bucket)
		assert.Equal(t, "https://cdn.example", cfg.CDNBaseURL)
		assert.Equal(t, "test-secret", cfg.AuthSecret)
	})
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "73d2128a371922d5d1abf0712a1d974be0e4e2358cc1218e4e34714767232bac", cfg.ReplicateModelVersion)
	assert.Equal(t, 3*time.Second, cfg.BGPollInterval)
	assert.Equal(t, 100, cfg.BGPollMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.BGSweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.BGSweepDeadline)
	assert.Equal(t, "ap-southeast-2", cfg.S3Region)
	assert.Equal(t, "/tmp/textbehind", cfg.TempDir)
	assert.Equal(t, 10, cfg.MaxVideoDurationSec)
	assert.Equal(t, int64(104857600), cfg.MaxVideoSizeBytes)
	assert.False(t, cfg.KeyingEnabled)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "3000")
	t.Setenv("REPLICATE_MODEL_VERSION", "abc123")
	t.Setenv("BG_POLL_INTERVAL", "500ms")
	t.Setenv("BG_POLL_MAX_ATTEMPTS", "20")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("MAX_VIDEO_DURATION_SEC", "30")
	t.Setenv("KEYING_ENABLED", "true")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "abc123", cfg.ReplicateModelVersion)
	assert.Equal(t, 500*time.Millisecond, cfg.BGPollInterval)
	assert.Equal(t, 20, cfg.BGPollMaxAttempts)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, 30, cfg.MaxVideoDurationSec)
	assert.True(t, cfg.KeyingEnabled)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidInteger(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_DatabaseEnabled(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"set", "postgres://localhost/textbehind", true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DatabaseURL: tt.url}
			assert.Equal(t, tt.expected, cfg.DatabaseEnabled())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{
		ReplicateAPIToken: "token",
		S3Bucket:          "bucket",
		CDNBaseURL:        "https://cdn.example",
		AuthSecret:        "secret",
	}
	assert.NoError(t, cfg.Validate())

	cfg.AuthSecret = ""
	assert.ErrorIs(t, cfg.Validate(), ErrAuthSecretRequired)
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := &Config{
		ReplicateAPIToken: "super-secret-token",
		AuthSecret:        "super-secret-auth",
		S3Bucket:          "bucket",
	}

	s := cfg.String()
	assert.False(t, strings.Contains(s, "super-secret-token"))
	assert.False(t, strings.Contains(s, "super-secret-auth"))
	assert.True(t, strings.Contains(s, "bucket"))
}

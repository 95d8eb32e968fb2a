package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.AppPort)
	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.CountdownInterval)
	assert.Equal(t, "INR", cfg.Currency)
	assert.Equal(t, "multipart", cfg.UploadMode)
	assert.Equal(t, "memory", cfg.SessionCache)
	assert.False(t, cfg.CloudinaryEnabled())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
API_BASE_URL: "https://print.example.com"
POLL_INTERVAL: "500ms"
UPLOAD_MODE: "presigned"
CLOUDINARY_CLOUD_NAME: "demo"
CLOUDINARY_API_KEY: "key"
CLOUDINARY_API_SECRET: "secret"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, "https://print.example.com", cfg.APIBaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "presigned", cfg.UploadMode)
	assert.True(t, cfg.CloudinaryEnabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SESSION_CACHE", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.SessionCache)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
}

func TestValidate(t *testing.T) {
	base, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad upload mode", func(c *Config) { c.UploadMode = "ftp" }},
		{"bad cache", func(c *Config) { c.SessionCache = "disk" }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"zero countdown interval", func(c *Config) { c.CountdownInterval = 0 }},
		{"zero timeout", func(c *Config) { c.APITimeout = 0 }},
		{"missing base url", func(c *Config) { c.APIBaseURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

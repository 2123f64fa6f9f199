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
	cfg := load(viper.New(), t.TempDir())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 5, cfg.Editor.MaxImages)
	assert.Equal(t, int64(32<<20), cfg.Editor.MaxUploadBytes)
	assert.Equal(t, 30*time.Minute, cfg.Editor.SessionTTL)
	assert.Equal(t, "Categoría actual", cfg.Editor.CategoryPlaceholder)
	assert.Equal(t, 5*time.Minute, cfg.Editor.CategoryCacheTTL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Empty(t, cfg.CORS.AllowedOrigins)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_BASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "BACKEND_BASE_URL=https://api.libamaq.com\n" +
		"JWT_SECRET=shh\n" +
		"SERVER_ENV=production\n" +
		"EDITOR_MAX_IMAGES=8\n" +
		"EDITOR_ALLOWED_ROLES=ADMIN, EDITOR\n" +
		"CORS_ALLOWED_ORIGINS=https://admin.libamaq.com,,https://libamaq.com\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg := load(viper.New(), dir)

	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "https://api.libamaq.com", cfg.Backend.BaseURL)
	assert.Equal(t, 8, cfg.Editor.MaxImages)
	assert.Equal(t, []string{"ADMIN", "EDITOR"}, cfg.Editor.AllowedRoles)
	assert.Equal(t, []string{"https://admin.libamaq.com", "https://libamaq.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=9000\n"), 0o600))
	t.Setenv("SERVER_PORT", "9100")

	cfg := load(viper.New(), dir)

	assert.Equal(t, "9100", cfg.Server.Port)
}

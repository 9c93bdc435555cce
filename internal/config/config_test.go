package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CRM_API_URL", "https://crm.example.com/api")
	t.Setenv("PORT", "")
	t.Setenv("BOARD_ORDER_SCOPE", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("BOARD_REFRESH_INTERVAL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "pipeline", cfg.OrderScope)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Zero(t, cfg.RefreshInterval)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadParsesDurationsAndLists(t *testing.T) {
	t.Setenv("CRM_API_URL", "https://crm.example.com/api")
	t.Setenv("CACHE_TTL", "45")
	t.Setenv("BOARD_REFRESH_INTERVAL", "2m")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test,")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.CacheTTL)
	assert.Equal(t, 2*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Setenv("CRM_API_URL", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CRM_API_URL", "https://crm.example.com/api")
	t.Setenv("CACHE_TTL", "soon")
	_, err = Load()
	assert.Error(t, err)
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = (&Config{LogLevel: "loud"}).NewLogger()
	assert.Error(t, err)
}

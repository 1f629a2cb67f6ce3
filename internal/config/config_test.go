package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "EXPIRY_WARNING_DAYS", "ALLOWED_ORIGINS", "METRICS_ENABLED", "MANDATE_CACHE_TTL_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30, cfg.ExpiryWarningDays)
	assert.Equal(t, 5*time.Minute, cfg.MandateCacheTTL)
	assert.Nil(t, cfg.AllowedOrigins)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EXPIRY_WARNING_DAYS", "14")
	t.Setenv("EXPIRY_SCAN_INTERVAL_MINUTES", "5")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("MAX_DB_CONNS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 14, cfg.ExpiryWarningDays)
	assert.Equal(t, 5*time.Minute, cfg.ExpiryScanInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, int32(16), cfg.MaxDBConns, "unparsable values fall back")
}

func TestLoadClient(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://members.example/api/v1")
	t.Setenv("API_TOKEN", "tok")

	cfg := LoadClient()
	assert.Equal(t, "https://members.example/api/v1", cfg.APIBaseURL)
	assert.Equal(t, "tok", cfg.APIToken)
	assert.Positive(t, cfg.APITimeout)
}

func TestLoadClampsScanInterval(t *testing.T) {
	for _, raw := range []string{"0", "-5"} {
		t.Setenv("EXPIRY_SCAN_INTERVAL_MINUTES", raw)
		assert.Equal(t, DefaultExpiryScanInterval, Load().ExpiryScanInterval, raw)
	}
}

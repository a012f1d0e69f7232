package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.HeloDomain)
	assert.Equal(t, 5*time.Second, cfg.DNSTimeout)
	assert.Equal(t, 10*time.Minute, cfg.MXCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.SendTimeout)
	assert.Equal(t, 10, cfg.MaxConcurrency)
	assert.Equal(t, 1000, cfg.BulkLimitJSON)
	assert.Equal(t, 100, cfg.BulkLimitComprehensive)
	assert.Equal(t, 10000, cfg.BulkLimitFile)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HELO_DOMAIN", "verify.example.com")
	t.Setenv("DNS_TIMEOUT", "2s")
	t.Setenv("MAX_CONCURRENCY", "4")
	t.Setenv("WHOIS_ENABLED", "true")
	t.Setenv("BULK_LIMIT_JSON", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "verify.example.com", cfg.HeloDomain)
	assert.Equal(t, 2*time.Second, cfg.DNSTimeout)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.True(t, cfg.WHOISEnabled)
	assert.Equal(t, 50, cfg.BulkLimitJSON)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DNS_TIMEOUT", "soon")
	t.Setenv("MAX_CONCURRENCY", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.DNSTimeout)
	assert.Equal(t, 10, cfg.MaxConcurrency)
}

func TestLoadProductionRequiresHeloDomain(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HELO_DOMAIN")
}

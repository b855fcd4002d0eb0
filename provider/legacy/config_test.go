package legacy_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-auth-legacy/provider/legacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalize(t *testing.T) {
	cfg := legacy.Config{BaseURL: "http://facade:4000"}.Normalize()

	assert.Equal(t, "http://facade:4000/", cfg.BaseURL)
	assert.Equal(t, legacy.DefaultProviderID, cfg.ProviderID)
	assert.Equal(t, legacy.DefaultProviderID, cfg.FederationSource)
	assert.Equal(t, legacy.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, legacy.CacheModeBounded, cfg.Cache.Mode)
	assert.Equal(t, 10000, cfg.Cache.Capacity)

	again := cfg.Normalize()
	assert.Equal(t, cfg, again)
}

func TestConfigNormalizeDefaultsBaseURL(t *testing.T) {
	cfg := legacy.Config{}.Normalize()
	assert.Equal(t, legacy.DefaultBaseURL, cfg.BaseURL)
	require.NoError(t, cfg.Validate())
}

func TestConfigFromMap(t *testing.T) {
	cfg := legacy.ConfigFromMap(map[string]string{
		legacy.ConfigKeyBaseURL: "https://legacy.internal/api",
		"legacyTimeout":         "2s",
		"legacyCacheMode":       "Unbounded",
		"legacyCacheCapacity":   "not-a-number",
		"legacyCacheTtl":        "1m",
	})

	assert.Equal(t, "https://legacy.internal/api/", cfg.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, legacy.CacheModeUnbounded, cfg.Cache.Mode)
	assert.Equal(t, 10000, cfg.Cache.Capacity)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Run("rejects non http scheme", func(t *testing.T) {
		cfg := legacy.Config{BaseURL: "ftp://legacy/"}.Normalize()
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects provider id with colon", func(t *testing.T) {
		cfg := legacy.Config{BaseURL: "http://legacy/", ProviderID: "a:b"}.Normalize()
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown cache mode", func(t *testing.T) {
		cfg := legacy.Config{BaseURL: "http://legacy/"}.Normalize()
		cfg.Cache.Mode = "sharded"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bounded cache requires capacity", func(t *testing.T) {
		cfg := legacy.Config{BaseURL: "http://legacy/"}.Normalize()
		cfg.Cache.Capacity = -1
		assert.Error(t, cfg.Validate())
	})
}

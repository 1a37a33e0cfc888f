package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 5, cfg.Crawler.BatchSize)
	assert.Equal(t, 10.0, cfg.Crawler.GlobalRate)
	assert.Equal(t, 2.0, cfg.Crawler.DomainRate)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2, cfg.Browser.PoolSize)
	assert.Len(t, cfg.Crawler.UserAgents, 3)
	assert.Equal(t, OracleProviderGemini, cfg.Oracle.Provider)
	assert.NoError(t, cfg.Validate())
}

func TestNormalizeClampsBatchSize(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"below minimum", 0, 1},
		{"negative", -3, 1},
		{"above maximum", 50, 20},
		{"at maximum", 20, 20},
		{"in range", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Crawler.BatchSize = tt.input
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.Crawler.BatchSize)
		})
	}
}

func TestNormalizeRestoresRatesAndPool(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Crawler.GlobalRate = 0
	cfg.Crawler.DomainRate = -1
	cfg.Browser.PoolSize = 0
	cfg.Crawler.UserAgents = nil

	cfg.Normalize()

	assert.Equal(t, 10.0, cfg.Crawler.GlobalRate)
	assert.Equal(t, 2.0, cfg.Crawler.DomainRate)
	assert.Equal(t, 1, cfg.Browser.PoolSize)
	assert.NotEmpty(t, cfg.Crawler.UserAgents)
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(base, []byte(`
environment = "production"

[crawler]
batch_size = 8
global_rate = 20.0

[browser]
pool_size = 4
`), 0644))

	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(override, []byte(`
[crawler]
batch_size = 3
`), 0644))

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 3, cfg.Crawler.BatchSize, "later file should override earlier")
	assert.Equal(t, 20.0, cfg.Crawler.GlobalRate)
	assert.Equal(t, 4, cfg.Browser.PoolSize)
	assert.Equal(t, 2.0, cfg.Crawler.DomainRate, "unset values keep defaults")
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/indago.toml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INDAGO_BATCH_SIZE", "12")
	t.Setenv("INDAGO_DOMAIN_RATE", "0.5")
	t.Setenv("INDAGO_HEADLESS", "false")
	t.Setenv("INDAGO_REQUEST_TIMEOUT", "45s")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Crawler.BatchSize)
	assert.Equal(t, 0.5, cfg.Crawler.DomainRate)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 45*time.Second, cfg.Crawler.RequestTimeout)
}

func TestEnvOverridesClampAfterwards(t *testing.T) {
	t.Setenv("INDAGO_BATCH_SIZE", "100")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Crawler.BatchSize)
}

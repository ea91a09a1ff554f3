package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30, cfg.Source.APITimeoutSeconds)
	assert.Equal(t, 24, cfg.Cache.RetentionHours)
	assert.Equal(t, 300, cfg.Cache.FreshnessSeconds)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yml"))
		require.NoError(t, err)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	})

	t.Run("file overrides defaults, omitted fields keep them", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "board.yml")
		content := `
redis:
  addr: redis.internal:6380
source:
  api_base_url: https://patient-data.internal
  static_dir: /var/lib/board/static
cache:
  freshness_seconds: 60
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
		assert.Equal(t, "https://patient-data.internal", cfg.Source.APIBaseURL)
		assert.Equal(t, 60, cfg.Cache.FreshnessSeconds)
		// Omitted fields keep the defaults.
		assert.Equal(t, 24, cfg.Cache.RetentionHours)
		assert.Equal(t, 30, cfg.Source.APITimeoutSeconds)
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "board.yml")
		require.NoError(t, os.WriteFile(path, []byte("redis: ["), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "board.yml")
		require.NoError(t, os.WriteFile(path, []byte("redis:\n  addr: from-file:6379\n"), 0o644))

		t.Setenv("REDIS_ADDR", "from-env:6379")
		t.Setenv("PORT", "9090")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env:6379", cfg.Redis.Addr)
		assert.Equal(t, ":9090", cfg.Server.Addr)
	})
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty redis addr":  func(c *Config) { c.Redis.Addr = "" },
		"zero api timeout":  func(c *Config) { c.Source.APITimeoutSeconds = 0 },
		"zero retention":    func(c *Config) { c.Cache.RetentionHours = 0 },
		"zero freshness":    func(c *Config) { c.Cache.FreshnessSeconds = 0 },
		"empty server addr": func(c *Config) { c.Server.Addr = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 24*time.Hour, cfg.Retention())
	assert.Equal(t, 300*time.Second, cfg.Freshness())
	assert.Equal(t, 30*time.Second, cfg.APITimeout())
}

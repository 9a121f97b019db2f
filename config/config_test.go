package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "25M", cfg.Server.BodySizeLimit)
	assert.Equal(t, time.Second, cfg.Video.PollInterval)
	assert.Equal(t, 30, cfg.Video.PollMaxAttempts)
	assert.Equal(t, 120*time.Second, cfg.Features.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.Features.StreamIdleTimeout)
	assert.Equal(t, int64(100<<20), cfg.Video.MaxBytes)
	assert.Equal(t, ProviderGateway, cfg.Features.Workout.Provider)
	assert.Equal(t, "analysis-videos", cfg.Video.StorageBucket)
}

func TestLoadFile_YAMLWithExpansion(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "from-env")

	path := writeConfig(t, `
server:
  port: "${TEST_PORT_UNSET:-9999}"
  body_size_limit: 10M
providers:
  gemini:
    api_key: "${TEST_GEMINI_KEY}"
features:
  request_timeout: 45s
  posture:
    provider: gemini
    model: gemini-2.5-flash
video:
  poll_interval: 2s
  poll_max_attempts: 10
cache:
  type: none
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Providers.Gemini.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Features.RequestTimeout)
	assert.Equal(t, ProviderGemini, cfg.Features.Posture.Provider)
	assert.Equal(t, 2*time.Second, cfg.Video.PollInterval)
	assert.Equal(t, 10, cfg.Video.PollMaxAttempts)
	assert.Equal(t, "none", cfg.Cache.Type)
	// untouched sections keep defaults
	assert.Equal(t, "sqlite", cfg.Storage.Type)
}

func TestLoadFile_EnvWinsOverFile(t *testing.T) {
	t.Setenv("PORT", "7070")
	path := writeConfig(t, "server:\n  port: \"9090\"\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadFile_SwaggerFromEnvironment(t *testing.T) {
	t.Setenv("SWAGGER_ENABLED", "true")
	path := writeConfig(t, "server:\n  swagger_enabled: false\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Server.SwaggerEnabled)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"zero poll attempts", func(c *Config) { c.Video.PollMaxAttempts = 0 }, "poll_max_attempts"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "dynamo" }, "storage.type"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, "cache.type"},
		{"redis without url", func(c *Config) { c.Cache.Type = "redis" }, "cache.redis.url"},
		{"bad body limit", func(c *Config) { c.Server.BodySizeLimit = "lots" }, "body_size_limit"},
		{"unknown feature provider", func(c *Config) { c.Features.Video.Provider = "openai" }, "features.video.provider"},
		{"non-positive timeout", func(c *Config) { c.Features.RequestTimeout = 0 }, "request_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseByteSize(t *testing.T) {
	cases := map[string]int64{
		"25M":  25 << 20,
		"512K": 512 << 10,
		"1g":   1 << 30,
		"2MB":  2 << 20,
		"100":  100,
	}
	for in, want := range cases {
		got, err := ParseByteSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "-1", "abc", "0"} {
		_, err := ParseByteSize(bad)
		assert.Error(t, err, bad)
	}
}

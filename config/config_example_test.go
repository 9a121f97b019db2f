package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_ExampleMatchesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	for _, key := range []string{"SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "GCS_BUCKET", "GOOGLE_APPLICATION_CREDENTIALS", "RATE_LIMIT_RPS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFile("config.example.yaml")
	require.NoError(t, err)

	def := Default()
	def.Video.StorageURL = "http://localhost:54321"
	assert.Equal(t, def.Features, cfg.Features)
	assert.Equal(t, def.Video, cfg.Video)
	assert.Equal(t, def.Providers.Resilience, cfg.Providers.Resilience)
	assert.Equal(t, def.History, cfg.History)
	assert.Equal(t, def.Cache.TTL, cfg.Cache.TTL)
	assert.Equal(t, def.Storage.SQLite, cfg.Storage.SQLite)
	assert.Equal(t, 5.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadFile_ExamplePortFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := LoadFile("config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Mode)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 20, cfg.PoolMaxConns)
	assert.Equal(t, 5*time.Minute, cfg.PoolMaxLifetime)
	assert.Equal(t, "gpt-4o", cfg.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "video-segments", cfg.QdrantCollection)
	assert.Equal(t, 50, cfg.RetrievalK)
	assert.Equal(t, 4, cfg.MaxHops)
	assert.False(t, cfg.RerankEnabled)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.PublicBaseURL)
	assert.True(t, filepath.IsAbs(cfg.UploadDir))
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FRAMEPOINT_PORT", "9090")
	t.Setenv("FRAMEPOINT_POOL_MAX_LIFETIME", "300s")
	t.Setenv("FRAMEPOINT_RERANK", "true")
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/app")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PoolMaxLifetime)
	assert.True(t, cfg.RerankEnabled)
	assert.Equal(t, "postgres://app:secret@db:5432/app", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	envfile := filepath.Join(dir, ".env")
	err := os.WriteFile(envfile, []byte("FRAMEPOINT_CHAT_MODEL=gpt-4o-mini\nFRAMEPOINT_MAX_HOPS=6\n"), 0o600)
	require.NoError(t, err)

	cfg, err := Load(envfile)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 6, cfg.MaxHops)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port:            8000,
			PoolMaxConns:    20,
			PoolMaxLifetime: time.Minute,
			RetrievalK:      50,
			MaxHops:         4,
			QdrantPort:      6334,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"valid", func(c *Config) {}, true},
		{"bad port", func(c *Config) { c.Port = 0 }, false},
		{"bad pool size", func(c *Config) { c.PoolMaxConns = 0 }, false},
		{"bad lifetime", func(c *Config) { c.PoolMaxLifetime = 0 }, false},
		{"bad retrieval k", func(c *Config) { c.RetrievalK = -1 }, false},
		{"bad max hops", func(c *Config) { c.MaxHops = 0 }, false},
		{"bad qdrant port", func(c *Config) { c.QdrantPort = 70000 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// clearEnv unsets every variable Load reads so host environments cannot
// leak into assertions. t.Setenv registers restoration automatically.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FRAMEPOINT_ENV", "FRAMEPOINT_HOST", "FRAMEPOINT_PORT",
		"DATABASE_URL", "FRAMEPOINT_POOL_MAX_CONNS", "FRAMEPOINT_POOL_MAX_LIFETIME",
		"OPENAI_API_KEY", "FRAMEPOINT_CHAT_MODEL", "FRAMEPOINT_EMBEDDING_MODEL",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_API_KEY", "QDRANT_USE_TLS", "QDRANT_COLLECTION",
		"FRAMEPOINT_UPLOAD_DIR", "FRAMEPOINT_FFMPEG", "FRAMEPOINT_PUBLIC_URL",
		"FRAMEPOINT_RETRIEVAL_K", "FRAMEPOINT_RERANK", "FRAMEPOINT_MAX_HOPS",
		"FRAMEPOINT_LOG_LEVEL", "FRAMEPOINT_LOG_FORMAT",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

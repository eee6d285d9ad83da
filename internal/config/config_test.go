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
	dir := t.TempDir()
	path := filepath.Join(dir, "confidant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 1.0, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, int64(3), cfg.Cache.PromotionThreshold)
	assert.Equal(t, "faiss_index.index", cfg.Cache.IndexKey)
	assert.False(t, cfg.Cache.RetranslateOnHit)
	assert.Equal(t, 150, cfg.Generation.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Generation.Temperature, 1e-6)
	assert.Equal(t, []string{"User:", "Assistant:"}, cfg.Generation.Stop)
	assert.Equal(t, 60*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, "en", cfg.Translate.Pivot)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
	assert.Equal(t, "file", cfg.Blob.Backend)
}

func TestLoadFileOverridesAndEnvRefs(t *testing.T) {
	t.Setenv("TEST_CONFIDANT_DSN", "postgres://u:p@db/confidant")

	dir := t.TempDir()
	path := filepath.Join(dir, "confidant.yaml")
	body := `
cache:
  promotion_threshold: 5
  similarity_threshold: 0.5
ledger:
  backend: postgres
  postgres:
    dsn: "${TEST_CONFIDANT_DSN}"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(5), cfg.Cache.PromotionThreshold)
	assert.Equal(t, 0.5, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, "postgres", cfg.Ledger.Backend)
	assert.Equal(t, "postgres://u:p@db/confidant", cfg.Ledger.Postgres.DSN)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Interpreter: InterpreterConfig{Backend: "local"},
			Embedding:   EmbeddingConfig{Backend: "hash"},
			Cache:       CacheConfig{SimilarityThreshold: 1, PromotionThreshold: 3, IndexKey: "idx"},
			Ledger:      LedgerConfig{Backend: "memory"},
			Blob:        BlobConfig{Backend: "file"},
			Generation:  GenerationConfig{MaxTokens: 150},
			Translate:   TranslateConfig{Backend: "none", Pivot: "en"},
			TTS:         TTSConfig{Backend: "piper"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown ledger", mutate: func(c *Config) { c.Ledger.Backend = "redis" }, wantErr: "ledger.backend"},
		{name: "zero similarity", mutate: func(c *Config) { c.Cache.SimilarityThreshold = 0 }, wantErr: "similarity_threshold"},
		{name: "missing pivot", mutate: func(c *Config) { c.Translate.Pivot = "" }, wantErr: "pivot"},
		{name: "unknown tts", mutate: func(c *Config) { c.TTS.Backend = "gtts" }, wantErr: "tts.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("TEST_CONFIDANT_KEY", "secret")
	assert.Equal(t, "secret", resolveEnvRef("${TEST_CONFIDANT_KEY}"))
	assert.Equal(t, "${TEST_CONFIDANT_UNSET}", resolveEnvRef("${TEST_CONFIDANT_UNSET}"))
	assert.Equal(t, "plain", resolveEnvRef("plain"))
}

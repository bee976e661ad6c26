package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"compliance_checker/internal/chunker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/cc-data")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.OllamaEmbedModel)
	assert.Equal(t, 4, cfg.Embedding.Concurrency)
	assert.Equal(t, "default", cfg.DefaultNamespace)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 2*time.Minute, cfg.LLMTimeout)
	assert.True(t, cfg.LLMJSONMode)
	assert.Equal(t, "local", cfg.UploadStore)
	assert.Equal(t, "uploads", cfg.MinIO.Bucket)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Log.File.MaxSize)
	assert.Equal(t, "/tmp/cc-data/documents.json", cfg.RegistryFile)
	assert.Equal(t, "/tmp/cc-data/vectors", cfg.VectorDir)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes())

	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("CHUNK_SIZE=300\nCHUNK_OVERLAP=30\nMINIO_BUCKET=cvs\nLOG_FORMAT=json\n"), 0644))

	// already set variables win over the file
	t.Setenv("CHUNK_OVERLAP", "50")
	// godotenv.Load sets process variables; make sure they are dropped after the test
	for _, k := range []string{"CHUNK_SIZE", "MINIO_BUCKET", "LOG_FORMAT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, "cvs", cfg.MinIO.Bucket)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"overlap not below size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "bert" }},
		{"zero top k", func(c *Config) { c.TopK = 0 }},
		{"similarity out of range", func(c *Config) { c.MinSimilarity = 2 }},
		{"unknown upload store", func(c *Config) { c.UploadStore = "s3" }},
		{"empty namespace", func(c *Config) { c.DefaultNamespace = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"zero upload limit", func(c *Config) { c.MaxUploadMB = 0 }},
		{"minio without bucket", func(c *Config) { c.UploadStore = "minio"; c.MinIO.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := base(t)
	cfg.ChunkOverlap = cfg.ChunkSize
	assert.ErrorIs(t, cfg.Validate(), chunker.ErrInvalidParameter)
}

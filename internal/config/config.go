// Package config loads settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"compliance_checker/internal/chunker"
	"compliance_checker/internal/embedding"
	"compliance_checker/internal/logger"
	"compliance_checker/internal/upload"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	UploadStoreLocal = "local"
	UploadStoreMinIO = "minio"
)

type Config struct {
	DataDir  string `env:"DATA_DIR" envDefault:"./data"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"200"`

	Embedding embedding.Config

	VectorPersist    bool    `env:"VECTOR_PERSIST" envDefault:"true"`
	VectorCompress   bool    `env:"VECTOR_COMPRESS" envDefault:"false"`
	DefaultNamespace string  `env:"DEFAULT_NAMESPACE" envDefault:"default"`
	TopK             int     `env:"TOP_K" envDefault:"5"`
	MinSimilarity    float32 `env:"MIN_SIMILARITY" envDefault:"0"`

	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"http://localhost:11434/v1"`
	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"llama3.2"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.2"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"2m"`
	LLMJSONMode    bool          `env:"LLM_JSON_MODE" envDefault:"true"` // off for backends without response_format

	UploadStore string             `env:"UPLOAD_STORE" envDefault:"local"`
	UploadDir   string             `env:"UPLOAD_DIR" envDefault:"./uploaded_files"`
	MaxUploadMB int                `env:"MAX_UPLOAD_MB" envDefault:"20"`
	MinIO       upload.MinIOConfig `envPrefix:"MINIO_"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	Log logger.Config `envPrefix:"LOG_"`

	// Derived from DataDir by Load.
	RegistryFile string
	VectorDir    string
}

// Init parses the environment into cfg.
func Init(cfg any) error {
	return env.Parse(cfg)
}

// Load reads the given .env files (default ".env"; missing files are
// ignored), parses the environment and fills derived paths. Variables that
// are already set win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := Init(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Resolve()
	return cfg, nil
}

// Resolve recomputes the paths derived from DataDir.
func (c *Config) Resolve() {
	c.RegistryFile = filepath.Join(c.DataDir, "documents.json")
	c.VectorDir = filepath.Join(c.DataDir, "vectors")
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if err := chunker.Validate(c.ChunkSize, c.ChunkOverlap); err != nil {
		return fmt.Errorf("CHUNK_SIZE/CHUNK_OVERLAP: %w", err)
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if c.DefaultNamespace == "" {
		return errors.New("DEFAULT_NAMESPACE is required")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return fmt.Errorf("MIN_SIMILARITY must be within [-1, 1], got %v", c.MinSimilarity)
	}
	if c.LLMModel == "" || c.LLMBaseURL == "" {
		return errors.New("LLM_BASE_URL and LLM_MODEL are required")
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.LLMMaxTokens)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	switch c.UploadStore {
	case UploadStoreLocal:
		if c.UploadDir == "" {
			return errors.New("UPLOAD_DIR is required for the local upload store")
		}
	case UploadStoreMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio upload store")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_STORE %q (want %s or %s)", c.UploadStore, UploadStoreLocal, UploadStoreMinIO)
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

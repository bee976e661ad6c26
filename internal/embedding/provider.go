package embedding

import (
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config selects and configures the embedding provider.
type Config struct {
	Provider         string `env:"EMBED_PROVIDER" envDefault:"ollama"`
	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbedModel string `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`
	OllamaCheck      bool   `env:"OLLAMA_CHECK" envDefault:"true"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIEmbedModel string `env:"OPENAI_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	Concurrency      int    `env:"EMBED_CONCURRENCY" envDefault:"4"`

	Cache CacheConfig `envPrefix:"EMBED_CACHE_"`
}

// Validate checks the provider settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case ProviderOllama:
		if c.OllamaURL == "" || c.OllamaEmbedModel == "" {
			return fmt.Errorf("ollama provider needs OLLAMA_URL and OLLAMA_EMBED_MODEL")
		}
	case ProviderOpenAI:
		if c.OpenAIBaseURL == "" || c.OpenAIEmbedModel == "" {
			return fmt.Errorf("openai provider needs OPENAI_BASE_URL and OPENAI_EMBED_MODEL")
		}
	default:
		return fmt.Errorf("unknown embedding provider %q (want %s or %s)", c.Provider, ProviderOllama, ProviderOpenAI)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("EMBED_CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	if c.Cache.Enabled() && c.Cache.TTL < 0 {
		return fmt.Errorf("EMBED_CACHE_TTL cannot be negative, got %s", c.Cache.TTL)
	}
	return nil
}

// New builds the configured embedder on top of chromem's embedding functions.
func New(cfg Config) (*FuncEmbedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		fn := chromem.NewEmbeddingFuncOpenAICompat(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIEmbedModel, nil)
		return NewFuncEmbedder(ProviderOpenAI+":"+cfg.OpenAIEmbedModel, fn, cfg.Concurrency), nil
	default:
		fn := chromem.NewEmbeddingFuncOllama(cfg.OllamaEmbedModel, strings.TrimRight(cfg.OllamaURL, "/")+"/api")
		return NewFuncEmbedder(ProviderOllama+":"+cfg.OllamaEmbedModel, fn, cfg.Concurrency), nil
	}
}

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"compliance_checker/internal/logger"

	"github.com/philippgille/chromem-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheConfig enables the Redis vector cache when Addr is set.
type CacheConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"TTL" envDefault:"24h"`
	Prefix   string        `env:"PREFIX" envDefault:"compliance_checker:embedding:"`
}

func (c CacheConfig) Enabled() bool { return c.Addr != "" }

// Cache stores vectors by key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error
}

// RedisCache keeps vectors as JSON strings.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	return vector, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedEmbedder serves repeated texts from a cache and sends only the
// misses to the wrapped embedder. Cache failures are logged and treated as
// misses.
type CachedEmbedder struct {
	next   Embedder
	cache  Cache
	ttl    time.Duration
	prefix string
	logger *logger.Logger
}

func NewCachedEmbedder(next Embedder, cache Cache, ttl time.Duration, prefix string, lgr *logger.Logger) *CachedEmbedder {
	if lgr == nil {
		lgr = logger.L()
	}
	return &CachedEmbedder{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		prefix: prefix,
		logger: lgr.Named("embed-cache"),
	}
}

func (e *CachedEmbedder) Name() string { return e.next.Name() }

// Func routes single-text calls, such as chromem queries, through the cache.
func (e *CachedEmbedder) Func() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return EmbedOne(ctx, e, text)
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoInput
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		vec, ok, err := e.cache.Get(ctx, e.key(text))
		if err != nil {
			e.logger.Warn("embedding cache read failed", zap.Error(err))
		}
		if ok {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	e.logger.Debug("embedding cache lookup",
		zap.Int("total", len(texts)),
		zap.Int("hits", len(texts)-len(missTexts)))

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range fresh {
		vectors[missIdx[j]] = vec
		if err := e.cache.Set(ctx, e.key(missTexts[j]), vec, e.ttl); err != nil {
			e.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return vectors, nil
}

// key scopes entries by model so switching models never returns stale
// vectors of another dimension.
func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.prefix + e.next.Name() + ":" + hex.EncodeToString(sum[:])
}

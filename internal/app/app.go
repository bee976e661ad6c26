// Package app wires extraction, chunking, embedding, storage and the report
// LLM into the document pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"compliance_checker/internal/config"
	"compliance_checker/internal/embedding"
	"compliance_checker/internal/extract"
	"compliance_checker/internal/logger"
	"compliance_checker/internal/upload"
	"compliance_checker/internal/vectorstore"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for unknown document ids.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is returned for malformed requests that no lower
	// layer classifies.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrLLM wraps failures of the report model.
	ErrLLM = errors.New("llm request failed")
)

type App struct {
	cfg        *config.Config
	logger     *logger.Logger
	extractors *extract.Registry
	embedder   embedding.Embedder
	store      vectorstore.Store
	uploads    upload.Store
	llm        LLM
	registry   *Registry
	closers    []io.Closer

	// renderMarkdown styles shell reports, e.g. for a terminal.
	renderMarkdown func(string) (string, error)
}

// Option overrides a collaborator New would otherwise build from config.
type Option func(*App)

func WithLogger(l *logger.Logger) Option { return func(a *App) { a.logger = l } }
func WithEmbedder(e embedding.Embedder) Option { return func(a *App) { a.embedder = e } }
func WithVectorStore(s vectorstore.Store) Option { return func(a *App) { a.store = s } }
func WithUploadStore(s upload.Store) Option { return func(a *App) { a.uploads = s } }
func WithLLM(l LLM) Option { return func(a *App) { a.llm = l } }
func WithRegistry(r *Registry) Option { return func(a *App) { a.registry = r } }
func WithExtractors(r *extract.Registry) Option { return func(a *App) { a.extractors = r } }

// WithMarkdownRenderer post-processes reports printed by the shell.
func WithMarkdownRenderer(fn func(string) (string, error)) Option {
	return func(a *App) { a.renderMarkdown = fn }
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = logger.L()
	}
	a.logger = a.logger.Named("app")

	if a.extractors == nil {
		a.extractors = extract.NewRegistry()
	}

	if a.embedder == nil {
		e, err := embedding.New(cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		a.embedder = e

		if cfg.Embedding.Cache.Enabled() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			cache, err := embedding.NewRedisCache(ctx, cfg.Embedding.Cache)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("failed to create embedding cache: %w", err)
			}
			a.closers = append(a.closers, cache)
			a.embedder = embedding.NewCachedEmbedder(e, cache, cfg.Embedding.Cache.TTL, cfg.Embedding.Cache.Prefix, a.logger)
		}
	}

	if a.store == nil {
		path := ""
		if cfg.VectorPersist {
			path = cfg.VectorDir
		}
		s, err := vectorstore.NewChromemStore(path, cfg.VectorCompress, a.embedder.Func(), a.logger)
		if err != nil {
			return nil, err
		}
		a.store = s
	}

	if a.uploads == nil {
		s, err := newUploadStore(cfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.uploads = s
	}

	if a.llm == nil {
		a.llm = NewOpenAILLM(cfg)
	}

	if a.registry == nil {
		path := ""
		if cfg.VectorPersist {
			path = cfg.RegistryFile
		}
		r, err := OpenRegistry(path)
		if err != nil {
			return nil, err
		}
		a.registry = r
	}

	return a, nil
}

func newUploadStore(cfg *config.Config, lgr *logger.Logger) (upload.Store, error) {
	switch cfg.UploadStore {
	case config.UploadStoreMinIO:
		return upload.NewMinIOStore(cfg.MinIO, lgr)
	default:
		return upload.NewLocalStore(cfg.UploadDir, lgr)
	}
}

// Init checks the model server and reconciles the registry with the
// vector store.
func (a *App) Init(ctx context.Context) error {
	if a.cfg.Embedding.Provider == embedding.ProviderOllama && a.cfg.Embedding.OllamaCheck {
		models := []string{a.cfg.Embedding.OllamaEmbedModel}
		if strings.HasPrefix(a.cfg.LLMBaseURL, strings.TrimRight(a.cfg.Embedding.OllamaURL, "/")) {
			models = append(models, a.cfg.LLMModel)
		}
		if err := embedding.EnsureOllamaModels(ctx, nil, a.cfg.Embedding.OllamaURL, models...); err != nil {
			return fmt.Errorf("ollama model check failed: %w", err)
		}
	}

	absDataDir, err := filepath.Abs(a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute data dir: %w", err)
	}
	if prev := a.registry.DataPath(); prev != absDataDir {
		if prev != "" {
			a.logger.Warn("data directory changed, resetting registry",
				zap.String("from", prev), zap.String("to", absDataDir))
		}
		if err := a.registry.Reset(absDataDir); err != nil {
			return fmt.Errorf("failed to save new registry: %w", err)
		}
	}

	// records whose vectors are gone are stale
	for _, rec := range a.registry.List() {
		if a.store.Count(rec.Namespace) == 0 {
			a.logger.Warn("dropping document without vectors",
				zap.String("id", rec.ID), zap.String("file", rec.FileName))
			if err := a.registry.Delete(rec.ID); err != nil {
				return err
			}
		}
	}

	a.logger.Info("app initialized",
		zap.Int("documents", a.registry.Len()),
		zap.Strings("namespaces", a.store.Namespaces()),
		zap.String("embedder", a.embedder.Name()),
		zap.String("uploads", a.uploads.Name()))

	return nil
}

func (a *App) Config() *config.Config { return a.cfg }

// Close releases connections opened by New.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Namespaces lists vector namespaces with their record counts.
func (a *App) Namespaces() map[string]int {
	out := make(map[string]int)
	for _, ns := range a.store.Namespaces() {
		out[ns] = a.store.Count(ns)
	}
	return out
}

func (a *App) namespace(ns string) string {
	if ns == "" {
		return a.cfg.DefaultNamespace
	}
	return ns
}

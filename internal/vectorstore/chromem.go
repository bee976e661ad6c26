package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"compliance_checker/internal/logger"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// dimensionsFile sits next to the collection directories; chromem skips
// plain files when loading.
const dimensionsFile = "dimensions.json"

// ChromemStore maps each namespace to a chromem collection. Every namespace
// holds vectors of one length, remembered in dims.
type ChromemStore struct {
	db            *chromem.DB
	embeddingFunc chromem.EmbeddingFunc
	logger        *logger.Logger

	path string
	mu   sync.Mutex // serializes upserts and guards dims
	dims map[string]int
}

// NewChromemStore opens a store. An empty path keeps everything in memory;
// otherwise collections are persisted under path.
func NewChromemStore(path string, compress bool, embeddingFunc chromem.EmbeddingFunc, lgr *logger.Logger) (*ChromemStore, error) {
	if lgr == nil {
		lgr = logger.L()
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database at %s: %w", path, err)
		}
	}

	s := &ChromemStore{
		db:            db,
		embeddingFunc: embeddingFunc,
		logger:        lgr.Named("vectorstore"),
		path:          path,
		dims:          make(map[string]int),
	}
	if err := s.loadDims(); err != nil {
		return nil, err
	}
	s.logger.Info("vector store opened",
		zap.String("path", path),
		zap.Strings("namespaces", s.Namespaces()))

	return s, nil
}

func (s *ChromemStore) collection(namespace string) (*chromem.Collection, error) {
	if namespace == "" {
		return nil, ErrNoNamespace
	}
	coll, err := s.db.GetOrCreateCollection(namespace, nil, s.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open namespace %s: %w", namespace, err)
	}
	return coll, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	dim := len(records[0].Vector)
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		if r.ID == "" || len(r.Vector) == 0 {
			return fmt.Errorf("%w: record %d needs an id and a vector", ErrInvalidRecord, i)
		}
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: record %d has %d dimensions, record 0 has %d: %w",
				ErrInvalidRecord, i, len(r.Vector), dim, ErrDimensionMismatch)
		}
		docs[i] = chromem.Document{
			ID:        r.ID,
			Metadata:  r.Metadata,
			Embedding: r.Vector,
			Content:   r.Content,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(namespace)
	if err != nil {
		return err
	}

	// an emptied namespace accepts a new dimension
	if want, ok := s.dims[namespace]; ok && coll.Count() > 0 && want != dim {
		return fmt.Errorf("%w: records have %d dimensions, namespace %s has %d: %w",
			ErrInvalidRecord, dim, namespace, want, ErrDimensionMismatch)
	}

	if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", namespace, err)
	}

	if s.dims[namespace] != dim {
		s.dims[namespace] = dim
		if err := s.saveDims(); err != nil {
			s.logger.Warn("failed to save namespace dimensions", zap.Error(err))
		}
	}

	s.logger.Debug("records upserted",
		zap.String("namespace", namespace),
		zap.Int("records", len(docs)),
		zap.Int("total", coll.Count()))

	return nil
}

// Query clamps k to the namespace size; chromem refuses larger values.
func (s *ChromemStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}
	if namespace == "" {
		return nil, ErrNoNamespace
	}

	coll := s.db.GetCollection(namespace, s.embeddingFunc)
	if coll == nil || coll.Count() == 0 {
		return []Match{}, nil
	}

	s.mu.Lock()
	want, known := s.dims[namespace]
	s.mu.Unlock()
	if known && len(vector) != want {
		return nil, fmt.Errorf("%w: query has %d dimensions, namespace %s has %d",
			ErrDimensionMismatch, len(vector), namespace, want)
	}

	k = min(k, coll.Count())
	results, err := coll.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:       r.ID,
			Score:    r.Similarity,
			Content:  r.Content,
			Metadata: r.Metadata,
		}
	}
	return matches, nil
}

func (s *ChromemStore) DeleteWhere(ctx context.Context, namespace string, where map[string]string) error {
	if len(where) == 0 {
		return fmt.Errorf("delete needs at least one metadata filter")
	}
	coll := s.db.GetCollection(namespace, s.embeddingFunc)
	if coll == nil {
		return nil
	}
	if err := coll.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", namespace, err)
	}
	return nil
}

func (s *ChromemStore) DeleteNamespace(_ context.Context, namespace string) error {
	if namespace == "" {
		return ErrNoNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(namespace); err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}
	if _, ok := s.dims[namespace]; ok {
		delete(s.dims, namespace)
		if err := s.saveDims(); err != nil {
			s.logger.Warn("failed to save namespace dimensions", zap.Error(err))
		}
	}
	s.logger.Info("namespace deleted", zap.String("namespace", namespace))
	return nil
}

func (s *ChromemStore) Count(namespace string) int {
	coll := s.db.GetCollection(namespace, s.embeddingFunc)
	if coll == nil {
		return 0
	}
	return coll.Count()
}

// Namespaces returns collection names, sorted.
func (s *ChromemStore) Namespaces() []string {
	names := make([]string, 0)
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *ChromemStore) loadDims() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.path, dimensionsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.dims); err != nil {
		return fmt.Errorf("failed to read %s: %w", dimensionsFile, err)
	}
	if s.dims == nil {
		s.dims = make(map[string]int)
	}
	return nil
}

// saveDims needs s.mu held.
func (s *ChromemStore) saveDims() error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(s.dims)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.path, dimensionsFile), data, 0o600)
}

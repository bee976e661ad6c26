package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"compliance_checker/internal/embedding"
	"compliance_checker/internal/metrics"
	"compliance_checker/internal/vectorstore"

	"go.uber.org/zap"
)

// StoreEmbeddings upserts raw vectors. Without ids every vector is stored
// under its index ("0", "1", ...), so a later call with the same count
// overwrites it. Returns the number of stored vectors.
func (a *App) StoreEmbeddings(ctx context.Context, namespace string, ids []string, vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, embedding.ErrNoInput
	}
	if ids != nil && len(ids) != len(vectors) {
		return 0, fmt.Errorf("%w: %d ids for %d embeddings", ErrInvalidRequest, len(ids), len(vectors))
	}

	records := make([]vectorstore.Record, len(vectors))
	for i, vec := range vectors {
		id := strconv.Itoa(i)
		if ids != nil {
			id = ids[i]
		}
		records[i] = vectorstore.Record{ID: id, Vector: vec}
	}

	namespace = a.namespace(namespace)
	if err := a.store.Upsert(ctx, namespace, records); err != nil {
		return 0, err
	}

	a.logger.WithContext(ctx).Info("embeddings stored",
		zap.String("namespace", namespace),
		zap.Int("count", len(records)))
	return len(records), nil
}

// SearchEmbeddings queries with a caller-supplied vector.
func (a *App) SearchEmbeddings(ctx context.Context, namespace string, vector []float32, k int) ([]vectorstore.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query embedding is empty", ErrInvalidRequest)
	}
	metrics.IncSearch("embedding")
	return a.store.Query(ctx, a.namespace(namespace), vector, k)
}

// Search embeds the query and returns up to k matches at or above the
// configured minimum similarity.
func (a *App) Search(ctx context.Context, query, namespace string, k int) ([]vectorstore.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidRequest)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w, got %d", vectorstore.ErrInvalidK, k)
	}

	vector, err := embedding.EmbedOne(ctx, a.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	metrics.IncSearch("text")
	matches, err := a.store.Query(ctx, a.namespace(namespace), vector, k)
	if err != nil {
		return nil, err
	}

	filtered := matches[:0]
	for _, m := range matches {
		if m.Score < a.cfg.MinSimilarity {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered, nil
}

// Package vectorstore keeps chunk vectors in namespaces and answers
// nearest-neighbour queries.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrInvalidK is returned for queries asking for fewer than one result.
	ErrInvalidK = errors.New("k must be positive")
	// ErrNoNamespace is returned when the namespace name is empty.
	ErrNoNamespace = errors.New("namespace is required")
	// ErrInvalidRecord is returned for records without an id or a vector.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the vectors already in the namespace.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Record is one vector to upsert.
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// Match is one query result. Score is the cosine similarity.
type Match struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store is a namespaced vector index.
type Store interface {
	// Upsert replaces records with the same id.
	Upsert(ctx context.Context, namespace string, records []Record) error
	// Query returns up to k matches by descending score. An unknown or
	// empty namespace yields no matches.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error)
	// DeleteWhere removes records whose metadata matches every pair in where.
	DeleteWhere(ctx context.Context, namespace string, where map[string]string) error
	DeleteNamespace(ctx context.Context, namespace string) error
	Count(namespace string) int
	Namespaces() []string
}

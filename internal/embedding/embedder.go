// Package embedding turns chunk text into vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoInput is returned when there is nothing to embed.
	ErrNoInput = errors.New("no input to embed")
	// ErrProvider wraps failures of the embedding backend.
	ErrProvider = errors.New("embedding provider failed")
)

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Func exposes the single-text function chromem collections use.
	Func() chromem.EmbeddingFunc
	Name() string
}

// FuncEmbedder fans a chromem embedding function out over a batch.
type FuncEmbedder struct {
	name        string
	fn          chromem.EmbeddingFunc
	concurrency int
}

// NewFuncEmbedder wraps fn. concurrency < 1 means one call at a time.
func NewFuncEmbedder(name string, fn chromem.EmbeddingFunc, concurrency int) *FuncEmbedder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &FuncEmbedder{name: name, fn: fn, concurrency: concurrency}
}

func (e *FuncEmbedder) Name() string { return e.name }

func (e *FuncEmbedder) Func() chromem.EmbeddingFunc { return e.fn }

// Embed stops at the first failing text and cancels the calls in flight.
func (e *FuncEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoInput
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := e.fn(gctx, text)
			if err != nil {
				return fmt.Errorf("%w: chunk %d: %w", ErrProvider, i, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("%w: chunk %d: empty vector", ErrProvider, i)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedOne embeds a single text, typically a search query.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrNoInput
	}
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

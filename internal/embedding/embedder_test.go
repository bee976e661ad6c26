package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lengthFunc(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func TestFuncEmbedder_PreservesOrder(t *testing.T) {
	e := NewFuncEmbedder("fake", lengthFunc, 3)

	texts := []string{"a", "bbbb", "cc", "dddddd", "eee"}
	vectors, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
}

func TestFuncEmbedder_EmptyInput(t *testing.T) {
	e := NewFuncEmbedder("fake", lengthFunc, 1)
	_, err := e.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = EmbedOne(context.Background(), e, "")
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestFuncEmbedder_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	var mu sync.Mutex

	fn := func(_ context.Context, text string) ([]float32, error) {
		n := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		defer atomic.AddInt32(&inFlight, -1)
		return []float32{1}, nil
	}

	texts := make([]string, 50)
	for i := range texts {
		texts[i] = "x"
	}

	_, err := NewFuncEmbedder("fake", fn, 2).Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(2))
}

func TestFuncEmbedder_Error(t *testing.T) {
	boom := errors.New("boom")
	fn := func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, boom
		}
		return []float32{1}, nil
	}

	vectors, err := NewFuncEmbedder("fake", fn, 1).Embed(context.Background(), []string{"ok", "bad", "ok"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Nil(t, vectors)
}

func TestFuncEmbedder_EmptyVector(t *testing.T) {
	fn := func(_ context.Context, _ string) ([]float32, error) { return nil, nil }
	_, err := NewFuncEmbedder("fake", fn, 1).Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestFuncEmbedder_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFuncEmbedder("fake", lengthFunc, 2).Embed(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	ok := Config{Provider: "ollama", OllamaURL: "http://x", OllamaEmbedModel: "m", Concurrency: 1}
	assert.NoError(t, ok.Validate())

	openai := Config{Provider: "openai", OpenAIBaseURL: "http://x/v1", OpenAIEmbedModel: "m", Concurrency: 2}
	assert.NoError(t, openai.Validate())

	bad := ok
	bad.Provider = "cohere"
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Concurrency = 0
	assert.Error(t, bad.Validate())

	bad = openai
	bad.OpenAIEmbedModel = ""
	assert.Error(t, bad.Validate())
}

func TestNew(t *testing.T) {
	e, err := New(Config{Provider: "ollama", OllamaURL: "http://localhost:11434/", OllamaEmbedModel: "nomic-embed-text", Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", e.Name())
	assert.NotNil(t, e.Func())

	e, err = New(Config{Provider: "openai", OpenAIBaseURL: "http://localhost/v1", OpenAIEmbedModel: "text-embedding-3-small", Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", e.Name())

	_, err = New(Config{Provider: "nope", Concurrency: 1})
	assert.Error(t, err)
}

func TestEnsureOllamaModels(t *testing.T) {
	var pulled []string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest","model":"nomic-embed-text:latest"}]}`))
		case "/api/pull":
			var req ollamaPullRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.False(t, req.Stream)
			mu.Lock()
			pulled = append(pulled, req.Name)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"status":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	err := EnsureOllamaModels(context.Background(), srv.Client(), srv.URL+"/", "nomic-embed-text", "llama3.2", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2"}, pulled)
}

func TestEnsureOllamaModels_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := EnsureOllamaModels(context.Background(), srv.Client(), srv.URL, "m")
	assert.Error(t, err)
}

func TestEnsureOllamaModels_PullFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer srv.Close()

	err := EnsureOllamaModels(context.Background(), srv.Client(), srv.URL, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

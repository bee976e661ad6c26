package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"compliance_checker/internal/config"
	"compliance_checker/internal/embedding"
	"compliance_checker/internal/logger"
	"compliance_checker/internal/upload"
	"compliance_checker/internal/vectorstore"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

// letterEmbed counts latin letters, plus one constant dimension so that no
// vector is zero.
func letterEmbed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 27)
	v[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v, nil
}

type fakeLLM struct {
	mu       sync.Mutex
	answer   string
	err      error
	messages []openai.ChatCompletionMessage
	calls    int
}

func (f *fakeLLM) Complete(_ context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = messages
	return f.answer, f.err
}

type testEnv struct {
	app   *App
	cfg   *config.Config
	store *vectorstore.ChromemStore
	llm   *fakeLLM
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:          dir,
		ChunkSize:        50,
		ChunkOverlap:     10,
		DefaultNamespace: "default",
		TopK:             3,
		MaxUploadMB:      1,
		UploadDir:        filepath.Join(dir, "uploads"),
		VectorPersist:    true,
	}
	cfg.Resolve()

	lgr := logger.NewNop()
	emb := embedding.NewFuncEmbedder("fake", letterEmbed, 2)

	store, err := vectorstore.NewChromemStore("", false, emb.Func(), lgr)
	require.NoError(t, err)

	uploads, err := upload.NewLocalStore(cfg.UploadDir, lgr)
	require.NoError(t, err)

	llm := &fakeLLM{}
	a, err := New(cfg,
		WithLogger(lgr),
		WithEmbedder(emb),
		WithVectorStore(store),
		WithUploadStore(uploads),
		WithLLM(llm),
	)
	require.NoError(t, err)
	require.NoError(t, a.Init(context.Background()))

	return &testEnv{app: a, cfg: cfg, store: store, llm: llm}
}

func (e *testEnv) ingest(t *testing.T, name, text, namespace string) *IngestResult {
	t.Helper()
	res, err := e.app.IngestDocument(context.Background(), IngestRequest{
		FileName:  name,
		Data:      []byte(text),
		Namespace: namespace,
	})
	require.NoError(t, err)
	return res
}

func uploadCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

var (
	textZ = strings.Repeat("zzz yyy ", 20)
	textA = strings.Repeat("aaa bbb ", 20)
)

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"compliance_checker/internal/app"
	"compliance_checker/internal/apperr"
	"compliance_checker/internal/config"
	"compliance_checker/internal/embedding"
	"compliance_checker/internal/logger"
	"compliance_checker/internal/upload"
	"compliance_checker/internal/vectorstore"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const answer = `{"thought_process":["compare"],"answer":"Good match","enough_context":true,"score":77,"strengths":["Go"],"improvements":["Kubernetes"]}`

var textZ = strings.Repeat("zzz yyy ", 20)

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
	answer string
	err    error
}

func (f *fakeLLM) Complete(context.Context, []openai.ChatCompletionMessage) (string, error) {
	return f.answer, f.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	srv *Server
	cfg *config.Config
	llm *fakeLLM
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:          dir,
		HTTPAddr:         "127.0.0.1:0",
		ChunkSize:        50,
		ChunkOverlap:     10,
		DefaultNamespace: "default",
		TopK:             3,
		MaxUploadMB:      1,
		UploadDir:        filepath.Join(dir, "uploads"),
		ShutdownTimeout:  time.Second,
	}
	cfg.Resolve()

	lgr := logger.NewNop()
	emb := embedding.NewFuncEmbedder("fake", letterEmbed, 2)
	store, err := vectorstore.NewChromemStore("", false, emb.Func(), lgr)
	require.NoError(t, err)
	uploads, err := upload.NewLocalStore(cfg.UploadDir, lgr)
	require.NoError(t, err)

	llm := &fakeLLM{answer: answer}
	a, err := app.New(cfg,
		app.WithLogger(lgr),
		app.WithEmbedder(emb),
		app.WithVectorStore(store),
		app.WithUploadStore(uploads),
		app.WithLLM(llm),
	)
	require.NoError(t, err)
	require.NoError(t, a.Init(context.Background()))

	return &testServer{srv: New(a, lgr), cfg: cfg, llm: llm}
}

func (ts *testServer) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) (int, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(t, req)
}

func (ts *testServer) postFile(t *testing.T, path, name, contentType string, data []byte, fields map[string]string) (int, envelope) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(t, req)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, code)

	// one routed request so the http collectors have a series
	ts.postJSON(t, "/api/v1/chunk/", map[string]any{"extracted_text": "abc", "chunk_size": 2, "overlap": 1})

	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `compliance_checker_http_requests_total{method="POST",route="/api/v1/chunk/"`)
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, apperr.ErrNotFound, env.Code)
}

func TestChunk(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.postJSON(t, "/api/v1/chunk/", map[string]any{
		"extracted_text": "ABCDEFGHIJ", "chunk_size": 4, "overlap": 2,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, apperr.Success, env.Code)

	got := decode[struct {
		Chunks []string `json:"chunks"`
		Count  int      `json:"count"`
	}](t, env)
	assert.Equal(t, []string{"ABCD", "CDEF", "EFGH", "GHIJ"}, got.Chunks)
	assert.Equal(t, 4, got.Count)
}

func TestChunk_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body any
		code int
	}{
		{"overlap equals size", map[string]any{"extracted_text": "ABC", "chunk_size": 3, "overlap": 3}, apperr.ErrInvalidChunkParams},
		{"zero size", map[string]any{"extracted_text": "ABC", "chunk_size": 0, "overlap": 0}, apperr.ErrInvalidChunkParams},
		{"empty text", map[string]any{"extracted_text": "", "chunk_size": 3, "overlap": 1}, apperr.ErrEmptyText},
		{"bad json", "not an object", apperr.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := ts.postJSON(t, "/api/v1/chunk/", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.code, env.Code)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestUploadPDF(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.postFile(t, "/api/v1/upload-pdf/", "cv.pdf", "application/pdf", []byte("%PDF-1.4 minimal"), nil)
	require.Equal(t, http.StatusCreated, code, env.Message)

	got := decode[map[string]string](t, env)
	assert.Equal(t, "PDF successfully uploaded", got["message"])
	_, err := os.Stat(got["file_path"])
	assert.NoError(t, err)

	code, env = ts.postFile(t, "/api/v1/upload-pdf/", "notes.txt", "text/plain", []byte("hello"), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidFileType, env.Code)

	code, env = ts.postFile(t, "/api/v1/upload-pdf/", "empty.pdf", "application/pdf", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrEmptyFile, env.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-pdf/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	code, env = ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidParams, env.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	limit := ts.cfg.MaxUploadBytes()

	tests := []struct {
		name string
		path string
		size int64
	}{
		{"just over the limit", "/api/v1/documents/", limit + 1},
		{"past the body cap", "/api/v1/documents/", limit + multipartOverhead + 1024},
		{"pdf upload", "/api/v1/upload-pdf/", 3 * limit},
		{"extract", "/api/v1/extract-text/", 3 * limit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte("a"), int(tt.size))
			code, env := ts.postFile(t, tt.path, "big.txt", "text/plain", data, nil)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, apperr.ErrFileTooLarge, env.Code)
		})
	}

	assert.Empty(t, ts.srv.app.Documents())
}

func TestExtractText(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.postFile(t, "/api/v1/extract-text/", "doc.md", "text/markdown", []byte("# Title\n\nBody *text*."), nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	got := decode[map[string]string](t, env)
	assert.Contains(t, got["extracted_text"], "Body text.")

	code, env = ts.postFile(t, "/api/v1/extract-text/", "img.png", "image/png", []byte("png"), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidFileType, env.Code)

	code, env = ts.postFile(t, "/api/v1/extract-text/", "blank.md", "text/markdown", []byte("   \n\n"), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrNoExtractableText, env.Code)

	code, env = ts.postFile(t, "/api/v1/extract-text/", "broken.pdf", "application/pdf", []byte("%PDF-1.4 minimal"), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrBadRequest, env.Code)

	code, env = ts.postFile(t, "/api/v1/extract-text/", "profile.json", "application/json", []byte(`{"name":"Ada","skills":["Go"]}`), nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	got = decode[map[string]string](t, env)
	assert.Equal(t, "name: Ada\nskills:\n  - Go\n", got["extracted_text"])
}

func TestDocuments(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.postFile(t, "/api/v1/documents/?chunks=true", "z.txt", "text/plain", []byte(textZ), map[string]string{
		"namespace": "docs", "chunk_size": "40", "overlap": "5",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	res := decode[app.IngestResult](t, env)
	assert.Equal(t, "docs", res.Document.Namespace)
	assert.Equal(t, 40, res.Document.ChunkSize)
	assert.Len(t, res.Chunks, res.Document.Chunks)
	id := res.Document.ID

	code, env = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/", nil))
	require.Equal(t, http.StatusOK, code)
	list := decode[struct {
		Documents []app.DocumentRecord `json:"documents"`
		Total     int                  `json:"total"`
	}](t, env)
	assert.Equal(t, 1, list.Total)

	code, env = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id, nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "z.txt", decode[app.DocumentRecord](t, env).FileName)

	code, _ = ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+id, nil))
	require.Equal(t, http.StatusOK, code)

	code, env = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id, nil))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, apperr.ErrDocumentNotFound, env.Code)
}

func TestDocuments_BadForm(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.postFile(t, "/api/v1/documents/", "z.txt", "text/plain", []byte(textZ), map[string]string{"chunk_size": "big"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidParams, env.Code)

	code, env = ts.postFile(t, "/api/v1/documents/", "z.txt", "text/plain", []byte(textZ), map[string]string{"chunk_size": "10", "overlap": "10"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidChunkParams, env.Code)
}

func TestEmbeddings(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.postJSON(t, "/api/v1/store-embeddings/", map[string]any{
		"embeddings": [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		"namespace":  "raw",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.EqualValues(t, 3, decode[map[string]any](t, env)["count"])

	code, env = ts.postJSON(t, "/api/v1/search-embeddings/", map[string]any{
		"query_embedding": []float32{0, 0.9, 0.1},
		"namespace":       "raw",
		"k":               1,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	results := decode[struct {
		Results []vectorstore.Match `json:"results"`
	}](t, env).Results
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)

	code, env = ts.postJSON(t, "/api/v1/store-embeddings/", map[string]any{
		"embeddings": [][]float32{{1, 0, 0}},
		"ids":        []string{"a", "b"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidParams, env.Code)

	code, env = ts.postJSON(t, "/api/v1/search-embeddings/", map[string]any{
		"query_embedding": []float32{1, 0, 0},
		"namespace":       "raw",
		"k":               0,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidSearchParams, env.Code)

	// vectors of another length are rejected and leave the namespace usable
	code, env = ts.postJSON(t, "/api/v1/store-embeddings/", map[string]any{
		"embeddings": [][]float32{{1, 0, 0}, {0, 1}},
		"namespace":  "mixed",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidParams, env.Code)

	code, env = ts.postJSON(t, "/api/v1/store-embeddings/", map[string]any{
		"embeddings": [][]float32{{0, 1}},
		"ids":        []string{"short"},
		"namespace":  "raw",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidParams, env.Code)

	code, env = ts.postJSON(t, "/api/v1/search-embeddings/", map[string]any{
		"query_embedding": []float32{0, 1},
		"namespace":       "raw",
		"k":               1,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidSearchParams, env.Code)

	code, env = ts.postJSON(t, "/api/v1/search-embeddings/", map[string]any{
		"query_embedding": []float32{1, 0, 0},
		"namespace":       "raw",
		"k":               3,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Len(t, decode[struct {
		Results []vectorstore.Match `json:"results"`
	}](t, env).Results, 3)

	code, env = ts.postJSON(t, "/api/v1/embeddings/", map[string]any{"texts": []string{"abc", "zzz"}})
	require.Equal(t, http.StatusOK, code)
	vectors := decode[struct {
		Embeddings [][]float32 `json:"embeddings"`
	}](t, env).Embeddings
	assert.Len(t, vectors, 2)
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	ts.postFile(t, "/api/v1/documents/", "z.txt", "text/plain", []byte(textZ), nil)

	code, env := ts.postJSON(t, "/api/v1/search/", map[string]any{"query": "zzz yyy", "k": 2})
	require.Equal(t, http.StatusOK, code, env.Message)
	results := decode[struct {
		Results []vectorstore.Match `json:"results"`
	}](t, env).Results
	require.Len(t, results, 2)
	assert.Equal(t, "z.txt", results[0].Metadata["source"])

	code, env = ts.postJSON(t, "/api/v1/search/", map[string]any{"query": "zzz"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[map[string][]vectorstore.Match](t, env)["results"], 3)

	code, env = ts.postJSON(t, "/api/v1/search/", map[string]any{"query": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidParams, env.Code)

	code, env = ts.postJSON(t, "/api/v1/search/", map[string]any{"query": "zzz", "k": -1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidSearchParams, env.Code)
}

func TestReport(t *testing.T) {
	ts := newTestServer(t)
	ts.postFile(t, "/api/v1/documents/", "z.txt", "text/plain", []byte(textZ), nil)

	code, env := ts.postJSON(t, "/api/v1/report/", map[string]any{"question": "is zzz a fit?", "format": "markdown"})
	require.Equal(t, http.StatusOK, code, env.Message)

	got := decode[reportResponse](t, env)
	assert.Equal(t, 77, got.Report.Score)
	assert.Equal(t, "Good Fit", got.Report.Verdict)
	assert.Equal(t, "markdown", got.Format)
	assert.Contains(t, got.Rendered, "# Suitability Report")

	code, env = ts.postJSON(t, "/api/v1/report/", map[string]any{"question": "q", "format": "html"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, decode[reportResponse](t, env).Rendered, "<h1>Suitability Report</h1>")

	code, env = ts.postJSON(t, "/api/v1/report/", map[string]any{"question": "q", "format": "pdf"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidParams, env.Code)

	ts.llm.err = errors.New("upstream down")
	code, env = ts.postJSON(t, "/api/v1/report/", map[string]any{"question": "q"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, apperr.ErrLLMFailed, env.Code)
}

func TestResumeReport(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.postFile(t, "/api/v1/report/resume/", "cv.txt", "text/plain", []byte(textZ), map[string]string{
		"job_description": "zzz engineer",
		"k":               "2",
	})
	require.Equal(t, http.StatusOK, code, env.Message)

	got := decode[reportResponse](t, env)
	require.NotNil(t, got.Document)
	assert.Equal(t, app.ResumeNamespace(got.Document.ID), got.Document.Namespace)
	assert.Len(t, got.Report.Sources, 2)

	code, env = ts.postFile(t, "/api/v1/report/resume/", "cv.txt", "text/plain", []byte(textZ), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrInvalidParams, env.Code)
}

func TestServe_Shutdown(t *testing.T) {
	ts := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

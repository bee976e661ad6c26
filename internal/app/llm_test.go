package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"compliance_checker/internal/config"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLLMServer(t *testing.T, status int, content string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func llmConfig(baseURL string) *config.Config {
	return &config.Config{
		LLMBaseURL:     baseURL + "/v1/",
		LLMAPIKey:      "secret",
		LLMModel:       "test-model",
		LLMMaxTokens:   256,
		LLMTemperature: 0.1,
		LLMTimeout:     5 * time.Second,
		LLMJSONMode:    true,
	}
}

func TestOpenAILLM_WithoutJSONMode(t *testing.T) {
	srv, got := newLLMServer(t, http.StatusOK, goodAnswer)

	cfg := llmConfig(srv.URL)
	cfg.LLMJSONMode = false
	_, err := NewOpenAILLM(cfg).Complete(context.Background(), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hi"},
	})
	require.NoError(t, err)

	_, sent := (*got)["response_format"]
	assert.False(t, sent)
}

func TestOpenAILLM_Complete(t *testing.T) {
	srv, got := newLLMServer(t, http.StatusOK, goodAnswer)

	llm := NewOpenAILLM(llmConfig(srv.URL))
	answer, err := llm.Complete(context.Background(), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "sys"},
		{Role: openai.ChatMessageRoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, goodAnswer, answer)

	req := *got
	assert.Equal(t, "test-model", req["model"])
	assert.EqualValues(t, 256, req["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])
	assert.Len(t, req["messages"], 2)
}

func TestOpenAILLM_ErrorStatus(t *testing.T) {
	srv, _ := newLLMServer(t, http.StatusInternalServerError, "")

	_, err := NewOpenAILLM(llmConfig(srv.URL)).Complete(context.Background(), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hi"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestReportThroughOpenAILLM(t *testing.T) {
	srv, _ := newLLMServer(t, http.StatusOK, "```json\n"+goodAnswer+"\n```")

	env := newTestEnv(t)
	env.app.llm = NewOpenAILLM(llmConfig(srv.URL))
	env.ingest(t, "z.txt", textZ, "")

	report, err := env.app.Report(context.Background(), "zzz?", "", 1)
	require.NoError(t, err)
	assert.Equal(t, 82, report.Score)
	assert.Len(t, report.Sources, 1)
}

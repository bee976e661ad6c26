package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"compliance_checker/internal/config"

	"github.com/sashabaranov/go-openai"
)

// LLM answers a chat conversation.
type LLM interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// OpenAILLM talks to any OpenAI compatible chat endpoint, Ollama's /v1
// included.
type OpenAILLM struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	jsonMode    bool
}

func NewOpenAILLM(cfg *config.Config) *OpenAILLM {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.LLMBaseURL, "/")

	return &OpenAILLM{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.LLMModel,
		maxTokens:   cfg.LLMMaxTokens,
		temperature: cfg.LLMTemperature,
		timeout:     cfg.LLMTimeout,
		jsonMode:    cfg.LLMJSONMode,
	}
}

// Complete returns the first choice. In JSON mode the endpoint is asked for
// a JSON object answer.
func (l *OpenAILLM) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    messages,
		MaxTokens:   l.maxTokens,
		Temperature: l.temperature,
	}
	if l.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("LLM returned status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from LLM")
	}

	return resp.Choices[0].Message.Content, nil
}

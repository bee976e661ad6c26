package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"compliance_checker/internal/logger"

	"go.uber.org/zap"
)

type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

type ollamaPullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// EnsureOllamaModels checks that Ollama answers at baseURL and pulls any of
// models it does not have yet.
func EnsureOllamaModels(ctx context.Context, client *http.Client, baseURL string, models ...string) error {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	baseURL = strings.TrimRight(baseURL, "/")
	log := logger.FromContext(ctx).Named("ollama")

	available, err := ollamaModels(ctx, client, baseURL)
	if err != nil {
		return fmt.Errorf("ollama is not running or not reachable at %s: %w", baseURL, err)
	}

	for _, model := range models {
		if model == "" || hasModel(available, model) {
			log.Debug("model is available", zap.String("model", model))
			continue
		}

		log.Info("model not found, pulling", zap.String("model", model))
		if err := pullModel(ctx, client, baseURL, model); err != nil {
			return err
		}
		log.Info("model pulled", zap.String("model", model))
	}
	return nil
}

func ollamaModels(ctx context.Context, client *http.Client, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name, m.Model)
	}
	return names, nil
}

// hasModel treats "name" and "name:latest" as the same model.
func hasModel(available []string, model string) bool {
	want := model
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, name := range available {
		if name == model || name == want {
			return true
		}
	}
	return false
}

func pullModel(ctx context.Context, client *http.Client, baseURL, model string) error {
	b, err := json.Marshal(ollamaPullRequest{Name: model, Stream: false})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/pull", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to pull model %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("failed to pull model %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

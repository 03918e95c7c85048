package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/newsjacker/internal/logging"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, timeout time.Duration) *OllamaProvider {
	if model == "" {
		model = "qwen2.5:7b"
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaProvider{
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	logging.Warn("ollama model not found", "model", o.Model)
	return false
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0.7,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: "ollama", StatusCode: resp.StatusCode, Message: upstreamMessage(resp)}
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		DoneReason string `json:"done_reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if result.DoneReason == "length" {
		return "", fmt.Errorf("ollama: %w", ErrTruncated)
	}

	return result.Message.Content, nil
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider is an OpenAI chat completions provider.
type OpenAIProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(model, apiKeyEnv string, timeout time.Duration) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: openAIBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OpenAIProvider) Name() string { return "openai" }

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate sends a prompt to OpenAI and returns the response.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("openai: %w", ErrMissingCredentials)
	}

	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  maxTokens,
		"temperature": 0.7,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(o.BaseURL, "/")+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: "openai", StatusCode: resp.StatusCode, Message: upstreamMessage(resp)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	if result.Choices[0].FinishReason == "length" {
		return "", fmt.Errorf("openai: %w", ErrTruncated)
	}

	return result.Choices[0].Message.Content, nil
}

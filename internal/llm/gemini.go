package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider calls the Gemini generateContent API.
type GeminiProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini provider reading its key from apiKeyEnv.
func NewGeminiProvider(model, apiKeyEnv string, timeout time.Duration) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: geminiBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GeminiProvider) Name() string { return "gemini" }

// IsConfigured checks if the API key is set.
func (g *GeminiProvider) IsConfigured() bool {
	return g.APIKey != ""
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Generate sends a prompt to Gemini and returns the response text.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if g.APIKey == "" {
		return "", fmt.Errorf("gemini: %w", ErrMissingCredentials)
	}

	data, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: maxTokens, Temperature: 0.7},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.BaseURL, "/"), url.PathEscape(g.Model), url.QueryEscape(g.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: "gemini", StatusCode: resp.StatusCode, Message: upstreamMessage(resp)}
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in gemini response")
	}

	cand := result.Candidates[0]
	if cand.FinishReason == "MAX_TOKENS" {
		return "", fmt.Errorf("gemini: %w", ErrTruncated)
	}
	if len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("empty gemini response (finish reason %q)", cand.FinishReason)
	}

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

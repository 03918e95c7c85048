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

	"golang.org/x/time/rate"
)

// Embedder turns text into a fixed-length vector. Implementations do not
// retry; every failure is returned as *EmbeddingError.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedOptions selects and configures an embedder.
type EmbedOptions struct {
	Provider          string
	Model             string
	APIKeyEnv         string
	OllamaURL         string
	Timeout           time.Duration
	RequestsPerMinute int
}

// CreateEmbedder returns the configured embedding provider.
func CreateEmbedder(opts EmbedOptions) (Embedder, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	switch strings.ToLower(opts.Provider) {
	case "", "openai":
		return NewOpenAIEmbedder(opts.Model, opts.APIKeyEnv, timeout, opts.RequestsPerMinute), nil
	case "ollama":
		return NewOllamaEmbedder(opts.Model, opts.OllamaURL, timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenAIEmbedder creates an OpenAI embedder limited to rpm requests per
// minute. rpm <= 0 disables limiting.
func NewOpenAIEmbedder(model, apiKeyEnv string, timeout time.Duration, rpm int) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-ada-002"
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return &OpenAIEmbedder{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: openAIBaseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Embed returns the embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Provider: "openai", Err: err}
	}
	return vec, nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, text string) ([]float64, error) {
	if e.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	data, err := json.Marshal(map[string]any{"model": e.Model, "input": text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(e.BaseURL, "/")+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, upstreamMessage(resp))
	}

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embeddings: %w", err)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return result.Data[0].Embedding, nil
}

// OllamaEmbedder generates embeddings via the Ollama API.
type OllamaEmbedder struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaEmbedder creates a new Ollama embedder.
func NewOllamaEmbedder(model, baseURL string, timeout time.Duration) *OllamaEmbedder {
	if model == "" {
		model = "nomic-embed-text"
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaEmbedder{
		Model:   model,
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Embed returns the embedding of text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Provider: "ollama", Err: err}
	}
	return vec, nil
}

func (e *OllamaEmbedder) embed(ctx context.Context, text string) ([]float64, error) {
	data, err := json.Marshal(map[string]any{"model": e.Model, "input": text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/api/embed", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, upstreamMessage(resp))
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embeddings: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return result.Embeddings[0], nil
}

// Package llm talks to text-completion and embedding providers.
package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/newsjacker/internal/logging"
)

// Provider is the interface for text-completion providers.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// Options selects and configures a provider.
type Options struct {
	Provider  string
	Model     string
	APIKeyEnv string
	OllamaURL string
	Timeout   time.Duration
}

const defaultTimeout = 60 * time.Second

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

// CreateProvider returns the configured completion provider. When it is not
// usable, the remaining hosted providers are tried before giving up.
func CreateProvider(opts Options) Provider {
	name := strings.ToLower(opts.Provider)
	if p := newProvider(name, opts); p != nil && p.IsConfigured() {
		logging.Info("using LLM provider", "provider", p.Name(), "model", opts.Model)
		return p
	}

	logging.Warn("LLM provider not available, trying fallbacks", "provider", name)
	for _, fallback := range []Provider{
		NewGeminiProvider("", "GEMINI_API_KEY", opts.timeout()),
		NewOpenAIProvider("", "OPENAI_API_KEY", opts.timeout()),
		NewAnthropicProvider("", "ANTHROPIC_API_KEY", opts.timeout()),
	} {
		if fallback.Name() != name && fallback.IsConfigured() {
			logging.Info("using fallback LLM provider", "provider", fallback.Name())
			return fallback
		}
	}

	logging.Error("no LLM provider available; set an API key or start Ollama")
	return nil
}

func newProvider(name string, opts Options) Provider {
	switch name {
	case "gemini":
		return NewGeminiProvider(opts.Model, opts.APIKeyEnv, opts.timeout())
	case "openai":
		return NewOpenAIProvider(opts.Model, opts.APIKeyEnv, opts.timeout())
	case "anthropic":
		return NewAnthropicProvider(opts.Model, opts.APIKeyEnv, opts.timeout())
	case "ollama":
		return NewOllamaProvider(opts.Model, opts.OllamaURL, opts.timeout())
	default:
		return nil
	}
}

// upstreamMessage extracts a readable message from an error response body,
// preferring the common {"error": {"message": ...}} shape.
func upstreamMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && len(parsed.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(parsed.Error, &flat) == nil && flat != "" {
			return flat
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return msg
}

package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Anthropic Messages API through the official SDK.
type AnthropicProvider struct {
	Model  string
	apiKey string
	client anthropic.Client
}

// NewAnthropicProvider creates an Anthropic provider. Extra request options,
// such as a base URL override, are passed to the SDK client.
func NewAnthropicProvider(model, apiKeyEnv string, timeout time.Duration, opts ...option.RequestOption) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	key := os.Getenv(apiKeyEnv)
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(key),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicProvider{
		Model:  model,
		apiKey: key,
		client: anthropic.NewClient(reqOpts...),
	}
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

// IsConfigured checks if the API key is set.
func (a *AnthropicProvider) IsConfigured() bool {
	return a.apiKey != ""
}

// Generate sends a single user message and concatenates the text blocks of the reply.
func (a *AnthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("anthropic: %w", ErrMissingCredentials)
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if string(resp.StopReason) == "max_tokens" {
		return "", fmt.Errorf("anthropic: %w", ErrTruncated)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return sb.String(), nil
}

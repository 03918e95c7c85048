package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a completion was cut off by the output token limit.
	ErrTruncated = errors.New("response truncated by token limit")

	// ErrNotConfigured is returned when no completion provider is available.
	ErrNotConfigured = errors.New("no LLM provider configured")

	// ErrMissingCredentials is returned when a required API key is absent.
	ErrMissingCredentials = errors.New("missing API credentials")
)

// APIError is a non-success response from a completion provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// EmbeddingError wraps any failure of an embedding provider.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s embedding failed: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

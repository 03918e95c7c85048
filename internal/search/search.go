// Package search queries web-search providers and normalizes their results
// into candidate documents.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultWindow is how far back providers are asked to look.
const DefaultWindow = 24 * time.Hour

// Provider is a web-search collaborator.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int, window time.Duration) ([]RawResult, error)
}

// RawResult is one provider hit before normalization. Providers disagree on
// where the outlet name lives, so every known alias is carried.
type RawResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	PublishedDate string `json:"published_date,omitempty"`
	Source        string `json:"source,omitempty"`
	Domain        string `json:"domain,omitempty"`
	Hostname      string `json:"hostname,omitempty"`
	Publication   string `json:"publication,omitempty"`
	Publisher     string `json:"publisher,omitempty"`
}

// Candidate is a normalized search result.
type Candidate struct {
	Title       string
	Content     string
	Source      string
	URL         string
	PublishedAt time.Time
	// DateKnown is false when the provider gave no usable publish date and
	// PublishedAt was filled with the fetch time.
	DateKnown bool
}

// ErrMissingCredentials is returned by providers whose API key is absent.
var ErrMissingCredentials = errors.New("search provider credentials not configured")

// ProviderError reports that a search could not be performed.
type ProviderError struct {
	Provider string
	Query    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider %s failed for %q: %v", e.Provider, e.Query, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// MalformedDataError reports an upstream payload that could not be decoded.
type MalformedDataError struct {
	Provider string
	Err      error
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Provider, e.Err)
}

func (e *MalformedDataError) Unwrap() error {
	return e.Err
}

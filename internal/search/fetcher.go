package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/newsjacker/internal/logging"
)

// Fetcher runs a term through a provider and returns normalized candidates.
type Fetcher struct {
	provider Provider
	timeout  time.Duration
	window   time.Duration
	now      func() time.Time
}

// NewFetcher creates a Fetcher. Each provider call is bounded by timeout.
func NewFetcher(p Provider, timeout, window time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Fetcher{provider: p, timeout: timeout, window: window, now: time.Now}
}

// Search queries the provider for term. Provider failures come back as
// *ProviderError and are not retried. Undecodable payloads are logged and
// treated as zero results.
func (f *Fetcher) Search(ctx context.Context, term string, maxResults int) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	raw, err := f.provider.Search(ctx, term, maxResults, f.window)
	if err != nil {
		var malformed *MalformedDataError
		if errors.As(err, &malformed) {
			logging.Warn("discarding malformed search payload", "provider", f.provider.Name(), "term", term, "error", err)
			return nil, nil
		}
		return nil, &ProviderError{Provider: f.provider.Name(), Query: term, Err: err}
	}

	now := f.now()
	candidates := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		c, ok := normalize(r, now)
		if !ok {
			logging.Debug("skipping search result without URL", "provider", f.provider.Name(), "title", r.Title)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func normalize(r RawResult, now time.Time) (Candidate, bool) {
	url := strings.TrimSpace(r.URL)
	if url == "" {
		return Candidate{}, false
	}

	c := Candidate{
		Title:       strings.TrimSpace(r.Title),
		Content:     strings.TrimSpace(r.Content),
		Source:      ExtractSource(r),
		URL:         url,
		PublishedAt: now,
	}
	if c.Title == "" {
		c.Title = url
	}
	if t, ok := ParsePublished(r.PublishedDate); ok {
		c.PublishedAt = t
		c.DateKnown = true
	}
	return c, true
}

// ParsePublished parses the many date layouts providers emit.
func ParsePublished(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

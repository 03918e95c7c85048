// Package fetch fills in article text for search results that arrive with
// only a short snippet.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/newsjacker/internal/logging"
	"github.com/TobiSchelling/newsjacker/internal/search"
)

const maxBodyBytes = 5 << 20

// Result holds the results of an enrichment pass.
type Result struct {
	Fetched           int
	AlreadyHadContent int
	Failed            int
}

// ContentFetcher fetches full article text via HTTP + readability extraction.
type ContentFetcher struct {
	minLength int
	client    *http.Client
}

// NewContentFetcher creates a fetcher that enriches candidates whose content
// is shorter than minLength characters.
func NewContentFetcher(minLength int, timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		minLength: minLength,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Enrich replaces thin snippets with extracted page text. Candidates that
// cannot be fetched keep their snippet. After an HTTP error status, the rest
// of that domain is skipped for this batch.
func (f *ContentFetcher) Enrich(ctx context.Context, candidates []search.Candidate) ([]search.Candidate, *Result) {
	result := &Result{}
	failedDomains := make(map[string]struct{})

	out := make([]search.Candidate, len(candidates))
	copy(out, candidates)

	for i, c := range out {
		if len([]rune(c.Content)) >= f.minLength {
			result.AlreadyHadContent++
			continue
		}

		domain := domainOf(c.URL)
		if _, failed := failedDomains[domain]; failed {
			result.Failed++
			continue
		}

		content, err := f.fetchArticleContent(ctx, c.URL)
		if err != nil {
			result.Failed++
			if _, ok := err.(*httpError); ok && domain != "" {
				failedDomains[domain] = struct{}{}
				logging.Debug("skipping remaining articles from domain", "domain", domain, "url", c.URL, "status", err)
			}
			continue
		}
		if content == "" {
			result.Failed++
			continue
		}

		out[i].Content = content
		result.Fetched++
	}

	if result.Fetched+result.Failed > 0 {
		logging.Debug("content enrichment", "fetched", result.Fetched, "failed", result.Failed)
	}
	return out, result
}

func (f *ContentFetcher) fetchArticleContent(ctx context.Context, articleURL string) (string, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "newsjacker/1.0 (content assistant)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}

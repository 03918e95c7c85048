package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/TobiSchelling/newsjacker/internal/logging"
)

// MultiProvider fans a query out to several providers in order and merges
// their hits, keeping the first result seen for each URL.
type MultiProvider struct {
	providers []Provider
}

// NewMultiProvider combines providers.
func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

func (m *MultiProvider) Name() string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

// Search returns at most maxResults hits and fails only when every provider
// failed. Such a failure is a *MalformedDataError only if every provider
// returned one; otherwise the non-malformed errors are reported.
func (m *MultiProvider) Search(ctx context.Context, query string, maxResults int, window time.Duration) ([]RawResult, error) {
	var (
		merged []RawResult
		errs   []error
		seen   = make(map[string]struct{})
	)
	for _, p := range m.providers {
		if maxResults > 0 && len(merged) >= maxResults {
			break
		}
		results, err := p.Search(ctx, query, maxResults, window)
		if err != nil {
			logging.Warn("search provider failed", "provider", p.Name(), "query", query, "error", err)
			errs = append(errs, err)
			continue
		}
		for _, r := range results {
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			merged = append(merged, r)
			if maxResults > 0 && len(merged) == maxResults {
				break
			}
		}
	}

	if len(m.providers) > 0 && len(errs) == len(m.providers) {
		return nil, joinFailures(errs)
	}
	return merged, nil
}

func joinFailures(errs []error) error {
	var outages []error
	for _, err := range errs {
		var malformed *MalformedDataError
		if !errors.As(err, &malformed) {
			outages = append(outages, err)
		}
	}
	if len(outages) == 0 {
		return errors.Join(errs...)
	}
	return errors.Join(outages...)
}

package search

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/newsjacker/internal/logging"
)

// Feed is a configured RSS or Atom feed.
type Feed struct {
	URL  string
	Name string
}

// FeedProvider searches a fixed list of feeds by matching every word of the
// query against item titles and descriptions.
type FeedProvider struct {
	feeds  []Feed
	parser *gofeed.Parser
	now    func() time.Time
}

// NewFeedProvider creates a FeedProvider.
func NewFeedProvider(feeds []Feed) *FeedProvider {
	return &FeedProvider{feeds: feeds, parser: gofeed.NewParser(), now: time.Now}
}

func (fp *FeedProvider) Name() string { return "rss" }

// Search returns matching items published inside window. Individual feed
// failures are logged; an error is returned only when every feed failed.
func (fp *FeedProvider) Search(ctx context.Context, query string, maxResults int, window time.Duration) ([]RawResult, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 || len(fp.feeds) == 0 {
		return nil, nil
	}
	cutoff := fp.now().Add(-window)

	var (
		results []RawResult
		lastErr error
		failed  int
	)
	for _, f := range fp.feeds {
		name := f.Name
		if name == "" {
			name = extractSourceName(f.URL)
		}

		feed, err := fp.parser.ParseURLWithContext(f.URL, ctx)
		if err != nil {
			logging.Warn("failed to parse feed", "url", f.URL, "error", err)
			lastErr = err
			failed++
			continue
		}

		for _, item := range feed.Items {
			if maxResults > 0 && len(results) >= maxResults {
				return results, nil
			}
			r, ok := parseItem(item, name)
			if !ok || !matches(r, words) || !withinWindow(item, cutoff) {
				continue
			}
			results = append(results, r)
		}
	}

	if failed == len(fp.feeds) {
		return nil, lastErr
	}
	return results, nil
}

func parseItem(item *gofeed.Item, source string) (RawResult, bool) {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if itemURL == "" || title == "" {
		return RawResult{}, false
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format(time.RFC3339)
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	var publisher string
	if item.Author != nil {
		publisher = item.Author.Name
	}

	return RawResult{
		Title:         title,
		URL:           itemURL,
		Content:       stripHTML(content),
		PublishedDate: published,
		Source:        source,
		Publisher:     publisher,
	}, true
}

func matches(r RawResult, words []string) bool {
	haystack := strings.ToLower(r.Title + " " + r.Content)
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

// withinWindow gives undated items the benefit of the doubt.
func withinWindow(item *gofeed.Item, cutoff time.Time) bool {
	pub := item.PublishedParsed
	if pub == nil {
		pub = item.UpdatedParsed
	}
	if pub == nil {
		return true
	}
	return !pub.Before(cutoff)
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			result.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}

	s := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(result.String())

	return strings.Join(strings.Fields(s), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	if name == "" {
		name = strings.Trim(host, ".")
	}
	if name == "" {
		return UnknownSource
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

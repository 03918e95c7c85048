package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func rssFeed(now time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Green Daily</title>
<item><title>Eco packaging goes mainstream</title><link>https://green.example/1</link>
<description>&lt;p&gt;Retailers adopt &lt;b&gt;eco&lt;/b&gt; packaging&lt;/p&gt;</description>
<pubDate>%s</pubDate></item>
<item><title>Old eco packaging story</title><link>https://green.example/2</link>
<description>packaging history</description><pubDate>%s</pubDate></item>
<item><title>Unrelated sports news</title><link>https://green.example/3</link>
<pubDate>%s</pubDate></item>
</channel></rss>`,
		now.Add(-2*time.Hour).Format(time.RFC1123Z),
		now.Add(-72*time.Hour).Format(time.RFC1123Z),
		now.Add(-time.Hour).Format(time.RFC1123Z),
	)
}

func TestFeedProviderMatchesWithinWindow(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed(now)))
	}))
	defer srv.Close()

	fp := NewFeedProvider([]Feed{{URL: srv.URL, Name: "Green Daily"}})
	got, err := fp.Search(context.Background(), "Eco Packaging", 10, DefaultWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://green.example/1" || got[0].Source != "Green Daily" {
		t.Errorf("unexpected result: %+v", got[0])
	}
	if got[0].Content != "Retailers adopt eco packaging" {
		t.Errorf("expected stripped HTML, got %q", got[0].Content)
	}
	if _, ok := ParsePublished(got[0].PublishedDate); !ok {
		t.Errorf("expected parseable date, got %q", got[0].PublishedDate)
	}
}

func TestFeedProviderAllFeedsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fp := NewFeedProvider([]Feed{{URL: srv.URL}})
	if _, err := fp.Search(context.Background(), "eco", 3, DefaultWindow); err == nil {
		t.Error("expected error when every feed fails")
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<p>Hello&nbsp;<b>world</b> &amp; friends</p>")
	if got != "Hello world & friends" {
		t.Errorf("unexpected: %q", got)
	}
}

func TestExtractSourceName(t *testing.T) {
	tests := map[string]string{
		"https://www.theverge.com/rss/index.xml": "Theverge",
		"https://blog.example.org/feed":          "Example",
		"https://localhost/feed":                 "Localhost",
		"http://.com/feed":                       "Com",
		"http://./feed":                          UnknownSource,
	}
	for in, want := range tests {
		if got := extractSourceName(in); got != want {
			t.Errorf("extractSourceName(%q): expected %q, got %q", in, want, got)
		}
	}
}

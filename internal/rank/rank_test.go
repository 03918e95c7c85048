package rank

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/newsjacker/internal/llm"
	"github.com/TobiSchelling/newsjacker/internal/search"
)

// fakeEmbedder returns a fixed vector per text, or an error for texts in fail.
type fakeEmbedder struct {
	vectors map[string][]float64
	fail    map[string]bool
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.fail[text] {
		return nil, &llm.EmbeddingError{Provider: "fake", Err: errors.New("upstream 500")}
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0}, nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRanker(e llm.Embedder) *Ranker {
	r := New(e, time.Second)
	r.now = func() time.Time { return now }
	return r
}

// vectorWithSimilarity returns a unit vector whose cosine with [1,0] is sim.
func vectorWithSimilarity(sim float64) []float64 {
	return []float64{sim, math.Sqrt(1 - sim*sim)}
}

func TestRankEndToEndExample(t *testing.T) {
	e := &fakeEmbedder{vectors: map[string][]float64{
		"reuters body": vectorWithSimilarity(0.9),
		"blog body":    vectorWithSimilarity(0.95),
	}}
	candidates := []search.Candidate{
		{Title: "Blog", Content: "blog body", Source: "someblog.dev", URL: "https://blog.dev/1", PublishedAt: now.Add(-40 * time.Hour), DateKnown: true},
		{Title: "Wire", Content: "reuters body", Source: "Reuters", URL: "https://reuters.com/1", PublishedAt: now.Add(-30 * time.Minute), DateKnown: true},
	}

	res := newTestRanker(e).Rank(context.Background(), "acme", "packaging", candidates, []float64{1, 0})
	if len(res.Drafts) != 2 || len(res.Dropped) != 0 {
		t.Fatalf("expected 2 drafts, got %d (dropped %d)", len(res.Drafts), len(res.Dropped))
	}

	top, second := res.Drafts[0], res.Drafts[1]
	if top.URL != "https://reuters.com/1" {
		t.Errorf("expected Reuters first, got %s", top.URL)
	}
	if math.Abs(top.FinalScore-0.967396) > 1e-5 {
		t.Errorf("expected Reuters score ~0.967396, got %f", top.FinalScore)
	}
	if math.Abs(second.FinalScore-0.761667) > 1e-5 {
		t.Errorf("expected blog score ~0.761667, got %f", second.FinalScore)
	}
	if !top.IsTrending || second.IsTrending {
		t.Errorf("expected only the fresh article to trend: %v / %v", top.IsTrending, second.IsTrending)
	}
	if top.OwnerID != "acme" || top.SearchTerm != "packaging" {
		t.Errorf("unexpected owner/term on draft: %+v", top)
	}
}

func TestRankDropsFailedEmbeddings(t *testing.T) {
	e := &fakeEmbedder{fail: map[string]bool{"bad": true}}
	candidates := []search.Candidate{
		{Title: "one", Content: "good one", URL: "https://x.com/1"},
		{Title: "two", Content: "bad", URL: "https://x.com/2"},
		{Title: "three", Content: "good three", URL: "https://x.com/3"},
	}

	res := newTestRanker(e).Rank(context.Background(), "acme", "t", candidates, []float64{1, 0})
	if len(res.Drafts) != 2 {
		t.Errorf("expected 2 drafts, got %d", len(res.Drafts))
	}
	if len(res.Dropped) != 1 || res.Dropped[0].URL != "https://x.com/2" {
		t.Fatalf("expected candidate 2 dropped, got %+v", res.Dropped)
	}
	var embErr *llm.EmbeddingError
	if !errors.As(res.Dropped[0].Err, &embErr) {
		t.Errorf("expected EmbeddingError, got %v", res.Dropped[0].Err)
	}
	if e.calls != 3 {
		t.Errorf("expected every candidate to be attempted, got %d calls", e.calls)
	}
}

func TestRankStableForTies(t *testing.T) {
	candidates := []search.Candidate{
		{Content: "a", URL: "https://x.com/a", PublishedAt: now, DateKnown: true},
		{Content: "b", URL: "https://x.com/b", PublishedAt: now, DateKnown: true},
		{Content: "c", URL: "https://x.com/c", PublishedAt: now, DateKnown: true},
	}
	for i := 0; i < 5; i++ {
		res := newTestRanker(&fakeEmbedder{}).Rank(context.Background(), "acme", "t", candidates, []float64{1, 0})
		for j, want := range []string{"a", "b", "c"} {
			if res.Drafts[j].URL != "https://x.com/"+want {
				t.Fatalf("run %d: expected input order for ties, got %s at %d", i, res.Drafts[j].URL, j)
			}
		}
	}
}

func TestRankMismatchedDimensions(t *testing.T) {
	e := &fakeEmbedder{vectors: map[string][]float64{"x": {1, 0, 0}}}
	res := newTestRanker(e).Rank(context.Background(), "acme", "t",
		[]search.Candidate{{Content: "x", URL: "https://x.com"}}, []float64{1, 0})
	if len(res.Drafts) != 1 {
		t.Fatalf("expected mismatch to be tolerated, got %d drafts", len(res.Drafts))
	}
	if res.Drafts[0].SimilarityScore != 1 {
		t.Errorf("expected zero-padded similarity 1, got %f", res.Drafts[0].SimilarityScore)
	}
}

func TestRankUnknownDate(t *testing.T) {
	c := search.Candidate{Content: "x", URL: "https://x.com", Source: "blog", PublishedAt: now, DateKnown: false}
	d := Draft("acme", "t", c, 1, now)

	// Unknown dates age as 24h: recency 0.5, trending 0.3.
	want := 0.6 + 0.25*0.5 + 0.15
	if math.Abs(d.FinalScore-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, d.FinalScore)
	}
	if d.TrendingScore != 0.3 || d.IsTrending {
		t.Errorf("expected non-trending 0.3, got %f", d.TrendingScore)
	}
}

func TestRankCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &fakeEmbedder{}
	res := newTestRanker(e).Rank(ctx, "acme", "t",
		[]search.Candidate{{Content: "x", URL: "https://x.com/1"}, {Content: "y", URL: "https://x.com/2"}}, []float64{1})
	if len(res.Drafts) != 0 || len(res.Dropped) != 2 {
		t.Errorf("expected all candidates dropped, got %d drafts %d dropped", len(res.Drafts), len(res.Dropped))
	}
	if e.calls != 0 {
		t.Errorf("expected no embed calls, got %d", e.calls)
	}
}

func TestSummarize(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := Summarize(long)
	if got != strings.Repeat("a", 300)+"..." {
		t.Errorf("expected 300 chars + ellipsis, got %d chars", len(got))
	}

	short := strings.Repeat("b", 200)
	if Summarize(short) != short {
		t.Error("expected short content unchanged")
	}

	exact := strings.Repeat("c", 300)
	if Summarize(exact) != exact {
		t.Error("expected content of exactly 300 chars unchanged")
	}

	multibyte := strings.Repeat("é", 301)
	if got := Summarize(multibyte); got != strings.Repeat("é", 300)+"..." {
		t.Error("expected truncation on rune boundaries")
	}
}

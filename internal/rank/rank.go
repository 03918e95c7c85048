// Package rank scores search candidates against a brand embedding.
package rank

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/llm"
	"github.com/TobiSchelling/newsjacker/internal/logging"
	"github.com/TobiSchelling/newsjacker/internal/score"
	"github.com/TobiSchelling/newsjacker/internal/search"
)

// SummaryLength is the preview length of an opportunity summary, in runes.
const SummaryLength = 300

// Dropped is a candidate that could not be ranked.
type Dropped struct {
	URL   string
	Title string
	Err   error
}

// Result holds the drafts of one Rank call, best first.
type Result struct {
	Drafts  []database.OpportunityDraft
	Dropped []Dropped
}

// Ranker embeds candidates and scores them.
type Ranker struct {
	embedder llm.Embedder
	timeout  time.Duration
	now      func() time.Time
}

// New creates a Ranker. Each embed call is bounded by timeout.
func New(embedder llm.Embedder, timeout time.Duration) *Ranker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ranker{embedder: embedder, timeout: timeout, now: time.Now}
}

// Rank embeds and scores every candidate. A candidate whose embedding fails
// is dropped without affecting its siblings. Drafts are sorted by final
// score, descending, keeping input order for ties.
func (r *Ranker) Rank(ctx context.Context, owner, term string, candidates []search.Candidate, brandEmbedding []float64) *Result {
	res := &Result{}
	now := r.now()
	warnedDims := false

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			res.Dropped = append(res.Dropped, Dropped{URL: c.URL, Title: c.Title, Err: err})
			continue
		}

		vec, err := r.embed(ctx, embeddingText(c))
		if err != nil {
			logging.Warn("dropping candidate: embedding failed", "owner", owner, "term", term, "url", c.URL, "error", err)
			res.Dropped = append(res.Dropped, Dropped{URL: c.URL, Title: c.Title, Err: err})
			continue
		}

		if len(vec) != len(brandEmbedding) && !warnedDims {
			warnedDims = true
			logging.Warn("embedding dimension mismatch, comparing with zero padding",
				"owner", owner, "term", term, "brand_dims", len(brandEmbedding), "candidate_dims", len(vec))
		}

		res.Drafts = append(res.Drafts, Draft(owner, term, c, score.CosineSimilarity(brandEmbedding, vec), now))
	}

	sort.SliceStable(res.Drafts, func(i, j int) bool {
		return res.Drafts[i].FinalScore > res.Drafts[j].FinalScore
	})
	return res
}

func (r *Ranker) embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.embedder.Embed(ctx, text)
}

// Draft scores a single candidate given its raw similarity to the brand.
func Draft(owner, term string, c search.Candidate, similarity float64, now time.Time) database.OpportunityDraft {
	age := score.AgeHours(c.PublishedAt, c.DateKnown, now)
	trending := score.TrendingScore(age)
	return database.OpportunityDraft{
		OwnerID:         owner,
		Title:           c.Title,
		Summary:         Summarize(c.Content),
		Content:         c.Content,
		Source:          c.Source,
		URL:             c.URL,
		PublishedAt:     c.PublishedAt,
		SimilarityScore: score.ClampSimilarity(similarity),
		FinalScore:      score.FinalScore(similarity, age, c.Source),
		TrendingScore:   trending,
		IsTrending:      score.IsTrending(trending),
		SearchTerm:      term,
	}
}

// Summarize truncates content to SummaryLength runes, appending "..." when
// something was cut.
func Summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= SummaryLength {
		return content
	}
	return string(runes[:SummaryLength]) + "..."
}

func embeddingText(c search.Candidate) string {
	if strings.TrimSpace(c.Content) != "" {
		return c.Content
	}
	return c.Title
}

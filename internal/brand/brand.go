// Package brand turns an uploaded brand guide into an active search term set.
package brand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/llm"
	"github.com/TobiSchelling/newsjacker/internal/logging"
)

const extractPrompt = `You are a search query extraction expert for newsjacking and content marketing. Analyze the following brand guide and extract search queries that would be useful for monitoring news and creating content.

For each search query, categorize it as one of:
- industry: Terms related to the industry field
- values: Core values, principles, or mission statements
- products: Specific products, services, or offerings
- competitors: Competitor names or competitive terms

Also assign a weight (0.1-1.0) based on importance and relevance to the brand.

Respond with ONLY a JSON array:
[
  {
    "term": "search query phrase",
    "weight": 0.8,
    "category": "industry"
  }
]

Brand Guide:
%s`

const (
	defaultWeight = 0.5
	// Embedding inputs beyond this are cut; the embedding models cap input size.
	maxEmbedChars = 24000
)

// ErrNoTerms is returned when the completion provider yields no usable terms.
var ErrNoTerms = errors.New("no search terms extracted from brand guide")

// Result describes a processed brand guide.
type Result struct {
	GuideID   int64
	TermSetID int64
	Terms     []database.SearchTerm
}

// Processor extracts terms and the brand embedding from a guide.
type Processor struct {
	db        *database.DB
	provider  llm.Provider
	embedder  llm.Embedder
	maxTokens int
}

// NewProcessor creates a brand guide processor.
func NewProcessor(db *database.DB, provider llm.Provider, embedder llm.Embedder, maxTokens int) *Processor {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Processor{db: db, provider: provider, embedder: embedder, maxTokens: maxTokens}
}

// Process stores the guide, extracts weighted search terms, embeds the guide
// and activates the new term set for the owner. The guide row records the
// failure when any step after storing it fails.
func (p *Processor) Process(ctx context.Context, ownerID, name, content string) (*Result, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("brand guide %q is empty", name)
	}

	guideID, err := p.db.InsertBrandGuide(ownerID, name, content)
	if err != nil {
		return nil, err
	}

	res, err := p.process(ctx, ownerID, guideID, content)
	if markErr := p.db.MarkBrandGuideProcessed(guideID, err); markErr != nil {
		logging.Warn("failed to record brand guide state", "guide_id", guideID, "error", markErr)
	}
	if err != nil {
		return nil, fmt.Errorf("processing brand guide %d: %w", guideID, err)
	}
	return res, nil
}

func (p *Processor) process(ctx context.Context, ownerID string, guideID int64, content string) (*Result, error) {
	if p.provider == nil {
		return nil, llm.ErrNotConfigured
	}
	if p.embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}

	terms, err := p.ExtractTerms(ctx, content)
	if err != nil {
		return nil, err
	}

	embedding, err := p.embedder.Embed(ctx, truncate(content, maxEmbedChars))
	if err != nil {
		return nil, err
	}

	setID, err := p.db.SetActiveSearchTerms(ownerID, guideID, terms, embedding)
	if err != nil {
		return nil, err
	}

	logging.Info("brand guide processed",
		"owner", ownerID, "guide_id", guideID, "terms", len(terms), "dims", len(embedding))
	return &Result{GuideID: guideID, TermSetID: setID, Terms: terms}, nil
}

// ExtractTerms asks the completion provider for search terms and normalizes
// them: missing weights and categories get defaults, weights are clamped to
// (0,1], and duplicate phrases are dropped case-insensitively.
func (p *Processor) ExtractTerms(ctx context.Context, content string) ([]database.SearchTerm, error) {
	text, err := p.provider.Generate(ctx, fmt.Sprintf(extractPrompt, content), p.maxTokens)
	if err != nil {
		return nil, err
	}

	var raw []database.SearchTerm
	if !llm.ParseJSONArray(text, &raw) {
		logging.Warn("could not parse search terms from LLM response", "chars", len(text))
		return nil, ErrNoTerms
	}

	terms := normalizeTerms(raw)
	if len(terms) == 0 {
		return nil, ErrNoTerms
	}
	if err := database.ValidateTerms(terms); err != nil {
		return nil, err
	}
	return terms, nil
}

func normalizeTerms(raw []database.SearchTerm) []database.SearchTerm {
	seen := make(map[string]bool, len(raw))
	var terms []database.SearchTerm
	for _, t := range raw {
		t.Term = strings.Join(strings.Fields(t.Term), " ")
		if t.Term == "" {
			continue
		}
		key := strings.ToLower(t.Term)
		if seen[key] {
			continue
		}
		seen[key] = true

		switch {
		case t.Weight <= 0:
			t.Weight = defaultWeight
		case t.Weight > 1:
			t.Weight = 1
		}

		t.Category = strings.ToLower(strings.TrimSpace(t.Category))
		switch t.Category {
		case database.CategoryIndustry, database.CategoryValues,
			database.CategoryProducts, database.CategoryCompetitors:
		default:
			t.Category = database.CategoryIndustry
		}
		terms = append(terms, t)
	}
	return terms
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

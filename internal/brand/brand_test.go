package brand

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/llm"
)

type mockProvider struct {
	response string
	err      error
	prompt   string
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.prompt = prompt
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

type fakeEmbedder struct {
	vec []float64
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return f.vec, f.err
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

const termsResponse = "```json\n" + `[
  {"term": "sustainable packaging", "weight": 0.9, "category": "industry"},
  {"term": "Sustainable  Packaging", "weight": 0.4, "category": "industry"},
  {"term": "zero waste", "category": "Values"},
  {"term": "EcoBox", "weight": 3, "category": "products"},
  {"term": "   ", "weight": 0.5, "category": "industry"},
  {"term": "PlastiCorp", "weight": 0.6, "category": "rivals"}
]` + "\n```"

func TestProcessActivatesTermSet(t *testing.T) {
	db := openTestDB(t)
	prov := &mockProvider{response: termsResponse}
	p := NewProcessor(db, prov, &fakeEmbedder{vec: []float64{0.1, 0.2, 0.3}}, 0)

	res, err := p.Process(context.Background(), "acme", "guide.md", "We make compostable boxes.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prov.prompt, "We make compostable boxes.") {
		t.Error("expected guide content in prompt")
	}
	if len(res.Terms) != 4 {
		t.Fatalf("expected 4 terms after normalization, got %d: %+v", len(res.Terms), res.Terms)
	}

	byTerm := map[string]database.SearchTerm{}
	for _, term := range res.Terms {
		byTerm[term.Term] = term
	}
	if byTerm["sustainable packaging"].Weight != 0.9 {
		t.Errorf("expected first duplicate to win, got %+v", byTerm["sustainable packaging"])
	}
	if byTerm["zero waste"].Weight != defaultWeight || byTerm["zero waste"].Category != database.CategoryValues {
		t.Errorf("expected default weight and lowered category, got %+v", byTerm["zero waste"])
	}
	if byTerm["EcoBox"].Weight != 1 {
		t.Errorf("expected weight clamped to 1, got %v", byTerm["EcoBox"].Weight)
	}
	if byTerm["PlastiCorp"].Category != database.CategoryIndustry {
		t.Errorf("expected unknown category to fall back to industry, got %q", byTerm["PlastiCorp"].Category)
	}

	set, err := db.GetActiveSearchTermSet("acme")
	if err != nil || set == nil {
		t.Fatalf("expected active term set, got %v, %v", set, err)
	}
	if set.ID != res.TermSetID || set.BrandGuideID != res.GuideID {
		t.Errorf("term set does not match result: %+v", set)
	}
	if len(set.BrandEmbedding) != 3 {
		t.Errorf("expected stored brand embedding, got %v", set.BrandEmbedding)
	}

	guide, _ := db.GetLatestBrandGuide("acme")
	if guide == nil || !guide.Processed {
		t.Errorf("expected processed guide, got %+v", guide)
	}
}

func TestProcessReplacesPreviousSet(t *testing.T) {
	db := openTestDB(t)
	p := NewProcessor(db, &mockProvider{response: termsResponse}, &fakeEmbedder{vec: []float64{1}}, 0)
	ctx := context.Background()

	first, err := p.Process(ctx, "acme", "v1", "guide one")
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Process(ctx, "acme", "v2", "guide two")
	if err != nil {
		t.Fatal(err)
	}

	sets, _ := db.GetSearchTermSets("acme")
	active := 0
	for _, s := range sets {
		if s.IsActive {
			active++
			if s.ID != second.TermSetID {
				t.Errorf("expected newest set active, got %d", s.ID)
			}
		}
	}
	if active != 1 {
		t.Errorf("expected exactly 1 active set, got %d", active)
	}
	if first.TermSetID == second.TermSetID {
		t.Error("expected a new term set")
	}
}

func TestProcessUnparsableResponse(t *testing.T) {
	db := openTestDB(t)
	p := NewProcessor(db, &mockProvider{response: "I cannot help with that."}, &fakeEmbedder{vec: []float64{1}}, 0)

	_, err := p.Process(context.Background(), "acme", "guide", "content")
	if !errors.Is(err, ErrNoTerms) {
		t.Fatalf("expected ErrNoTerms, got %v", err)
	}

	guide, _ := db.GetLatestBrandGuide("acme")
	if guide == nil || guide.Processed || guide.ProcessingError == nil {
		t.Errorf("expected guide to record the failure, got %+v", guide)
	}
	if set, _ := db.GetActiveSearchTermSet("acme"); set != nil {
		t.Error("expected no active term set")
	}
}

func TestProcessEmbeddingFailureKeepsPreviousSet(t *testing.T) {
	db := openTestDB(t)
	emb := &fakeEmbedder{vec: []float64{1, 0}}
	p := NewProcessor(db, &mockProvider{response: termsResponse}, emb, 0)
	ctx := context.Background()

	prev, err := p.Process(ctx, "acme", "v1", "guide one")
	if err != nil {
		t.Fatal(err)
	}

	emb.err = &llm.EmbeddingError{Provider: "openai", Err: errors.New("quota exceeded")}
	if _, err := p.Process(ctx, "acme", "v2", "guide two"); err == nil {
		t.Fatal("expected embedding failure")
	}

	set, _ := db.GetActiveSearchTermSet("acme")
	if set == nil || set.ID != prev.TermSetID {
		t.Errorf("expected previous set to stay active, got %+v", set)
	}
}

func TestProcessRequiresInput(t *testing.T) {
	db := openTestDB(t)
	p := NewProcessor(db, &mockProvider{}, &fakeEmbedder{}, 0)

	if _, err := p.Process(context.Background(), "", "guide", "content"); err == nil {
		t.Error("expected error for missing owner")
	}
	if _, err := p.Process(context.Background(), "acme", "guide", "  \n"); err == nil {
		t.Error("expected error for empty guide")
	}
}

func TestProcessWithoutProvider(t *testing.T) {
	db := openTestDB(t)
	p := NewProcessor(db, nil, &fakeEmbedder{}, 0)

	_, err := p.Process(context.Background(), "acme", "guide", "content")
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

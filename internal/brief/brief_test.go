package brief

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/llm"
)

type mockProvider struct {
	respond func(prompt string) (string, error)
	prompts []string
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.respond(prompt)
}

func (m *mockProvider) IsConfigured() bool { return true }

func reply(text string) *mockProvider {
	return &mockProvider{respond: func(string) (string, error) { return text, nil }}
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

func seedOpportunity(t *testing.T, db *database.DB, owner, title string) int64 {
	t.Helper()
	id, _, err := db.UpsertOpportunity(database.OpportunityDraft{
		OwnerID:     owner,
		Title:       title,
		Summary:     title + " summary",
		Content:     title + " content",
		Source:      "Reuters",
		URL:         "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		PublishedAt: time.Now(),
		FinalScore:  0.8,
	})
	if err != nil {
		t.Fatalf("seeding opportunity: %v", err)
	}
	return id
}

func seedGuide(t *testing.T, db *database.DB, owner, content string) {
	t.Helper()
	if _, err := db.InsertBrandGuide(owner, "guide.md", content); err != nil {
		t.Fatalf("seeding brand guide: %v", err)
	}
}

func fixedPolicy() *EmotionPolicy {
	return NewEmotionPolicy(rand.NewPCG(1, 2))
}

func TestEmotionPolicyRequested(t *testing.T) {
	p := fixedPolicy()
	if got := p.Pick("awe"); got != "Awe" {
		t.Errorf("expected known label to be normalized, got %q", got)
	}
	if got := p.Pick("  Nostalgia "); got != "Nostalgia" {
		t.Errorf("expected custom emotion to pass through, got %q", got)
	}
}

func TestEmotionPolicyDeterministic(t *testing.T) {
	a, b := fixedPolicy(), fixedPolicy()
	known := map[string]bool{}
	for _, e := range Emotions {
		known[e] = true
	}
	for i := 0; i < 50; i++ {
		x, y := a.Pick(""), b.Pick("")
		if x != y {
			t.Fatalf("pick %d: same seed diverged: %q vs %q", i, x, y)
		}
		if !known[x] {
			t.Fatalf("pick %d: unknown emotion %q", i, x)
		}
	}
}

func TestGenerateBriefs(t *testing.T) {
	db := openTestDB(t)
	seedGuide(t, db, "acme", strings.Repeat("g", 1500))
	id := seedOpportunity(t, db, "acme", "Packaging Tax Passed")

	prov := reply("```json\n{\"title\": \"Why the Tax Helps Us\", \"brief\": \"Connect the tax to our compostable line.\"}\n```")
	gen := NewGenerator(db, prov, fixedPolicy())

	results, err := gen.GenerateBriefs(context.Background(), "acme", []int64{id}, "hope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("expected one successful result, got %+v", results)
	}

	prompt := prov.prompts[0]
	if !strings.Contains(prompt, "Target Emotion: Hope") {
		t.Error("expected requested emotion in prompt")
	}
	if strings.Contains(prompt, strings.Repeat("g", 1001)) {
		t.Error("expected brand context truncated to 1000 characters")
	}

	opp, _ := db.GetOpportunity("acme", id)
	if opp.Brief == nil {
		t.Fatal("expected brief attached")
	}
	if opp.Brief.Title != "Why the Tax Helps Us" || opp.Brief.Emotion != "Hope" {
		t.Errorf("unexpected brief: %+v", opp.Brief)
	}
}

func TestGenerateBriefsFallbackToRawText(t *testing.T) {
	db := openTestDB(t)
	seedGuide(t, db, "acme", "guide")
	id := seedOpportunity(t, db, "acme", "Packaging Tax Passed")

	gen := NewGenerator(db, reply("Lead with the customer story."), fixedPolicy())
	results, _ := gen.GenerateBriefs(context.Background(), "acme", []int64{id}, "")

	b := results[0].Brief
	if b == nil {
		t.Fatalf("expected brief, got error %v", results[0].Err)
	}
	if b.Title != "Packaging Tax Passed" {
		t.Errorf("expected opportunity title fallback, got %q", b.Title)
	}
	if b.Brief != "Lead with the customer story." {
		t.Errorf("expected raw text brief, got %q", b.Brief)
	}
	if b.Emotion == "" {
		t.Error("expected an emotion to be picked")
	}
}

func TestGenerateBriefsPerIDFailures(t *testing.T) {
	db := openTestDB(t)
	seedGuide(t, db, "acme", "guide")
	ok := seedOpportunity(t, db, "acme", "First Story")
	truncated := seedOpportunity(t, db, "acme", "Second Story")
	foreign := seedOpportunity(t, db, "globex", "Their Story")

	prov := &mockProvider{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Second Story") {
			return "", fmt.Errorf("gemini: %w", llm.ErrTruncated)
		}
		return `{"title": "T", "brief": "B"}`, nil
	}}
	gen := NewGenerator(db, prov, fixedPolicy())

	results, err := gen.GenerateBriefs(context.Background(), "acme", []int64{ok, truncated, foreign}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("expected first to succeed, got %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, llm.ErrTruncated) {
		t.Errorf("expected truncation error, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, database.ErrNotFound) {
		t.Errorf("expected not found for foreign opportunity, got %v", results[2].Err)
	}

	other, _ := db.GetOpportunity("globex", foreign)
	if other.Brief != nil {
		t.Error("expected foreign opportunity untouched")
	}
}

func TestGenerateBriefsRequiresBrandGuide(t *testing.T) {
	db := openTestDB(t)
	id := seedOpportunity(t, db, "acme", "Story")

	gen := NewGenerator(db, reply("{}"), nil)
	if _, err := gen.GenerateBriefs(context.Background(), "acme", []int64{id}, ""); !errors.Is(err, ErrNoBrandGuide) {
		t.Errorf("expected ErrNoBrandGuide, got %v", err)
	}

	gen = NewGenerator(db, nil, nil)
	if _, err := gen.GenerateBriefs(context.Background(), "acme", []int64{id}, ""); !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerateAndPublishArticle(t *testing.T) {
	db := openTestDB(t)
	seedGuide(t, db, "acme", "We are Acme. Friendly, direct.")
	id := seedOpportunity(t, db, "acme", "Packaging Tax Passed")
	db.AttachBrief("acme", id, database.AIBrief{Title: "Brief Title", Brief: "Angle text", Emotion: "Pride"})

	prov := reply("# What the Packaging Tax Means\n\nParagraph one.\n\nParagraph two.")
	gen := NewGenerator(db, prov, nil)

	article, err := gen.GenerateArticle(context.Background(), "acme", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if article.Title != "What the Packaging Tax Means" {
		t.Errorf("expected heading as title, got %q", article.Title)
	}
	if strings.HasPrefix(article.Content, "#") {
		t.Errorf("expected heading stripped from body, got %q", article.Content)
	}
	if article.Status != database.ArticleDraft || article.OpportunityID != id {
		t.Errorf("unexpected article: %+v", article)
	}
	if !strings.Contains(prov.prompts[0], "Angle text") || !strings.Contains(prov.prompts[0], "We are Acme.") {
		t.Error("expected brief angle and brand guide in prompt")
	}

	published, err := gen.PublishArticle("acme", article.ID)
	if err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}
	if published.Status != database.ArticlePublished || published.PublishedAt == nil {
		t.Errorf("expected published article, got %+v", published)
	}

	if _, err := gen.PublishArticle("globex", article.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another owner, got %v", err)
	}
}

func TestGenerateArticleTitleFallback(t *testing.T) {
	db := openTestDB(t)
	seedGuide(t, db, "acme", "guide")
	id := seedOpportunity(t, db, "acme", "Packaging Tax Passed")

	gen := NewGenerator(db, reply("No heading here."), nil)
	article, err := gen.GenerateArticle(context.Background(), "acme", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if article.Title != "Packaging Tax Passed" || article.Content != "No heading here." {
		t.Errorf("unexpected article: %+v", article)
	}

	if _, err := gen.GenerateArticle(context.Background(), "globex", id); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// Package brief generates AI briefs and full articles for opportunities.
package brief

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/llm"
	"github.com/TobiSchelling/newsjacker/internal/logging"
)

const briefPrompt = `Create a LinkedIn article title and brief based on:

Title: %s
Summary: %s
Target Emotion: %s

Brand Context: %s...

Respond with ONLY this JSON:
{
  "title": "Article title",
  "brief": "3-4 sentence brief connecting brand to this topic"
}`

const articlePrompt = `You are a professional content writer. Generate a LinkedIn article based on the following opportunity and brand guide.

Article Opportunity:
Title: %s
Summary: %s
Content: %s
Source: %s
%s
Brand Guide:
%s

Write a professional LinkedIn article that:
1. References the current event or news mentioned in the opportunity
2. Aligns with the brand's voice and values from the brand guide
3. Provides valuable insights or commentary on the topic
4. Is between 800 and 1200 words

Use markdown. Start with a single "# " heading for the title. Return only the article.`

const (
	brandContextChars = 1000
	briefMaxTokens    = 2048
	articleMaxTokens  = 4096
)

// ErrNoBrandGuide is returned when the owner has not uploaded a brand guide.
var ErrNoBrandGuide = errors.New("brand guide not found")

// Result is the outcome of generating one brief.
type Result struct {
	OpportunityID int64
	Brief         *database.AIBrief
	Err           error
}

// Generator writes briefs and articles with a completion provider.
type Generator struct {
	db       *database.DB
	provider llm.Provider
	emotions *EmotionPolicy
	now      func() time.Time
}

// NewGenerator creates a generator. A nil policy picks emotions at random.
func NewGenerator(db *database.DB, provider llm.Provider, emotions *EmotionPolicy) *Generator {
	if emotions == nil {
		emotions = NewEmotionPolicy(nil)
	}
	return &Generator{db: db, provider: provider, emotions: emotions, now: time.Now}
}

// GenerateBriefs writes a brief for each of the owner's opportunities and
// attaches it. Failures are reported per id; ids the owner does not own
// carry database.ErrNotFound.
func (g *Generator) GenerateBriefs(ctx context.Context, ownerID string, ids []int64, emotion string) ([]Result, error) {
	if g.provider == nil {
		return nil, llm.ErrNotConfigured
	}
	guide, err := g.db.GetLatestBrandGuide(ownerID)
	if err != nil {
		return nil, err
	}
	if guide == nil {
		return nil, ErrNoBrandGuide
	}
	brandContext := truncate(guide.Content, brandContextChars)

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{OpportunityID: id, Err: err})
			continue
		}
		b, err := g.generateBrief(ctx, ownerID, id, brandContext, g.emotions.Pick(emotion))
		if err != nil {
			logging.Warn("brief generation failed", "owner", ownerID, "opportunity_id", id, "error", err)
		}
		results = append(results, Result{OpportunityID: id, Brief: b, Err: err})
	}
	return results, nil
}

func (g *Generator) generateBrief(ctx context.Context, ownerID string, id int64, brandContext, emotion string) (*database.AIBrief, error) {
	opp, err := g.db.GetOpportunity(ownerID, id)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(briefPrompt, opp.Title, opp.Summary, emotion, brandContext)
	text, err := g.provider.Generate(ctx, prompt, briefMaxTokens)
	if err != nil {
		return nil, err
	}

	b := parseBrief(text, opp.Title)
	b.Emotion = emotion
	b.GeneratedAt = g.now()
	if err := g.db.AttachBrief(ownerID, id, b); err != nil {
		return nil, err
	}
	logging.Debug("brief attached", "opportunity_id", id, "emotion", emotion)
	return &b, nil
}

func parseBrief(text, fallbackTitle string) database.AIBrief {
	data := llm.ParseJSONResponse(text)
	if data == nil {
		return database.AIBrief{Title: fallbackTitle, Brief: strings.TrimSpace(stripFence(text))}
	}
	title, _ := data["title"].(string)
	body, _ := data["brief"].(string)
	if strings.TrimSpace(title) == "" {
		title = fallbackTitle
	}
	if strings.TrimSpace(body) == "" {
		body = "Brief generation failed"
	}
	return database.AIBrief{Title: title, Brief: body}
}

// GenerateArticle writes a full markdown article for the owner's opportunity
// and stores it as a draft.
func (g *Generator) GenerateArticle(ctx context.Context, ownerID string, id int64) (*database.Article, error) {
	if g.provider == nil {
		return nil, llm.ErrNotConfigured
	}
	opp, err := g.db.GetOpportunity(ownerID, id)
	if err != nil {
		return nil, err
	}
	guide, err := g.db.GetLatestBrandGuide(ownerID)
	if err != nil {
		return nil, err
	}
	if guide == nil {
		return nil, ErrNoBrandGuide
	}

	var angle string
	if opp.Brief != nil {
		angle = fmt.Sprintf("\nSuggested angle (%s): %s\n", opp.Brief.Emotion, opp.Brief.Brief)
	}
	prompt := fmt.Sprintf(articlePrompt, opp.Title, opp.Summary, opp.Content, opp.Source, angle, guide.Content)

	text, err := g.provider.Generate(ctx, prompt, articleMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating article for opportunity %d: %w", id, err)
	}

	title, body := splitTitle(stripFence(text))
	if title == "" {
		title = opp.Title
		if opp.Brief != nil && opp.Brief.Title != "" {
			title = opp.Brief.Title
		}
	}

	articleID, err := g.db.InsertArticle(ownerID, id, title, body)
	if err != nil {
		return nil, err
	}
	logging.Info("article drafted", "owner", ownerID, "opportunity_id", id, "article_id", articleID)
	return g.db.GetArticle(ownerID, articleID)
}

// PublishArticle marks the owner's draft article as published.
func (g *Generator) PublishArticle(ownerID string, articleID int64) (*database.Article, error) {
	if err := g.db.PublishArticle(ownerID, articleID); err != nil {
		return nil, err
	}
	return g.db.GetArticle(ownerID, articleID)
}

// splitTitle pulls a leading "# " heading off a markdown article.
func splitTitle(md string) (title, body string) {
	md = strings.TrimSpace(md)
	first, rest, _ := strings.Cut(md, "\n")
	if strings.HasPrefix(first, "# ") {
		return strings.TrimSpace(first[2:]), strings.TrimSpace(rest)
	}
	return "", md
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	_, rest, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "```"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

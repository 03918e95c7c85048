package database

import "time"

// Search term categories.
const (
	CategoryIndustry    = "industry"
	CategoryValues      = "values"
	CategoryProducts    = "products"
	CategoryCompetitors = "competitors"
)

// SearchTerm is a weighted, categorized phrase used to query search providers.
type SearchTerm struct {
	Term     string  `json:"term" validate:"required"`
	Weight   float64 `json:"weight" validate:"gt=0,lte=1"`
	Category string  `json:"category" validate:"oneof=industry values products competitors"`
}

// SearchTermSet is one owner's brand-derived search terms. At most one set
// per owner is active.
type SearchTermSet struct {
	ID             int64
	OwnerID        string
	BrandGuideID   int64
	Terms          []SearchTerm
	BrandEmbedding []float64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AIBrief is a generated content brief attached to an opportunity.
type AIBrief struct {
	Title       string
	Brief       string
	Emotion     string
	GeneratedAt time.Time
}

// OpportunityDraft is a scored candidate ready to be stored.
type OpportunityDraft struct {
	OwnerID         string
	Title           string
	Summary         string
	Content         string
	Source          string
	URL             string
	PublishedAt     time.Time
	SimilarityScore float64
	FinalScore      float64
	TrendingScore   float64
	IsTrending      bool
	SearchTerm      string
}

// Opportunity is a persisted, scored news candidate owned by one brand owner.
type Opportunity struct {
	ID              int64
	OwnerID         string
	Title           string
	Summary         string
	Content         string
	Source          string
	URL             string
	PublishedAt     time.Time
	SimilarityScore float64
	FinalScore      float64
	TrendingScore   float64
	IsTrending      bool
	IsDismissed     bool
	SearchTerm      string
	Brief           *AIBrief
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OpportunityFilter narrows ListOpportunities.
type OpportunityFilter struct {
	IncludeDismissed bool
	TrendingOnly     bool
	MinScore         float64
	Limit            int
}

// BrandGuide is an uploaded brand guide and its processing state.
type BrandGuide struct {
	ID              int64
	OwnerID         string
	Name            string
	Content         string
	Processed       bool
	ProcessingError *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Article statuses.
const (
	ArticleDraft     = "draft"
	ArticlePublished = "published"
)

// Article is a full generated article, optionally tied to an opportunity.
type Article struct {
	ID            int64
	OwnerID       string
	OpportunityID int64
	Title         string
	Content       string
	Status        string
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TripleRecord is the persisted outcome of one (owner, term) search.
type TripleRecord struct {
	OwnerID    string  `json:"owner_id"`
	Term       string  `json:"term"`
	Category   string  `json:"category"`
	Weight     float64 `json:"weight"`
	Kind       string  `json:"kind"`
	Error      string  `json:"error,omitempty"`
	Found      int     `json:"found"`
	Enriched   int     `json:"enriched,omitempty"`
	EnrichFail int     `json:"enrich_failed,omitempty"`
	Ranked     int     `json:"ranked"`
	Dropped    int     `json:"dropped"`
	Created    int     `json:"created"`
	Existing   int     `json:"existing"`
}

// CycleRun is the summary of one orchestrator cycle.
type CycleRun struct {
	ID         string
	Trigger    string
	OwnerID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Triples    int
	Succeeded  int
	Failed     int
	Created    int
	Existing   int
	Dropped    int
	Outcomes   []TripleRecord
}

// Stats holds aggregate database statistics.
type Stats struct {
	Owners                 int
	ActiveTermSets         int
	TotalTermSets          int
	BrandGuides            int
	Opportunities          int
	DismissedOpportunities int
	TrendingOpportunities  int
	BriefedOpportunities   int
	DraftArticles          int
	PublishedArticles      int
	CycleRuns              int
	LastRunAt              *time.Time
}

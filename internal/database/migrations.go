package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
// All timestamps are stored as epoch milliseconds.
var migrations = []Migration{
	{
		Version:     1,
		Description: "brand guides, search term sets and opportunities",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS brand_guides (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    content TEXT NOT NULL,
    processed INTEGER NOT NULL DEFAULT 0,
    processing_error TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_brand_guides_owner ON brand_guides(owner_id, created_at);

CREATE TABLE IF NOT EXISTS search_term_sets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    brand_guide_id INTEGER REFERENCES brand_guides(id),
    terms TEXT NOT NULL,
    brand_embedding TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_term_sets_one_active
    ON search_term_sets(owner_id) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS opportunities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    summary TEXT NOT NULL,
    content TEXT NOT NULL,
    source TEXT NOT NULL,
    url TEXT NOT NULL,
    published_at INTEGER NOT NULL,
    similarity_score REAL NOT NULL,
    final_score REAL NOT NULL,
    trending_score REAL NOT NULL DEFAULT 0,
    is_trending INTEGER NOT NULL DEFAULT 0,
    is_dismissed INTEGER NOT NULL DEFAULT 0,
    search_term TEXT,
    brief_title TEXT,
    brief_text TEXT,
    brief_emotion TEXT,
    brief_generated_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE(owner_id, url)
);

CREATE INDEX IF NOT EXISTS idx_opportunities_owner_score
    ON opportunities(owner_id, is_dismissed, final_score DESC);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "generated articles and cycle run history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    opportunity_id INTEGER REFERENCES opportunities(id) ON DELETE SET NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    published_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_owner ON articles(owner_id, created_at);

CREATE TABLE IF NOT EXISTS cycle_runs (
    id TEXT PRIMARY KEY,
    trigger_kind TEXT NOT NULL,
    owner_id TEXT,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    triples INTEGER NOT NULL DEFAULT 0,
    succeeded INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    created INTEGER NOT NULL DEFAULT 0,
    existing INTEGER NOT NULL DEFAULT 0,
    dropped INTEGER NOT NULL DEFAULT 0,
    outcomes TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_cycle_runs_started ON cycle_runs(started_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

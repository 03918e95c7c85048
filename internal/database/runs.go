package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// InsertCycleRun persists the summary of one orchestrator cycle.
func (db *DB) InsertCycleRun(r CycleRun) error {
	outcomes := r.Outcomes
	if outcomes == nil {
		outcomes = []TripleRecord{}
	}
	data, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("encoding outcomes: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO cycle_runs (id, trigger_kind, owner_id, started_at, finished_at,
			triples, succeeded, failed, created, existing, dropped, outcomes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Trigger, sql.NullString{String: r.OwnerID, Valid: r.OwnerID != ""},
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.Triples, r.Succeeded, r.Failed, r.Created, r.Existing, r.Dropped, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting cycle run: %w", err)
	}
	return nil
}

// GetLatestCycleRun returns the most recently started cycle, or nil.
func (db *DB) GetLatestCycleRun() (*CycleRun, error) {
	var (
		r                 CycleRun
		owner             sql.NullString
		started, finished int64
		outcomes          string
	)
	err := db.conn.QueryRow(
		`SELECT id, trigger_kind, owner_id, started_at, finished_at,
			triples, succeeded, failed, created, existing, dropped, outcomes
		FROM cycle_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&r.ID, &r.Trigger, &owner, &started, &finished,
		&r.Triples, &r.Succeeded, &r.Failed, &r.Created, &r.Existing, &r.Dropped, &outcomes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.OwnerID = owner.String
	r.StartedAt = fromMillis(started)
	r.FinishedAt = fromMillis(finished)
	if err := json.Unmarshal([]byte(outcomes), &r.Outcomes); err != nil {
		return nil, fmt.Errorf("decoding outcomes of run %s: %w", r.ID, err)
	}
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(DISTINCT owner_id) FROM search_term_sets", &s.Owners},
		{"SELECT COUNT(*) FROM search_term_sets WHERE is_active = 1", &s.ActiveTermSets},
		{"SELECT COUNT(*) FROM search_term_sets", &s.TotalTermSets},
		{"SELECT COUNT(*) FROM brand_guides", &s.BrandGuides},
		{"SELECT COUNT(*) FROM opportunities", &s.Opportunities},
		{"SELECT COUNT(*) FROM opportunities WHERE is_dismissed = 1", &s.DismissedOpportunities},
		{"SELECT COUNT(*) FROM opportunities WHERE is_trending = 1", &s.TrendingOpportunities},
		{"SELECT COUNT(*) FROM opportunities WHERE brief_text IS NOT NULL", &s.BriefedOpportunities},
		{"SELECT COUNT(*) FROM articles WHERE status = 'draft'", &s.DraftArticles},
		{"SELECT COUNT(*) FROM articles WHERE status = 'published'", &s.PublishedArticles},
		{"SELECT COUNT(*) FROM cycle_runs", &s.CycleRuns},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var last sql.NullInt64
	if err := db.conn.QueryRow("SELECT MAX(started_at) FROM cycle_runs").Scan(&last); err != nil {
		return nil, err
	}
	s.LastRunAt = nullMillis(last)

	return s, nil
}

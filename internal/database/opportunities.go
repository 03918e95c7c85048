package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const opportunityColumns = `id, owner_id, title, summary, content, source, url, published_at,
	similarity_score, final_score, trending_score, is_trending, is_dismissed, search_term,
	brief_title, brief_text, brief_emotion, brief_generated_at, created_at, updated_at`

// UpsertOpportunity stores a draft unless the owner already has an
// opportunity for the same URL. The first write wins: an existing record is
// never overwritten and its ID is returned with created=false.
//
// The check relies on UNIQUE(owner_id, url) so concurrent writers converge on
// a single row.
func (db *DB) UpsertOpportunity(d OpportunityDraft) (id int64, created bool, err error) {
	if d.OwnerID == "" || d.URL == "" {
		return 0, false, fmt.Errorf("owner and url are required")
	}

	now := db.nowMillis()
	err = db.conn.QueryRow(
		`INSERT INTO opportunities (owner_id, title, summary, content, source, url, published_at,
			similarity_score, final_score, trending_score, is_trending, is_dismissed, search_term,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT(owner_id, url) DO NOTHING
		RETURNING id`,
		d.OwnerID, d.Title, d.Summary, d.Content, d.Source, d.URL, d.PublishedAt.UnixMilli(),
		d.SimilarityScore, d.FinalScore, d.TrendingScore, d.IsTrending, d.SearchTerm,
		now, now,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("inserting opportunity: %w", err)
	}

	err = db.conn.QueryRow(
		"SELECT id FROM opportunities WHERE owner_id = ? AND url = ?", d.OwnerID, d.URL,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("looking up existing opportunity: %w", err)
	}
	return id, false, nil
}

// GetOpportunity returns the owner's opportunity, or ErrNotFound.
func (db *DB) GetOpportunity(ownerID string, id int64) (*Opportunity, error) {
	row := db.conn.QueryRow(
		"SELECT "+opportunityColumns+" FROM opportunities WHERE id = ? AND owner_id = ?",
		id, ownerID,
	)
	o, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOpportunities returns the owner's opportunities ordered by final score.
func (db *DB) ListOpportunities(ownerID string, f OpportunityFilter) ([]Opportunity, error) {
	var (
		where = []string{"owner_id = ?"}
		args  = []any{ownerID}
	)
	if !f.IncludeDismissed {
		where = append(where, "is_dismissed = 0")
	}
	if f.TrendingOnly {
		where = append(where, "is_trending = 1")
	}
	if f.MinScore > 0 {
		where = append(where, "final_score >= ?")
		args = append(args, f.MinScore)
	}

	query := "SELECT " + opportunityColumns + " FROM opportunities WHERE " +
		strings.Join(where, " AND ") + " ORDER BY final_score DESC, created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, *o)
	}
	return opps, rows.Err()
}

// DismissOpportunity flags the owner's opportunity as dismissed. Dismissal is
// one-way; the record is kept.
func (db *DB) DismissOpportunity(ownerID string, id int64) error {
	result, err := db.conn.Exec(
		"UPDATE opportunities SET is_dismissed = 1, updated_at = ? WHERE id = ? AND owner_id = ?",
		db.nowMillis(), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("dismissing opportunity: %w", err)
	}
	return requireAffected(result)
}

// AttachBrief stores a generated brief on the owner's opportunity.
func (db *DB) AttachBrief(ownerID string, id int64, b AIBrief) error {
	generated := b.GeneratedAt
	if generated.IsZero() {
		generated = db.now()
	}
	result, err := db.conn.Exec(
		`UPDATE opportunities
		SET brief_title = ?, brief_text = ?, brief_emotion = ?, brief_generated_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		b.Title, b.Brief, b.Emotion, generated.UnixMilli(), db.nowMillis(), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("attaching brief: %w", err)
	}
	return requireAffected(result)
}

// ClearOpportunities deletes every opportunity of the owner and returns how
// many were removed.
func (db *DB) ClearOpportunities(ownerID string) (int64, error) {
	result, err := db.conn.Exec("DELETE FROM opportunities WHERE owner_id = ?", ownerID)
	if err != nil {
		return 0, fmt.Errorf("clearing opportunities: %w", err)
	}
	return result.RowsAffected()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row rowScanner) (*Opportunity, error) {
	var (
		o                                   Opportunity
		published, created, updated         int64
		searchTerm                          sql.NullString
		briefTitle, briefText, briefEmotion sql.NullString
		briefAt                             sql.NullInt64
	)
	err := row.Scan(
		&o.ID, &o.OwnerID, &o.Title, &o.Summary, &o.Content, &o.Source, &o.URL, &published,
		&o.SimilarityScore, &o.FinalScore, &o.TrendingScore, &o.IsTrending, &o.IsDismissed, &searchTerm,
		&briefTitle, &briefText, &briefEmotion, &briefAt, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	o.PublishedAt = fromMillis(published)
	o.CreatedAt = fromMillis(created)
	o.UpdatedAt = fromMillis(updated)
	o.SearchTerm = searchTerm.String
	if briefText.Valid {
		o.Brief = &AIBrief{
			Title:   briefTitle.String,
			Brief:   briefText.String,
			Emotion: briefEmotion.String,
		}
		if at := nullMillis(briefAt); at != nil {
			o.Brief.GeneratedAt = *at
		}
	}
	return &o, nil
}

package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// InsertArticle stores a generated article as a draft.
func (db *DB) InsertArticle(ownerID string, opportunityID int64, title, content string) (int64, error) {
	now := db.nowMillis()
	result, err := db.conn.Exec(
		`INSERT INTO articles (owner_id, opportunity_id, title, content, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ownerID, nullID(opportunityID), title, content, ArticleDraft, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting article: %w", err)
	}
	return result.LastInsertId()
}

// GetArticle returns the owner's article, or ErrNotFound.
func (db *DB) GetArticle(ownerID string, id int64) (*Article, error) {
	row := db.conn.QueryRow(
		`SELECT id, owner_id, opportunity_id, title, content, status, published_at, created_at, updated_at
		FROM articles WHERE id = ? AND owner_id = ?`, id, ownerID,
	)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetArticleByID returns an article regardless of owner, or nil.
func (db *DB) GetArticleByID(id int64) (*Article, error) {
	row := db.conn.QueryRow(
		`SELECT id, owner_id, opportunity_id, title, content, status, published_at, created_at, updated_at
		FROM articles WHERE id = ?`, id,
	)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListArticles returns the owner's articles, newest first.
func (db *DB) ListArticles(ownerID string) ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT id, owner_id, opportunity_id, title, content, status, published_at, created_at, updated_at
		FROM articles WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// PublishArticle moves a draft to published. Publishing twice keeps the
// first publication time.
func (db *DB) PublishArticle(ownerID string, id int64) error {
	now := db.nowMillis()
	result, err := db.conn.Exec(
		`UPDATE articles SET status = ?, published_at = COALESCE(published_at, ?), updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		ArticlePublished, now, now, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("publishing article: %w", err)
	}
	return requireAffected(result)
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a                Article
		oppID            sql.NullInt64
		published        sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&a.ID, &a.OwnerID, &oppID, &a.Title, &a.Content, &a.Status, &published, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.OpportunityID = oppID.Int64
	a.PublishedAt = nullMillis(published)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}

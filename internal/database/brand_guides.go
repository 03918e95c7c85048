package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// InsertBrandGuide stores an uploaded brand guide as unprocessed.
func (db *DB) InsertBrandGuide(ownerID, name, content string) (int64, error) {
	now := db.nowMillis()
	result, err := db.conn.Exec(
		`INSERT INTO brand_guides (owner_id, name, content, processed, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		ownerID, name, content, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting brand guide: %w", err)
	}
	return result.LastInsertId()
}

// GetLatestBrandGuide returns the owner's most recent brand guide, or nil.
func (db *DB) GetLatestBrandGuide(ownerID string) (*BrandGuide, error) {
	row := db.conn.QueryRow(
		`SELECT id, owner_id, name, content, processed, processing_error, created_at, updated_at
		FROM brand_guides WHERE owner_id = ? ORDER BY id DESC LIMIT 1`, ownerID,
	)
	var (
		g                BrandGuide
		procErr          sql.NullString
		created, updated int64
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Content, &g.Processed, &procErr, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if procErr.Valid {
		g.ProcessingError = &procErr.String
	}
	g.CreatedAt = fromMillis(created)
	g.UpdatedAt = fromMillis(updated)
	return &g, nil
}

// MarkBrandGuideProcessed records the outcome of term extraction. A nil
// procErr marks the guide processed.
func (db *DB) MarkBrandGuideProcessed(id int64, procErr error) error {
	var (
		processed = procErr == nil
		msg       sql.NullString
	)
	if procErr != nil {
		msg = sql.NullString{String: procErr.Error(), Valid: true}
	}
	result, err := db.conn.Exec(
		"UPDATE brand_guides SET processed = ?, processing_error = ?, updated_at = ? WHERE id = ?",
		processed, msg, db.nowMillis(), id,
	)
	if err != nil {
		return fmt.Errorf("updating brand guide: %w", err)
	}
	return requireAffected(result)
}

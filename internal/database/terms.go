package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type termList struct {
	Terms []SearchTerm `validate:"required,min=1,dive"`
}

// ValidateTerms checks that every term has text, a weight in (0,1] and a
// known category.
func ValidateTerms(terms []SearchTerm) error {
	if err := validate.Struct(termList{Terms: terms}); err != nil {
		return fmt.Errorf("invalid search terms: %w", err)
	}
	return nil
}

// SetActiveSearchTerms deactivates every prior term set for the owner and
// inserts a new active one, in a single transaction.
func (db *DB) SetActiveSearchTerms(ownerID string, brandGuideID int64, terms []SearchTerm, embedding []float64) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("owner is required")
	}
	if err := ValidateTerms(terms); err != nil {
		return 0, err
	}

	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return 0, fmt.Errorf("encoding terms: %w", err)
	}
	if embedding == nil {
		embedding = []float64{}
	}
	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return 0, fmt.Errorf("encoding embedding: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := db.nowMillis()
	if _, err := tx.Exec(
		"UPDATE search_term_sets SET is_active = 0, updated_at = ? WHERE owner_id = ? AND is_active = 1",
		now, ownerID,
	); err != nil {
		return 0, fmt.Errorf("deactivating term sets: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO search_term_sets (owner_id, brand_guide_id, terms, brand_embedding, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`,
		ownerID, nullID(brandGuideID), string(termsJSON), string(embJSON), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting term set: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetActiveSearchTermSets returns the active term set of every owner.
func (db *DB) GetActiveSearchTermSets() ([]SearchTermSet, error) {
	return db.queryTermSets(
		`SELECT id, owner_id, brand_guide_id, terms, brand_embedding, is_active, created_at, updated_at
		FROM search_term_sets WHERE is_active = 1 ORDER BY owner_id`,
	)
}

// GetActiveSearchTermSet returns the owner's active term set, or nil.
func (db *DB) GetActiveSearchTermSet(ownerID string) (*SearchTermSet, error) {
	sets, err := db.queryTermSets(
		`SELECT id, owner_id, brand_guide_id, terms, brand_embedding, is_active, created_at, updated_at
		FROM search_term_sets WHERE owner_id = ? AND is_active = 1`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, nil
	}
	return &sets[0], nil
}

// GetSearchTermSets returns the owner's full term set history, newest first.
func (db *DB) GetSearchTermSets(ownerID string) ([]SearchTermSet, error) {
	return db.queryTermSets(
		`SELECT id, owner_id, brand_guide_id, terms, brand_embedding, is_active, created_at, updated_at
		FROM search_term_sets WHERE owner_id = ? ORDER BY id DESC`, ownerID,
	)
}

func (db *DB) queryTermSets(query string, args ...any) ([]SearchTermSet, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []SearchTermSet
	for rows.Next() {
		var (
			s                  SearchTermSet
			guideID            sql.NullInt64
			termsJSON, embJSON string
			created, updated   int64
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &guideID, &termsJSON, &embJSON, &s.IsActive, &created, &updated); err != nil {
			return nil, err
		}
		s.BrandGuideID = guideID.Int64
		if err := json.Unmarshal([]byte(termsJSON), &s.Terms); err != nil {
			return nil, fmt.Errorf("decoding terms of set %d: %w", s.ID, err)
		}
		if err := json.Unmarshal([]byte(embJSON), &s.BrandEmbedding); err != nil {
			return nil, fmt.Errorf("decoding embedding of set %d: %w", s.ID, err)
		}
		s.CreatedAt = fromMillis(created)
		s.UpdatedAt = fromMillis(updated)
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

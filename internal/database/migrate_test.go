package database

import (
	"path/filepath"
	"testing"
)

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.SetActiveSearchTerms("acme", 0, sampleTerms, []float64{1})
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	version, err := getSchemaVersion(db2.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}

	set, err := db2.GetActiveSearchTermSet("acme")
	if err != nil || set == nil {
		t.Errorf("expected data to survive reopen, got %v, %v", set, err)
	}
}

func TestOneActiveSetEnforcedBySchema(t *testing.T) {
	db := openTestDB(t)
	now := db.nowMillis()

	insert := `INSERT INTO search_term_sets (owner_id, terms, brand_embedding, is_active, created_at, updated_at)
		VALUES ('acme', '[]', '[]', 1, ?, ?)`
	if _, err := db.conn.Exec(insert, now, now); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.conn.Exec(insert, now, now); err == nil {
		t.Error("expected unique index to reject a second active set")
	}
}

func TestMigrationsOrdered(t *testing.T) {
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration at index %d has version %d", i, m.Version)
		}
	}
}

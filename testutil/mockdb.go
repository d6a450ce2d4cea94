package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// IndexFixtureRow is one row written by CreateIndexFixture
type IndexFixtureRow struct {
	Path    string
	ID      string
	Title   string
	Updated string
	Content string
}

// IndexFixtureRows are the rows of the search index fixture
var IndexFixtureRows = []IndexFixtureRow{
	{Path: "/m/sessions/2025-01-01/session-20250101-090000.jsonl", ID: "session-20250101-090000", Title: "Bread baking", Updated: "2025-01-01T09:05:00Z", Content: "how long do i proof dough\n"},
	{Path: "/m/sessions/2025-01-02/session-20250102-090000.jsonl", ID: "session-20250102-090000", Title: "", Updated: "2025-01-02T09:05:00Z", Content: "upgrade kubernetes nodes\n"},
	{Path: "/m/sessions/2025-01-03/session-20250103-090000.jsonl", ID: "session-20250103-090000", Title: "Travel", Updated: "2025-01-03T09:05:00Z", Content: "train to lisbon\n"},
}

// CreateIndexFixture creates a search index database with IndexFixtureRows
func CreateIndexFixture(t *testing.T, dbPath string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS sessions (
		path         TEXT PRIMARY KEY,
		id           TEXT NOT NULL,
		title        TEXT,
		updated      TEXT NOT NULL DEFAULT '',
		turns        INTEGER NOT NULL DEFAULT 0,
		user_id      TEXT NOT NULL DEFAULT '',
		user_display TEXT NOT NULL DEFAULT '',
		mtime        INTEGER NOT NULL,
		content      TEXT NOT NULL DEFAULT ''
	)`
	if _, err := db.Exec(createTableSQL); err != nil {
		t.Fatalf("Failed to create sessions table: %v", err)
	}

	for _, row := range IndexFixtureRows {
		var title interface{}
		if row.Title != "" {
			title = row.Title
		}
		if _, err := db.Exec(`INSERT INTO sessions (path, id, title, updated, turns, mtime, content) VALUES (?, ?, ?, ?, 1, 0, ?)`,
			row.Path, row.ID, title, row.Updated, row.Content); err != nil {
			t.Fatalf("Failed to insert %s: %v", row.ID, err)
		}
	}
}

package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const indexFileName = "index.db"

const indexSchema = `
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
);
CREATE INDEX IF NOT EXISTS sessions_updated ON sessions (updated DESC, id DESC);
`

// SearchIndex is a SQLite copy of the session listing with the dialogue
// text of every session. It is a cache: deleting it loses nothing.
type SearchIndex struct {
	db    *sql.DB
	store *Store
	path  string
}

// SyncStats reports what a Sync changed
type SyncStats struct {
	Added     int
	Updated   int
	Removed   int
	Unchanged int
}

// DefaultIndexPath returns the index location for a memory root
func DefaultIndexPath(paths MemoryPaths) string {
	return filepath.Join(paths.Root, indexFileName)
}

// OpenSearchIndex opens or creates the index at path
func OpenSearchIndex(path string, store *Store) (*SearchIndex, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}
	return &SearchIndex{db: db, store: store, path: path}, nil
}

// Close closes the underlying database
func (ix *SearchIndex) Close() error {
	return ix.db.Close()
}

// Path returns the database file of the index
func (ix *SearchIndex) Path() string {
	return ix.path
}

// Sync brings the index in line with the sessions below root. Sessions
// whose log and sidecar are unchanged since the last sync are skipped.
func (ix *SearchIndex) Sync(root string) (SyncStats, error) {
	var stats SyncStats

	known, err := ix.knownMTimes()
	if err != nil {
		return stats, err
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return stats, fmt.Errorf("failed to begin index sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.Prepare(`INSERT INTO sessions (path, id, title, updated, turns, user_id, user_display, mtime, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id = excluded.id, title = excluded.title, updated = excluded.updated,
			turns = excluded.turns, user_id = excluded.user_id,
			user_display = excluded.user_display, mtime = excluded.mtime,
			content = excluded.content`)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare index upsert: %w", err)
	}
	defer upsert.Close()

	seen := make(map[string]bool)
	for _, meta := range ix.store.List(root, "") {
		seen[meta.Path] = true
		mtime := sessionMTime(meta.Path)
		prev, indexed := known[meta.Path]
		if indexed && prev == mtime {
			stats.Unchanged++
			continue
		}

		var title interface{}
		if meta.Title != nil {
			title = *meta.Title
		}
		updated := meta.Updated
		if updated == "" {
			updated = formatTimestamp(sessionSortKey(meta))
		}
		content := indexContent(LoadSessionMessages(meta.Path))
		if _, err := upsert.Exec(meta.Path, meta.ID, title, updated, meta.Turns, meta.UserID, meta.UserDisplay, mtime, content); err != nil {
			return stats, fmt.Errorf("failed to index %s: %w", meta.Path, err)
		}
		if indexed {
			stats.Updated++
		} else {
			stats.Added++
		}
	}

	for path := range known {
		if seen[path] || fileExists(path) {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM sessions WHERE path = ?`, path); err != nil {
			return stats, fmt.Errorf("failed to drop %s from index: %w", path, err)
		}
		stats.Removed++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit index sync: %w", err)
	}
	LogDebug("Index sync: %d added, %d updated, %d removed, %d unchanged", stats.Added, stats.Updated, stats.Removed, stats.Unchanged)
	return stats, nil
}

// Rebuild drops every row and indexes root from scratch
func (ix *SearchIndex) Rebuild(root string) (SyncStats, error) {
	if _, err := ix.db.Exec(`DELETE FROM sessions`); err != nil {
		return SyncStats{}, fmt.Errorf("failed to clear index: %w", err)
	}
	return ix.Sync(root)
}

// Search returns sessions whose id, title or dialogue contains query,
// ignoring case, newest first. limit <= 0 means no limit.
func (ix *SearchIndex) Search(query string, limit int) ([]SessionMeta, error) {
	rows, err := QuerySessionRows(ix.db, strings.ToLower(strings.TrimSpace(query)), limit)
	if err != nil {
		return nil, err
	}

	results := make([]SessionMeta, 0, len(rows))
	for _, row := range rows {
		meta := SessionMeta{
			ID:          row.ID,
			Path:        row.Path,
			Turns:       row.Turns,
			Updated:     row.Updated,
			FileName:    filepath.Base(row.Path),
			DisplayName: DisplayName(row.ID),
			UserID:      row.UserID,
			UserDisplay: row.UserDisplay,
		}
		if row.Title != "" {
			meta.Title = stringPtr(row.Title)
		}
		results = append(results, meta)
	}
	return results, nil
}

// Count returns the number of sessions matching query
func (ix *SearchIndex) Count(query string) (int, error) {
	rows, err := QuerySessionRows(ix.db, strings.ToLower(strings.TrimSpace(query)), 0)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (ix *SearchIndex) knownMTimes() (map[string]int64, error) {
	rows, err := ix.db.Query(`SELECT path, mtime FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	known := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		known[path] = mtime
	}
	return known, rows.Err()
}

// sessionMTime is the newer modification time of a log and its sidecar,
// so renames invalidate the indexed row too
func sessionMTime(path string) int64 {
	var newest int64
	for _, p := range []string{path, MetaPathFor(path)} {
		if info, err := os.Stat(p); err == nil {
			if n := info.ModTime().UnixNano(); n > newest {
				newest = n
			}
		}
	}
	return newest
}

func indexContent(messages []Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		b.WriteString(strings.ToLower(msg.Content))
		b.WriteByte('\n')
	}
	return b.String()
}

// likePattern wraps s for a substring LIKE match, escaping wildcards
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

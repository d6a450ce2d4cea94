package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenDatabase opens the SQLite database at path, creating it and its
// directory when needed. SQLite allows one writer, so the pool is capped
// at a single connection.
func OpenDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &StorageError{Path: filepath.Dir(path), Op: "mkdir", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

// OpenDatabaseReadOnly opens an existing SQLite database in read-only mode
func OpenDatabaseReadOnly(path string) (*sql.DB, error) {
	if !fileExists(path) {
		return nil, &StorageError{Path: path, Op: "open", Err: os.ErrNotExist}
	}

	// mode=ro is only honoured on a file: URI
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

// QuerySessionRows returns the indexed sessions whose id, title or content
// matches pattern, newest first. An empty pattern matches everything.
func QuerySessionRows(db *sql.DB, pattern string, limit int) ([]IndexedSession, error) {
	query := `SELECT id, path, title, updated, turns, user_id, user_display
		FROM sessions
		WHERE ? = '' OR lower(id) LIKE ? ESCAPE '\' OR lower(title) LIKE ? ESCAPE '\' OR lower(content) LIKE ? ESCAPE '\'
		ORDER BY updated DESC, id DESC`
	like := likePattern(pattern)
	args := []interface{}{pattern, like, like, like}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var sessions []IndexedSession
	for rows.Next() {
		var s IndexedSession
		var title sql.NullString
		if err := rows.Scan(&s.ID, &s.Path, &title, &s.Updated, &s.Turns, &s.UserID, &s.UserDisplay); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if title.Valid {
			s.Title = title.String
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return sessions, nil
}

// IndexedSession is one row of the search index
type IndexedSession struct {
	ID          string
	Path        string
	Title       string
	Updated     string
	Turns       int
	UserID      string
	UserDisplay string
}

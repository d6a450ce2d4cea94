package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SessionFixture describes one session written by CreateSessionTree
type SessionFixture struct {
	User    string // empty for the flat store
	Day     string // YYYY-MM-DD
	Stem    string // session-YYYYMMDD-HHMMSS
	Title   string
	Updated string
	Turns   int
}

// DefaultSessions is a small store with two flat sessions and one per-user
// session, newest last
var DefaultSessions = []SessionFixture{
	{Day: "2025-01-01", Stem: "session-20250101-090000", Title: "Bread baking", Updated: "2025-01-01T09:05:00Z", Turns: 2},
	{Day: "2025-01-02", Stem: "session-20250102-090000", Updated: "2025-01-02T09:05:00Z", Turns: 1},
	{User: "alice", Day: "2025-01-03", Stem: "session-20250103-090000", Title: "Kubernetes upgrade", Updated: "2025-01-03T09:05:00Z", Turns: 3},
}

// CreateSessionTree writes sessions below memoryRoot using the on-disk
// layout: <root>/sessions/<day>/ or <root>/users/<id>/sessions/<day>/.
// It returns the log path of every fixture, in order.
func CreateSessionTree(t *testing.T, memoryRoot string, sessions []SessionFixture) []string {
	t.Helper()
	paths := make([]string, 0, len(sessions))
	for _, s := range sessions {
		base := filepath.Join(memoryRoot, "sessions")
		if s.User != "" {
			userRoot := filepath.Join(memoryRoot, "users", s.User)
			base = filepath.Join(userRoot, "sessions")
			writeJSON(t, filepath.Join(userRoot, "user.json"), map[string]string{
				"id":           s.User,
				"display_name": strings.ToUpper(s.User[:1]) + s.User[1:],
			})
		}
		logPath := filepath.Join(base, s.Day, s.Stem+".jsonl")
		WriteSessionLog(t, logPath, s.Turns)

		meta := map[string]interface{}{
			"id":      s.Stem,
			"path":    logPath,
			"turns":   s.Turns,
			"created": s.Updated,
			"updated": s.Updated,
			"title":   nil,
			"custom":  false,
		}
		if s.Title != "" {
			meta["title"] = s.Title
		}
		writeJSON(t, filepath.Join(base, s.Day, s.Stem+".meta.json"), meta)
		paths = append(paths, logPath)
	}
	return paths
}

// WriteSessionLog writes a JSONL log with turns numbered exchanges
func WriteSessionLog(t *testing.T, logPath string, turns int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		t.Fatalf("Failed to create session directory: %v", err)
	}

	var b strings.Builder
	for i := 1; i <= turns; i++ {
		record := map[string]interface{}{
			"messages": []map[string]string{
				{"role": "system", "content": "You are Nox."},
				{"role": "user", "content": fmt.Sprintf("question %d", i)},
				{"role": "assistant", "content": fmt.Sprintf("answer %d", i)},
			},
			"meta": map[string]interface{}{
				"model":     "nox-test",
				"sanitized": false,
				"turn":      i,
				"ts":        fmt.Sprintf("2025-01-01T00:00:%02dZ", i%60),
			},
		}
		b.Write(marshalLine(t, record))
	}
	if err := os.WriteFile(logPath, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to write session log %s: %v", logPath, err)
	}
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal JSON: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

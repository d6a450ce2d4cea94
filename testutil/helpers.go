package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// SetMemoryRoot points the session store at a fresh temporary directory
// through NOCTICS_MEMORY_HOME and returns it
func SetMemoryRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NOCTICS_MEMORY_HOME", dir)
	return dir
}

// SessionLogPath returns where the logger puts a session log below root.
// An empty user means the flat store.
func SessionLogPath(root, user, day, stem string) string {
	if user == "" {
		return filepath.Join(root, "sessions", day, stem+".jsonl")
	}
	return filepath.Join(root, "users", user, "sessions", day, stem+".jsonl")
}

// CountLogLines returns the number of non-blank lines in a session log,
// failing the test if any of them is not a JSON object
func CountLogLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read session log %s: %v", path, err)
	}
	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(line, &obj); err != nil {
			t.Fatalf("Line %d of %s is not a JSON object: %v", n+1, path, err)
		}
		n++
	}
	return n
}

func marshalLine(t *testing.T, v interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		t.Fatalf("Failed to marshal JSON: %v", err)
	}
	return buf.Bytes()
}

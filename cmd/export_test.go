package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/testutil"
)

func TestExportCommand(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		extension string
		contains  string
	}{
		{"jsonl", "jsonl", "jsonl", `"role":"user"`},
		{"markdown", "md", "md", "**user:**"},
		{"yaml", "yaml", "yaml", "role: user"},
		{"json", "JSON", "json", `"messages"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupStore(t)
			dir := filepath.Join(t.TempDir(), "out")

			out, err := runCommand(t, "", "export", "--format", tt.format, "--out", dir)
			if err != nil {
				t.Fatalf("export failed: %v", err)
			}
			if !strings.Contains(out, "3 session(s) exported") {
				t.Errorf("unexpected output:\n%s", out)
			}

			files, _ := filepath.Glob(filepath.Join(dir, "*."+tt.extension))
			if len(files) != 3 {
				t.Fatalf("got %d files, want 3", len(files))
			}
			data, err := os.ReadFile(filepath.Join(dir, "session-20250103-090000."+tt.extension))
			if err != nil {
				t.Fatalf("missing export: %v", err)
			}
			if !strings.Contains(string(data), tt.contains) {
				t.Errorf("export does not contain %q:\n%s", tt.contains, data)
			}
		})
	}
}

func TestExportCommand_SelectedSessions(t *testing.T) {
	setupStore(t)
	dir := t.TempDir()

	if _, err := runCommand(t, "", "export", "1", "session-20250103-090000", "session-20250101-090000", "--out", dir); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if len(files) != 2 {
		t.Errorf("got %v, want the two distinct sessions", files)
	}
}

func TestExportCommand_Stdout(t *testing.T) {
	setupStore(t)

	out, err := runCommand(t, "", "export", "session-20250101-090000", "--format", "md", "--stdout")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasPrefix(out, "# Bread baking") {
		t.Errorf("unexpected markdown:\n%s", out)
	}

	if _, err := runCommand(t, "", "export", "--stdout"); err == nil {
		t.Error("--stdout with several sessions should fail")
	}
}

func TestExportCommand_Redact(t *testing.T) {
	root := setupStore(t)
	testutil.CreateSessionTree(t, root, []testutil.SessionFixture{
		{Day: "2025-01-04", Stem: "session-20250104-090000", Updated: "2025-01-04T09:05:00Z", Turns: 1},
	})
	path := filepath.Join(root, "sessions", "2025-01-04", "session-20250104-090000.jsonl")
	line := `{"messages":[{"role":"user","content":"mail me at jo@example.com"},{"role":"assistant","content":"ok"}],"meta":{"model":"nox-test","sanitized":false,"turn":1,"ts":"2025-01-04T09:00:00Z"}}` + "\n"
	if err := os.WriteFile(path, []byte(line), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "", "export", "session-20250104-090000", "--stdout", "--redact")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if strings.Contains(out, "jo@example.com") || !strings.Contains(out, internal.RedactedEmail) {
		t.Errorf("address was not redacted:\n%s", out)
	}
}

func TestExportCommand_InvalidFormat(t *testing.T) {
	setupStore(t)
	if _, err := runCommand(t, "", "export", "--format", "invalid"); err == nil {
		t.Error("invalid format should fail")
	}
}

func TestIndexCommand(t *testing.T) {
	root := setupStore(t)

	out, err := runCommand(t, "", "index")
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if !strings.Contains(out, "Indexed 3 session(s)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(root, "index.db")); err != nil {
		t.Errorf("index database missing: %v", err)
	}

	out, err = runCommand(t, "", "index", "--rebuild")
	if err != nil {
		t.Fatalf("index --rebuild failed: %v", err)
	}
	if !strings.Contains(out, "Indexed 3 session(s)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestDaylogCommand(t *testing.T) {
	root := setupStore(t)

	out, err := runCommand(t, "", "daylog", "session-20250101-090000")
	if err != nil {
		t.Fatalf("daylog failed: %v", err)
	}
	dayPath := filepath.Join(root, "sessions", "2025-01-01", "day.json")
	if !strings.Contains(out, dayPath) {
		t.Errorf("unexpected output:\n%s", out)
	}
	data, err := os.ReadFile(dayPath)
	if err != nil {
		t.Fatalf("day log missing: %v", err)
	}
	if !strings.Contains(string(data), `"date": "2025-01-01"`) || !strings.Contains(string(data), "answer 2") {
		t.Errorf("unexpected day log:\n%s", data)
	}
}

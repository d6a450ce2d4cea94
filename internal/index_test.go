package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestIndex(t *testing.T, store *Store) *SearchIndex {
	t.Helper()
	ix, err := OpenSearchIndex(filepath.Join(t.TempDir(), "index", indexFileName), store)
	if err != nil {
		t.Fatalf("OpenSearchIndex() error = %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestSearchIndex_Sync(t *testing.T) {
	store, paths := seedStore(t)
	ix := openTestIndex(t, store)

	stats, err := ix.Sync("")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if stats.Added != 3 || stats.Updated != 0 || stats.Removed != 0 {
		t.Errorf("first Sync() = %+v", stats)
	}

	stats, err = ix.Sync("")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Unchanged != 3 || stats.Added != 0 {
		t.Errorf("second Sync() = %+v, want all unchanged", stats)
	}

	if err := store.SetSessionTitleFor(paths["mid"], "Sourdough", true); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(MetaPathFor(paths["mid"]), later, later); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(paths["old"]); err != nil {
		t.Fatal(err)
	}

	stats, err = ix.Sync("")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Updated != 1 || stats.Removed != 1 || stats.Unchanged != 1 {
		t.Errorf("third Sync() = %+v", stats)
	}

	results, err := ix.Search("sourdough", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Path != paths["mid"] {
		t.Errorf("Search(title) = %v", results)
	}
}

func TestSearchIndex_Search(t *testing.T) {
	store, paths := seedStore(t)
	ix := openTestIndex(t, store)
	if _, err := ix.Sync(""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"everything newest first", "", 0, []string{paths["alice"], paths["mid"], paths["old"]}},
		{"limit", "", 1, []string{paths["alice"]}},
		{"content", "QUESTION 2", 0, []string{paths["alice"], paths["old"]}},
		{"title", "alice chat", 0, []string{paths["alice"]}},
		{"id", "20250102", 0, []string{paths["mid"]}},
		{"wildcards are literal", "%", 0, nil},
		{"no match", "kubernetes", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ix.Search(tt.query, tt.limit)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) = %d results, want %d", tt.query, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].Path != tt.want[i] {
					t.Errorf("result[%d] = %q, want %q", i, got[i].Path, tt.want[i])
				}
			}
		})
	}

	got, _ := ix.Search("alice", 0)
	if len(got) == 0 || got[0].UserID != "alice" || got[0].TitleOr("") != "Alice chat" {
		t.Errorf("indexed row lost metadata: %+v", got)
	}
}

func TestSearchIndex_CountAndRebuild(t *testing.T) {
	store, _ := seedStore(t)
	ix := openTestIndex(t, store)
	if _, err := ix.Sync(""); err != nil {
		t.Fatal(err)
	}

	n, err := ix.Count("answer")
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v, want 3", n, err)
	}

	stats, err := ix.Rebuild("")
	if err != nil || stats.Added != 3 {
		t.Errorf("Rebuild() = %+v, %v", stats, err)
	}
}

func TestOpenDatabaseReadOnly_Missing(t *testing.T) {
	if _, err := OpenDatabaseReadOnly(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("OpenDatabaseReadOnly() should fail for a missing database")
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", "%abc%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\x`, `%c:\\x%`},
	}
	for _, tt := range tests {
		if got := likePattern(tt.in); got != tt.want {
			t.Errorf("likePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

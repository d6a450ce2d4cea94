package internal

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func fixedStoreClock(store *Store) {
	store.SetClock(func() time.Time { return time.Date(2025, 2, 1, 8, 30, 0, 0, time.UTC) })
}

func TestStore_MergeNeedsTwoSessions(t *testing.T) {
	store, paths := seedStore(t)

	tests := []struct {
		name  string
		paths []string
	}{
		{"none", nil},
		{"one", []string{paths["old"]}},
		{"same path twice", []string{paths["old"], paths["old"]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Merge(tt.paths, "", "")
			if err != nil || got != "" {
				t.Errorf("Merge() = %q, %v, want nothing to do", got, err)
			}
		})
	}
}

func TestStore_Merge(t *testing.T) {
	store, paths := seedStore(t)
	fixedStoreClock(store)
	before, _ := os.ReadFile(paths["old"])

	out, err := store.Merge([]string{paths["old"], paths["mid"]}, "", "")
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	wantPath := filepath.Join(store.Paths.SessionsRoot, "merged-2025-02-01", "session-merged-20250201-083000.jsonl")
	if out != wantPath {
		t.Errorf("Merge() = %q, want %q", out, wantPath)
	}

	records := LoadSessionRecords(out)
	if len(records) != 3 {
		t.Fatalf("merged records = %d, want 3", len(records))
	}
	for i, rec := range records {
		if rec.Meta.Turn != i+1 || rec.Meta.Model != mergedModel {
			t.Errorf("records[%d].Meta = %+v", i, rec.Meta)
		}
		if len(rec.Messages) != 3 || rec.Messages[0].Role != RoleSystem {
			t.Errorf("records[%d] should carry the system prompt and one pair", i)
		}
	}

	msgs := LoadSessionMessages(out)
	var systems int
	for _, m := range msgs {
		if m.Role == RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("merged history has %d system messages, want 1", systems)
	}
	if msgs[1].Content != "question 1" || msgs[len(msgs)-1].Content != "answer 1" {
		t.Errorf("merged order wrong: %v", msgs)
	}

	meta, ok := LoadMeta(out)
	if !ok {
		t.Fatal("merged sidecar missing")
	}
	if meta.TitleOr("") != "Merged: Old chat | session-20250102-090000" {
		t.Errorf("title = %q", meta.TitleOr(""))
	}
	if !reflect.DeepEqual(meta.Sources, []string{"session-20250101-090000", "session-20250102-090000"}) {
		t.Errorf("sources = %v", meta.Sources)
	}
	if meta.Turns != 3 || meta.Custom || meta.DisplayName != "Merged session 2025-02-01 08:30:00 UTC" {
		t.Errorf("meta = %+v", meta)
	}

	after, _ := os.ReadFile(paths["old"])
	if string(before) != string(after) {
		t.Error("Merge() must not modify its sources")
	}
}

func TestStore_MergeTitleAndCollision(t *testing.T) {
	store, paths := seedStore(t)
	fixedStoreClock(store)

	first, err := store.Merge([]string{paths["old"], paths["mid"]}, "  Combined  ", "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Merge([]string{paths["mid"], paths["alice"]}, "", "")
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatal("merges in the same second must not share a file")
	}
	if !strings.HasSuffix(second, "session-merged-20250201-083001.jsonl") {
		t.Errorf("second merge = %q", second)
	}
	if meta, _ := LoadMeta(first); meta.TitleOr("") != "Combined" {
		t.Errorf("explicit title = %q", meta.TitleOr(""))
	}
}

func TestStore_MergeTitleUsesFirstThree(t *testing.T) {
	store, _ := seedStore(t)
	day := filepath.Join(store.Paths.SessionsRoot, "2025-01-05")
	var paths []string
	for i, title := range []string{"A", "B", "C", "D"} {
		stem := "session-20250105-09000" + string(rune('0'+i))
		paths = append(paths, seedSession(t, day, stem, "2025-01-05T09:00:00Z", 1, title))
	}

	out, err := store.Merge(paths, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if meta, _ := LoadMeta(out); meta.TitleOr("") != "Merged: A | B | C" {
		t.Errorf("title = %q", meta.TitleOr(""))
	}
}

func TestPairDialogue(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "dangling"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleAssistant, Content: "orphan"},
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q2"},
		{Role: RoleAssistant, Content: "a2"},
	}
	pairs := pairDialogue(msgs)
	if len(pairs) != 2 {
		t.Fatalf("pairDialogue() = %d pairs, want 2", len(pairs))
	}
	if pairs[0][0].Content != "q1" || pairs[1][1].Content != "a2" {
		t.Errorf("pairDialogue() = %v", pairs)
	}
}

func TestStore_ArchiveEarly(t *testing.T) {
	store, paths := seedStore(t)
	fixedStoreClock(store)
	excludedBefore, _ := os.ReadFile(paths["alice"])

	archive, err := store.ArchiveEarly("", "", true)
	if err != nil {
		t.Fatalf("ArchiveEarly() error = %v", err)
	}
	if filepath.Ext(archive) != legacyExt || !strings.HasPrefix(filepath.Base(archive), earlyArchivePrefix) {
		t.Fatalf("archive = %q", archive)
	}
	if !strings.HasPrefix(archive, store.Paths.ArchiveRoot) {
		t.Errorf("archive %q should live below %q", archive, store.Paths.ArchiveRoot)
	}

	data, err := os.ReadFile(archive)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		t.Errorf("archive should be a JSON array")
	}
	records := LoadSessionRecords(archive)
	if len(records) != 3 {
		t.Errorf("archived records = %d, want 3", len(records))
	}

	meta, ok := LoadMeta(archive)
	if !ok || meta.Archive == nil {
		t.Fatal("archive sidecar missing its archive tag")
	}
	if meta.Archive.Type != archiveTypeEarly || meta.Archive.LatestExcludedID != "session-20250103-090000" || meta.Archive.SourceCount != 2 {
		t.Errorf("archive info = %+v", meta.Archive)
	}
	if meta.TitleOr("") != "Early archive (before Session 2025-01-03 09:00:00 UTC)" {
		t.Errorf("title = %q", meta.TitleOr(""))
	}
	for _, src := range meta.Sources {
		if src == "session-20250103-090000" {
			t.Error("the newest session must never be archived")
		}
	}

	for _, key := range []string{"old", "mid"} {
		if fileExists(paths[key]) || fileExists(MetaPathFor(paths[key])) {
			t.Errorf("source %s should be deleted", key)
		}
		if dirExists(filepath.Dir(paths[key])) {
			t.Errorf("empty day folder of %s should be removed", key)
		}
	}
	excludedAfter, _ := os.ReadFile(paths["alice"])
	if string(excludedBefore) != string(excludedAfter) {
		t.Error("excluded session must stay untouched")
	}

	merged, _ := filepath.Glob(filepath.Join(filepath.Dir(archive), mergedPrefix+"*"))
	if len(merged) != 0 {
		t.Errorf("intermediate merge files left behind: %v", merged)
	}
}

func TestStore_ArchiveEarlyKeepSources(t *testing.T) {
	store, paths := seedStore(t)
	archiveRoot := filepath.Join(t.TempDir(), "archives")

	archive, err := store.ArchiveEarly("", archiveRoot, false)
	if err != nil || archive == "" {
		t.Fatalf("ArchiveEarly() = %q, %v", archive, err)
	}
	if !strings.HasPrefix(archive, archiveRoot) {
		t.Errorf("archive = %q, want below %q", archive, archiveRoot)
	}
	for key, path := range paths {
		if !fileExists(path) {
			t.Errorf("source %s should be kept", key)
		}
	}
}

func TestStore_ArchiveEarlyNothingToDo(t *testing.T) {
	root := t.TempDir()
	store := NewStore(NewMemoryPaths(root))
	seedSession(t, filepath.Join(store.Paths.SessionsRoot, "2025-01-01"), "session-20250101-090000", "2025-01-01T09:00:00Z", 1, "")

	archive, err := store.ArchiveEarly("", "", true)
	if err != nil || archive != "" {
		t.Errorf("ArchiveEarly() = %q, %v, want nothing to do", archive, err)
	}
}

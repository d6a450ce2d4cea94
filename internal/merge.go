package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	mergedModel      = "merged"
	archiveTypeEarly = "early"
	mergeTitleParts  = 3
)

// Merge writes a new session holding the histories of paths in order. The
// sources are left untouched. Fewer than two distinct sources is not an
// error; Merge returns "" and writes nothing.
func (s *Store) Merge(paths []string, title, root string) (string, error) {
	paths = NewDeduplicator().DedupePaths(paths)
	if len(paths) < 2 {
		return "", nil
	}
	return s.mergePaths(paths, title, s.rootOr(root))
}

func (s *Store) mergePaths(paths []string, title, outRoot string) (string, error) {
	var system *Message
	var dialogue []Message
	sources := make([]string, 0, len(paths))

	for _, path := range paths {
		sources = append(sources, sessionStem(path))
		for _, msg := range LoadSessionMessages(path) {
			switch msg.Role {
			case RoleSystem:
				if system == nil {
					m := msg
					system = &m
				}
			case RoleUser, RoleAssistant:
				dialogue = append(dialogue, msg)
			}
		}
	}

	now := s.now()
	dir := filepath.Join(outRoot, "merged-"+now.Format(dayLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &StorageError{Path: dir, Op: "mkdir", Err: err}
	}
	outLog := freeSessionPath(dir, mergedPrefix, now, logExt)
	stem := sessionStem(outLog)
	display := DisplayName(stem)
	ts := formatTimestamp(now)

	var buf bytes.Buffer
	turns := 0
	for _, pair := range pairDialogue(dialogue) {
		turns++
		msgs := make([]Message, 0, 3)
		if system != nil {
			msgs = append(msgs, *system)
		}
		msgs = append(msgs, pair[0], pair[1])
		line, err := marshalLine(Record{
			Messages: msgs,
			Meta: RecordMeta{
				Model:       mergedModel,
				Turn:        turns,
				Timestamp:   ts,
				FileName:    filepath.Base(outLog),
				DisplayName: display,
			},
		})
		if err != nil {
			return "", fmt.Errorf("failed to encode merged record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := atomicWriteFile(outLog, buf.Bytes(), 0644); err != nil {
		return "", err
	}

	if strings.TrimSpace(title) == "" {
		title = mergedTitle(paths)
	}
	meta := SessionMeta{
		ID:          stem,
		Path:        outLog,
		Model:       mergedModel,
		Turns:       turns,
		Created:     ts,
		Updated:     ts,
		Title:       stringPtr(strings.TrimSpace(title)),
		FileName:    filepath.Base(outLog),
		DisplayName: display,
		Sources:     sources,
	}
	if err := writeJSONFile(MetaPathFor(outLog), meta); err != nil {
		return "", err
	}

	LogInfo("Merged %d session(s) into %s", len(paths), outLog)
	return outLog, nil
}

// mergedTitle builds "Merged: a | b | c" from the first source titles,
// using the session id where a source has none
func mergedTitle(paths []string) string {
	var parts []string
	for _, path := range paths {
		if len(parts) == mergeTitleParts {
			break
		}
		part := sessionStem(path)
		if meta, ok := LoadMeta(path); ok && meta.Title != nil && *meta.Title != "" {
			part = *meta.Title
		}
		parts = append(parts, part)
	}
	return "Merged: " + strings.Join(parts, " | ")
}

// pairDialogue groups messages into user/assistant pairs. A user message
// without a reply is replaced by the next user message.
func pairDialogue(messages []Message) [][2]Message {
	var pairs [][2]Message
	var user *Message
	for i := range messages {
		switch messages[i].Role {
		case RoleUser:
			user = &messages[i]
		case RoleAssistant:
			if user != nil {
				pairs = append(pairs, [2]Message{*user, messages[i]})
				user = nil
			}
		}
	}
	return pairs
}

// freeSessionPath returns dir/<prefix><ts><ext>, moving the timestamp
// forward one second at a time until neither the log nor its sidecar exists
func freeSessionPath(dir, prefix string, t time.Time, ext string) string {
	for {
		path := filepath.Join(dir, prefix+t.Format(sessionIDLayout)+ext)
		if !fileExists(path) && !fileExists(MetaPathFor(path)) {
			return path
		}
		t = t.Add(time.Second)
	}
}

// ArchiveEarly folds every session except the newest into a single JSON
// archive below archiveRoot. With deleteSources the archived logs, their
// sidecars and emptied day folders are removed. It returns "" when there
// is nothing to archive.
func (s *Store) ArchiveEarly(root, archiveRoot string, deleteSources bool) (string, error) {
	root = s.rootOr(root)
	if archiveRoot == "" {
		archiveRoot = s.Paths.ArchiveRoot
	}

	infos := s.List(root, "")
	if len(infos) < 2 {
		return "", nil
	}

	latest := infos[0]
	var paths []string
	for _, info := range infos[1:] {
		if info.Path != "" && fileExists(info.Path) {
			paths = append(paths, info.Path)
		}
	}
	if len(paths) == 0 {
		return "", nil
	}

	latestDisplay := latest.DisplayName
	if latestDisplay == "" {
		latestDisplay = DisplayName(latest.ID)
	}
	merged, err := s.mergePaths(paths, fmt.Sprintf("Early archive (before %s)", latestDisplay), archiveRoot)
	if err != nil {
		return "", err
	}

	now := s.now()
	archiveLog := freeSessionPath(filepath.Dir(merged), earlyArchivePrefix, now, legacyExt)
	archiveStem := sessionStem(archiveLog)
	archiveDisplay := DisplayName(archiveStem)

	records := LoadSessionRecords(merged)
	if records == nil {
		records = []Record{}
	}
	for i := range records {
		records[i].Meta.FileName = filepath.Base(archiveLog)
		records[i].Meta.DisplayName = archiveDisplay
	}
	data, err := marshalPretty(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := atomicWriteFile(archiveLog, data, 0644); err != nil {
		return "", err
	}

	var meta SessionMeta
	readJSONFile(MetaPathFor(merged), &meta)
	_ = os.Remove(merged)
	_ = os.Remove(MetaPathFor(merged))

	meta.ID = archiveStem
	meta.Path = archiveLog
	meta.FileName = filepath.Base(archiveLog)
	meta.DisplayName = archiveDisplay
	meta.Sources = make([]string, 0, len(paths))
	for _, path := range paths {
		meta.Sources = append(meta.Sources, sessionStem(path))
	}
	meta.Archive = &ArchiveInfo{
		Type:                      archiveTypeEarly,
		LatestExcludedID:          latest.ID,
		LatestExcludedDisplayName: latestDisplay,
		SourceCount:               len(paths),
		Generated:                 formatTimestamp(now),
	}
	if err := writeJSONFile(MetaPathFor(archiveLog), meta); err != nil {
		return "", err
	}

	if deleteSources {
		deleteSourceSessions(paths, root, archiveRoot)
	}

	LogInfo("Archived %d session(s) into %s", len(paths), archiveLog)
	return archiveLog, nil
}

// deleteSourceSessions removes archived logs with their sidecars, then
// prunes day folders that were left empty
func deleteSourceSessions(paths []string, root, archiveRoot string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			LogWarn("Failed to remove %s: %v", path, err)
		}
		_ = os.Remove(MetaPathFor(path))
		parent := filepath.Dir(path)
		if !samePath(parent, root) && !samePath(parent, archiveRoot) {
			_ = os.Remove(parent)
		}
	}

	for _, dir := range subdirs(root) {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}
}

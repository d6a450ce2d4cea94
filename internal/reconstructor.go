package internal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// readRecords loads every record from a session log. JSONL logs skip
// malformed lines; JSON logs must hold an array and decode to nothing
// otherwise. Only I/O failures are returned.
func readRecords(path string) ([]Record, error) {
	if strings.HasSuffix(path, legacyExt) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			LogDebug("%v", &ParseError{Source: "log", Key: path, Err: err})
			return nil, nil
		}
		return records, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var records []Record
	reader := bufio.NewReader(f)
	lineNo := 0
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			lineNo++
			rec, err := ParseRecord(bytes.TrimSpace(line))
			if err != nil {
				LogDebug("%v", &ParseError{Source: "log", Key: fmt.Sprintf("%s:%d", path, lineNo), Err: err})
			} else {
				records = append(records, *rec)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return records, readErr
		}
	}
	return records, nil
}

// LoadSessionRecords returns the records of a session log, or nil when
// the log cannot be read.
func LoadSessionRecords(path string) []Record {
	records, err := readRecords(path)
	if err != nil {
		LogDebug("Failed to load session records from %s: %v", path, err)
		return nil
	}
	return records
}

// LoadSessionMessages reconstructs the ordered message history of a
// session. Only the first system message is kept.
func LoadSessionMessages(path string) []Message {
	return messagesFromRecords(LoadSessionRecords(path))
}

func messagesFromRecords(records []Record) []Message {
	var messages []Message
	systemSet := false
	for _, rec := range records {
		for _, msg := range rec.Messages {
			switch msg.Role {
			case RoleSystem:
				if !systemSet {
					messages = append(messages, msg)
					systemSet = true
				}
			case RoleUser, RoleAssistant:
				messages = append(messages, msg)
			}
		}
	}
	return messages
}

// SessionHasDialogue reports whether any record carries a user or
// assistant message.
func SessionHasDialogue(path string) bool {
	for _, rec := range LoadSessionRecords(path) {
		for _, msg := range rec.Messages {
			if msg.Role == RoleUser || msg.Role == RoleAssistant {
				return true
			}
		}
	}
	return false
}

// MetaPathFor returns the sidecar path of a session log
func MetaPathFor(logPath string) string {
	return filepath.Join(filepath.Dir(logPath), sessionStem(logPath)+metaSuffix)
}

func sessionStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadMeta reads the sidecar of a session log
func LoadMeta(logPath string) (SessionMeta, bool) {
	var meta SessionMeta
	if !readJSONFile(MetaPathFor(logPath), &meta) {
		return SessionMeta{}, false
	}
	return meta, true
}

// countRecords counts the records of a log without keeping them
func countRecords(path string) int {
	records, err := readRecords(path)
	if err != nil {
		return 0
	}
	return len(records)
}

// fallbackMeta rebuilds metadata for a log that has no usable sidecar
func fallbackMeta(path string) SessionMeta {
	stem := sessionStem(path)
	meta := SessionMeta{
		ID:          stem,
		Path:        path,
		FileName:    filepath.Base(path),
		DisplayName: DisplayName(stem),
	}
	records, err := readRecords(path)
	if err != nil {
		return meta
	}
	meta.Turns = len(records)
	if len(records) > 0 {
		if title := ComputeTitle(records[0].Messages); title != "" {
			meta.Title = stringPtr(title)
		}
		meta.Model = records[0].Meta.Model
	}
	return meta
}

// fillMetaDefaults completes a sidecar that is missing derivable fields
func fillMetaDefaults(meta *SessionMeta, path string) {
	stem := sessionStem(path)
	if meta.ID == "" {
		meta.ID = stem
	}
	if meta.Path == "" {
		meta.Path = path
	}
	if meta.Turns == 0 {
		meta.Turns = countRecords(path)
	}
	if meta.FileName == "" {
		meta.FileName = filepath.Base(path)
	}
	if meta.DisplayName == "" {
		meta.DisplayName = DisplayName(stem)
	}
}

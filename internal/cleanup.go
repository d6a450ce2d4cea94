package internal

import (
	"os"
	"path/filepath"
)

const dayLogFile = "day.json"

// DayLog is the per-day aggregate stored as <day>/day.json
type DayLog struct {
	Date     string        `json:"date"`
	Sessions []DayLogEntry `json:"sessions"`
}

// DayLogEntry is one session inside a DayLog
type DayLogEntry struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Title    *string   `json:"title"`
	Custom   bool      `json:"custom"`
	Turns    int       `json:"turns"`
	Created  string    `json:"created,omitempty"`
	Updated  string    `json:"updated,omitempty"`
	Messages []Message `json:"messages"`
}

// DeleteIfEmpty removes a session that has no dialogue. A sidecar that
// counts turns or any user or assistant message in the log keeps the
// session. The emptied day folder is removed when possible.
func DeleteIfEmpty(path, metaPath string) bool {
	if metaPath == "" {
		metaPath = MetaPathFor(path)
	}
	if !fileExists(path) {
		return false
	}

	var meta SessionMeta
	if readJSONFile(metaPath, &meta) && meta.Turns > 0 {
		return false
	}
	if SessionHasDialogue(path) {
		return false
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		LogWarn("Failed to remove empty session %s: %v", path, err)
		return false
	}
	_ = os.Remove(metaPath)
	_ = os.Remove(filepath.Dir(path))
	LogDebug("Removed empty session %s", path)
	return true
}

// AppendSessionToDayLog stores a snapshot of a session in the day.json
// next to it, replacing any earlier snapshot of the same session. It
// returns "" when the session has no records.
func AppendSessionToDayLog(path string) (string, error) {
	records := LoadSessionRecords(path)
	if len(records) == 0 {
		return "", nil
	}

	meta, ok := LoadMeta(path)
	if ok {
		fillMetaDefaults(&meta, path)
	} else {
		meta = fallbackMeta(path)
	}

	dayDir := filepath.Dir(path)
	dayPath := filepath.Join(dayDir, dayLogFile)

	var day DayLog
	if !readJSONFile(dayPath, &day) {
		day = DayLog{}
	}
	day.Date = filepath.Base(dayDir)

	entries := make([]DayLogEntry, 0, len(day.Sessions)+1)
	for _, entry := range day.Sessions {
		if entry.ID != meta.ID {
			entries = append(entries, entry)
		}
	}
	entries = append(entries, DayLogEntry{
		ID:       meta.ID,
		Path:     path,
		Title:    meta.Title,
		Custom:   meta.Custom,
		Turns:    len(records),
		Created:  meta.Created,
		Updated:  meta.Updated,
		Messages: messagesFromRecords(records),
	})
	day.Sessions = entries

	if err := writeJSONFile(dayPath, day); err != nil {
		return "", err
	}
	return dayPath, nil
}

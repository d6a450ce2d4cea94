package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	timestampLayout = "2006-01-02T15:04:05Z"
	sessionIDLayout = "20060102-150405"
	dayLayout       = "2006-01-02"

	sessionPrefix      = "session-"
	mergedPrefix       = "session-merged-"
	earlyArchivePrefix = "session-early-archive-"

	logExt     = ".jsonl"
	legacyExt  = ".json"
	metaSuffix = ".meta.json"
	userFile   = "user.json"
)

// Record is one logged turn in a session log
type Record struct {
	Messages []Message `json:"messages"`
	Meta     RecordMeta `json:"meta"`
}

// RecordMeta is the per-record metadata block
type RecordMeta struct {
	Model       string `json:"model"`
	Sanitized   bool   `json:"sanitized"`
	Turn        int    `json:"turn"`
	Timestamp   string `json:"ts"`
	FileName    string `json:"file_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// SessionMeta is the sidecar written next to every session log.
// Title is nil until one is assigned. Created is written once.
type SessionMeta struct {
	ID          string       `json:"id"`
	Path        string       `json:"path"`
	Model       string       `json:"model,omitempty"`
	Sanitized   bool         `json:"sanitized"`
	Turns       int          `json:"turns"`
	Created     string       `json:"created,omitempty"`
	Updated     string       `json:"updated,omitempty"`
	Title       *string      `json:"title"`
	Custom      bool         `json:"custom"`
	FileName    string       `json:"file_name,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
	UserID      string       `json:"user_id,omitempty"`
	UserDisplay string       `json:"user_display,omitempty"`
	Sources     []string     `json:"sources,omitempty"`
	Archive     *ArchiveInfo `json:"archive,omitempty"`
}

// ArchiveInfo tags an early-archive session
type ArchiveInfo struct {
	Type                      string `json:"type"`
	LatestExcludedID          string `json:"latest_excluded_id"`
	LatestExcludedDisplayName string `json:"latest_excluded_display_name,omitempty"`
	SourceCount               int    `json:"source_count"`
	Generated                 string `json:"generated"`
}

// UserMeta is the user.json stored at the root of a user's directory
type UserMeta struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// TitleOr returns the title, or fallback when none is set
func (m SessionMeta) TitleOr(fallback string) string {
	if m.Title == nil || strings.TrimSpace(*m.Title) == "" {
		return fallback
	}
	return *m.Title
}

// UpdatedTime parses the updated timestamp
func (m SessionMeta) UpdatedTime() (time.Time, bool) {
	return parseTimestamp(m.Updated)
}

// ParseRecord parses one JSONL line into a Record
func ParseRecord(line []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record JSON: %w", err)
	}
	return &rec, nil
}

// formatTimestamp renders t as ISO-8601 UTC at second precision
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	// Naive timestamps from older writers are treated as UTC.
	if t, err := time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(s, "Z")); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func stringPtr(s string) *string {
	return &s
}

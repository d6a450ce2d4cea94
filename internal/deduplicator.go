package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Deduplicator removes duplicate sessions
type Deduplicator struct{}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Deduplicate removes sessions whose dialogue is identical, keeping the
// first occurrence
func (d *Deduplicator) Deduplicate(sessions []*Session) []*Session {
	seen := make(map[string]bool)
	var unique []*Session

	for _, session := range sessions {
		hash := d.hashSessionContent(session)
		if !seen[hash] {
			seen[hash] = true
			unique = append(unique, session)
		}
	}

	return unique
}

// DedupePaths drops repeated session paths, keeping argument order
func (d *Deduplicator) DedupePaths(paths []string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, path := range paths {
		key := filepath.Clean(path)
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if !seen[key] {
			seen[key] = true
			unique = append(unique, path)
		}
	}

	return unique
}

// hashSessionContent hashes roles and contents; the system prompt is part
// of the identity
func (d *Deduplicator) hashSessionContent(session *Session) string {
	h := sha256.New()

	for _, msg := range session.Messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

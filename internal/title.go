package internal

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	titleMaxWords = 8
	titleMaxRunes = 80
)

var resultBlockPrefixes = []string{"[HELPER RESULT]", "[INSTRUMENT RESULT]", "[RESULT]"}

// ComputeTitle derives a short title from the first user message that is
// not a wrapped result block. It returns "" when there is none.
func ComputeTitle(messages []Message) string {
	for _, msg := range messages {
		if msg.Role != RoleUser {
			continue
		}
		stripped := strings.TrimSpace(msg.Content)
		if hasAnyPrefixFold(stripped, resultBlockPrefixes) {
			continue
		}
		words := strings.Fields(strings.ReplaceAll(stripped, "\n", " "))
		if len(words) == 0 {
			return ""
		}
		if len(words) > titleMaxWords {
			words = words[:titleMaxWords]
		}
		title := []rune(strings.Join(words, " "))
		if len(title) > titleMaxRunes {
			title = title[:titleMaxRunes]
		}
		return string(title)
	}
	return ""
}

var displayPrefixes = []struct {
	prefix string
	label  string
}{
	{mergedPrefix, "Merged session"},
	{earlyArchivePrefix, "Early archive"},
	{sessionPrefix, "Session"},
}

// DisplayName renders a session id as a human label, e.g.
// "session-20250913-123456" becomes "Session 2025-09-13 12:34:56 UTC".
func DisplayName(sessionID string) string {
	for _, p := range displayPrefixes {
		if !strings.HasPrefix(sessionID, p.prefix) {
			continue
		}
		ts, err := time.Parse(sessionIDLayout, sessionID[len(p.prefix):])
		if err != nil {
			break
		}
		return p.label + " " + ts.Format("2006-01-02 15:04:05") + " UTC"
	}
	pretty := strings.TrimSpace(strings.ReplaceAll(sessionID, "-", " "))
	if pretty == "" {
		return "Session"
	}
	return cases.Title(language.Und).String(pretty)
}

func hasAnyPrefixFold(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if hasPrefixFold(s, p) {
			return true
		}
	}
	return false
}

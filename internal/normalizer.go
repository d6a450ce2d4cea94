package internal

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultLabelPattern matches the assistant's own name as it tends to echo
// it ("Nox:", "Noctics Nox:").
const DefaultLabelPattern = `(?:Noctics\s+)?Nox`

const (
	resultTag = `(?:(?:INSTRUMENT|HELPER)\s+)?RESULT`
	queryTag  = `(?:(?:INSTRUMENT|HELPER)\s+)?QUERY`
)

var (
	reasoningBlockPattern = regexp.MustCompile(`(?is)<think>.*?</think>\s*`)
	resultWrapPattern     = regexp.MustCompile(`(?is)^\s*\[` + resultTag + `\](.*?)\[/` + resultTag + `\]\s*$`)
	resultMarkerPattern   = regexp.MustCompile(`(?i)\[(/?)` + resultTag + `\]`)
	hardwarePattern       = regexp.MustCompile(`(?i)^hardware\s+context\s*:`)

	auxiliaryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)\[SET\s*TITLE\].*?\[/SET\s*TITLE\]`),
		regexp.MustCompile(`(?is)\[` + queryTag + `\].*?\[/` + queryTag + `\]`),
		regexp.MustCompile(`(?is)\[` + resultTag + `\].*?\[/` + resultTag + `\]`),
	}

	templateTokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\|/?(?:assistant|user)\|>`),
		regexp.MustCompile(`(?i)\[\s*/\s*(?:assistant|dev|user)\s*\]`),
		regexp.MustCompile(`(?i)</\s*(?:assistant|dev|user)\s*>`),
	}
)

// Normalizer cleans complete assistant replies before they are shown or
// logged. The zero value is not usable; call NewNormalizer.
type Normalizer struct {
	stripReasoning bool
	labelPrefix    *regexp.Regexp
}

// NewNormalizer creates a Normalizer. Labels are literal assistant names
// whose "Name:" prefixes get stripped; with no labels the default pattern
// is used.
func NewNormalizer(stripReasoning bool, labels ...string) *Normalizer {
	pattern := DefaultLabelPattern
	if len(labels) > 0 {
		alts := make([]string, 0, len(labels))
		for _, label := range labels {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			words := strings.Fields(label)
			for i, w := range words {
				words[i] = regexp.QuoteMeta(w)
			}
			alts = append(alts, strings.Join(words, `\s+`))
		}
		if len(alts) > 0 {
			pattern = "(?:" + strings.Join(alts, "|") + ")"
		}
	}
	return &Normalizer{
		stripReasoning: stripReasoning,
		labelPrefix:    regexp.MustCompile(`(?i)^(?:` + pattern + `\s*[:：]\s*)+`),
	}
}

// Normalize returns the cleaned reply. A nil reply stays nil so callers
// can tell "no reply" apart from "reply that cleaned to nothing".
func (n *Normalizer) Normalize(reply *string) *string {
	if reply == nil {
		return nil
	}
	text := *reply
	if n.stripReasoning {
		text = StripReasoning(text)
	}
	cleaned := n.Clean(text)
	return &cleaned
}

// StripReasoning removes every reasoning block and trims the result
func StripReasoning(text string) string {
	return strings.TrimSpace(reasoningBlockPattern.ReplaceAllString(text, ""))
}

// Clean applies the label, wrapper, echo and token cleanup steps
func (n *Normalizer) Clean(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return cleaned
	}

	if loc := n.labelPrefix.FindStringIndex(cleaned); loc != nil {
		cleaned = strings.TrimLeftFunc(cleaned[loc[1]:], unicode.IsSpace)
	}

	cleaned = unwrapResultBlock(cleaned)
	cleaned = strings.TrimSpace(strings.Join(dropHardwareEcho(strings.Split(cleaned, "\n")), "\n"))
	cleaned = unwrapResultBlock(cleaned)

	for _, p := range auxiliaryPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	for _, p := range templateTokenPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// unwrapResultBlock returns the inner text when value is exactly one
// result block. Nested blocks inside it are kept for a later pass; two
// sibling blocks are not a wrapper.
func unwrapResultBlock(value string) string {
	m := resultWrapPattern.FindStringSubmatch(value)
	if m == nil || closesEarly(m[1]) {
		return value
	}
	return strings.TrimSpace(m[1])
}

// closesEarly reports whether inner closes a result block it never opened,
// which means the outer open and close markers belong to different blocks
func closesEarly(inner string) bool {
	depth := 0
	for _, m := range resultMarkerPattern.FindAllStringSubmatch(inner, -1) {
		if m[1] == "" {
			depth++
			continue
		}
		depth--
		if depth < 0 {
			return true
		}
	}
	return false
}

func dropHardwareEcho(lines []string) []string {
	for len(lines) > 0 {
		first := strings.TrimSpace(lines[0])
		if first == "" {
			lines = lines[1:]
			continue
		}
		if !hardwarePattern.MatchString(first) {
			break
		}
		lines = lines[1:]
		for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
			lines = lines[1:]
		}
	}
	return lines
}

package internal

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ExtractPublicSegments splits buffer into the text outside reasoning
// blocks and the unresolved tail that starts at an unclosed open marker.
// Markers match case-insensitively. Nesting is not supported: the first
// close marker after an open marker ends the block.
func ExtractPublicSegments(buffer string) (public, remainder string) {
	public, remainder, _ = scanSegments(buffer)
	return public, remainder
}

// scanSegments also reports how many trailing bytes of public were copied
// from the buffer in one run, after the last closed block.
func scanSegments(buffer string) (public, remainder string, tail int) {
	var out strings.Builder
	idx := 0
	for idx < len(buffer) {
		start := indexFold(buffer, thinkOpen, idx)
		if start < 0 {
			out.WriteString(buffer[idx:])
			return out.String(), "", len(buffer) - idx
		}
		out.WriteString(buffer[idx:start])
		end := indexFold(buffer, thinkClose, start+len(thinkOpen))
		if end < 0 {
			return out.String(), buffer[start:], 0
		}
		idx = end + len(thinkClose)
	}
	return out.String(), "", 0
}

// Segmenter incrementally separates public text from reasoning blocks in a
// streamed reply. It is not safe for concurrent use.
type Segmenter struct {
	pending string
	emitted strings.Builder
}

// NewSegmenter creates an empty Segmenter
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Feed consumes the next chunk and returns the public text that became
// settled because of it. A trailing fragment that could still grow into an
// open marker is held back until the next chunk decides it.
func (s *Segmenter) Feed(chunk string) string {
	if chunk == "" {
		return ""
	}
	public, remainder, tail := scanSegments(s.pending + chunk)
	if remainder == "" {
		if n := min(partialMarkerSuffix(public, thinkOpen), tail); n > 0 {
			remainder = public[len(public)-n:]
			public = public[:len(public)-n]
		}
	}
	s.pending = remainder
	s.emitted.WriteString(public)
	return public
}

// Flush ends the stream. A held-back marker fragment is released as public
// text; an unclosed reasoning block is discarded.
func (s *Segmenter) Flush() string {
	tail := s.pending
	s.pending = ""
	if tail == "" || hasPrefixFold(tail, thinkOpen) {
		return ""
	}
	s.emitted.WriteString(tail)
	return tail
}

// Emitted returns all public text produced so far
func (s *Segmenter) Emitted() string {
	return s.emitted.String()
}

// Pending returns the unresolved remainder
func (s *Segmenter) Pending() string {
	return s.pending
}

// indexFold finds marker in s at or after from, ignoring ASCII case.
func indexFold(s, marker string, from int) int {
	for i := from; i+len(marker) <= len(s); i++ {
		if hasPrefixFold(s[i:], marker) {
			return i
		}
	}
	return -1
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if lowerASCII(s[i]) != lowerASCII(prefix[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// partialMarkerSuffix returns the length of the longest proper prefix of
// marker that s ends with.
func partialMarkerSuffix(s, marker string) int {
	for n := len(marker) - 1; n > 0; n-- {
		if len(s) >= n && hasPrefixFold(s[len(s)-n:], marker[:n]) {
			return n
		}
	}
	return 0
}

package internal

import (
	"sort"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestExtractPublicSegments(t *testing.T) {
	tests := []struct {
		name          string
		buffer        string
		wantPublic    string
		wantRemainder string
	}{
		{name: "empty", buffer: "", wantPublic: "", wantRemainder: ""},
		{name: "no markers", buffer: "plain text", wantPublic: "plain text", wantRemainder: ""},
		{name: "multiple pairs", buffer: "A<think>x</think>B<think>y</think>C", wantPublic: "ABC", wantRemainder: ""},
		{name: "open without close", buffer: "Hello <think>secret", wantPublic: "Hello ", wantRemainder: "<think>secret"},
		{name: "case insensitive", buffer: "a<THINK>x</Think>b", wantPublic: "ab", wantRemainder: ""},
		{name: "stray close is text", buffer: "a</think>b", wantPublic: "a</think>b", wantRemainder: ""},
		{name: "nesting not supported", buffer: "a<think>x<think>y</think>z</think>b", wantPublic: "az</think>b", wantRemainder: ""},
		{name: "partial close withheld", buffer: "ok<think>abc</thi", wantPublic: "ok", wantRemainder: "<think>abc</thi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			public, remainder := ExtractPublicSegments(tt.buffer)
			if public != tt.wantPublic || remainder != tt.wantRemainder {
				t.Errorf("ExtractPublicSegments(%q) = (%q, %q), want (%q, %q)",
					tt.buffer, public, remainder, tt.wantPublic, tt.wantRemainder)
			}
		})
	}
}

func TestSegmenter_MarkerAcrossChunks(t *testing.T) {
	s := NewSegmenter()
	var got []string
	for _, chunk := range []string{"Hel", "lo <th", "ink>sec", "ret</th", "ink> world"} {
		if out := s.Feed(chunk); out != "" {
			got = append(got, out)
		}
	}
	got = append(got, s.Flush())

	if joined := strings.Join(got, ""); joined != "Hello  world" {
		t.Errorf("streamed public text = %q, want %q", joined, "Hello  world")
	}
	for _, part := range got {
		if strings.Contains(part, "secret") || strings.Contains(part, "<") {
			t.Errorf("emitted part %q leaks reasoning or marker text", part)
		}
	}
}

func TestSegmenter_WithholdsUnclosedBlock(t *testing.T) {
	s := NewSegmenter()
	if out := s.Feed("Answer <think>still thinking"); out != "Answer " {
		t.Errorf("Feed() = %q, want %q", out, "Answer ")
	}
	if s.Pending() != "<think>still thinking" {
		t.Errorf("Pending() = %q", s.Pending())
	}
	if out := s.Flush(); out != "" {
		t.Errorf("Flush() = %q, unclosed reasoning must be dropped", out)
	}
	if s.Emitted() != "Answer " {
		t.Errorf("Emitted() = %q", s.Emitted())
	}
}

func TestSegmenter_ReleasesFalseMarkerPrefix(t *testing.T) {
	s := NewSegmenter()
	if out := s.Feed("a <th"); out != "a " {
		t.Errorf("Feed() = %q, want %q", out, "a ")
	}
	if out := s.Feed("ree"); out != "<three" {
		t.Errorf("Feed() = %q, want %q", out, "<three")
	}
	if out := s.Feed(" <"); out != " " {
		t.Errorf("Feed() = %q, want %q", out, " ")
	}
	if out := s.Flush(); out != "<" {
		t.Errorf("Flush() = %q, want %q", out, "<")
	}
	if s.Emitted() != "a <three <" {
		t.Errorf("Emitted() = %q", s.Emitted())
	}
}

func TestSegmenter_ChunkingInvariance(t *testing.T) {
	tokens := []string{"a", "B", " ", "\n", "<", ">", "/", "think", "<think>", "</think>", "<THINK>", "</Think>", "<th", "ink>"}

	rapid.Check(t, func(rt *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(tokens), 0, 30).Draw(rt, "parts")
		whole := strings.Join(parts, "")
		if _, rem := ExtractPublicSegments(whole); rem != "" {
			whole += "</think>"
		}
		want, _ := ExtractPublicSegments(whole)

		cuts := rapid.SliceOfN(rapid.IntRange(0, len(whole)), 0, 8).Draw(rt, "cuts")
		sort.Ints(cuts)

		s := NewSegmenter()
		var got strings.Builder
		prev := 0
		for _, c := range cuts {
			got.WriteString(s.Feed(whole[prev:c]))
			prev = c
		}
		got.WriteString(s.Feed(whole[prev:]))
		got.WriteString(s.Flush())

		if got.String() != want {
			rt.Fatalf("chunked public %q != whole public %q (input %q, cuts %v)", got.String(), want, whole, cuts)
		}
		if s.Emitted() != want {
			rt.Fatalf("Emitted() %q != %q", s.Emitted(), want)
		}
	})
}

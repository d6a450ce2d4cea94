package internal

import (
	"strings"
	"testing"
)

func TestComputeTitle(t *testing.T) {
	fifteen := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen"

	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{
			name:     "caps at eight words",
			messages: []Message{{Role: RoleUser, Content: fifteen}},
			want:     "one two three four five six seven eight",
		},
		{
			name: "skips system and result blocks",
			messages: []Message{
				{Role: RoleSystem, Content: "You are Nox."},
				{Role: RoleUser, Content: "  [INSTRUMENT RESULT]\nfrom helper\n[/INSTRUMENT RESULT]"},
				{Role: RoleUser, Content: "[HELPER RESULT]x[/HELPER RESULT]"},
				{Role: RoleUser, Content: "Plan a\ntrip to Lisbon"},
			},
			want: "Plan a trip to Lisbon",
		},
		{
			name:     "no user message",
			messages: []Message{{Role: RoleAssistant, Content: "hi"}},
			want:     "",
		},
		{
			name:     "blank user message",
			messages: []Message{{Role: RoleUser, Content: " \n "}},
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeTitle(tt.messages); got != tt.want {
				t.Errorf("ComputeTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeTitle_CapsAtEightyRunes(t *testing.T) {
	long := strings.Repeat("é", 60) + " " + strings.Repeat("b", 60)
	got := ComputeTitle([]Message{{Role: RoleUser, Content: long}})
	if n := len([]rune(got)); n != 80 {
		t.Errorf("ComputeTitle() rune length = %d, want 80", n)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"session-20250913-123456", "Session 2025-09-13 12:34:56 UTC"},
		{"session-merged-20250913-123456", "Merged session 2025-09-13 12:34:56 UTC"},
		{"session-early-archive-20250913-123456", "Early archive 2025-09-13 12:34:56 UTC"},
		{"session-notes", "Session Notes"},
		{"my-custom-log", "My Custom Log"},
		{"", "Session"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := DisplayName(tt.id); got != tt.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

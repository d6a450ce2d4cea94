package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/nox-session/internal"
)

// wantLine is the flat shape of one exported line
type wantLine struct {
	Session string `json:"session"`
	Turn    int    `json:"turn,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

func TestJSONLExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		session *internal.Session
		want    []wantLine
	}{
		{
			name:    "empty session",
			session: internal.CreateTestSessionWithMessages("s1", []internal.Message{}),
			want:    nil,
		},
		{
			name:    "session with messages",
			session: internal.CreateTestSession("s2"),
			want: []wantLine{
				{Session: "s2", Role: "system", Content: "You are Nox."},
				{Session: "s2", Turn: 1, Role: "user", Content: "Hello, how are you?"},
				{Session: "s2", Turn: 1, Role: "assistant", Content: "I'm doing well, thank you!"},
			},
		},
		{
			name: "turns advance on user messages",
			session: internal.CreateTestSessionWithMessages("s3", []internal.Message{
				{Role: internal.RoleUser, Content: "a"},
				{Role: internal.RoleAssistant, Content: "b"},
				{Role: internal.RoleUser, Content: "c"},
				{Role: internal.RoleAssistant, Content: "d"},
			}),
			want: []wantLine{
				{Session: "s3", Turn: 1, Role: "user", Content: "a"},
				{Session: "s3", Turn: 1, Role: "assistant", Content: "b"},
				{Session: "s3", Turn: 2, Role: "user", Content: "c"},
				{Session: "s3", Turn: 2, Role: "assistant", Content: "d"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &JSONLExporter{}

			if err := exporter.Export(tt.session, &buf); err != nil {
				t.Fatalf("JSONLExporter.Export() error = %v", err)
			}

			output := buf.String()
			if len(tt.want) == 0 {
				if output != "" {
					t.Errorf("Empty session should produce empty output, got: %q", output)
				}
				return
			}

			lines := strings.Split(strings.TrimSpace(output), "\n")
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d\n%s", len(lines), len(tt.want), output)
			}
			for i, line := range lines {
				var got wantLine
				if err := json.Unmarshal([]byte(line), &got); err != nil {
					t.Errorf("Line %d is not valid JSON: %v", i, err)
					continue
				}
				if got != tt.want[i] {
					t.Errorf("line %d = %+v, want %+v", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestJSONLExporter_Extension(t *testing.T) {
	exporter := &JSONLExporter{}
	if got := exporter.Extension(); got != "jsonl" {
		t.Errorf("JSONLExporter.Extension() = %v, want jsonl", got)
	}
}

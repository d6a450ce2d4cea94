// Package export renders recorded sessions in shareable formats.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/iksnae/nox-session/internal"
)

// Exporter writes one session in a single format
type Exporter interface {
	Export(session *internal.Session, w io.Writer) error
	Extension() string
}

// formats maps every accepted spelling to its exporter
var formats = map[string]func() Exporter{
	"jsonl":    func() Exporter { return &JSONLExporter{} },
	"ndjson":   func() Exporter { return &JSONLExporter{} },
	"md":       func() Exporter { return &MarkdownExporter{} },
	"markdown": func() Exporter { return &MarkdownExporter{} },
	"yaml":     func() Exporter { return &YAMLExporter{} },
	"yml":      func() Exporter { return &YAMLExporter{} },
	"json":     func() Exporter { return &JSONExporter{} },
}

// NewExporter returns the exporter for format, case-insensitively
func NewExporter(format string) (Exporter, error) {
	build, ok := formats[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
	return build(), nil
}

// Formats lists the accepted format names
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// document is the structured form shared by the JSON and YAML exporters
type document struct {
	ID          string         `json:"id" yaml:"id"`
	Title       string         `json:"title,omitempty" yaml:"title,omitempty"`
	DisplayName string         `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	User        *documentUser  `json:"user,omitempty" yaml:"user,omitempty"`
	Model       string         `json:"model,omitempty" yaml:"model,omitempty"`
	Turns       int            `json:"turns" yaml:"turns"`
	Created     string         `json:"created,omitempty" yaml:"created,omitempty"`
	Updated     string         `json:"updated,omitempty" yaml:"updated,omitempty"`
	Messages    []documentLine `json:"messages" yaml:"messages"`
}

type documentUser struct {
	ID      string `json:"id" yaml:"id"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
}

type documentLine struct {
	Turn    int    `json:"turn,omitempty" yaml:"turn,omitempty"`
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func newDocument(session *internal.Session) document {
	doc := document{
		ID:          session.ID,
		Title:       session.Title,
		DisplayName: session.DisplayName,
		Model:       session.Meta.Model,
		Turns:       session.Meta.Turns,
		Created:     session.Meta.Created,
		Updated:     session.Meta.Updated,
		Messages:    numberTurns(session.Messages),
	}
	if session.UserID != "" {
		doc.User = &documentUser{ID: session.UserID, Display: session.Meta.UserDisplay}
	}
	if doc.Turns == 0 {
		for _, line := range doc.Messages {
			if line.Turn > doc.Turns {
				doc.Turns = line.Turn
			}
		}
	}
	return doc
}

// numberTurns tags dialogue with its turn. A turn starts at each user
// message; system messages carry no turn.
func numberTurns(messages []internal.Message) []documentLine {
	lines := make([]documentLine, 0, len(messages))
	turn := 0
	for _, msg := range messages {
		line := documentLine{Role: msg.Role, Content: msg.Content}
		switch msg.Role {
		case internal.RoleUser:
			turn++
			line.Turn = turn
		case internal.RoleAssistant:
			line.Turn = turn
		}
		lines = append(lines, line)
	}
	return lines
}

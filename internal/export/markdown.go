package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/nox-session/internal"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

// Export exports a session to Markdown format
func (e *MarkdownExporter) Export(session *internal.Session, w io.Writer) error {
	heading := session.Title
	if heading == "" {
		heading = session.DisplayName
	}
	if heading == "" {
		heading = internal.DisplayName(session.ID)
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", heading)

	_, _ = fmt.Fprintf(w, "**Session:** %s  \n", session.ID)
	if session.UserID != "" {
		user := session.UserID
		if session.Meta.UserDisplay != "" && session.Meta.UserDisplay != session.UserID {
			user = fmt.Sprintf("%s (%s)", session.Meta.UserDisplay, session.UserID)
		}
		_, _ = fmt.Fprintf(w, "**User:** %s  \n", user)
	}
	if session.Meta.Model != "" {
		_, _ = fmt.Fprintf(w, "**Model:** %s  \n", session.Meta.Model)
	}
	if session.Meta.Updated != "" {
		_, _ = fmt.Fprintf(w, "**Updated:** %s  \n", session.Meta.Updated)
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(session.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	for i, msg := range session.Messages {
		content := escapeMarkdown(msg.Content)
		if msg.Role == internal.RoleSystem {
			content = quote(content)
		}

		_, _ = fmt.Fprintf(w, "**%s:**\n\n%s\n\n", msg.Role, content)

		if i < len(session.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// escapeMarkdown escapes emphasis markers outside fenced code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

func quote(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/nox-session/internal"
	"github.com/spf13/cobra"
)

var (
	showLimit int
	showRaw   bool
)

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	systemMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show messages for a specific session",
	Long: `Display the conversation of a session.

The session may be given as a path, a number from list, an exact id or the
tail of an id (for example the HHMMSS part).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		path, err := env.resolve(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if showRaw {
			return writeRecords(out, internal.LoadSessionRecords(path))
		}

		session, err := internal.LoadSession(path)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if session.UserID == "" {
			session.UserID = env.store.UserMetaForPath(path).ID
		}
		if showLimit > 0 && len(session.Messages) > showLimit {
			session.Messages = session.Messages[len(session.Messages)-showLimit:]
		}
		displaySession(out, session)
		return nil
	},
}

func writeRecords(out io.Writer, records []internal.Record) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func displaySession(out io.Writer, session *internal.Session) {
	name := session.Title
	if name == "" {
		name = session.DisplayName
	}
	if name == "" {
		name = internal.DisplayName(session.ID)
	}
	fmt.Fprintln(out, sessionHeaderStyle.Render(name))

	metaParts := []string{session.ID}
	if session.Meta.Turns > 0 {
		metaParts = append(metaParts, fmt.Sprintf("%d turn(s)", session.Meta.Turns))
	}
	if session.UserID != "" {
		metaParts = append(metaParts, "user "+session.UserID)
	}
	if session.Meta.Model != "" {
		metaParts = append(metaParts, session.Meta.Model)
	}
	if session.Meta.Updated != "" {
		metaParts = append(metaParts, "updated "+session.Meta.Updated)
	}
	fmt.Fprintln(out, sessionMetaStyle.Render(strings.Join(metaParts, " • ")))

	if len(session.Messages) == 0 {
		fmt.Fprintln(out, messageContentStyle.Foreground(lipgloss.Color("240")).Render("(no messages)"))
		return
	}
	for i, msg := range session.Messages {
		displayMessage(out, msg, i+1, len(session.Messages))
	}
}

func displayMessage(out io.Writer, msg internal.Message, index, total int) {
	var roleStyle lipgloss.Style
	switch msg.Role {
	case internal.RoleUser:
		roleStyle = userMessageStyle
	case internal.RoleAssistant:
		roleStyle = assistantMessageStyle
	default:
		roleStyle = systemMessageStyle
	}

	label := msg.Role
	if label == "" {
		label = "unknown"
	}
	label = strings.ToUpper(label[:1]) + label[1:]
	fmt.Fprintln(out, roleStyle.Render(label)+" "+timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total)))
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		fmt.Fprintln(out, messageContentStyle.Foreground(lipgloss.Color("240")).Render("(empty message)"))
		return
	}
	fmt.Fprintln(out, messageContentStyle.Render(content))
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 0, "Only show the last N messages")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the logged records as JSON lines")
}

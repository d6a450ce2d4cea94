package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/nox-session/internal"
	"github.com/spf13/cobra"
)

var (
	listSearch string
	listLimit  int
	listJSON   bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	Long: `List recorded sessions, newest first.

The number in the first column can be passed to show, rename, meta and export
in place of the session id. With --search the SQLite index is refreshed and
sessions whose id, title or dialogue contain the query are listed instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		var sessions []internal.SessionMeta
		numbered := listSearch == "" && env.cfg.User.ID == ""
		if listSearch != "" {
			ix, err := env.openIndex()
			if err != nil {
				return err
			}
			defer ix.Close()
			sessions, err = ix.Search(listSearch, 0)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			sessions = filterByUser(sessions, env.cfg.User.ID)
		} else {
			sessions = env.store.List("", env.cfg.User.ID)
		}

		if listLimit > 0 && len(sessions) > listLimit {
			sessions = sessions[:listLimit]
		}

		out := cmd.OutOrStdout()
		if listJSON {
			return writeJSON(out, sessions)
		}
		displaySessions(out, sessions, numbered)
		return nil
	},
}

func filterByUser(sessions []internal.SessionMeta, user string) []internal.SessionMeta {
	if user == "" {
		return sessions
	}
	var kept []internal.SessionMeta
	for _, s := range sessions {
		if strings.EqualFold(s.UserID, user) || strings.EqualFold(s.UserDisplay, user) {
			kept = append(kept, s)
		}
	}
	return kept
}

func displaySessions(out io.Writer, sessions []internal.SessionMeta, numbered bool) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, headerStyle.Render("No sessions found"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Found %d session(s)", len(sessions))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	columns := []string{"ID", "Title", "Turns", "Updated", "User"}
	if numbered {
		columns = append([]string{"#"}, columns...)
	}
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = titleStyle.Render(c)
	}
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t")+"\t")

	for i, s := range sessions {
		title := s.TitleOr("Untitled")
		if len([]rune(title)) > 50 {
			title = string([]rune(title)[:47]) + "..."
		}

		user := s.UserDisplay
		if user == "" {
			user = s.UserID
		}

		row := []string{
			idStyle.Render(s.ID),
			title,
			countStyle.Render(strconv.Itoa(s.Turns)),
			dateStyle.Render(formatUpdated(s)),
			userStyle.Render(user),
		}
		if numbered {
			row = append([]string{strconv.Itoa(i + 1)}, row...)
		}
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}
	_ = w.Flush()
}

// formatUpdated renders the update time relative to now
func formatUpdated(s internal.SessionMeta) string {
	t, ok := s.UpdatedTime()
	if !ok {
		return "—"
	}
	t = t.Local()
	diff := time.Since(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Only list sessions whose id, title or dialogue contains this text")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of sessions to list (0 for all)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the session metadata as JSON")
}

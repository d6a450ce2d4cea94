package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/iksnae/nox-session/internal"
	"github.com/spf13/cobra"
)

var renameAuto bool

var renameCmd = &cobra.Command{
	Use:   "rename <session-id> [title...]",
	Short: "Set the title of a session",
	Long: `Set a custom title on a session. Words after the session id are joined
into the title, so quoting is optional.

With --auto the title is derived from the first user message instead, and the
session is marked as not custom so later automatic titling may replace it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		path, err := env.resolve(args[0])
		if err != nil {
			return err
		}

		var title string
		custom := true
		switch {
		case renameAuto:
			if len(args) > 1 {
				return errors.New("--auto does not take a title")
			}
			title = internal.ComputeTitle(internal.LoadSessionMessages(path))
			if title == "" {
				return errors.New("session has no user message to derive a title from")
			}
			custom = false
		case len(args) > 1:
			title = strings.TrimSpace(strings.Join(args[1:], " "))
		}
		if title == "" {
			return errors.New("a title or --auto is required")
		}

		if err := env.store.SetSessionTitleFor(path, title, custom); err != nil {
			return fmt.Errorf("failed to rename session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Renamed")+" "+idStyle.Render(filepath.Base(path))+" → "+titleStyle.Render(title))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
	renameCmd.Flags().BoolVar(&renameAuto, "auto", false, "Derive the title from the first user message")
}

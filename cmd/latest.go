package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var latestJSON bool

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recently updated session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		meta, ok := env.store.Latest("")
		if !ok {
			if latestJSON {
				_, err := fmt.Fprintln(out, "null")
				return err
			}
			fmt.Fprintln(out, headerStyle.Render("No sessions found"))
			return nil
		}

		if latestJSON {
			return writeJSON(out, meta)
		}
		fmt.Fprintln(out, titleStyle.Render(meta.TitleOr("Untitled")))
		fmt.Fprintf(out, "  %s %s\n", dateStyle.Render("ID:"), idStyle.Render(meta.ID))
		fmt.Fprintf(out, "  %s %s\n", dateStyle.Render("Path:"), meta.Path)
		fmt.Fprintf(out, "  %s %s\n", dateStyle.Render("Turns:"), countStyle.Render(fmt.Sprint(meta.Turns)))
		if meta.Updated != "" {
			fmt.Fprintf(out, "  %s %s\n", dateStyle.Render("Updated:"), meta.Updated)
		}
		if meta.UserID != "" {
			fmt.Fprintf(out, "  %s %s\n", dateStyle.Render("User:"), userStyle.Render(meta.UserID))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(latestCmd)
	latestCmd.Flags().BoolVar(&latestJSON, "json", false, "Print the session metadata as JSON")
}

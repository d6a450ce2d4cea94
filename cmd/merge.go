package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mergeTitle string

var mergeCmd = &cobra.Command{
	Use:   "merge <session-id> <session-id>...",
	Short: "Merge sessions into a new one",
	Long: `Combine the dialogue of two or more sessions, in argument order, into a new
session below merged-YYYY-MM-DD/. The source sessions are left untouched.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		paths := make([]string, 0, len(args))
		for _, id := range args {
			path, err := env.resolve(id)
			if err != nil {
				return err
			}
			paths = append(paths, path)
		}

		merged, err := env.store.Merge(paths, mergeTitle, "")
		if err != nil {
			return fmt.Errorf("merge failed: %w", err)
		}
		out := cmd.OutOrStdout()
		if merged == "" {
			fmt.Fprintln(out, warningStyle.Render("Nothing to merge: at least two distinct sessions are required"))
			return nil
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Merged %d session(s) into", len(paths))), merged)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVarP(&mergeTitle, "title", "t", "", "Title of the merged session (default: \"Merged: a | b | c\")")
}

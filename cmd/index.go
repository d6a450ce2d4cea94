package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexRebuild bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Refresh the search index",
	Long: `Bring the SQLite search index in line with the session store.

Sessions whose log and sidecar have not changed since the last run are
skipped. --rebuild discards the index and reads every session again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		ix, err := env.openIndex()
		if err != nil {
			return err
		}
		defer ix.Close()

		if indexRebuild {
			if _, err := ix.Rebuild(""); err != nil {
				return fmt.Errorf("rebuild failed: %w", err)
			}
		}
		total, err := ix.Count("")
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Indexed %d session(s)", total)), idStyle.Render(ix.Path()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "Drop the index and rebuild it from scratch")
}

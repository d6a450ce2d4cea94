package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	archiveKeepSources bool
	archiveRoot        string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Fold every session but the newest into one archive",
	Long: `Merge every session except the most recent one into a single early-archive
JSON file below the archive root. The archived sessions are deleted unless
--keep-sources is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		path, err := env.store.ArchiveEarly("", archiveRoot, !archiveKeepSources)
		if err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}
		out := cmd.OutOrStdout()
		if path == "" {
			fmt.Fprintln(out, warningStyle.Render("Nothing to archive"))
			return nil
		}
		fmt.Fprintln(out, successStyle.Render("Archive written to"), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().BoolVar(&archiveKeepSources, "keep-sources", false, "Keep the archived sessions on disk")
	archiveCmd.Flags().StringVar(&archiveRoot, "archive-root", "", "Directory for the archive (default: <root>/early-archives)")
}

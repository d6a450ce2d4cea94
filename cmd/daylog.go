package cmd

import (
	"fmt"

	"github.com/iksnae/nox-session/internal"
	"github.com/spf13/cobra"
)

var daylogCmd = &cobra.Command{
	Use:   "daylog <session-id>",
	Short: "Copy a session into its day.json aggregate",
	Long: `Store a snapshot of a session in the day.json file of its day folder,
replacing any earlier snapshot of the same session.`,
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

		dayPath, err := internal.AppendSessionToDayLog(path)
		if err != nil {
			return fmt.Errorf("failed to update day log: %w", err)
		}
		out := cmd.OutOrStdout()
		if dayPath == "" {
			fmt.Fprintln(out, warningStyle.Render("Session has no records; day log unchanged"))
			return nil
		}
		fmt.Fprintln(out, successStyle.Render("Day log updated:"), dayPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daylogCmd)
}

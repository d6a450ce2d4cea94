package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countSearch string

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count recorded sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		var n int
		if countSearch != "" {
			ix, err := env.openIndex()
			if err != nil {
				return err
			}
			defer ix.Close()
			if n, err = ix.Count(countSearch); err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
		} else {
			n = len(env.store.List("", env.cfg.User.ID))
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
		return err
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
	countCmd.Flags().StringVarP(&countSearch, "search", "s", "", "Only count sessions matching this text")
}

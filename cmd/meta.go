package cmd

import (
	"github.com/iksnae/nox-session/internal"
	"github.com/spf13/cobra"
)

var metaCmd = &cobra.Command{
	Use:   "meta <session-id>",
	Short: "Print the metadata sidecar of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		path, err := env.resolve(args[0])
		if err != nil {
			return err
		}

		meta, ok := internal.LoadMeta(path)
		if !ok {
			internal.LogWarn("No sidecar for %s, showing derived metadata", path)
			session, err := internal.LoadSession(path)
			if err != nil {
				return err
			}
			meta = session.Meta
		}
		return writeJSON(cmd.OutOrStdout(), meta)
	},
}

func init() {
	rootCmd.AddCommand(metaCmd)
}

package cmd

import (
	"strings"

	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/internal/chat"
	"github.com/spf13/cobra"
)

var (
	askSession string
	askNoLog   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <text...>",
	Short: "Send a single message and print the reply",
	Long: `Send one message to the model endpoint, print the reply and record the
exchange as a new session (or append it to --session).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		client, err := newChatClient(env, !askNoLog)
		if err != nil {
			return err
		}
		if askSession != "" {
			path, err := env.resolve(askSession)
			if err != nil {
				return err
			}
			if err := client.AdoptSessionLog(path); err != nil {
				return err
			}
		}
		defer func() { _ = finishSession(env, client) }()

		text := strings.Join(args, " ")
		ctx := commandContext(cmd)
		_, err = runTurn(ctx, cmd.OutOrStdout(), false, func(onDelta chat.DeltaFunc) (string, error) {
			return client.OneTurn(ctx, text, onDelta)
		})
		if err != nil {
			return err
		}
		if path := client.LogPath(); path != "" {
			internal.LogDebug("Turn recorded in %s", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askSession, "session", "", "Append the exchange to an existing session")
	askCmd.Flags().BoolVar(&askNoLog, "no-log", false, "Do not record the exchange")
}

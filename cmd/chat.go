package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/internal/chat"
	"github.com/iksnae/nox-session/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	chatSession string
	chatNoLog   bool
	chatSystem  string
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	replyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

const probeTimeout = 2 * time.Second

const chatHelp = `Commands:
  /title <text>    set the session title
  /result <text>   hand an instrument result back to Nox
  /reset           forget the conversation (the log is kept)
  /target          show the endpoint settings
  /quit            leave`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Talk to the configured model endpoint. Every completed turn is appended to
a session log; --session continues an existing one instead of starting fresh.

Reasoning blocks (<think>...</think>) are hidden while the reply streams.
Ctrl-C or /quit ends the conversation. Sessions without any exchange are
removed on exit.

` + chatHelp,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		client, err := newChatClient(env, !chatNoLog)
		if err != nil {
			return err
		}
		if chatSession != "" {
			path, err := env.resolve(chatSession)
			if err != nil {
				return err
			}
			if err := client.AdoptSessionLog(path); err != nil {
				return fmt.Errorf("failed to resume session: %w", err)
			}
			internal.LogInfo("Resuming %s", path)
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		in := cmd.InOrStdin()
		out := cmd.OutOrStdout()
		interactive := isInteractive(in)
		defer func() {
			if saved := finishSession(env, client); saved != "" && interactive {
				internal.PrintSuccess("Session saved to " + saved)
			}
		}()
		if interactive {
			target := client.DescribeTarget()
			fmt.Fprintln(out, headerStyle.Render("Nox"), hintStyle.Render(fmt.Sprintf("%s • %s", target.URL, modelName(target.Model))))
			if title, ok := client.SessionTitle(); ok && chatSession != "" {
				internal.PrintInfo("Continuing: " + title)
			}
			if err := client.CheckConnectivity(ctx, probeTimeout); err != nil {
				internal.PrintWarning(err.Error())
			}
			fmt.Fprintln(out, hintStyle.Render("Type /help for commands."))
		}

		system := systemPrompt(env)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		done := make(chan struct{})
		defer close(done)
		lines, scanErr := readLines(scanner, done)
		for {
			if interactive {
				fmt.Fprint(out, promptStyle.Render("you› "))
			}
			var line string
			select {
			case <-ctx.Done():
				if interactive {
					fmt.Fprintln(out)
				}
				return nil
			case text, ok := <-lines:
				if !ok {
					return <-scanErr
				}
				line = strings.TrimSpace(text)
			}
			if line == "" {
				continue
			}

			if strings.HasPrefix(line, "/") {
				quit, err := runChatCommand(ctx, client, out, line, system, interactive)
				if err != nil {
					fmt.Fprintln(out, errorStyle.Render("Error:"), err)
				}
				if quit {
					return nil
				}
				continue
			}

			reply, err := runTurn(ctx, out, interactive, func(onDelta chat.DeltaFunc) (string, error) {
				return client.OneTurn(ctx, line, onDelta)
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintln(out, errorStyle.Render("Error:"), err)
				continue
			}
			if chat.WantsInstrument(reply) {
				fmt.Fprintln(out, hintStyle.Render("Nox asked for an instrument. Paste its output with /result <text>."))
			}
		}
	},
}

// readLines scans in the background so the REPL can watch for Ctrl-C while
// it waits for input. lines is closed at end of input, after the scanner
// error has been sent.
func readLines(scanner *bufio.Scanner, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	return lines, scanErr
}

// runChatCommand handles one slash command and reports whether the REPL
// should end
func runChatCommand(ctx context.Context, client *chat.Client, out io.Writer, line, system string, interactive bool) (bool, error) {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, chatHelp)
	case "/reset":
		client.ResetMessages(system)
		fmt.Fprintln(out, hintStyle.Render("Conversation cleared."))
	case "/target":
		return false, writeJSON(out, client.DescribeTarget())
	case "/title":
		if rest == "" {
			title, _ := client.SessionTitle()
			fmt.Fprintln(out, titleStyle.Render(title))
			return false, nil
		}
		if err := client.SetSessionTitle(rest, true); err != nil {
			return false, err
		}
		fmt.Fprintln(out, successStyle.Render("Title set:"), rest)
	case "/result":
		if rest == "" {
			return false, errors.New("/result needs the instrument output")
		}
		_, err := runTurn(ctx, out, interactive, func(onDelta chat.DeltaFunc) (string, error) {
			return client.ProcessInstrumentResult(ctx, rest, onDelta)
		})
		return false, err
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// runTurn prints a reply, streaming it when the client delivers deltas
func runTurn(ctx context.Context, out io.Writer, interactive bool, send func(chat.DeltaFunc) (string, error)) (string, error) {
	if interactive {
		fmt.Fprint(out, replyStyle.Render("nox› "))
	}
	streamed := false
	reply, err := send(func(text string) {
		streamed = true
		fmt.Fprint(out, text)
	})
	if err != nil {
		if streamed {
			fmt.Fprintln(out)
		}
		return "", err
	}
	if !streamed {
		fmt.Fprint(out, reply)
	}
	fmt.Fprintln(out)
	return reply, nil
}

// newChatClient wires the transport, session logger and instrument from
// the configuration. persist false keeps the conversation in memory.
func newChatClient(env *environment, persist bool) (*chat.Client, error) {
	cfg := env.cfg
	tr, err := transport.Connect(transport.ConnectorConfig{
		URL:     cfg.LLM.URL,
		APIKey:  cfg.LLM.APIKey,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var logger *internal.SessionLogger
	if persist && cfg.Chat.Logging {
		logger = internal.NewSessionLogger(cfg.LLM.Model, cfg.Chat.Sanitize, env.paths)
		if cfg.User.ID != "" {
			logger.SetUser(cfg.User.ID, cfg.User.Display)
		}
	}

	client := chat.NewClient(tr, logger, chat.Options{
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Stream:         cfg.LLM.Stream,
		StripReasoning: cfg.Chat.StripReasoning,
		Sanitize:       cfg.Chat.Sanitize,
		Labels:         cfg.Chat.Labels,
		HasAPIKey:      cfg.LLM.APIKey != "",
	})
	client.ResetMessages(systemPrompt(env))

	if cfg.Instrument.Automation && cfg.Instrument.URL != "" {
		itr, err := transport.Connect(transport.ConnectorConfig{
			URL:     cfg.Instrument.URL,
			APIKey:  cfg.Instrument.APIKey,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("instrument: %w", err)
		}
		name := ""
		if len(cfg.Instrument.Roster) > 0 {
			name = cfg.Instrument.Roster[0]
		}
		client.SetInstrument(chat.NewTransportInstrument(name, cfg.Instrument.Model, itr))
	}
	return client, nil
}

// finishSession titles the session, snapshots it into the day log when
// configured and drops it if nothing was exchanged. It returns the log
// path of a kept session.
func finishSession(env *environment, client *chat.Client) string {
	if client.LogPath() == "" {
		return ""
	}
	if client.MaybeDeleteEmptySession() {
		return ""
	}
	if _, err := client.EnsureAutoTitle(); err != nil {
		internal.LogWarn("Failed to title session: %v", err)
	}
	if env.cfg.Chat.DayLog {
		if _, err := client.AppendSessionToDayLog(); err != nil {
			internal.LogWarn("Failed to update day log: %v", err)
		}
	}
	internal.LogDebug("Session saved to %s", client.LogPath())
	return client.LogPath()
}

func systemPrompt(env *environment) string {
	if chatSystem != "" {
		return chatSystem
	}
	return env.cfg.Chat.SystemPrompt
}

func modelName(model string) string {
	if model == "" {
		return "default model"
	}
	return model
}

func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Continue an existing session")
	chatCmd.Flags().BoolVar(&chatNoLog, "no-log", false, "Do not record this conversation")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "System prompt (overrides chat.system_prompt)")
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/internal/transport"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
	healthcheckOffline bool
	healthcheckTimeout time.Duration
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the configuration, session store and endpoint are usable",
	Long: `Check the health of nox-session by verifying:
  • Configuration loading and validation
  • Memory root existence and write access
  • Session store readability and session count
  • Search index access
  • Reachability of the configured model endpoint

Use --offline to skip the network check.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("Nox Session Health Check"))
		fmt.Fprintln(out)

		// Step 1: Configuration
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		env, err := loadEnvironment()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("✗ Configuration is invalid:"), err)
			return err
		}
		fmt.Fprintln(out, successStyle.Render("✓ Configuration loaded"))
		if healthcheckVerbose {
			file := env.cfg.File()
			if file == "" {
				file = "(defaults and environment only)"
			}
			fmt.Fprintf(out, "   Config file: %s\n", file)
			fmt.Fprintf(out, "   Endpoint: %s\n", env.cfg.LLM.URL)
			fmt.Fprintf(out, "   Model: %s\n", env.cfg.LLM.Model)
		}
		fmt.Fprintln(out)

		// Step 2: Memory root
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking memory root..."))
		rootOK := env.paths.RootExists()
		writable := false
		if rootOK {
			writable = env.paths.Writable()
		}
		switch {
		case !rootOK:
			fmt.Fprintln(out, warningStyle.Render("! Memory root does not exist yet (it is created on the first turn)"))
		case !writable:
			fmt.Fprintln(out, errorStyle.Render("✗ Memory root is not writable"))
		default:
			fmt.Fprintln(out, successStyle.Render("✓ Memory root is writable"))
		}
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Root: %s\n", env.paths.Root)
			fmt.Fprintf(out, "   Sessions: %s\n", env.paths.SessionsRoot)
			fmt.Fprintf(out, "   Users: %s\n", env.paths.UsersRoot)
		}
		fmt.Fprintln(out)

		// Step 3: Sessions
		fmt.Fprintln(out, infoStyle.Render("Step 3: Loading session data..."))
		sessions := env.store.List("", "")
		if len(sessions) > 0 {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Found %d session(s)", len(sessions))))
			if healthcheckVerbose {
				for i, s := range sessions {
					if i == 5 {
						fmt.Fprintf(out, "   ... and %d more\n", len(sessions)-5)
						break
					}
					fmt.Fprintf(out, "   [%d] %s (%s)\n", i+1, s.TitleOr("Untitled"), s.ID)
				}
			}
		} else {
			fmt.Fprintln(out, warningStyle.Render("! No sessions found"))
		}
		fmt.Fprintln(out)

		// Step 4: Search index
		fmt.Fprintln(out, infoStyle.Render("Step 4: Checking search index..."))
		indexOK := checkIndex(out, env)
		fmt.Fprintln(out)

		// Step 5: Endpoint
		endpointOK := true
		if !healthcheckOffline {
			fmt.Fprintln(out, infoStyle.Render("Step 5: Checking model endpoint..."))
			endpointOK = checkEndpoint(cmd.Context(), out, env.cfg.LLM.URL)
			fmt.Fprintln(out)
		}

		fmt.Fprintln(out, sectionStyle.Render("Summary"))
		fmt.Fprintln(out)
		if rootOK && !writable || !indexOK || !endpointOK {
			fmt.Fprintln(out, errorStyle.Render("✗ Health check failed"))
			return errors.New("health check failed")
		}
		fmt.Fprintln(out, successStyle.Render("✓ nox-session is ready"))
		return nil
	},
}

// checkIndex reads the search index without refreshing it. A missing
// index is not a failure.
func checkIndex(out io.Writer, env *environment) bool {
	path, err := env.cfg.IndexPath()
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("✗ Search index path:"), err)
		return false
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, warningStyle.Render("! Search index not built yet (run 'nox-session index')"))
		return true
	}

	db, err := internal.OpenDatabaseReadOnly(path)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("✗ Search index unavailable:"), err)
		return false
	}
	defer db.Close()
	rows, err := internal.QuerySessionRows(db, "", 0)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("✗ Search index unreadable:"), err)
		return false
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Search index holds %d session(s)", len(rows))))
	if healthcheckVerbose {
		fmt.Fprintf(out, "   Index: %s\n", path)
	}
	return true
}

func checkEndpoint(ctx context.Context, out io.Writer, url string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := transport.Probe(ctx, url, healthcheckTimeout); err != nil {
		fmt.Fprintln(out, errorStyle.Render("✗ Endpoint unreachable:"), err)
		return false
	}
	fmt.Fprintln(out, successStyle.Render("✓ Endpoint reachable at"), url)
	return true
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "details", false, "Show detailed information")
	healthcheckCmd.Flags().BoolVar(&healthcheckOffline, "offline", false, "Skip the endpoint check")
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 3*time.Second, "Endpoint dial timeout")
}

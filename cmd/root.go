package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/internal/config"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	memoryRoot string
	userID     string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nox-session",
	Short: "Chat with Nox and manage its session store",
	Long: `A CLI for talking to a Nox model endpoint and managing the sessions it records.

Every turn is appended to a JSONL session log with a small metadata sidecar,
grouped by day and optionally by user. The commands below browse, search,
rename, merge, archive and export those sessions.

Features:
  • Streaming chat with reasoning blocks hidden from the output
  • Ollama and OpenAI-compatible HTTP endpoints, plus WebSocket relays
  • Per-user session stores with automatic titles
  • Full-text search backed by a local SQLite index
  • Export in multiple formats (JSONL, Markdown, YAML, JSON)

Quick Start:
  nox-session chat                       # Start a conversation
  nox-session list                       # List recorded sessions
  nox-session show <session-id>          # View a session
  nox-session export --format md         # Export every session as Markdown`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		if internal.IsNotFound(err) {
			internal.PrintInfo("Run 'nox-session list' to see the recorded sessions")
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./nox.yaml or ~/.config/nox/nox.yaml)")
	rootCmd.PersistentFlags().StringVar(&memoryRoot, "root", "", "Memory root holding sessions/ and users/ (overrides config)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "User id for new sessions and listings")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// environment bundles what most commands need from the configuration
type environment struct {
	cfg   *config.Config
	paths internal.MemoryPaths
	store *internal.Store
}

// loadEnvironment reads the configuration and applies the persistent
// flag overrides
func loadEnvironment() (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if memoryRoot != "" {
		cfg.Memory.Home = memoryRoot
	}
	if userID != "" {
		cfg.User.ID = userID
	}

	paths, err := cfg.MemoryPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve memory root: %w", err)
	}
	internal.LogDebug("Memory root: %s", paths.Root)
	return &environment{cfg: cfg, paths: paths, store: internal.NewStore(paths)}, nil
}

// resolve maps a session identifier to its log path
func (e *environment) resolve(identifier string) (string, error) {
	path, ok := e.store.Resolve(identifier, "")
	if !ok {
		return "", &internal.ResolveError{Identifier: identifier}
	}
	return path, nil
}

// openIndex opens the search index and brings it up to date
func (e *environment) openIndex() (*internal.SearchIndex, error) {
	path, err := e.cfg.IndexPath()
	if err != nil {
		return nil, err
	}
	if err := e.paths.EnsureDirs(); err != nil {
		return nil, err
	}
	ix, err := internal.OpenSearchIndex(path, e.store)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	if _, err := ix.Sync(""); err != nil {
		ix.Close()
		return nil, err
	}
	return ix, nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
	toStdout  bool
	noDedupe  bool
	redact    bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [session-id...]",
	Short: "Export sessions to file",
	Long: `Export sessions to various formats (jsonl, md, yaml, json).

Without arguments every session in the store is exported, one file per
session. Sessions with identical dialogue are exported once unless
--no-dedupe is given. --redact masks e-mail addresses, card numbers, IPv4
addresses and phone numbers in the exported messages.

Use 'nox-session list' to see available session ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		var paths []string
		if len(args) > 0 {
			for _, id := range args {
				path, err := env.resolve(id)
				if err != nil {
					return err
				}
				paths = append(paths, path)
			}
		} else {
			for _, meta := range env.store.List("", env.cfg.User.ID) {
				paths = append(paths, meta.Path)
			}
		}

		if toStdout {
			if len(paths) != 1 {
				return fmt.Errorf("--stdout needs exactly one session, got %d", len(paths))
			}
			session, err := internal.LoadSession(paths[0])
			if err != nil {
				return err
			}
			if redact {
				session.Messages = internal.SanitizeMessages(session.Messages)
			}
			return exporter.Export(session, cmd.OutOrStdout())
		}

		var sessions []*internal.Session
		ctx := context.Background()
		steps := []internal.ProgressStep{
			{
				Message: "Loading sessions",
				Fn: func() error {
					for _, path := range internal.NewDeduplicator().DedupePaths(paths) {
						session, err := internal.LoadSession(path)
						if err != nil {
							internal.LogWarn("Skipping %s: %v", path, err)
							continue
						}
						if redact {
							session.Messages = internal.SanitizeMessages(session.Messages)
						}
						sessions = append(sessions, session)
					}
					if !noDedupe {
						sessions = internal.NewDeduplicator().Deduplicate(sessions)
					}
					return nil
				},
			},
			{
				Message: fmt.Sprintf("Exporting to %s", outputDir),
				Fn: func() error {
					return exportSessions(sessions, exporter, outputDir)
				},
			},
		}
		if err := internal.ShowProgressWithSteps(ctx, steps); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Export complete: %d session(s) exported to %s", len(sessions), outputDir)))
		return nil
	},
}

// exportSessions writes one file per session into dir. A session that
// fails to export is logged and skipped.
func exportSessions(sessions []*internal.Session, exporter export.Exporter, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, session := range sessions {
		filename := fmt.Sprintf("%s.%s", session.ID, exporter.Extension())
		target := filepath.Join(dir, filename)

		file, err := os.Create(target)
		if err != nil {
			internal.LogError("Failed to create file %s: %v", target, err)
			continue
		}

		if err := exporter.Export(session, file); err != nil {
			_ = file.Close()
			internal.LogError("%v", &internal.ExportError{Format: exporter.Extension(), Path: target, Err: err})
			continue
		}

		if err := file.Close(); err != nil {
			internal.LogWarn("Failed to close file %s: %v", target, err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().BoolVar(&toStdout, "stdout", false, "Write a single session to standard output")
	exportCmd.Flags().BoolVar(&redact, "redact", false, "Mask personal data in the exported messages")
	exportCmd.Flags().BoolVar(&noDedupe, "no-dedupe", false, "Export sessions even when their dialogue is identical")
}

package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/testutil"
)

// resetFlags restores every command flag to its default so tests sharing
// rootCmd do not leak state into each other
func resetFlags() {
	verbose, configPath, memoryRoot, userID = false, "", "", ""
	listSearch, listLimit, listJSON = "", 0, false
	latestJSON = false
	showLimit, showRaw = 0, false
	renameAuto = false
	mergeTitle = ""
	archiveKeepSources, archiveRoot = false, ""
	countSearch = ""
	format, outputDir, toStdout, noDedupe, redact = "jsonl", "./exports", false, false, false
	chatSession, chatNoLog, chatSystem = "", false, ""
	askSession, askNoLog = "", false
	healthcheckVerbose, healthcheckOffline, healthcheckTimeout = false, false, 3*time.Second
	indexRebuild = false
}

// setupStore isolates configuration lookups and returns a memory root
// holding the default fixture sessions
func setupStore(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("XDG_DATA_HOME", home)
	for _, key := range []string{"NOX_CONFIG", "NOX_LLM_URL", "NOX_LLM_MODEL", "NOX_LLM_API_KEY", "OPENAI_API_KEY", "NOCTICS_DATA_ROOT", "NOX_USER", "NOX_USER_ID", "NOX_USER_DISPLAY"} {
		t.Setenv(key, "")
	}
	root := testutil.SetMemoryRoot(t)
	testutil.CreateSessionTree(t, root, testutil.DefaultSessions)
	return root
}

// runCommand executes rootCmd with args and stdin, returning stdout
func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func listStore(root string) []internal.SessionMeta {
	return internal.NewStore(internal.NewMemoryPaths(root)).List("", "")
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iksnae/nox-session/testutil"
)

// fakeModel serves Ollama /api/generate NDJSON, replying with chunks to
// every request and recording the prompts it saw
type fakeModel struct {
	mu      sync.Mutex
	chunks  []string
	prompts []string
}

func (m *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	_ = decodeJSON(r, &body)
	m.mu.Lock()
	m.prompts = append(m.prompts, body.Prompt)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-ndjson")
	for _, c := range m.chunks {
		fmt.Fprintf(w, "{\"response\":%q,\"done\":false}\n", c)
	}
	fmt.Fprintln(w, `{"response":"","done":true}`)
}

func startModel(t *testing.T, chunks ...string) *fakeModel {
	t.Helper()
	m := &fakeModel{chunks: chunks}
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	t.Setenv("NOX_LLM_URL", srv.URL+"/api/generate")
	t.Setenv("NOX_LLM_MODEL", "nox-test")
	return m
}

func TestAskCommand(t *testing.T) {
	root := setupStore(t)
	newRoot := filepath.Join(root, "fresh")
	startModel(t, "Hel", "lo<think>hidden", " plan</think>", " there")

	out, err := runCommand(t, "", "--root", newRoot, "ask", "how", "are", "you")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if !strings.Contains(out, "Hello there") {
		t.Errorf("reply missing from output: %q", out)
	}
	if strings.Contains(out, "hidden") || strings.Contains(out, "<think>") {
		t.Errorf("reasoning leaked into output: %q", out)
	}

	sessions := listStore(newRoot)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.Turns != 1 || s.TitleOr("") != "how are you" || s.Model != "nox-test" {
		t.Errorf("recorded session: turns %d title %q model %q", s.Turns, s.TitleOr(""), s.Model)
	}
}

func TestAskCommand_NoLog(t *testing.T) {
	root := setupStore(t)
	newRoot := filepath.Join(root, "fresh")
	startModel(t, "ok")

	out, err := runCommand(t, "", "--root", newRoot, "ask", "--no-log", "ping")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(newRoot, "sessions")); !os.IsNotExist(err) {
		t.Errorf("--no-log wrote to the store: %v", err)
	}
}

func TestAskCommand_ResumeSession(t *testing.T) {
	root := setupStore(t)
	model := startModel(t, "answer 3")

	if _, err := runCommand(t, "", "ask", "--session", "session-20250101-090000", "question 3"); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], "question 2") {
		t.Errorf("history was not sent: %q", model.prompts)
	}

	path := sessionLog(root, "2025-01-01", "session-20250101-090000")
	if n := testutil.CountLogLines(t, path); n != 3 {
		t.Errorf("log holds %d records, want 3", n)
	}
	if len(listStore(root)) != 3 {
		t.Error("resuming must not create a new session")
	}
}

func TestAskCommand_BackendError(t *testing.T) {
	root := setupStore(t)
	newRoot := filepath.Join(root, "fresh")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()
	t.Setenv("NOX_LLM_URL", srv.URL+"/api/generate")

	if _, err := runCommand(t, "", "--root", newRoot, "ask", "hello"); err == nil {
		t.Fatal("expected the HTTP error to surface")
	}
	if len(listStore(newRoot)) != 0 {
		t.Error("a failed turn must not be recorded")
	}
}

func TestChatCommand(t *testing.T) {
	root := setupStore(t)
	newRoot := filepath.Join(root, "fresh")
	startModel(t, "Sure.")

	input := strings.Join([]string{
		"/title Weekend plans",
		"what should I cook?",
		"",
		"/bogus",
		"/quit",
		"never sent",
	}, "\n")
	out, err := runCommand(t, input, "--root", newRoot, "chat")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	for _, want := range []string{"Title set:", "Sure.", "unknown command /bogus"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	sessions := listStore(newRoot)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].Turns != 1 || sessions[0].TitleOr("") != "Weekend plans" || !sessions[0].Custom {
		t.Errorf("session: turns %d title %q custom %v", sessions[0].Turns, sessions[0].TitleOr(""), sessions[0].Custom)
	}
}

func TestChatCommand_EmptyConversation(t *testing.T) {
	root := setupStore(t)
	newRoot := filepath.Join(root, "fresh")
	startModel(t, "unused")

	if _, err := runCommand(t, "/help\n", "--root", newRoot, "chat"); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if len(listStore(newRoot)) != 0 {
		t.Error("a conversation without turns must leave no session behind")
	}
}

func TestChatCommand_InstrumentHint(t *testing.T) {
	root := setupStore(t)
	newRoot := filepath.Join(root, "fresh")
	startModel(t, "[INSTRUMENT QUERY] weather in Oslo")

	out, err := runCommand(t, "weather?\n/result 12C and rain\n", "--root", newRoot, "--user", "bob", "chat")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if !strings.Contains(out, "/result <text>") {
		t.Errorf("instrument hint missing:\n%s", out)
	}

	sessions := listStore(newRoot)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].UserID != "bob" || sessions[0].Turns != 2 {
		t.Errorf("session: user %q turns %d", sessions[0].UserID, sessions[0].Turns)
	}
	if sessions[0].TitleOr("") != "weather?" {
		t.Errorf("title = %q, the result block must not become the title", sessions[0].TitleOr(""))
	}
}

func TestChatCommand_CancelWhileWaitingForInput(t *testing.T) {
	root := setupStore(t)
	newRoot := filepath.Join(root, "fresh")
	startModel(t, "unused")
	resetFlags()

	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	chatCmd.SetContext(ctx)
	t.Cleanup(func() {
		rootCmd.SetContext(context.Background())
		chatCmd.SetContext(context.Background())
	})

	// stdin stays open and silent, like a terminal at the prompt
	stdin, writer := io.Pipe()
	defer writer.Close()
	var stdout bytes.Buffer
	rootCmd.SetArgs([]string{"--root", newRoot, "chat"})
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(io.Discard)

	errc := make(chan error, 1)
	go func() { errc <- rootCmd.Execute() }()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("chat failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("chat kept waiting for input after cancellation")
	}
	if len(listStore(newRoot)) != 0 {
		t.Error("cancelling at the prompt must leave no session behind")
	}
}

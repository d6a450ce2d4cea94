package internal

import (
	"fmt"
	"os"
	"path/filepath"
)

// MemoryPaths holds the directories that make up a session store
type MemoryPaths struct {
	Root         string // memory root
	SessionsRoot string // legacy flat store: <root>/sessions
	UsersRoot    string // per-user stores: <root>/users/<id>/sessions
	ArchiveRoot  string // early archives: <root>/early-archives
}

// NewMemoryPaths derives the store layout below root
func NewMemoryPaths(root string) MemoryPaths {
	return MemoryPaths{
		Root:         root,
		SessionsRoot: filepath.Join(root, "sessions"),
		UsersRoot:    filepath.Join(root, "users"),
		ArchiveRoot:  filepath.Join(root, "early-archives"),
	}
}

// DefaultDataRoot returns $XDG_DATA_HOME/noctics, or ~/.local/share/noctics
func DefaultDataRoot() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "noctics"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "noctics"), nil
}

// EnsureDirs creates the store directories
func (mp MemoryPaths) EnsureDirs() error {
	for _, dir := range []string{mp.Root, mp.SessionsRoot, mp.UsersRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &StorageError{Path: dir, Op: "mkdir", Err: err}
		}
	}
	return nil
}

// RootExists checks if the memory root exists
func (mp MemoryPaths) RootExists() bool {
	return dirExists(mp.Root)
}

// Writable probes the memory root with a throwaway file
func (mp MemoryPaths) Writable() bool {
	probe := filepath.Join(mp.Root, ".noctics-write-test")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return false
	}
	_ = f.Close()
	return os.Remove(probe) == nil
}

// UserSessionsDir returns the sessions directory of a user
func (mp MemoryPaths) UserSessionsDir(userID string) string {
	return filepath.Join(mp.UsersRoot, userID, "sessions")
}

package internal

import (
	"errors"
	"fmt"
	"os"
)

// StorageError represents errors accessing session files
type StorageError struct {
	Path string
	Op   string // "mkdir", "open", "write", "remove", "rename"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents errors parsing persisted data
type ParseError struct {
	Source string // "log", "sidecar", "index"
	Key    string // file path or record position
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResolveError reports a session identifier that matched nothing
type ResolveError struct {
	Identifier string
	User       string // set when the lookup was scoped to one user
}

func (e *ResolveError) Error() string {
	if e.User != "" {
		return fmt.Sprintf("session not found for user %s: %s", e.User, e.Identifier)
	}
	return fmt.Sprintf("session not found: %s", e.Identifier)
}

// IsNotFound reports whether err means a session or one of its files is
// missing
func IsNotFound(err error) bool {
	var resolveErr *ResolveError
	if errors.As(err, &resolveErr) {
		return true
	}
	var storageErr *StorageError
	return errors.As(err, &storageErr) && errors.Is(storageErr.Err, os.ErrNotExist)
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

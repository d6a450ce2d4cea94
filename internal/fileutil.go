package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place, so readers see either the old or the new file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StorageError{Path: dir, Op: "mkdir", Err: err}
	}

	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return &StorageError{Path: dir, Op: "create", Err: err}
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return &StorageError{Path: tempPath, Op: "write", Err: err}
	}
	if err := f.Sync(); err != nil {
		return &StorageError{Path: tempPath, Op: "sync", Err: err}
	}
	if err := f.Close(); err != nil {
		return &StorageError{Path: tempPath, Op: "close", Err: err}
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return &StorageError{Path: tempPath, Op: "chmod", Err: err}
	}
	if err := os.Rename(tempPath, path); err != nil {
		return &StorageError{Path: path, Op: "rename", Err: err}
	}

	success = true
	return nil
}

// marshalPretty encodes v as two-space indented JSON without HTML escaping
func marshalPretty(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := marshalPretty(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return atomicWriteFile(path, data, 0644)
}

// readJSONFile decodes path into v. It reports false when the file is
// missing or unparseable.
func readJSONFile(path string, v interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			LogDebug("Failed to read %s: %v", path, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		LogDebug("%v", &ParseError{Source: "json", Key: path, Err: err})
		return false
	}
	return true
}

// appendLine appends one line to path and syncs before closing
func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &StorageError{Path: path, Op: "open", Err: err}
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return &StorageError{Path: path, Op: "write", Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &StorageError{Path: path, Op: "sync", Err: err}
	}
	if err := f.Close(); err != nil {
		return &StorageError{Path: path, Op: "close", Err: err}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

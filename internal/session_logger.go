package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SessionLogger appends conversation turns to a session log and keeps its
// metadata sidecar current. A logger owns exactly one log at a time and is
// not safe for concurrent use.
type SessionLogger struct {
	Model       string
	Sanitized   bool
	Dir         string // flat sessions root, used when UserID is empty
	UsersRoot   string
	UserID      string
	UserDisplay string

	clock       func() time.Time
	file        string
	metaFile    string
	turn        int
	title        *string
	titleCustom  bool
	titleCleared bool // an explicit clear must not be undone by the sidecar
	displayName string
	records     []Record
}

// NewSessionLogger creates a logger writing below paths
func NewSessionLogger(model string, sanitized bool, paths MemoryPaths) *SessionLogger {
	return &SessionLogger{
		Model:     model,
		Sanitized: sanitized,
		Dir:       paths.SessionsRoot,
		UsersRoot: paths.UsersRoot,
		clock:     time.Now,
	}
}

// SetUser routes new sessions into the per-user store
func (l *SessionLogger) SetUser(id, display string) {
	l.UserID = strings.TrimSpace(id)
	l.UserDisplay = strings.TrimSpace(display)
}

// SetClock overrides the time source
func (l *SessionLogger) SetClock(now func() time.Time) {
	l.clock = now
}

func (l *SessionLogger) now() time.Time {
	if l.clock == nil {
		return time.Now().UTC()
	}
	return l.clock().UTC()
}

// Start opens a new session named after the current UTC second. If that
// file already exists it is adopted and its records count as prior turns.
func (l *SessionLogger) Start() error {
	base, err := l.resolveSessionRoot()
	if err != nil {
		return err
	}
	now := l.now()
	dated := filepath.Join(base, now.Format(dayLayout))
	if err := os.MkdirAll(dated, 0755); err != nil {
		return &StorageError{Path: dated, Op: "mkdir", Err: err}
	}

	l.file = filepath.Join(dated, sessionPrefix+now.Format(sessionIDLayout)+logExt)
	l.metaFile = MetaPathFor(l.file)
	l.displayName = DisplayName(sessionStem(l.file))
	l.records = nil
	l.turn = 0
	l.title = nil
	l.titleCustom = false
	l.titleCleared = false

	f, err := os.OpenFile(l.file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	switch {
	case err == nil:
		_ = f.Close()
	case os.IsExist(err):
		l.turn = countRecords(l.file)
		LogDebug("Adopting existing session log %s with %d turn(s)", l.file, l.turn)
	default:
		return &StorageError{Path: l.file, Op: "create", Err: err}
	}

	return l.writeMeta()
}

// LogTurn appends one record holding messages. The record is synced to
// disk before the sidecar is rewritten.
func (l *SessionLogger) LogTurn(messages []Message) error {
	if l.file == "" {
		// a title set before the first turn survives the lazy start
		title, custom, cleared := l.title, l.titleCustom, l.titleCleared
		if err := l.Start(); err != nil {
			return err
		}
		l.title, l.titleCustom, l.titleCleared = title, custom, cleared
	}

	l.turn++
	rec := Record{
		Messages: messages,
		Meta: RecordMeta{
			Model:       l.Model,
			Sanitized:   l.Sanitized,
			Turn:        l.turn,
			Timestamp:   formatTimestamp(l.now()),
			FileName:    filepath.Base(l.file),
			DisplayName: l.displayName,
		},
	}

	if err := l.appendRecord(rec); err != nil {
		l.turn--
		return err
	}

	if err := l.writeMeta(); err != nil {
		LogWarn("Failed to update session metadata: %v", err)
	}
	return nil
}

func (l *SessionLogger) appendRecord(rec Record) error {
	if strings.HasSuffix(l.file, logExt) {
		line, err := marshalLine(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		return appendLine(l.file, line)
	}

	records := append(l.records, rec)
	data, err := marshalPretty(records)
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := atomicWriteFile(l.file, data, 0644); err != nil {
		return err
	}
	l.records = records
	return nil
}

// SetTitle assigns a title. Inferred titles (custom=false) never replace a
// custom title, whether it is held in memory or already on disk. An empty
// title clears the current one.
func (l *SessionLogger) SetTitle(title string, custom bool) error {
	title = strings.TrimSpace(title)
	if !custom && l.titleCustom && l.title != nil {
		return nil
	}
	if title == "" {
		l.title = nil
		l.titleCleared = true
	} else {
		l.title = stringPtr(title)
		l.titleCleared = false
	}
	l.titleCustom = custom
	if l.file == "" {
		return nil
	}
	return l.writeMeta()
}

// Title returns the current title, if any
func (l *SessionLogger) Title() (string, bool) {
	if l.title == nil {
		return "", false
	}
	return *l.title, true
}

// TitleCustom reports whether the title was set by the user
func (l *SessionLogger) TitleCustom() bool {
	return l.titleCustom
}

// LoadExisting points the logger at an existing log so new turns continue
// it. The turn counter and owning user are derived from the files.
func (l *SessionLogger) LoadExisting(path string) error {
	if _, err := os.Stat(path); err != nil {
		return &StorageError{Path: path, Op: "stat", Err: err}
	}

	l.file = path
	l.metaFile = MetaPathFor(path)
	l.title = nil
	l.titleCustom = false
	l.titleCleared = false
	l.displayName = ""
	l.inferUserFromPath(path)

	l.records = nil
	if strings.HasSuffix(path, logExt) {
		l.turn = countRecords(path)
	} else {
		l.records = LoadSessionRecords(path)
		l.turn = len(l.records)
	}

	var meta SessionMeta
	if readJSONFile(l.metaFile, &meta) {
		l.title = meta.Title
		l.titleCustom = meta.Custom
		l.displayName = meta.DisplayName
	}
	if l.displayName == "" {
		l.displayName = DisplayName(sessionStem(path))
	}
	return nil
}

// GetMeta returns the stored sidecar, or metadata rebuilt from memory
func (l *SessionLogger) GetMeta() SessionMeta {
	var meta SessionMeta
	if l.metaFile != "" && readJSONFile(l.metaFile, &meta) {
		return meta
	}
	meta = SessionMeta{
		Model:       l.Model,
		Sanitized:   l.Sanitized,
		Turns:       l.turn,
		Title:       l.title,
		Custom:      l.titleCustom,
		DisplayName: l.displayName,
		UserID:      l.UserID,
		UserDisplay: l.UserDisplay,
	}
	if l.file != "" {
		meta.ID = sessionStem(l.file)
		meta.Path = l.file
		meta.FileName = filepath.Base(l.file)
		if meta.DisplayName == "" {
			meta.DisplayName = DisplayName(meta.ID)
		}
	}
	return meta
}

// LogPath returns the active log path, or "" before Start
func (l *SessionLogger) LogPath() string {
	return l.file
}

// MetaPath returns the active sidecar path, or "" before Start
func (l *SessionLogger) MetaPath() string {
	return l.metaFile
}

// Turn returns the number of logged turns
func (l *SessionLogger) Turn() int {
	return l.turn
}

func (l *SessionLogger) writeMeta() error {
	if l.file == "" {
		return nil
	}

	created := ""
	var stored SessionMeta
	if readJSONFile(l.metaFile, &stored) {
		created = stored.Created
		l.mergeStoredTitle(stored)
		if l.displayName == "" {
			l.displayName = stored.DisplayName
		}
	}

	now := formatTimestamp(l.now())
	if created == "" {
		created = now
	}
	stem := sessionStem(l.file)
	meta := SessionMeta{
		ID:          stem,
		Path:        l.file,
		Model:       l.Model,
		Sanitized:   l.Sanitized,
		Turns:       l.turn,
		Created:     created,
		Updated:     now,
		Title:       l.title,
		Custom:      l.titleCustom,
		FileName:    filepath.Base(l.file),
		DisplayName: l.displayName,
	}
	if meta.DisplayName == "" {
		meta.DisplayName = DisplayName(stem)
	}
	if l.UserID != "" {
		meta.UserID = l.UserID
		meta.UserDisplay = l.UserDisplay
		if meta.UserDisplay == "" {
			meta.UserDisplay = l.UserID
		}
	}
	return writeJSONFile(l.metaFile, meta)
}

// mergeStoredTitle reconciles the in-memory title with the sidecar just
// read from disk. A stored custom title beats an inferred one or an
// inferred clear.
func (l *SessionLogger) mergeStoredTitle(stored SessionMeta) {
	switch {
	case l.title == nil && !l.titleCleared:
		l.title = stored.Title
		l.titleCustom = stored.Custom
	case stored.Custom && stored.Title != nil && !l.titleCustom:
		l.title = stored.Title
		l.titleCustom = true
	}
}

func (l *SessionLogger) resolveSessionRoot() (string, error) {
	if l.UserID == "" {
		if err := os.MkdirAll(l.Dir, 0755); err != nil {
			return "", &StorageError{Path: l.Dir, Op: "mkdir", Err: err}
		}
		return l.Dir, nil
	}

	sessionsDir := MemoryPaths{UsersRoot: l.UsersRoot}.UserSessionsDir(l.UserID)
	userRoot := filepath.Dir(sessionsDir)
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return "", &StorageError{Path: sessionsDir, Op: "mkdir", Err: err}
	}
	if l.UserDisplay == "" {
		l.UserDisplay = defaultUserDisplay(l.UserID)
	}
	if err := l.ensureUserMeta(userRoot); err != nil {
		LogWarn("Failed to write user metadata: %v", err)
	}
	l.Dir = sessionsDir
	return sessionsDir, nil
}

func (l *SessionLogger) ensureUserMeta(userRoot string) error {
	path := filepath.Join(userRoot, userFile)
	var data UserMeta
	exists := readJSONFile(path, &data)

	updated := false
	if data.ID != l.UserID {
		data.ID = l.UserID
		updated = true
	}
	display := l.UserDisplay
	if display == "" {
		display = data.DisplayName
	}
	if display == "" {
		display = defaultUserDisplay(l.UserID)
	}
	if data.DisplayName != display {
		data.DisplayName = display
		updated = true
	}
	l.UserDisplay = data.DisplayName

	if !updated && exists {
		return nil
	}
	return writeJSONFile(path, data)
}

// inferUserFromPath recognises .../users/<id>/sessions/<day>/<file>; any
// other layout is treated as a flat store.
func (l *SessionLogger) inferUserFromPath(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sessionsRoot := filepath.Dir(filepath.Dir(path))
	userRoot := filepath.Dir(sessionsRoot)
	l.Dir = sessionsRoot

	if filepath.Base(sessionsRoot) != "sessions" || filepath.Base(filepath.Dir(userRoot)) != "users" {
		l.UserID = ""
		l.UserDisplay = ""
		return
	}

	l.UsersRoot = filepath.Dir(userRoot)
	l.UserID = filepath.Base(userRoot)
	var data UserMeta
	switch {
	case readJSONFile(filepath.Join(userRoot, userFile), &data) && data.DisplayName != "":
		l.UserDisplay = data.DisplayName
	case data.ID != "":
		l.UserDisplay = data.ID
	default:
		l.UserDisplay = defaultUserDisplay(l.UserID)
	}
}

func defaultUserDisplay(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}

// marshalLine encodes v as a single JSON line without HTML escaping
func marshalLine(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

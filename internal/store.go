package internal

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultUserID = "default"

// Store reads and maintains the sessions kept below a memory root. Reads
// degrade to empty results; only writes that cannot create their target
// report an error.
type Store struct {
	Paths MemoryPaths
	clock func() time.Time
}

// NewStore creates a store over paths
func NewStore(paths MemoryPaths) *Store {
	return &Store{Paths: paths, clock: time.Now}
}

// SetClock overrides the time source used for new ids and timestamps
func (s *Store) SetClock(now func() time.Time) {
	s.clock = now
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

// userContext is one directory of dated session folders and its owner
type userContext struct {
	UserRoot    string
	SessionRoot string
	User        UserMeta
}

func (s *Store) rootOr(root string) string {
	if root == "" {
		return s.Paths.SessionsRoot
	}
	return root
}

// List returns the metadata of every session reachable from root, newest
// first. A non-empty user keeps only contexts whose id or display name
// matches case-insensitively.
func (s *Store) List(root, user string) []SessionMeta {
	contexts := s.discoverUserContexts(s.rootOr(root))

	var items []SessionMeta
	for _, ctx := range contexts {
		if user != "" && !strings.EqualFold(ctx.User.ID, user) && !strings.EqualFold(ctx.User.DisplayName, user) {
			continue
		}
		for _, day := range dayDirs(ctx.SessionRoot) {
			for _, path := range sessionFilesForDay(day) {
				meta := readSessionMeta(path)
				meta.UserID = ctx.User.ID
				meta.UserDisplay = ctx.User.DisplayName
				items = append(items, meta)
			}
		}
	}

	sortSessions(items)
	return items
}

// Latest returns the most recently updated session below root
func (s *Store) Latest(root string) (SessionMeta, bool) {
	items := s.List(root, "")
	if len(items) == 0 {
		return SessionMeta{}, false
	}
	return items[0], true
}

// Resolve maps identifier to a session log path. It accepts an existing
// file path, a 1-based index into List, an exact session id, or a suffix
// of one. Suffix matches prefer the newest day.
func (s *Store) Resolve(identifier, root string) (string, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", false
	}
	if fileExists(identifier) {
		return identifier, true
	}

	if n, err := strconv.Atoi(identifier); err == nil && n >= 1 {
		if items := s.List(root, ""); n <= len(items) {
			return items[n-1].Path, true
		}
	}

	stem := strings.TrimSuffix(strings.TrimSuffix(identifier, logExt), legacyExt)
	suffixMatch := ""
	for _, ctx := range s.discoverUserContexts(s.rootOr(root)) {
		for _, day := range dayDirs(ctx.SessionRoot) {
			for _, path := range sessionFilesForDay(day) {
				id := sessionStem(path)
				if id == stem {
					return path, true
				}
				if suffixMatch == "" && strings.HasSuffix(id, stem) {
					suffixMatch = path
				}
			}
		}
	}
	if suffixMatch != "" {
		return suffixMatch, true
	}
	return "", false
}

// UserMetaForPath reports the owner of a session log. Logs outside a
// per-user store belong to the default user.
func (s *Store) UserMetaForPath(path string) UserMeta {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sessionsRoot := filepath.Dir(filepath.Dir(path))
	userRoot := filepath.Dir(sessionsRoot)
	if filepath.Base(sessionsRoot) == "sessions" && filepath.Base(filepath.Dir(userRoot)) == "users" {
		return loadUserMeta(userRoot, "")
	}
	return loadUserMeta(s.Paths.Root, defaultUserID)
}

// SetSessionTitleFor rewrites the title in the sidecar of any session.
// A missing or unreadable sidecar is rebuilt from the log.
func (s *Store) SetSessionTitleFor(path, title string, custom bool) error {
	if !fileExists(path) {
		return &StorageError{Path: path, Op: "stat", Err: os.ErrNotExist}
	}

	meta, ok := LoadMeta(path)
	if ok {
		fillMetaDefaults(&meta, path)
	} else {
		meta = fallbackMeta(path)
		meta.Title = nil
	}

	if title = strings.TrimSpace(title); title != "" {
		meta.Title = stringPtr(title)
	} else {
		meta.Title = nil
	}
	meta.Custom = custom
	meta.Updated = formatTimestamp(s.now())

	user := s.UserMetaForPath(path)
	meta.UserID = user.ID
	meta.UserDisplay = user.DisplayName
	return writeJSONFile(MetaPathFor(path), meta)
}

// discoverUserContexts finds every session store reachable from root. The
// default sessions root also pulls in the per-user stores, and any other
// root that holds nothing falls back to the default sessions root.
func (s *Store) discoverUserContexts(root string) []userContext {
	var contexts []userContext
	seen := make(map[string]bool)

	add := func(ctx userContext) {
		key := ctx.SessionRoot
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if seen[key] {
			return
		}
		seen[key] = true
		contexts = append(contexts, ctx)
	}

	var scan func(base, fallback string, depth int)
	scan = func(base, fallback string, depth int) {
		if !dirExists(base) {
			return
		}
		if looksLikeSessionStore(base) {
			add(contextForSessionRoot(base, fallback))
			return
		}
		for _, child := range subdirs(base) {
			name := filepath.Base(child)
			switch {
			case looksLikeSessionStore(child):
				if name == "sessions" {
					owner := defaultUserID
					if filepath.Base(filepath.Dir(base)) == "users" {
						owner = ""
					}
					add(contextForSessionRoot(child, owner))
				} else {
					add(contextForSessionRoot(child, ""))
				}
			case looksLikeSessionStore(filepath.Join(child, "sessions")):
				sessionRoot := filepath.Join(child, "sessions")
				add(userContext{UserRoot: child, SessionRoot: sessionRoot, User: loadUserMeta(child, "")})
			case name == "users" && depth == 0:
				scan(child, "", depth+1)
			}
		}
	}

	isDefault := samePath(root, s.Paths.SessionsRoot)
	if isDefault {
		scan(root, defaultUserID, 0)
		scan(s.Paths.UsersRoot, "", 1)
	} else {
		scan(root, "", 0)
	}

	if len(contexts) == 0 && !isDefault {
		scan(s.Paths.SessionsRoot, defaultUserID, 0)
	}
	return contexts
}

func contextForSessionRoot(sessionRoot, fallback string) userContext {
	userRoot := sessionRoot
	if filepath.Base(sessionRoot) == "sessions" {
		userRoot = filepath.Dir(sessionRoot)
	}
	return userContext{
		UserRoot:    userRoot,
		SessionRoot: sessionRoot,
		User:        loadUserMeta(userRoot, fallback),
	}
}

// looksLikeSessionStore reports whether dir holds dated folders or
// session files directly
func looksLikeSessionStore(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() && len(name) >= 4 && isDigits(name[:4]) {
			return true
		}
		if !entry.IsDir() && strings.HasPrefix(name, sessionPrefix) {
			return true
		}
	}
	return false
}

func loadUserMeta(userRoot, fallback string) UserMeta {
	var meta UserMeta
	readJSONFile(filepath.Join(userRoot, userFile), &meta)
	if meta.ID == "" {
		meta.ID = fallback
		if meta.ID == "" {
			meta.ID = filepath.Base(userRoot)
		}
	}
	if meta.DisplayName == "" {
		meta.DisplayName = defaultUserDisplay(meta.ID)
	}
	return meta
}

// dayDirs returns the folders of a session root, newest first. A root
// without subfolders is its own single day.
func dayDirs(sessionRoot string) []string {
	dirs := subdirs(sessionRoot)
	if len(dirs) == 0 {
		if dirExists(sessionRoot) {
			return []string{sessionRoot}
		}
		return nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	return dirs
}

// sessionFilesForDay lists the session logs of one day folder, newest
// first. When a .jsonl and a .json log share a stem the .jsonl wins.
func sessionFilesForDay(dayDir string) []string {
	entries, err := os.ReadDir(dayDir)
	if err != nil {
		return nil
	}

	var jsonl, legacy []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, sessionPrefix) || strings.HasSuffix(name, metaSuffix) {
			continue
		}
		switch filepath.Ext(name) {
		case logExt:
			jsonl = append(jsonl, name)
		case legacyExt:
			legacy = append(legacy, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(jsonl)))
	sort.Sort(sort.Reverse(sort.StringSlice(legacy)))

	seen := make(map[string]bool)
	var files []string
	for _, name := range append(jsonl, legacy...) {
		stem := sessionStem(name)
		if seen[stem] {
			continue
		}
		seen[stem] = true
		files = append(files, filepath.Join(dayDir, name))
	}
	return files
}

// readSessionMeta returns the sidecar of path completed with derivable
// fields, or metadata rebuilt from the log when there is no usable sidecar
func readSessionMeta(path string) SessionMeta {
	if meta, ok := LoadMeta(path); ok {
		meta.Path = ""
		fillMetaDefaults(&meta, path)
		return meta
	}
	return fallbackMeta(path)
}

// sortSessions orders newest first by the sidecar's updated time, falling
// back to the log's mtime. Ties break on id, descending.
func sortSessions(items []SessionMeta) {
	keys := make(map[string]time.Time, len(items))
	for _, item := range items {
		keys[item.Path] = sessionSortKey(item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := keys[items[i].Path], keys[items[j].Path]
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return items[i].ID > items[j].ID
	})
}

func sessionSortKey(meta SessionMeta) time.Time {
	if t, ok := meta.UpdatedTime(); ok {
		return t
	}
	info, err := os.Stat(meta.Path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime().UTC()
}

func subdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(dir, entry.Name()))
		}
	}
	return dirs
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

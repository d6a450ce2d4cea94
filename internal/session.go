package internal

// Session is a reconstructed session ready for display or export
type Session struct {
	ID          string      `json:"id" yaml:"id"`
	Path        string      `json:"path" yaml:"path"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	DisplayName string      `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	UserID      string      `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Messages    []Message   `json:"messages" yaml:"messages"`
	Meta        SessionMeta `json:"meta" yaml:"-"`
}

// Message represents one chat message
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// LoadSession reconstructs the session stored at path
func LoadSession(path string) (*Session, error) {
	meta, ok := LoadMeta(path)
	if !ok {
		meta = fallbackMeta(path)
	}
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:          meta.ID,
		Path:        path,
		Title:       meta.TitleOr(""),
		DisplayName: meta.DisplayName,
		UserID:      meta.UserID,
		Messages:    messagesFromRecords(records),
		Meta:        meta,
	}, nil
}

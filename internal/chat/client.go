// Package chat runs conversational turns against a model transport and
// records them in the session store.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/internal/transport"
)

// ErrNoReply is returned when the backend answered without any text. The
// turn is not recorded.
var ErrNoReply = errors.New("model returned no reply")

// Options control how turns are sent and post-processed
type Options struct {
	Model          string
	Temperature    float64
	MaxTokens      int // <= 0 leaves the length to the backend
	Stream         bool
	StripReasoning bool
	Sanitize       bool
	Labels         []string // assistant names stripped from reply prefixes
	HasAPIKey      bool
}

// Client holds one conversation. It is not safe for concurrent use.
type Client struct {
	opts       Options
	transport  transport.Transport
	logger     *internal.SessionLogger // nil disables persistence
	normalizer *internal.Normalizer
	instrument Instrument
	messages   []internal.Message

	// InstrumentWarning holds the last instrument failure, if any
	InstrumentWarning string
}

// NewClient creates a client. logger may be nil to keep the conversation
// in memory only.
func NewClient(tr transport.Transport, logger *internal.SessionLogger, opts Options) *Client {
	return &Client{
		opts:       opts,
		transport:  tr,
		logger:     logger,
		normalizer: internal.NewNormalizer(opts.StripReasoning, opts.Labels...),
	}
}

// SetInstrument installs a collaborator that is tried before the transport
func (c *Client) SetInstrument(instrument Instrument) {
	c.instrument = instrument
}

// Logger returns the session logger, or nil
func (c *Client) Logger() *internal.SessionLogger {
	return c.logger
}

// Messages returns a copy of the conversation history
func (c *Client) Messages() []internal.Message {
	return append([]internal.Message(nil), c.messages...)
}

// ResetMessages clears the history, optionally seeding a system prompt
func (c *Client) ResetMessages(system string) {
	c.messages = nil
	if system != "" {
		c.messages = append(c.messages, internal.Message{Role: internal.RoleSystem, Content: system})
	}
}

// SetMessages replaces the history
func (c *Client) SetMessages(messages []internal.Message) {
	c.messages = append([]internal.Message(nil), messages...)
}

// LogPath returns the active session log, or ""
func (c *Client) LogPath() string {
	if c.logger == nil {
		return ""
	}
	return c.logger.LogPath()
}

// SessionTitle returns the current session title
func (c *Client) SessionTitle() (string, bool) {
	if c.logger == nil {
		return "", false
	}
	meta := c.logger.GetMeta()
	if meta.Title == nil || *meta.Title == "" {
		return "", false
	}
	return *meta.Title, true
}

// SetSessionTitle assigns a title to the active session
func (c *Client) SetSessionTitle(title string, custom bool) error {
	if c.logger == nil {
		return nil
	}
	return c.logger.SetTitle(title, custom)
}

// EnsureAutoTitle infers a title from the conversation unless the user
// already chose one. It returns the title in effect.
func (c *Client) EnsureAutoTitle() (string, error) {
	if c.logger == nil {
		return "", nil
	}
	meta := c.logger.GetMeta()
	if meta.Custom && meta.Title != nil && *meta.Title != "" {
		return *meta.Title, nil
	}

	title := internal.ComputeTitle(c.messages)
	if title == "" {
		title = meta.TitleOr("")
	}
	if title == "" {
		return "", nil
	}
	if err := c.logger.SetTitle(title, false); err != nil {
		return "", err
	}
	return title, nil
}

// MaybeDeleteEmptySession removes the active session if it holds no
// dialogue
func (c *Client) MaybeDeleteEmptySession() bool {
	if c.logger == nil || c.logger.LogPath() == "" {
		return false
	}
	return internal.DeleteIfEmpty(c.logger.LogPath(), c.logger.MetaPath())
}

// AppendSessionToDayLog snapshots the active session into its day log
func (c *Client) AppendSessionToDayLog() (string, error) {
	if c.logger == nil || c.logger.LogPath() == "" {
		return "", nil
	}
	return internal.AppendSessionToDayLog(c.logger.LogPath())
}

// AdoptSessionLog continues an existing session: new turns are appended to
// path and the history is reloaded from it
func (c *Client) AdoptSessionLog(path string) error {
	if c.logger == nil {
		return nil
	}
	if err := c.logger.LoadExisting(path); err != nil {
		return err
	}
	c.messages = internal.LoadSessionMessages(path)
	return nil
}

// Target summarises where turns are sent
type Target struct {
	URL               string  `json:"url"`
	Model             string  `json:"model"`
	Stream            bool    `json:"stream"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	Sanitize          bool    `json:"sanitize"`
	StripReasoning    bool    `json:"strip_reasoning"`
	LoggingEnabled    bool    `json:"logging_enabled"`
	HasAPIKey         bool    `json:"has_api_key"`
	Instrument        string  `json:"instrument,omitempty"`
	InstrumentWarning string  `json:"instrument_warning,omitempty"`
}

// DescribeTarget returns the client configuration without secrets
func (c *Client) DescribeTarget() Target {
	target := Target{
		URL:               c.transport.URL(),
		Model:             c.opts.Model,
		Stream:            c.opts.Stream,
		Temperature:       c.opts.Temperature,
		MaxTokens:         c.opts.MaxTokens,
		Sanitize:          c.opts.Sanitize,
		StripReasoning:    c.opts.StripReasoning,
		LoggingEnabled:    c.logger != nil,
		HasAPIKey:         c.opts.HasAPIKey,
		InstrumentWarning: c.InstrumentWarning,
	}
	if c.instrument != nil {
		target.Instrument = c.instrument.Name()
	}
	return target
}

// CheckConnectivity dials the endpoint host
func (c *Client) CheckConnectivity(ctx context.Context, timeout time.Duration) error {
	return transport.Probe(ctx, c.transport.URL(), timeout)
}

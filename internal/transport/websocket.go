package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iksnae/nox-session/internal"
)

// Relay frame types
const (
	FrameRequest  = "request"
	FrameStream   = "stream"
	FrameComplete = "complete"
	FrameError    = "error"
)

// Frame is one JSON message on a relay connection
type Frame struct {
	Type      string   `json:"type"`
	Content   string   `json:"content,omitempty"`
	Payload   *Payload `json:"payload,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// WebSocketTransport talks to a relay that fronts the model. Each Send
// dials a fresh connection, writes one request frame and reads stream
// frames until a complete or error frame arrives.
type WebSocketTransport struct {
	url     string
	apiKey  string
	timeout time.Duration
	dialer  *websocket.Dialer
}

// NewWebSocketTransport creates a relay transport for a ws:// or wss:// URL
func NewWebSocketTransport(url, apiKey string, timeout time.Duration) *WebSocketTransport {
	return &WebSocketTransport{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// URL returns the relay endpoint
func (t *WebSocketTransport) URL() string {
	return t.url
}

// Send implements Transport
func (t *WebSocketTransport) Send(ctx context.Context, payload Payload, stream bool, onChunk ChunkFunc) (*Response, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	header := http.Header{}
	if t.apiKey != "" {
		header.Set("Authorization", "Bearer "+t.apiKey)
	}

	conn, resp, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if resp != nil {
			return nil, statusError(resp.StatusCode, http.StatusText(resp.StatusCode), "")
		}
		return nil, &Error{Kind: KindConnection, Message: fmt.Sprintf("Failed to reach Nox at %s", t.url), Cause: err}
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	payload.Stream = stream
	internal.LogDebug("WS %s (stream=%v)", t.url, stream)
	if err := conn.WriteJSON(Frame{Type: FrameRequest, Payload: &payload, Timestamp: time.Now().Unix()}); err != nil {
		return nil, t.wrapErr(ctx, "failed to send request frame", err)
	}

	var acc strings.Builder
	res := &Response{}
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return nil, t.wrapErr(ctx, "relay connection lost", err)
		}
		switch frame.Type {
		case FrameStream:
			if frame.Content == "" {
				continue
			}
			acc.WriteString(frame.Content)
			if stream && onChunk != nil {
				res.Chunks++
				onChunk(frame.Content)
			}
		case FrameComplete:
			text := acc.String()
			// A complete frame may carry the whole reply; it must extend what
			// was already streamed.
			if frame.Content != "" && strings.HasPrefix(frame.Content, text) {
				text = frame.Content
			}
			if text != "" || stream {
				res.Text = stringPtr(text)
			}
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return res, nil
		case FrameError:
			return nil, &Error{Kind: KindBackend, Message: frame.Content}
		default:
			internal.LogDebug("Ignoring relay frame %q", frame.Type)
		}
	}
}

func (t *WebSocketTransport) wrapErr(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return &Error{Kind: KindConnection, Message: fmt.Sprintf("%s (close %d)", msg, closeErr.Code), Cause: err}
	}
	return &Error{Kind: KindConnection, Message: msg, Cause: err}
}

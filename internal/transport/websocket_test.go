package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relay starts a WebSocket server that answers each request frame with
// frames produced by reply
func relay(t *testing.T, reply func(req Frame) []Frame) (string, *http.Header) {
	t.Helper()
	var seen http.Header
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req Frame
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		for _, f := range reply(req) {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// Wait for the client to hang up.
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), &seen
}

func TestWebSocketTransport_Stream(t *testing.T) {
	var got Frame
	url, headers := relay(t, func(req Frame) []Frame {
		got = req
		return []Frame{
			{Type: FrameStream, Content: "Hel"},
			{Type: "heartbeat"},
			{Type: FrameStream, Content: "lo"},
			{Type: FrameComplete},
		}
	})

	var chunks []string
	res, err := NewWebSocketTransport(url, "sk-relay", 5*time.Second).Send(context.Background(), testPayload(), true, collect(&chunks))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.Equal(t, "Hello", res.TextOr(""))
	assert.Equal(t, FrameRequest, got.Type)
	require.NotNil(t, got.Payload)
	assert.True(t, got.Payload.Stream)
	assert.Equal(t, "test-model", got.Payload.Model)
	assert.Equal(t, "Bearer sk-relay", headers.Get("Authorization"))
}

func TestWebSocketTransport_CompleteCarriesText(t *testing.T) {
	url, _ := relay(t, func(req Frame) []Frame {
		return []Frame{
			{Type: FrameStream, Content: "Hi"},
			{Type: FrameComplete, Content: "Hi there"},
		}
	})

	res, err := NewWebSocketTransport(url, "", 5*time.Second).Send(context.Background(), testPayload(), false, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", res.TextOr(""))
	assert.Zero(t, res.Chunks)
}

func TestWebSocketTransport_CompleteDoesNotRewriteStream(t *testing.T) {
	url, _ := relay(t, func(req Frame) []Frame {
		return []Frame{
			{Type: FrameStream, Content: "abc"},
			{Type: FrameComplete, Content: "xyz"},
		}
	})

	res, err := NewWebSocketTransport(url, "", 5*time.Second).Send(context.Background(), testPayload(), true, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", res.TextOr(""))
}

func TestWebSocketTransport_NoText(t *testing.T) {
	url, _ := relay(t, func(req Frame) []Frame {
		return []Frame{{Type: FrameComplete}}
	})

	res, err := NewWebSocketTransport(url, "", 5*time.Second).Send(context.Background(), testPayload(), false, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Text)
}

func TestWebSocketTransport_ErrorFrame(t *testing.T) {
	url, _ := relay(t, func(req Frame) []Frame {
		return []Frame{{Type: FrameError, Content: "model overloaded"}}
	})

	_, err := NewWebSocketTransport(url, "", 5*time.Second).Send(context.Background(), testPayload(), true, nil)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindBackend, terr.Kind)
	assert.Equal(t, "model overloaded", terr.Message)
}

func TestWebSocketTransport_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewWebSocketTransport("ws"+strings.TrimPrefix(srv.URL, "http"), "", time.Second).Send(context.Background(), testPayload(), true, nil)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindUnauthorized, terr.Kind)
}

func TestWebSocketTransport_Cancelled(t *testing.T) {
	url, _ := relay(t, func(req Frame) []Frame {
		return []Frame{{Type: FrameStream, Content: "partial"}}
	})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := NewWebSocketTransport(url, "", 5*time.Second).Send(ctx, testPayload(), true, func(string) { cancel() })
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

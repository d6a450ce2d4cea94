// Package transport sends chat payloads to a model backend over HTTP or a
// WebSocket relay and reassembles streamed replies.
package transport

import (
	"context"
	"strings"
)

// ChunkFunc receives each streamed text delta as it arrives
type ChunkFunc func(delta string)

// Response is the outcome of one Send. Text is nil when the backend
// answered without any reply text.
type Response struct {
	Text   *string
	Raw    []byte // undecoded body of a non-streamed reply
	Chunks int    // deltas delivered to the ChunkFunc
}

// TextOr returns the reply text, or fallback when there is none
func (r *Response) TextOr(fallback string) string {
	if r == nil || r.Text == nil {
		return fallback
	}
	return *r.Text
}

// Transport delivers a payload and returns the assembled reply. With
// stream set, onChunk is called zero or more times before Send returns and
// the concatenated deltas are a prefix of the final text. Cancelling ctx
// aborts the exchange.
type Transport interface {
	Send(ctx context.Context, payload Payload, stream bool, onChunk ChunkFunc) (*Response, error)
	URL() string
}

// EndpointKind selects the wire format spoken to an HTTP backend
type EndpointKind int

const (
	EndpointOpenAI     EndpointKind = iota // /v1/chat/completions style, SSE when streaming
	EndpointGenerate                       // Ollama /api/generate, NDJSON
	EndpointOllamaChat                     // Ollama /api/chat, NDJSON
)

func (k EndpointKind) String() string {
	switch k {
	case EndpointGenerate:
		return "ollama-generate"
	case EndpointOllamaChat:
		return "ollama-chat"
	default:
		return "openai"
	}
}

// DetectEndpoint picks the wire format from the URL path
func DetectEndpoint(url string) EndpointKind {
	lowered := strings.ToLower(url)
	switch {
	case strings.Contains(lowered, "/api/generate"):
		return EndpointGenerate
	case strings.Contains(lowered, "/api/chat"):
		return EndpointOllamaChat
	default:
		return EndpointOpenAI
	}
}

func stringPtr(s string) *string {
	return &s
}

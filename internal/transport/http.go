package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iksnae/nox-session/internal"
)

const errorBodyLimit = 512

// HTTPTransport posts payloads to an Ollama or OpenAI-compatible endpoint
type HTTPTransport struct {
	url    string
	apiKey string
	kind   EndpointKind
	client *http.Client
}

// NewHTTPTransport creates a transport for url. timeout bounds a whole
// exchange including the streamed body; zero means no limit.
func NewHTTPTransport(url, apiKey string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		url:    url,
		apiKey: apiKey,
		kind:   DetectEndpoint(url),
		client: &http.Client{Timeout: timeout},
	}
}

// URL returns the endpoint
func (t *HTTPTransport) URL() string {
	return t.url
}

// Kind returns the detected wire format
func (t *HTTPTransport) Kind() EndpointKind {
	return t.kind
}

// Send implements Transport
func (t *HTTPTransport) Send(ctx context.Context, payload Payload, stream bool, onChunk ChunkFunc) (*Response, error) {
	payload.Stream = stream
	body, err := json.Marshal(requestBody(payload, t.kind))
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Message: "failed to encode payload", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindConnection, Message: fmt.Sprintf("invalid Nox URL %s", t.url), Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	internal.LogDebug("POST %s (%s, stream=%v, %d bytes)", t.url, t.kind, stream, len(body))
	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindConnection, Message: fmt.Sprintf("Failed to reach Nox at %s", t.url), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, statusError(resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(snippet)))
	}

	var res *Response
	switch {
	case t.kind != EndpointOpenAI && stream:
		res, err = readNDJSON(resp.Body, onChunk)
	case t.kind != EndpointOpenAI:
		res, err = readNDJSON(resp.Body, nil)
	case stream:
		res, err = readSSE(resp.Body, onChunk)
	default:
		res, err = readCompletion(resp.Body)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ndjsonLine covers both Ollama endpoints: generate fills Response, chat
// fills Message.Content
type ndjsonLine struct {
	Response string `json:"response"`
	Message  struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// readNDJSON reads newline-delimited JSON objects until done or EOF.
// Undecodable lines are skipped. onChunk may be nil.
func readNDJSON(r io.Reader, onChunk ChunkFunc) (*Response, error) {
	reader := bufio.NewReader(r)
	var acc strings.Builder
	res := &Response{}
	found := false

	for {
		line, readErr := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var obj ndjsonLine
			if err := json.Unmarshal(trimmed, &obj); err == nil {
				if obj.Error != "" {
					return nil, &Error{Kind: KindBackend, Message: obj.Error}
				}
				piece := obj.Response
				if piece == "" {
					piece = obj.Message.Content
				}
				if piece != "" {
					found = true
					acc.WriteString(piece)
					if onChunk != nil {
						res.Chunks++
						onChunk(piece)
					}
				}
				if obj.Done {
					break
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, &Error{Kind: KindConnection, Message: "stream interrupted", Cause: readErr}
		}
	}

	if found || onChunk != nil {
		res.Text = stringPtr(acc.String())
	}
	return res, nil
}

// readSSE reads server-sent events until [DONE] or EOF. Each event's data
// lines are joined with newlines before decoding.
func readSSE(r io.Reader, onChunk ChunkFunc) (*Response, error) {
	reader := bufio.NewReader(r)
	var acc strings.Builder
	var data []string
	res := &Response{}

	// dispatch returns true once the terminal event was seen
	dispatch := func() bool {
		payload := strings.TrimSpace(strings.Join(data, "\n"))
		data = data[:0]
		if payload == "" {
			return false
		}
		if payload == "[DONE]" {
			return true
		}
		if piece, ok := ssePiece(payload); ok && piece != "" {
			acc.WriteString(piece)
			if onChunk != nil {
				res.Chunks++
				onChunk(piece)
			}
		}
		return false
	}

	for {
		line, readErr := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "" && readErr == nil:
			if dispatch() {
				res.Text = stringPtr(acc.String())
				return res, nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimLeft(line[len("data:"):], " "))
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				return nil, &Error{Kind: KindConnection, Message: "stream interrupted", Cause: readErr}
			}
			dispatch()
			res.Text = stringPtr(acc.String())
			return res, nil
		}
	}
}

type completionChoice struct {
	Delta struct {
		Content *string `json:"content"`
	} `json:"delta"`
	Message struct {
		Content *string `json:"content"`
	} `json:"message"`
	Text *string `json:"text"`
}

type completionBody struct {
	Choices []completionChoice `json:"choices"`
}

// ssePiece extracts the text of one event. Data that is not JSON at all is
// passed through verbatim; broken JSON is dropped.
func ssePiece(payload string) (string, bool) {
	var body completionBody
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		if strings.HasPrefix(payload, "{") {
			return "", false
		}
		return payload, true
	}
	if len(body.Choices) == 0 {
		return "", false
	}
	choice := body.Choices[0]
	switch {
	case choice.Delta.Content != nil:
		return *choice.Delta.Content, true
	case choice.Message.Content != nil:
		return *choice.Message.Content, true
	case choice.Text != nil:
		return *choice.Text, true
	}
	return "", false
}

func readCompletion(r io.Reader) (*Response, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Message: "failed to read response", Cause: err}
	}
	var body completionBody
	if err := json.Unmarshal(raw, &body); err != nil {
		snippet := string(raw)
		if len(snippet) > errorBodyLimit {
			snippet = snippet[:errorBodyLimit]
		}
		return nil, &Error{Kind: KindProtocol, Message: fmt.Sprintf("Nox returned non-JSON response\nBody: %s", snippet), Cause: err}
	}

	res := &Response{Raw: raw}
	if len(body.Choices) > 0 {
		choice := body.Choices[0]
		switch {
		case choice.Message.Content != nil:
			res.Text = stringPtr(*choice.Message.Content)
		case choice.Text != nil:
			res.Text = stringPtr(*choice.Text)
		}
	}
	return res, nil
}

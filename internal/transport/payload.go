package transport

import (
	"strings"

	"github.com/iksnae/nox-session/internal"
)

// promptWindow is how many trailing user/assistant messages go into the
// flattened prompt
const promptWindow = 6

const (
	userToken      = "<|user|>"
	assistantToken = "<|assistant|>"
)

// Payload is one request to the model. Its JSON form suits Ollama; Send
// reshapes it for the other endpoint kinds.
type Payload struct {
	Model    string             `json:"model"`
	Stream   bool               `json:"stream"`
	Options  Options            `json:"options"`
	Prompt   string             `json:"prompt,omitempty"`
	System   string             `json:"system,omitempty"`
	Messages []internal.Message `json:"messages,omitempty"`
}

// Options are the sampling parameters
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// BuildPayload assembles a request from the full message history.
// maxTokens <= 0 leaves the length to the backend.
func BuildPayload(model string, messages []internal.Message, temperature float64, maxTokens int, stream bool) Payload {
	p := Payload{
		Model:    model,
		Stream:   stream,
		Options:  Options{Temperature: temperature},
		System:   strings.Join(systemTexts(messages), "\n\n"),
		Prompt:   flattenPrompt(messages),
		Messages: messages,
	}
	if maxTokens > 0 {
		p.Options.NumPredict = maxTokens
	}
	return p
}

func systemTexts(messages []internal.Message) []string {
	var texts []string
	for _, msg := range messages {
		if !strings.EqualFold(msg.Role, internal.RoleSystem) {
			continue
		}
		if content := strings.TrimSpace(msg.Content); content != "" {
			texts = append(texts, content)
		}
	}
	return texts
}

// flattenPrompt renders the system text and the recent dialogue as a
// single prompt ending in an open assistant turn
func flattenPrompt(messages []internal.Message) string {
	var dialogue []internal.Message
	for _, msg := range messages {
		role := strings.ToLower(msg.Role)
		if role == internal.RoleUser || role == internal.RoleAssistant {
			dialogue = append(dialogue, msg)
		}
	}
	if len(dialogue) > promptWindow {
		dialogue = dialogue[len(dialogue)-promptWindow:]
	}

	var parts []string
	for _, msg := range dialogue {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if strings.EqualFold(msg.Role, internal.RoleUser) {
			parts = append(parts, userToken+content)
		} else {
			parts = append(parts, assistantToken+content)
		}
	}

	conversation := strings.TrimSpace(strings.Join(parts, "\n"))
	switch {
	case conversation == "":
		conversation = assistantToken
	case !strings.HasSuffix(conversation, assistantToken):
		conversation += "\n" + assistantToken
	}

	system := strings.TrimSpace(strings.Join(systemTexts(messages), "\n"))
	if system == "" {
		return conversation
	}
	return system + "\n\n" + conversation
}

type generateRequest struct {
	Model   string  `json:"model"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
	Prompt  string  `json:"prompt,omitempty"`
	System  string  `json:"system,omitempty"`
}

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Stream   bool               `json:"stream"`
	Options  Options            `json:"options"`
	Messages []internal.Message `json:"messages"`
}

type openAIRequest struct {
	Model       string             `json:"model"`
	Messages    []internal.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

// requestBody reshapes p for the endpoint kind
func requestBody(p Payload, kind EndpointKind) interface{} {
	switch kind {
	case EndpointGenerate:
		return generateRequest{Model: p.Model, Stream: p.Stream, Options: p.Options, Prompt: p.Prompt, System: p.System}
	case EndpointOllamaChat:
		return ollamaChatRequest{Model: p.Model, Stream: p.Stream, Options: p.Options, Messages: nonNilMessages(p.Messages)}
	default:
		messages := nonNilMessages(p.Messages)
		if p.System != "" && !hasSystem(messages) {
			messages = append([]internal.Message{{Role: internal.RoleSystem, Content: p.System}}, messages...)
		}
		if len(messages) == 0 {
			messages = []internal.Message{{Role: internal.RoleUser, Content: ""}}
		}
		return openAIRequest{
			Model:       p.Model,
			Messages:    messages,
			Temperature: p.Options.Temperature,
			MaxTokens:   p.Options.NumPredict,
			Stream:      p.Stream,
		}
	}
}

func hasSystem(messages []internal.Message) bool {
	for _, msg := range messages {
		if strings.EqualFold(msg.Role, internal.RoleSystem) {
			return true
		}
	}
	return false
}

func nonNilMessages(messages []internal.Message) []internal.Message {
	if messages == nil {
		return []internal.Message{}
	}
	return messages
}

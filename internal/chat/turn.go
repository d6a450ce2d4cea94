package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/internal/transport"
)

const (
	instrumentResultOpen  = "[INSTRUMENT RESULT]"
	instrumentResultClose = "[/INSTRUMENT RESULT]"
)

// instrumentPrompt is added as a system message when an instrument result
// is handed back to the model
const instrumentPrompt = "An external instrument has answered the user's last request. " +
	"The result follows in an [INSTRUMENT RESULT] block. Present it to the user clearly " +
	"and concisely, without repeating the block markers."

// DeltaFunc receives public reply text as it streams
type DeltaFunc func(text string)

// OneTurn sends text as the next user message and returns the cleaned
// reply. While streaming, onDelta sees only public text: reasoning blocks
// are withheld even when their markers span chunks. The turn is recorded
// only after the reply is complete, so a cancelled or failed turn leaves
// no trace.
func (c *Client) OneTurn(ctx context.Context, text string, onDelta DeltaFunc) (string, error) {
	user := c.sanitize(text)
	messages := append(c.Messages(), internal.Message{Role: internal.RoleUser, Content: user})

	reply, err := c.exchange(ctx, messages, onDelta, true)
	if err != nil {
		return "", err
	}
	if err := c.appendTurn(user, reply); err != nil {
		return reply, err
	}
	return reply, nil
}

// RecordTurn records an exchange that happened elsewhere, applying the
// same cleanup as OneTurn
func (c *Client) RecordTurn(userText, assistantText string) error {
	reply := c.normalizer.Normalize(&assistantText)
	return c.appendTurn(c.sanitize(userText), *reply)
}

// ProcessInstrumentResult hands an instrument's output back to the model
// and records the exchange. Empty output is ignored.
func (c *Client) ProcessInstrumentResult(ctx context.Context, result string, onDelta DeltaFunc) (string, error) {
	if result == "" {
		return "", nil
	}
	wrapped := instrumentResultOpen + "\n" + result + "\n" + instrumentResultClose
	messages := append(c.Messages(),
		internal.Message{Role: internal.RoleSystem, Content: instrumentPrompt},
		internal.Message{Role: internal.RoleUser, Content: wrapped},
	)

	reply, err := c.exchange(ctx, messages, onDelta, false)
	if err != nil {
		return "", err
	}
	if err := c.appendTurn(wrapped, reply); err != nil {
		return reply, err
	}
	return reply, nil
}

// WantsInstrument reports whether a reply asks for an external instrument
func WantsInstrument(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "[instrument query]") || strings.Contains(lowered, "requires an instrument")
}

// exchange obtains one reply for messages, from the instrument when one is
// installed and otherwise from the transport. With segment set, streamed
// deltas pass through a Segmenter before reaching onDelta.
func (c *Client) exchange(ctx context.Context, messages []internal.Message, onDelta DeltaFunc, segment bool) (string, error) {
	var seg *internal.Segmenter
	var onChunk transport.ChunkFunc
	if c.opts.Stream && onDelta != nil {
		if segment && c.opts.StripReasoning {
			seg = internal.NewSegmenter()
			onChunk = func(piece string) {
				if public := seg.Feed(piece); public != "" {
					onDelta(public)
				}
			}
		} else {
			onChunk = func(piece string) { onDelta(piece) }
		}
	}

	raw, fromInstrument, err := c.dispatch(ctx, messages, onChunk)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", ErrNoReply
	}

	if seg != nil && !fromInstrument {
		if tail := seg.Flush(); tail != "" {
			onDelta(tail)
		}
		if rest := unseenSuffix(internal.StripReasoning(*raw), seg.Emitted()); rest != "" {
			onDelta(rest)
		}
	}

	return *c.normalizer.Normalize(raw), nil
}

// dispatch tries the instrument first and falls back to the transport
func (c *Client) dispatch(ctx context.Context, messages []internal.Message, onChunk transport.ChunkFunc) (*string, bool, error) {
	if c.instrument != nil {
		reply, err := c.instrument.Send(ctx, messages, c.opts, onChunk)
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		if err == nil && reply != nil {
			c.InstrumentWarning = ""
			return reply, true, nil
		}
		if err != nil {
			c.InstrumentWarning = fmt.Sprintf("Instrument '%s' failed: %v", c.instrument.Name(), err)
			internal.LogWarn("%s", c.InstrumentWarning)
		}
	}

	payload := transport.BuildPayload(c.opts.Model, messages, c.opts.Temperature, c.opts.MaxTokens, c.opts.Stream)
	res, err := c.transport.Send(ctx, payload, c.opts.Stream, onChunk)
	if err != nil {
		return nil, false, err
	}
	return res.Text, false, nil
}

// appendTurn adds the exchange to the history and logs it with the most
// recent system prompt
func (c *Client) appendTurn(user, assistant string) error {
	c.messages = append(c.messages,
		internal.Message{Role: internal.RoleUser, Content: user},
		internal.Message{Role: internal.RoleAssistant, Content: assistant},
	)
	if c.logger == nil {
		return nil
	}

	var logged []internal.Message
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == internal.RoleSystem {
			logged = append(logged, c.messages[i])
			break
		}
	}
	logged = append(logged,
		internal.Message{Role: internal.RoleUser, Content: user},
		internal.Message{Role: internal.RoleAssistant, Content: assistant},
	)
	if err := c.logger.LogTurn(logged); err != nil {
		return fmt.Errorf("failed to log turn: %w", err)
	}
	return nil
}

func (c *Client) sanitize(text string) string {
	if !c.opts.Sanitize {
		return text
	}
	return internal.Sanitize(text)
}

// unseenSuffix returns the part of final that has not been shown yet.
// Leading whitespace that the final text trimmed away is tolerated; any
// other divergence yields "" rather than a garbled tail.
func unseenSuffix(final, emitted string) string {
	if strings.HasPrefix(final, emitted) {
		return final[len(emitted):]
	}
	trimmed := strings.TrimLeft(emitted, " \t\r\n")
	if strings.HasPrefix(final, trimmed) {
		return final[len(trimmed):]
	}
	return ""
}

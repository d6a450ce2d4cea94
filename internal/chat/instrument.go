package chat

import (
	"context"

	"github.com/iksnae/nox-session/internal"
	"github.com/iksnae/nox-session/internal/transport"
)

// Instrument is an external collaborator that may answer a turn instead of
// the main model. A nil reply without error means it declined.
type Instrument interface {
	Name() string
	Send(ctx context.Context, messages []internal.Message, opts Options, onChunk transport.ChunkFunc) (*string, error)
}

// TransportInstrument routes turns to a second model endpoint
type TransportInstrument struct {
	name      string
	model     string
	transport transport.Transport
}

// NewTransportInstrument wraps tr; model overrides the client's model when
// set
func NewTransportInstrument(name, model string, tr transport.Transport) *TransportInstrument {
	if name == "" {
		name = tr.URL()
	}
	return &TransportInstrument{name: name, model: model, transport: tr}
}

// Name implements Instrument
func (i *TransportInstrument) Name() string {
	return i.name
}

// Send implements Instrument
func (i *TransportInstrument) Send(ctx context.Context, messages []internal.Message, opts Options, onChunk transport.ChunkFunc) (*string, error) {
	model := opts.Model
	if i.model != "" {
		model = i.model
	}
	payload := transport.BuildPayload(model, messages, opts.Temperature, opts.MaxTokens, opts.Stream)
	res, err := i.transport.Send(ctx, payload, opts.Stream, onChunk)
	if err != nil {
		return nil, err
	}
	return res.Text, nil
}

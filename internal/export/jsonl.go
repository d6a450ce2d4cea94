package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/nox-session/internal"
)

// JSONLExporter writes one line per message
type JSONLExporter struct{}

type jsonlLine struct {
	Session string `json:"session"`
	documentLine
}

// Export writes one line per message. Dialogue lines carry the turn they
// belong to.
func (e *JSONLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for _, line := range numberTurns(session.Messages) {
		if err := enc.Encode(jsonlLine{Session: session.ID, documentLine: line}); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}
	return nil
}

func (e *JSONLExporter) Extension() string {
	return "jsonl"
}

package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/nox-session/internal"
)

// JSONExporter writes a session as one indented JSON document
type JSONExporter struct{}

// Export encodes the session document without HTML escaping, so markup in
// the dialogue stays readable
func (e *JSONExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(newDocument(session))
}

func (e *JSONExporter) Extension() string {
	return "json"
}

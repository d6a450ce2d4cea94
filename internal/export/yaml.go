package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/iksnae/nox-session/internal"
)

// YAMLExporter writes a session as a YAML document
type YAMLExporter struct{}

func (e *YAMLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(session)); err != nil {
		_ = enc.Close()
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}
	return enc.Close()
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	toon "github.com/toon-format/toon-go"
	"gopkg.in/yaml.v3"
)

// Encode writes data to w in a data format (JSON, YAML or TOON). Other
// formats are rejected.
func Encode(w io.Writer, format Format, data any) error {
	var (
		out []byte
		err error
	)
	switch format {
	case FormatJSON:
		out, err = MarshalJSON(data)
	case FormatYAML:
		out, err = MarshalYAML(data)
	case FormatTOON:
		out, err = toon.Marshal(data, toon.WithIndent(2))
		if err == nil {
			out = append(out, '\n')
		}
	default:
		return fmt.Errorf("format %q is not a data format", format)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	_, err = w.Write(out)
	return err
}

// MarshalJSON renders data as indented JSON with a trailing newline. HTML
// characters are not escaped.
func MarshalJSON(data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalYAML renders data as YAML with the field names and order of its
// JSON encoding.
func MarshalYAML(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	blockStyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// blockStyle clears the flow and quoting styles JSON input leaves on n.
// Strings that would read as another type are still quoted on encode.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Form is a named, stored form definition: the shape persisted by catalogs and
// accepted by loaders alongside bare field arrays.
type Form struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero" yaml:"createdAt,omitempty"`
	Fields    FieldSet  `json:"fields" yaml:"fields"`
}

// Clone deep-copies the form.
func (f Form) Clone() Form {
	out := f
	out.Fields = f.Fields.Clone()
	return out
}

// Format selects an encoding for Encode.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document wraps a raw form payload and its origin.
type Document struct {
	source Source
	raw    []byte
}

// NewDocument constructs a Document wrapper while validating the inputs.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is required")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, errors.New("schema: raw document is empty")
	}
	return Document{source: src, raw: append([]byte(nil), raw...)}, nil
}

// Source returns the origin metadata for the document.
func (d Document) Source() Source { return d.source }

// Raw returns a defensive copy of the payload.
func (d Document) Raw() []byte { return append([]byte(nil), d.raw...) }

// Location returns the string identifier for the origin.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

// Form decodes the payload.
func (d Document) Form() (Form, error) {
	form, err := Decode(d.raw)
	if err != nil {
		return Form{}, fmt.Errorf("%w (source %s)", err, d.Location())
	}
	return form, nil
}

// Decode parses a form definition. Accepted shapes, in JSON or YAML: a bare
// array of fields, an object with a "fields" array, or a full stored form.
// JSON is tried first; YAML is the fallback.
func Decode(raw []byte) (Form, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Form{}, errors.New("schema: document is empty")
	}

	switch trimmed[0] {
	case '[':
		var fields FieldSet
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			return Form{Fields: fields}, nil
		}
	case '{':
		var form Form
		if err := json.Unmarshal(trimmed, &form); err == nil {
			return form, nil
		}
	}

	form, err := decodeYAML(trimmed)
	if err != nil {
		return Form{}, err
	}
	return form, nil
}

func decodeYAML(raw []byte) (Form, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return Form{}, fmt.Errorf("schema: invalid JSON or YAML: %w", err)
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return Form{}, errors.New("schema: document has no content")
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var fields FieldSet
		if err := root.Decode(&fields); err != nil {
			return Form{}, fmt.Errorf("schema: decode fields: %w", err)
		}
		return Form{Fields: fields}, nil
	case yaml.MappingNode:
		var form Form
		if err := root.Decode(&form); err != nil {
			return Form{}, fmt.Errorf("schema: decode form: %w", err)
		}
		return form, nil
	default:
		return Form{}, errors.New("schema: expected a field list or a form object")
	}
}

// Encode serialises a form in the requested format using the same field names
// Decode accepts.
func Encode(form Form, format Format) ([]byte, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatYAML:
		out, err := yaml.Marshal(form)
		if err != nil {
			return nil, fmt.Errorf("schema: encode yaml: %w", err)
		}
		return out, nil
	case FormatJSON, "":
		out, err := json.MarshalIndent(form, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("schema: encode json: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("schema: unsupported format %q", format)
	}
}

// Package report renders settled snapshots for people and machines: JSON and
// YAML for pipelines, a pongo2 text template for terminals.
package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/flosch/pongo2/v6"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/session"
	"github.com/goliatone/go-formcalc/pkg/value"
)

//go:embed templates/*.tpl
var defaultTemplates embed.FS

const defaultTemplate = "templates/report.tpl"

// Format selects an output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatPretty Format = "pretty"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatYAML, FormatPretty:
		return f, nil
	case "":
		return FormatPretty, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", raw)
	}
}

// Option configures a Renderer.
type Option func(*config)

type config struct {
	templates fs.FS
	name      string
	title     string
}

// WithTemplateFS replaces the pretty template with name loaded from files.
func WithTemplateFS(files fs.FS, name string) Option {
	return func(cfg *config) {
		if files != nil && strings.TrimSpace(name) != "" {
			cfg.templates = files
			cfg.name = strings.TrimSpace(name)
		}
	}
}

// WithTitle sets the heading of the pretty report.
func WithTitle(title string) Option {
	return func(cfg *config) {
		if strings.TrimSpace(title) != "" {
			cfg.title = strings.TrimSpace(title)
		}
	}
}

// Renderer writes snapshots in any Format.
type Renderer struct {
	title  string
	pretty *pongo2.Template
}

// New parses the pretty template up front so rendering only fails on I/O.
func New(opts ...Option) (*Renderer, error) {
	cfg := &config{templates: defaultTemplates, name: defaultTemplate, title: "Form"}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	set := pongo2.NewSet("formcalc-report", pongo2.NewFSLoader(cfg.templates))
	tmpl, err := set.FromFile(cfg.name)
	if err != nil {
		return nil, fmt.Errorf("report: load template %q: %w", cfg.name, err)
	}
	return &Renderer{title: cfg.title, pretty: tmpl}, nil
}

// Write renders snap in format. fields supplies labels and order for the
// pretty report; when empty the snapshot's own order and ids are used.
func (r *Renderer) Write(w io.Writer, fields schema.FieldSet, snap session.Snapshot, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("report: encode json: %w", err)
		}
		return nil
	case FormatYAML:
		return writeYAML(w, snap)
	case FormatPretty, "":
		if r == nil || r.pretty == nil {
			return errors.New("report: renderer has no template")
		}
		if err := r.pretty.ExecuteWriter(r.context(fields, snap), w); err != nil {
			return fmt.Errorf("report: execute template: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// String renders snap as a pretty report.
func (r *Renderer) String(fields schema.FieldSet, snap session.Snapshot) (string, error) {
	var b strings.Builder
	if err := r.Write(&b, fields, snap, FormatPretty); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeYAML(w io.Writer, snap session.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	return enc.Close()
}

func (r *Renderer) context(fields schema.FieldSet, snap session.Snapshot) pongo2.Context {
	labels := make(map[string]string, len(fields))
	order := fields.IDs()
	for _, f := range fields {
		labels[f.ID] = strings.TrimSpace(f.Label)
	}
	if len(order) == 0 {
		order = snap.Order
	}

	rows := make([]map[string]any, 0, len(order))
	for _, id := range order {
		state, ok := snap.Fields[id]
		if !ok {
			continue
		}
		label := labels[id]
		if label == "" {
			label = id
		}
		rows = append(rows, map[string]any{
			"id":         id,
			"label":      label,
			"marker":     marker(state),
			"value":      display(state.Value),
			"diagnostic": state.Diagnostic,
			"violations": state.Violations,
		})
	}
	return pongo2.Context{
		"title":    r.title,
		"revision": snap.Revision,
		"valid":    snap.Valid(),
		"rows":     rows,
	}
}

func marker(state session.FieldState) string {
	switch {
	case state.Cyclic:
		return "@"
	case state.Failed:
		return "x"
	case len(state.Violations) > 0:
		return "!"
	case state.Derived:
		return "="
	default:
		return " "
	}
}

func display(v value.Value) string {
	if v.IsAbsent() {
		return "(empty)"
	}
	if s, ok := v.AsText(); ok {
		return fmt.Sprintf("%q", s)
	}
	return v.String()
}

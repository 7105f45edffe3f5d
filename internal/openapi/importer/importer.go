// Package importer builds field sets from OpenAPI request bodies so forms can
// be bootstrapped from an existing API description.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formcalc/pkg/schema"
)

const (
	extensionDerived = "x-formcalc-derived"
	extensionOrder   = "x-formcalc-order"
	extensionWidget  = "x-formcalc-widget"
)

// Importer converts OpenAPI operations into forms using kin-openapi.
type Importer struct {
	externalRefs bool
	validate     bool
}

// Option configures an Importer.
type Option func(*Importer)

// WithExternalRefs allows $ref values that point outside the document.
func WithExternalRefs(enabled bool) Option {
	return func(i *Importer) { i.externalRefs = enabled }
}

// WithValidation validates the document before importing.
func WithValidation(enabled bool) Option {
	return func(i *Importer) { i.validate = enabled }
}

// New constructs an Importer.
func New(options ...Option) *Importer {
	i := &Importer{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(i)
	}
	return i
}

// Operation summarises an operation that carries a request body.
type Operation struct {
	ID      string
	Method  string
	Path    string
	Summary string
}

// Operations lists the operations with a request body, sorted by id.
func (i *Importer) Operations(ctx context.Context, raw []byte) ([]Operation, error) {
	spec, err := i.load(ctx, raw)
	if err != nil {
		return nil, err
	}
	var out []Operation
	eachOperation(spec, func(id, method, path string, op *openapi3.Operation) {
		if op.RequestBody != nil {
			out = append(out, Operation{ID: id, Method: method, Path: path, Summary: op.Summary})
		}
	})
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// Form builds a form from the request body of operationID. Top-level object
// properties become fields; nested objects and arrays are skipped.
func (i *Importer) Form(ctx context.Context, raw []byte, operationID string) (schema.Form, error) {
	spec, err := i.load(ctx, raw)
	if err != nil {
		return schema.Form{}, err
	}

	var (
		found *openapi3.Operation
		known []string
	)
	eachOperation(spec, func(id, _, _ string, op *openapi3.Operation) {
		known = append(known, id)
		if id == operationID {
			found = op
		}
	})
	if found == nil {
		sort.Strings(known)
		return schema.Form{}, fmt.Errorf("openapi importer: operation %q not found (available: %s)", operationID, strings.Join(known, ", "))
	}

	body := requestSchema(found.RequestBody)
	if body == nil {
		return schema.Form{}, fmt.Errorf("openapi importer: operation %q has no request body schema", operationID)
	}
	if !body.Type.Is(openapi3.TypeObject) && len(body.Properties) == 0 {
		return schema.Form{}, fmt.Errorf("openapi importer: request body of %q is not an object", operationID)
	}

	name := found.Summary
	if name == "" {
		name = operationID
	}
	return schema.Form{Name: name, Fields: buildFields(body)}, nil
}

// FieldSet is Form without the name.
func (i *Importer) FieldSet(ctx context.Context, raw []byte, operationID string) (schema.FieldSet, error) {
	form, err := i.Form(ctx, raw, operationID)
	if err != nil {
		return nil, err
	}
	return form.Fields, nil
}

func (i *Importer) load(ctx context.Context, raw []byte) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("openapi importer: document payload is empty")
	}

	loader := &openapi3.Loader{
		Context:               ctx,
		IsExternalRefsAllowed: i.externalRefs,
	}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi importer: load document: %w", err)
	}
	if i.validate {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi importer: validate: %w", err)
		}
	}
	return spec, nil
}

func eachOperation(spec *openapi3.T, fn func(id, method, path string, op *openapi3.Operation)) {
	if spec.Paths == nil {
		return
	}
	for path, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			fn(id, method, path, op)
		}
	}
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body == nil || body.Value == nil {
		return nil
	}
	content := body.Value.Content
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	for _, mt := range content {
		if mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

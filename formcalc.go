// Package formcalc computes derived form fields. A session holds the values of
// one field set; every edit recomputes derived fields from their parents in
// dependency order and re-validates the whole form before the call returns.
//
// The package-level functions cover the common path. Engine adds loading,
// OpenAPI import and catalog lookups for callers that need them.
package formcalc

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formcalc/internal/loader"
	"github.com/goliatone/go-formcalc/internal/openapi/importer"
	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/session"
	"github.com/goliatone/go-formcalc/pkg/value"
)

// CreateSession starts a session over fields and returns it with its first
// settled snapshot.
func CreateSession(fields schema.FieldSet, opts ...session.Option) (*session.Session, session.Snapshot, error) {
	s, err := session.New(fields, opts...)
	if err != nil {
		return nil, session.Snapshot{}, err
	}
	return s, s.Snapshot(), nil
}

// SetValue applies one edit and returns the settled snapshot.
func SetValue(s *session.Session, fieldID string, v value.Value) (session.Snapshot, error) {
	if s == nil {
		return session.Snapshot{}, fmt.Errorf("formcalc: nil session")
	}
	return s.SetValue(fieldID, v)
}

// GetSnapshot returns the current settled snapshot without recomputing.
func GetSnapshot(s *session.Session) session.Snapshot {
	if s == nil {
		return session.Snapshot{}
	}
	return s.Snapshot()
}

// Evaluate runs a throwaway session: inputs are applied in field order through
// each field's coercion and the final snapshot is returned.
func Evaluate(fields schema.FieldSet, inputs map[string]any, opts ...session.Option) (session.Snapshot, error) {
	for id := range inputs {
		if _, ok := fields.Lookup(id); !ok {
			return session.Snapshot{}, fmt.Errorf("%w: %q", session.ErrUnknownField, id)
		}
	}
	s, snap, err := CreateSession(fields, opts...)
	if err != nil {
		return session.Snapshot{}, err
	}
	for _, id := range fields.IDs() {
		raw, ok := inputs[id]
		if !ok {
			continue
		}
		if snap, err = s.SetInput(id, raw); err != nil {
			return session.Snapshot{}, err
		}
	}
	return snap, nil
}

// LoadFieldSet reads a field set from src with a default loader.
func LoadFieldSet(ctx context.Context, src schema.Source, opts ...loader.Option) (schema.FieldSet, error) {
	form, err := loader.New(opts...).LoadForm(ctx, src)
	if err != nil {
		return nil, err
	}
	return form.Fields, nil
}

// ImportOpenAPI builds a field set from an OpenAPI operation's request body.
func ImportOpenAPI(ctx context.Context, raw []byte, operationID string, opts ...importer.Option) (schema.FieldSet, error) {
	return importer.New(opts...).FieldSet(ctx, raw, operationID)
}

// Package catalog persists named form definitions. The engine packages never
// touch storage; catalogs hold the definitions that sessions are created from.
//
// Backends live in subpackages: memory for tests and single process use, file
// for a JSON document on disk and redis for shared deployments. Every backend
// passes the catalogtest conformance suite.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formcalc/pkg/schema"
)

var (
	// ErrNotFound is returned when no form has the requested id.
	ErrNotFound = errors.New("catalog: form not found")
	// ErrInvalidForm is returned when a form cannot be stored.
	ErrInvalidForm = errors.New("catalog: invalid form")
)

// Store is the persistence contract for forms.
type Store interface {
	// Add stores form, assigning an id and creation time when missing, and
	// returns the stored copy. Adding an existing id replaces it.
	Add(ctx context.Context, form schema.Form) (schema.Form, error)
	Get(ctx context.Context, id string) (schema.Form, error)
	// List returns every form ordered by creation time, then id.
	List(ctx context.Context) ([]schema.Form, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewForm builds a form with a fresh id and the current time.
func NewForm(name string, fields schema.FieldSet) schema.Form {
	return schema.Form{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Fields:    fields.Clone(),
	}
}

// Prepare checks form and fills in the id and creation time. Backends call it
// from Add.
func Prepare(form schema.Form) (schema.Form, error) {
	out := form.Clone()
	out.Name = strings.TrimSpace(out.Name)
	if out.Name == "" {
		return schema.Form{}, fmt.Errorf("%w: name is required", ErrInvalidForm)
	}
	seen := make(map[string]struct{}, len(out.Fields))
	for i, f := range out.Fields {
		if f.ID == "" {
			return schema.Form{}, fmt.Errorf("%w: field %d has no id", ErrInvalidForm, i)
		}
		if _, dup := seen[f.ID]; dup {
			return schema.Form{}, fmt.Errorf("%w: duplicate field id %q", ErrInvalidForm, f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if out.Fields == nil {
		out.Fields = schema.FieldSet{}
	}
	return out, nil
}

// SortForms orders forms by creation time, then id.
func SortForms(forms []schema.Form) {
	sort.SliceStable(forms, func(i, j int) bool {
		if !forms[i].CreatedAt.Equal(forms[j].CreatedAt) {
			return forms[i].CreatedAt.Before(forms[j].CreatedAt)
		}
		return forms[i].ID < forms[j].ID
	})
}

// NotFound wraps ErrNotFound with the id.
func NotFound(id string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}

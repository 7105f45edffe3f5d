// Package memory is an in-process catalog.Store.
package memory

import (
	"context"
	"sync"

	"github.com/goliatone/go-formcalc/pkg/catalog"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

// Store keeps forms in a map guarded by a mutex.
type Store struct {
	mu    sync.RWMutex
	forms map[string]schema.Form
}

var _ catalog.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{forms: make(map[string]schema.Form)}
}

func (s *Store) Add(ctx context.Context, form schema.Form) (schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return schema.Form{}, err
	}
	prepared, err := catalog.Prepare(form)
	if err != nil {
		return schema.Form{}, err
	}
	s.mu.Lock()
	s.forms[prepared.ID] = prepared
	s.mu.Unlock()
	return prepared.Clone(), nil
}

func (s *Store) Get(ctx context.Context, id string) (schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return schema.Form{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[id]
	if !ok {
		return schema.Form{}, catalog.NotFound(id)
	}
	return form.Clone(), nil
}

func (s *Store) List(ctx context.Context) ([]schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]schema.Form, 0, len(s.forms))
	for _, form := range s.forms {
		out = append(out, form.Clone())
	}
	s.mu.RUnlock()
	catalog.SortForms(out)
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[id]; !ok {
		return catalog.NotFound(id)
	}
	delete(s.forms, id)
	return nil
}

func (s *Store) Close() error { return nil }

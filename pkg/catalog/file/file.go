// Package file stores a catalog as one JSON array on disk. Writes go to a
// temporary file in the same directory and are renamed into place.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goliatone/go-formcalc/pkg/catalog"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

// Store is a catalog.Store backed by a JSON file. A missing file is an empty
// catalog.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ catalog.Store = (*Store)(nil)

// New returns a Store for path. The file is created on the first write.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("file: path is required")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) Add(ctx context.Context, form schema.Form) (schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return schema.Form{}, err
	}
	prepared, err := catalog.Prepare(form)
	if err != nil {
		return schema.Form{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	forms, err := s.read()
	if err != nil {
		return schema.Form{}, err
	}
	replaced := false
	for i := range forms {
		if forms[i].ID == prepared.ID {
			forms[i] = prepared
			replaced = true
			break
		}
	}
	if !replaced {
		forms = append(forms, prepared)
	}
	if err := s.write(forms); err != nil {
		return schema.Form{}, err
	}
	return prepared.Clone(), nil
}

func (s *Store) Get(ctx context.Context, id string) (schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return schema.Form{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	forms, err := s.read()
	if err != nil {
		return schema.Form{}, err
	}
	for _, form := range forms {
		if form.ID == id {
			return form, nil
		}
	}
	return schema.Form{}, catalog.NotFound(id)
}

func (s *Store) List(ctx context.Context) ([]schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	forms, err := s.read()
	if err != nil {
		return nil, err
	}
	catalog.SortForms(forms)
	return forms, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	forms, err := s.read()
	if err != nil {
		return err
	}
	for i := range forms {
		if forms[i].ID == id {
			forms = append(forms[:i], forms[i+1:]...)
			return s.write(forms)
		}
	}
	return catalog.NotFound(id)
}

func (s *Store) Close() error { return nil }

func (s *Store) read() ([]schema.Form, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []schema.Form{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: read %s: %w", s.path, err)
	}
	var forms []schema.Form
	if len(data) == 0 {
		return []schema.Form{}, nil
	}
	if err := json.Unmarshal(data, &forms); err != nil {
		return nil, fmt.Errorf("file: decode %s: %w", s.path, err)
	}
	return forms, nil
}

func (s *Store) write(forms []schema.Form) error {
	if forms == nil {
		forms = []schema.Form{}
	}
	data, err := json.MarshalIndent(forms, "", "  ")
	if err != nil {
		return fmt.Errorf("file: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("file: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("file: replace %s: %w", s.path, err)
	}
	return nil
}

// Package catalogtest is a conformance suite for catalog.Store backends.
package catalogtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcalc/pkg/catalog"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

// StoreFactory returns a fresh, empty store for one subtest. Cleanup is the
// factory's job (t.Cleanup).
type StoreFactory func(t *testing.T) catalog.Store

// RunStoreTests runs the suite against stores produced by factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("AddAssignsIDAndTime", func(t *testing.T) { testAddAssigns(t, factory) })
	t.Run("AddKeepsGivenID", func(t *testing.T) { testAddKeepsID(t, factory) })
	t.Run("AddReplaces", func(t *testing.T) { testAddReplaces(t, factory) })
	t.Run("AddRejectsInvalid", func(t *testing.T) { testAddRejects(t, factory) })
	t.Run("GetRoundTrip", func(t *testing.T) { testGetRoundTrip(t, factory) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("ListOrder", func(t *testing.T) { testListOrder(t, factory) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory) })
	t.Run("CancelledContext", func(t *testing.T) { testCancelled(t, factory) })
}

func sampleFields() schema.FieldSet {
	return schema.FieldSet{
		{ID: "A", Label: "A", Kind: schema.KindText, DefaultValue: "2"},
		{ID: "B", Label: "B", Kind: schema.KindText, DefaultValue: "3"},
		{
			ID:          "C",
			Label:       "Sum",
			Kind:        schema.KindText,
			Validations: []schema.ValidationRule{schema.MinLength(1), {Type: "regex", Rule: "^[0-9]+$"}},
			Derived:     &schema.Derivation{ParentIDs: []string{"A", "B"}, Formula: "number(A) + number(B)"},
		},
		{ID: "plan", Label: "Plan", Kind: schema.KindSelect, Options: []string{"basic", "pro"}},
	}
}

func testAddAssigns(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	form, err := store.Add(ctx, schema.Form{Name: "Quote", Fields: sampleFields()})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if form.ID == "" {
		t.Fatalf("expected generated id")
	}
	if form.CreatedAt.Before(before) {
		t.Fatalf("expected creation time to be set, got %v", form.CreatedAt)
	}
}

func testAddKeepsID(t *testing.T, factory StoreFactory) {
	store := factory(t)
	form, err := store.Add(context.Background(), schema.Form{ID: "fixed", Name: "Fixed", Fields: sampleFields()})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if form.ID != "fixed" {
		t.Fatalf("expected id to be kept, got %q", form.ID)
	}
}

func testAddReplaces(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := store.Add(ctx, schema.Form{ID: "f", Name: "First", CreatedAt: created}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Add(ctx, schema.Form{ID: "f", Name: "Second", CreatedAt: created}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	forms, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(forms) != 1 || forms[0].Name != "Second" {
		t.Fatalf("expected a single replaced form, got %#v", forms)
	}
}

func testAddRejects(t *testing.T, factory StoreFactory) {
	store := factory(t)
	_, err := store.Add(context.Background(), schema.Form{Name: ""})
	if !errors.Is(err, catalog.ErrInvalidForm) {
		t.Fatalf("expected ErrInvalidForm, got %v", err)
	}
}

func testGetRoundTrip(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := context.Background()

	added, err := store.Add(ctx, schema.Form{Name: "Quote", Fields: sampleFields()})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := store.Get(ctx, added.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(added, got); diff != "" {
		t.Fatalf("form mismatch (-want +got):\n%s", diff)
	}
}

func testGetMissing(t *testing.T, factory StoreFactory) {
	store := factory(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testListOrder(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, f := range []schema.Form{
		{ID: "late", Name: "Late", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "b", Name: "B", CreatedAt: base},
		{ID: "a", Name: "A", CreatedAt: base},
		{ID: "mid", Name: "Mid", CreatedAt: base.Add(time.Hour)},
	} {
		if _, err := store.Add(ctx, f); err != nil {
			t.Fatalf("Add %s: %v", f.ID, err)
		}
	}

	forms, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	ids := make([]string, 0, len(forms))
	for _, f := range forms {
		ids = append(ids, f.ID)
	}
	if diff := cmp.Diff([]string{"a", "b", "mid", "late"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func testDelete(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := context.Background()

	added, err := store.Add(ctx, schema.Form{Name: "Temp"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Delete(ctx, added.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, added.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, added.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	forms, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(forms) != 0 {
		t.Fatalf("expected empty catalog, got %d forms", len(forms))
	}
}

func testCancelled(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Add(ctx, schema.Form{Name: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Add, got %v", err)
	}
	if _, err := store.List(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from List, got %v", err)
	}
}

package formcalc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-formcalc/pkg/catalog"
	"github.com/goliatone/go-formcalc/pkg/catalog/memory"
	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/session"
	"github.com/goliatone/go-formcalc/pkg/testsupport"
	"github.com/goliatone/go-formcalc/pkg/value"
)

var (
	quoteFixture = filepath.Join("testdata", "forms", "quote.yaml")
	quoteGolden  = filepath.Join("testdata", "goldens", "quote_snapshot.json")
)

const orderSpec = `
openapi: 3.0.3
info:
  title: Orders
  version: "1.0"
paths:
  /orders:
    post:
      operationId: createOrder
      summary: Create order
      requestBody:
        content:
          application/json:
            schema:
              type: object
              x-formcalc-order: [qty, price, total]
              properties:
                qty:
                  type: integer
                  default: 2
                price:
                  type: number
                  default: 5
                total:
                  type: number
                  x-formcalc-derived:
                    parentIds: [qty, price]
                    formula: "qty * price"
      responses:
        "201":
          description: created
`

func TestQuoteFixtureMatchesGolden(t *testing.T) {
	t.Parallel()

	fields := testsupport.LoadFieldSet(t, quoteFixture)
	_, snap, err := CreateSession(fields)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	testsupport.WriteGolden(t, quoteGolden, snap)

	want := testsupport.MustLoadSnapshot(t, quoteGolden)
	if diff := testsupport.CompareSnapshot(want, snap); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestFacadeOperations(t *testing.T) {
	t.Parallel()

	fields := schema.FieldSet{
		{ID: "A", Kind: schema.KindText, DefaultValue: "2"},
		{ID: "B", Kind: schema.KindText, DefaultValue: "3"},
		{ID: "C", Kind: schema.KindText, Derived: &schema.Derivation{
			ParentIDs: []string{"A", "B"},
			Formula:   "number(A) + number(B)",
		}},
	}
	s, first, err := CreateSession(fields)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !first.Value("C").Equal(value.Number(5)) {
		t.Fatalf("expected C=5, got %v", first.Value("C"))
	}

	next, err := SetValue(s, "A", value.Text("10"))
	if err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if !next.Value("C").Equal(value.Number(13)) {
		t.Fatalf("expected C=13, got %v", next.Value("C"))
	}
	if got := GetSnapshot(s); got.Revision != next.Revision {
		t.Fatalf("expected GetSnapshot to return the settled revision")
	}

	if _, err := SetValue(nil, "A", value.Text("1")); err == nil {
		t.Fatalf("expected error for nil session")
	}
	if _, err := SetValue(s, "C", value.Text("1")); !errors.Is(err, session.ErrDerivedField) {
		t.Fatalf("expected ErrDerivedField, got %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	fields := testsupport.LoadFieldSet(t, quoteFixture)
	snap, err := Evaluate(fields, map[string]any{"qty": "3", "email": "a@b.co"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !snap.Value("total").Equal(value.Number(36)) {
		t.Fatalf("expected total=36, got %v", snap.Value("total"))
	}
	if !snap.Valid() {
		t.Fatalf("expected valid snapshot, got %v", snap.Errors())
	}

	if _, err := Evaluate(fields, map[string]any{"nope": 1}); !errors.Is(err, session.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestLoadFieldSetAndImport(t *testing.T) {
	t.Parallel()

	ctx := testsupport.Context(t)
	fields, err := LoadFieldSet(ctx, schema.SourceFromFile(quoteFixture))
	if err != nil {
		t.Fatalf("LoadFieldSet: %v", err)
	}
	if len(fields) != 6 || fields[0].Label != "Quantity" {
		t.Fatalf("unexpected fields %#v", fields)
	}

	imported, err := ImportOpenAPI(ctx, []byte(orderSpec), "createOrder")
	if err != nil {
		t.Fatalf("ImportOpenAPI: %v", err)
	}
	snap, err := Evaluate(imported, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !snap.Value("total").Equal(value.Number(10)) {
		t.Fatalf("expected total=10, got %v", snap.Value("total"))
	}
}

func TestEngineResolvesEverySource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	engine := NewEngine(WithCatalog(store))

	saved, err := engine.Save(ctx, catalog.NewForm("Quote", testsupport.LoadFieldSet(t, quoteFixture)))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	requests := map[string]Request{
		"fields":  {Fields: saved.Fields},
		"source":  {Source: schema.SourceFromFile(quoteFixture)},
		"catalog": {FormID: saved.ID},
	}
	for name, req := range requests {
		s, err := engine.Start(ctx, req)
		if err != nil {
			t.Fatalf("%s: Start: %v", name, err)
		}
		if got := s.Snapshot().Value("total"); !got.Equal(value.Number(24)) {
			t.Fatalf("%s: expected total=24, got %v", name, got)
		}
	}

	s, err := engine.Start(ctx, Request{OpenAPI: []byte(orderSpec), OperationID: "createOrder"})
	if err != nil {
		t.Fatalf("openapi: Start: %v", err)
	}
	if got := s.Snapshot().Value("total"); !got.Equal(value.Number(10)) {
		t.Fatalf("openapi: expected total=10, got %v", got)
	}
}

func TestEngineErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := NewEngine()

	if _, err := engine.Start(ctx, Request{}); err == nil {
		t.Fatalf("expected error for empty request")
	}
	if _, err := engine.Start(ctx, Request{FormID: "x"}); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("expected ErrNoCatalog, got %v", err)
	}
	if _, err := engine.Start(ctx, Request{OpenAPI: []byte(orderSpec)}); err == nil {
		t.Fatalf("expected error without operation id")
	}

	cyclic := schema.FieldSet{{ID: "L", Kind: schema.KindText, Derived: &schema.Derivation{ParentIDs: []string{"L"}, Formula: "L"}}}
	if _, err := engine.Start(ctx, Request{Fields: cyclic}); err != nil {
		t.Fatalf("lenient engine should flag cycles per field, got %v", err)
	}
	strict := NewEngine(WithStrict(true))
	if _, err := strict.Start(ctx, Request{Fields: cyclic}); err == nil {
		t.Fatalf("expected strict engine to reject cycles")
	}
}

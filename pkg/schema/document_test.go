package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleForm() Form {
	return Form{
		ID:        "f-1",
		Name:      "Invoice",
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Fields: FieldSet{
			{ID: "qty", Label: "Quantity", Kind: KindNumber, Required: true, DefaultValue: "1"},
			{ID: "plan", Label: "Plan", Kind: KindRadio, Options: []string{"basic", "pro"}, DefaultValue: "basic"},
			{ID: "email", Label: "Email", Kind: KindText, Validations: []ValidationRule{
				Required(), MinLength(3), MaxLength(64), Email(), Password("8+"), {Type: "regex", Rule: "^.+$"},
			}},
			{ID: "total", Label: "Total", Kind: KindText, Derived: &Derivation{
				ParentIDs: []string{"qty"},
				Formula:   "number(qty) * 10",
			}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	form := sampleForm()
	for _, format := range []Format{FormatJSON, FormatYAML} {
		raw, err := Encode(form, format)
		if err != nil {
			t.Fatalf("Encode(%s) returned error: %v", format, err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%s) returned error: %v", format, err)
		}
		if diff := cmp.Diff(form, got); diff != "" {
			t.Fatalf("%s round trip mismatch (-want +got):\n%s", format, diff)
		}
	}
}

func TestDecodeAcceptsShapes(t *testing.T) {
	t.Parallel()

	docs := map[string]string{
		"json array":  `[{"id":"a","type":"text"}]`,
		"json object": `{"fields":[{"id":"a","type":"text"}]}`,
		"yaml list":   "- id: a\n  type: text\n",
		"yaml form":   "name: demo\nfields:\n  - id: a\n    type: text\n",
	}
	for name, doc := range docs {
		form, err := Decode([]byte(doc))
		if err != nil {
			t.Fatalf("%s: Decode returned error: %v", name, err)
		}
		if len(form.Fields) != 1 || form.Fields[0].ID != "a" || form.Fields[0].Kind != KindText {
			t.Fatalf("%s: unexpected fields %#v", name, form.Fields)
		}
	}

	if _, err := Decode([]byte("  ")); err == nil {
		t.Fatalf("expected error for empty document")
	}
	if _, err := Decode([]byte("just text")); err == nil || !strings.HasPrefix(err.Error(), "schema: ") {
		t.Fatalf("expected schema error for scalar document, got %v", err)
	}
}

func TestDocumentWrapsSource(t *testing.T) {
	t.Parallel()

	if _, err := NewDocument(nil, []byte("[]")); err == nil {
		t.Fatalf("expected error for missing source")
	}
	doc, err := NewDocument(SourceFromFS("forms/a.yaml"), []byte("- id: a\n  type: date\n"))
	if err != nil {
		t.Fatalf("NewDocument returned error: %v", err)
	}
	if doc.Location() != "forms/a.yaml" {
		t.Fatalf("unexpected location %q", doc.Location())
	}
	form, err := doc.Form()
	if err != nil {
		t.Fatalf("Form returned error: %v", err)
	}
	if form.Fields[0].Kind != KindDate {
		t.Fatalf("unexpected kind %q", form.Fields[0].Kind)
	}
}

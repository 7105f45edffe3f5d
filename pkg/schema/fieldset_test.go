package schema

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcalc/pkg/value"
)

func TestCoerceByKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind FieldKind
		raw  any
		want value.Value
	}{
		{KindText, nil, value.Text("")},
		{KindText, 12, value.Text("12")},
		{KindSelect, "pro", value.Text("pro")},
		{KindNumber, " 4.5 ", value.Number(4.5)},
		{KindNumber, "", value.Absent()},
		{KindNumber, "four", value.Text("four")},
		{KindNumber, 3, value.Number(3)},
		{KindCheckbox, nil, value.Bool(false)},
		{KindCheckbox, "true", value.Bool(true)},
		{KindCheckbox, 1, value.Bool(true)},
		{KindCheckbox, "maybe", value.Text("maybe")},
		{KindDate, "2024-05-01", mustDate(t, "2024-05-01")},
		{KindDate, "", value.Absent()},
		{KindDate, "soon", value.Text("soon")},
		{KindDate, mustDate(t, "2024-05-01"), mustDate(t, "2024-05-01")},
		{KindDate, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), mustDate(t, "2024-05-01")},
		{KindDate, map[string]any{"date": "2024-05-01"}, mustDate(t, "2024-05-01")},
		{KindDate, "2024-05-01T09:00:00Z", mustDate(t, "2024-05-01")},
		{KindText, mustDate(t, "2024-05-01"), value.Text("2024-05-01")},
		{KindText, value.Number(5), value.Text("5")},
		{KindNumber, value.Number(5), value.Number(5)},
		{KindCheckbox, value.Bool(true), value.Bool(true)},
	}
	for _, tc := range cases {
		got := Field{ID: "f", Kind: tc.kind}.Coerce(tc.raw)
		if !got.Equal(tc.want) {
			t.Fatalf("Coerce(%s, %#v) = %#v, want %#v", tc.kind, tc.raw, got, tc.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	original := FieldSet{{
		ID:          "c",
		Kind:        KindSelect,
		Options:     []string{"a", "b"},
		Validations: []ValidationRule{Required()},
		Derived:     &Derivation{ParentIDs: []string{"x"}, Formula: "x"},
	}}
	cloned := original.Clone()
	cloned[0].Options[0] = "z"
	cloned[0].Validations[0] = Email()
	cloned[0].Derived.ParentIDs[0] = "y"
	cloned[0].Derived.Formula = "y"

	if original[0].Options[0] != "a" || original[0].Validations[0].Type != RuleRequired {
		t.Fatalf("clone shares slices with the original: %#v", original[0])
	}
	if original[0].Derived.ParentIDs[0] != "x" || original[0].Derived.Formula != "x" {
		t.Fatalf("clone shares the derivation: %#v", original[0].Derived)
	}
}

func TestIndexAndLookup(t *testing.T) {
	t.Parallel()

	fields := FieldSet{{ID: "a"}, {ID: "b"}, {ID: "a", Label: "dup"}}
	if diff := cmp.Diff(map[string]int{"a": 0, "b": 1}, fields.Index()); diff != "" {
		t.Fatalf("index mismatch (-want +got):\n%s", diff)
	}
	if f, ok := fields.Lookup("a"); !ok || f.Label != "" {
		t.Fatalf("expected first field for a, got %#v", f)
	}
	if _, ok := fields.Lookup("zz"); ok {
		t.Fatalf("did not expect to find zz")
	}
}

func TestEncodeWritesPlainDefaults(t *testing.T) {
	t.Parallel()

	form := Form{Fields: FieldSet{
		{ID: "due", Kind: KindDate, DefaultValue: mustDate(t, "2024-01-02")},
		{ID: "start", Kind: KindDate, DefaultValue: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)},
		{ID: "qty", Kind: KindNumber, DefaultValue: value.Number(5)},
		{ID: "note", Kind: KindText, DefaultValue: value.Absent()},
	}}
	for _, format := range []Format{FormatJSON, FormatYAML} {
		raw, err := Encode(form, format)
		if err != nil {
			t.Fatalf("Encode(%s) returned error: %v", format, err)
		}
		decoded, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%s) returned error: %v\n%s", format, err, raw)
		}
		for i, f := range form.Fields {
			want := f.InitialValue()
			got := decoded.Fields[i].InitialValue()
			if !got.Equal(want) {
				t.Fatalf("%s %s: got %#v (%s), want %#v (%s)\n%s", format, f.ID, got, got.Kind(), want, want.Kind(), raw)
			}
		}
	}
}

func mustDate(t *testing.T, raw string) value.Value {
	t.Helper()
	v, err := value.ParseDate(raw)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return v
}

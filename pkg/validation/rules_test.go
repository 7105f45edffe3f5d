package validation

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/value"
)

func TestValidateFieldMinLength(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "x", Kind: schema.KindText, Validations: []schema.ValidationRule{schema.MinLength(5)}}

	if diff := cmp.Diff([]string{"Min length 5"}, ValidateField(field, value.Text("ab"))); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
	if got := ValidateField(field, value.Text("abcdef")); len(got) != 0 {
		t.Fatalf("expected no violations, got %v", got)
	}
}

func TestValidateFieldEmail(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "mail", Kind: schema.KindText, Validations: []schema.ValidationRule{schema.Email()}}

	cases := map[string]bool{
		"not-an-email":   false,
		"a@b.co":         true,
		"a b@c.io":       false,
		"a@@b.io":        false,
		"user@host":      false,
		"first.last@x.y": true,
	}
	for input, valid := range cases {
		got := ValidateField(field, value.Text(input))
		if valid && len(got) != 0 {
			t.Fatalf("%q: expected valid, got %v", input, got)
		}
		if !valid && !cmp.Equal(got, []string{MessageEmail}) {
			t.Fatalf("%q: expected %q, got %v", input, MessageEmail, got)
		}
	}
}

func TestValidateFieldOrderIsStable(t *testing.T) {
	t.Parallel()

	field := schema.Field{
		ID:       "secret",
		Kind:     schema.KindText,
		Required: true,
		Validations: []schema.ValidationRule{
			schema.Password("8+ with a digit"),
			schema.Email(),
			schema.MaxLength(0),
			schema.MinLength(3),
			schema.Required(),
		},
	}

	got := ValidateField(field, value.Text(" "))
	want := []string{MessageRequired, "Min length 3", "Max length 0", MessageEmail, MessagePassword}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateFieldRequired(t *testing.T) {
	t.Parallel()

	byFlag := schema.Field{ID: "a", Kind: schema.KindText, Required: true}
	byRule := schema.Field{ID: "b", Kind: schema.KindCheckbox, Validations: []schema.ValidationRule{schema.Required()}}

	for _, v := range []value.Value{value.Absent(), value.Text(""), value.Text("  \t")} {
		if diff := cmp.Diff([]string{MessageRequired}, ValidateField(byFlag, v)); diff != "" {
			t.Fatalf("value %#v (-want +got):\n%s", v, diff)
		}
	}
	if got := ValidateField(byRule, value.Bool(false)); len(got) != 0 {
		t.Fatalf("false is a value, got %v", got)
	}
	if got := ValidateField(byFlag, value.Number(0)); len(got) != 0 {
		t.Fatalf("zero is a value, got %v", got)
	}
}

func TestValidateFieldSkipsNonTextAndUnknownRules(t *testing.T) {
	t.Parallel()

	field := schema.Field{
		ID:   "n",
		Kind: schema.KindNumber,
		Validations: []schema.ValidationRule{
			schema.MinLength(4),
			schema.Email(),
			schema.Password(""),
			{Type: "regex", Rule: "^a+$"},
		},
	}
	if got := ValidateField(field, value.Number(12)); len(got) != 0 {
		t.Fatalf("expected non-text value to be exempt, got %v", got)
	}
	if got := ValidateField(field, value.Absent()); len(got) != 0 {
		t.Fatalf("expected absent value to be exempt, got %v", got)
	}
}

func TestValidateFieldPassword(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "p", Kind: schema.KindText, Validations: []schema.ValidationRule{schema.Password("informational")}}

	for input, valid := range map[string]bool{
		"short1":     false,
		"longenough": false,
		"longenou9h": true,
		"１２３４５６７８": false,
	} {
		got := ValidateField(field, value.Text(input))
		if valid != (len(got) == 0) {
			t.Fatalf("%q: valid=%v, got %v", input, valid, got)
		}
	}
}

func TestValidateFieldCountsRunes(t *testing.T) {
	t.Parallel()

	field := schema.Field{ID: "r", Kind: schema.KindText, Validations: []schema.ValidationRule{schema.MaxLength(3)}}
	if got := ValidateField(field, value.Text("héé")); len(got) != 0 {
		t.Fatalf("expected three runes to pass, got %v", got)
	}
}

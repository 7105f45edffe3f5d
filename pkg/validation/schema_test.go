package validation

import (
	"strings"
	"testing"

	"github.com/goliatone/go-formcalc/pkg/schema"
)

func TestValidateFieldSetValid(t *testing.T) {
	t.Parallel()

	fields := schema.FieldSet{
		{ID: "A", Kind: schema.KindText, DefaultValue: "2"},
		{ID: "B", Kind: schema.KindText, DefaultValue: "3"},
		{ID: "plan", Kind: schema.KindSelect, Options: []string{"basic", "pro"}, DefaultValue: "pro"},
		{ID: "C", Kind: schema.KindText, Derived: &schema.Derivation{
			ParentIDs: []string{"A", "B"},
			Formula:   "number(A) + number(fields['B'])",
		}},
		{ID: "D", Kind: schema.KindText, Derived: &schema.Derivation{
			ParentIDs: []string{"C"},
			Formula:   "C * 2",
		}},
	}
	result := ValidateFieldSet(fields)
	if !result.Valid {
		t.Fatalf("expected valid field set: %#v", result.Issues)
	}
	if result.Err() != nil {
		t.Fatalf("expected nil error, got %v", result.Err())
	}
}

func TestValidateFieldSetReportsIssues(t *testing.T) {
	t.Parallel()

	fields := schema.FieldSet{
		{ID: "a", Kind: schema.KindText, Options: []string{"x"}},
		{ID: "a", Kind: schema.KindNumber},
		{ID: " ", Kind: "slider"},
		{ID: "pick", Kind: schema.KindRadio},
		{ID: "len", Kind: schema.KindText, Validations: []schema.ValidationRule{schema.MinLength(-1)}},
		{ID: "self", Kind: schema.KindText, Derived: &schema.Derivation{ParentIDs: []string{"self"}, Formula: "self"}},
		{ID: "ghost", Kind: schema.KindText, Derived: &schema.Derivation{ParentIDs: []string{"nope"}, Formula: "1"}},
		{ID: "broken", Kind: schema.KindText, Derived: &schema.Derivation{ParentIDs: []string{"a"}, Formula: "a +"}},
		{ID: "sneaky", Kind: schema.KindText, Derived: &schema.Derivation{ParentIDs: []string{"a"}, Formula: "self + missing"}},
	}

	result := ValidateFieldSet(fields)
	if result.Valid {
		t.Fatalf("expected invalid field set")
	}

	expect := []struct{ path, field, contains string }{
		{"/fields/0/options", "a", "only allowed on select and radio"},
		{"/fields/1/id", "a", "duplicate id"},
		{"/fields/2/id", " ", "id must be"},
		{"/fields/2/type", " ", `unsupported type "slider"`},
		{"/fields/3/options", "pick", "at least one option"},
		{"/fields/4/validations/0/value", "len", "value must be >= 0"},
		{"/fields/5/derived/parentIds", "self", "cyclic derivation"},
		{"/fields/6/derived/parentIds", "ghost", "unknown parent ids: nope"},
		{"/fields/7/derived/formula", "broken", "syntax error"},
		{"/fields/8/derived/formula", "sneaky", `derived field "self"`},
		{"/fields/8/derived/formula", "sneaky", `unknown field "missing"`},
	}
	for _, want := range expect {
		if !hasIssue(result.Issues, want.path, want.field, want.contains) {
			t.Fatalf("missing issue %s %s %q in %#v", want.path, want.field, want.contains, result.Issues)
		}
	}
	if err := result.Err(); err == nil || !strings.HasPrefix(err.Error(), "validation: ") {
		t.Fatalf("expected folded error, got %v", err)
	}
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	valid := ValidateDocument([]byte(`
- id: name
  type: text
  validations:
    - type: minLength
      value: 2
`))
	if !valid.Valid {
		t.Fatalf("expected YAML document to validate: %#v", valid.Issues)
	}

	broken := ValidateDocument([]byte(`{"fields": [`))
	if broken.Valid || len(broken.Issues) != 1 {
		t.Fatalf("expected a single decode issue, got %#v", broken)
	}
}

func hasIssue(issues []SchemaIssue, path, field, contains string) bool {
	for _, issue := range issues {
		if issue.Path == path && issue.Field == field && strings.Contains(issue.Message, contains) {
			return true
		}
	}
	return false
}

package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-formcalc/pkg/dependency"
	"github.com/goliatone/go-formcalc/pkg/formula"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

// SchemaIssue represents a structural problem with optional location metadata.
// Path is a JSON pointer into the field array; Field is the offending field id.
type SchemaIssue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// SchemaValidationResult captures validation outcomes for a field set.
type SchemaValidationResult struct {
	Valid  bool          `json:"valid"`
	Issues []SchemaIssue `json:"issues,omitempty"`
}

// Err folds the issues into a single error, or nil when the result is valid.
func (r SchemaValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		msgs = append(msgs, issue.String())
	}
	return fmt.Errorf("validation: %s", strings.Join(msgs, "; "))
}

func (i SchemaIssue) String() string {
	switch {
	case i.Field != "":
		return fmt.Sprintf("%s: %s", i.Field, i.Message)
	case i.Path != "":
		return fmt.Sprintf("%s: %s", i.Path, i.Message)
	default:
		return i.Message
	}
}

var structValidate *validator.Validate

func init() {
	structValidate = validator.New()
	if err := structValidate.RegisterValidation("fieldid", validateFieldID); err != nil {
		panic(err)
	}
}

// Field ids are opaque but must not be blank or carry surrounding whitespace.
func validateFieldID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return id != "" && strings.TrimSpace(id) == id
}

// ValidateDocument decodes raw (JSON or YAML) and validates the resulting
// field set. Decode failures are reported as a single issue.
func ValidateDocument(raw []byte) SchemaValidationResult {
	form, err := schema.Decode(raw)
	if err != nil {
		return SchemaValidationResult{Issues: []SchemaIssue{issueFromError(err)}}
	}
	return ValidateFieldSet(form.Fields)
}

// ValidateFieldSet checks the structural invariants of fields: unique ids,
// supported kinds and rule payloads, options only on select and radio fields,
// known and acyclic derivation parents, and formulas that compile and only
// reach fields they can see. Problems are returned as data.
func ValidateFieldSet(fields schema.FieldSet) SchemaValidationResult {
	var issues []SchemaIssue
	seen := make(map[string]int, len(fields))

	for i, field := range fields {
		path := fmt.Sprintf("/fields/%d", i)
		issues = append(issues, structIssues(path, field)...)

		if prev, dup := seen[field.ID]; dup && field.ID != "" {
			issues = append(issues, SchemaIssue{
				Path:    path + "/id",
				Field:   field.ID,
				Message: fmt.Sprintf("duplicate id (first declared at /fields/%d)", prev),
			})
		} else {
			seen[field.ID] = i
		}

		issues = append(issues, optionIssues(path, field)...)
		for j, rule := range field.Validations {
			if !rule.Known() {
				continue
			}
			if (rule.Type == schema.RuleMinLength || rule.Type == schema.RuleMaxLength) && field.Kind == schema.KindCheckbox {
				issues = append(issues, SchemaIssue{
					Path:    fmt.Sprintf("%s/validations/%d", path, j),
					Field:   field.ID,
					Message: fmt.Sprintf("%s does not apply to %s fields", rule.Type, field.Kind),
				})
			}
		}
	}

	issues = append(issues, derivationIssues(fields)...)

	return SchemaValidationResult{Valid: len(issues) == 0, Issues: issues}
}

func structIssues(path string, field schema.Field) []SchemaIssue {
	err := structValidate.Struct(field)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []SchemaIssue{{Path: path, Field: field.ID, Message: err.Error()}}
	}
	out := make([]SchemaIssue, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, SchemaIssue{
			Path:    path + pointerFromNamespace(fe.Namespace()),
			Field:   field.ID,
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "fieldid":
		return "id must be a non-empty string without surrounding whitespace"
	case "required":
		return fmt.Sprintf("%s is required", jsonName(fe.Field()))
	case "oneof":
		return fmt.Sprintf("unsupported %s %q (expected one of %s)", jsonName(fe.Field()), fe.Value(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", jsonName(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// pointerFromNamespace maps Field.Validations[1].Value to /validations/1/value.
func pointerFromNamespace(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) < 2 {
		return ""
	}
	var b strings.Builder
	for _, part := range parts[1:] {
		name, index, hasIndex := strings.Cut(part, "[")
		b.WriteString("/")
		b.WriteString(jsonName(name))
		if hasIndex {
			b.WriteString("/")
			b.WriteString(strings.TrimSuffix(index, "]"))
		}
	}
	return b.String()
}

func jsonName(goName string) string {
	switch goName {
	case "Kind":
		return "type"
	case "ID":
		return "id"
	case "Derived":
		return "derived"
	default:
		if goName == "" {
			return goName
		}
		return strings.ToLower(goName[:1]) + goName[1:]
	}
}

func optionIssues(path string, field schema.Field) []SchemaIssue {
	var out []SchemaIssue
	if !field.Kind.HasOptions() {
		if len(field.Options) > 0 {
			out = append(out, SchemaIssue{
				Path:    path + "/options",
				Field:   field.ID,
				Message: fmt.Sprintf("options are only allowed on select and radio fields, not %s", field.Kind),
			})
		}
		return out
	}
	if len(field.Options) == 0 {
		out = append(out, SchemaIssue{
			Path:    path + "/options",
			Field:   field.ID,
			Message: "at least one option is required",
		})
	}
	if def, ok := field.DefaultValue.(string); ok && def != "" && !slices.Contains(field.Options, def) {
		out = append(out, SchemaIssue{
			Path:    path + "/defaultValue",
			Field:   field.ID,
			Message: fmt.Sprintf("default %q is not one of the options", def),
		})
	}
	return out
}

func derivationIssues(fields schema.FieldSet) []SchemaIssue {
	graph := dependency.Resolve(fields)
	index := fields.Index()
	var out []SchemaIssue

	for i, field := range fields {
		if !field.IsDerived() || index[field.ID] != i {
			continue
		}
		path := fmt.Sprintf("/fields/%d/derived", i)

		if unknown := graph.UnknownParents(field.ID); len(unknown) > 0 {
			out = append(out, SchemaIssue{
				Path:    path + "/parentIds",
				Field:   field.ID,
				Message: fmt.Sprintf("unknown parent ids: %s", strings.Join(unknown, ", ")),
			})
		}
		if graph.IsCyclic(field.ID) {
			out = append(out, SchemaIssue{
				Path:    path + "/parentIds",
				Field:   field.ID,
				Message: "cyclic derivation",
			})
		}

		expr, err := formula.Compile(field.Derived.Formula)
		if err != nil {
			out = append(out, SchemaIssue{
				Path:    path + "/formula",
				Field:   field.ID,
				Message: strings.TrimPrefix(err.Error(), "formula: "),
			})
			continue
		}
		parents := graph.Parents(field.ID)
		for _, ref := range expr.References() {
			id, ok := resolveReference(ref, index)
			switch {
			case !ok:
				out = append(out, SchemaIssue{
					Path:    path + "/formula",
					Field:   field.ID,
					Message: fmt.Sprintf("formula references unknown field %q", ref),
				})
			case fields[index[id]].IsDerived() && !slices.Contains(parents, id):
				out = append(out, SchemaIssue{
					Path:    path + "/formula",
					Field:   field.ID,
					Message: fmt.Sprintf("formula references derived field %q without declaring it as a parent", id),
				})
			}
		}
	}
	return out
}

func resolveReference(ref string, index map[string]int) (string, bool) {
	if _, ok := index[ref]; ok {
		return ref, true
	}
	if alias, ok := strings.CutPrefix(ref, "f_"); ok {
		if _, ok := index[alias]; ok {
			return alias, true
		}
	}
	return "", false
}

func issueFromError(err error) SchemaIssue {
	if err == nil {
		return SchemaIssue{Message: "unknown error"}
	}
	msg := strings.TrimSpace(err.Error())
	msg = strings.TrimPrefix(msg, "schema: ")
	return SchemaIssue{Message: msg}
}

package importer

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formcalc/pkg/schema"
)

func buildFields(body *openapi3.Schema) schema.FieldSet {
	var fields schema.FieldSet
	for _, name := range propertyOrder(body) {
		ref := body.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		field, ok := convertProperty(name, ref.Value)
		if !ok {
			continue
		}
		field.Required = slices.Contains(body.Required, name)
		fields = append(fields, field)
	}
	return fields
}

// propertyOrder honours x-formcalc-order, then appends the remaining
// properties sorted by name.
func propertyOrder(body *openapi3.Schema) []string {
	var ordered []string
	seen := make(map[string]bool)
	if list, ok := body.Extensions[extensionOrder].([]any); ok {
		for _, item := range list {
			name, ok := item.(string)
			if !ok || seen[name] {
				continue
			}
			if _, exists := body.Properties[name]; !exists {
				continue
			}
			seen[name] = true
			ordered = append(ordered, name)
		}
	}
	rest := make([]string, 0, len(body.Properties))
	for name := range body.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

func convertProperty(name string, src *openapi3.Schema) (schema.Field, bool) {
	field := schema.Field{
		ID:           name,
		Label:        src.Title,
		DefaultValue: src.Default,
	}
	if field.Label == "" {
		field.Label = humanize(name)
	}

	widget, _ := src.Extensions[extensionWidget].(string)
	switch {
	case len(src.Enum) > 0:
		field.Kind = schema.KindSelect
		if widget == string(schema.KindRadio) {
			field.Kind = schema.KindRadio
		}
		for _, opt := range src.Enum {
			field.Options = append(field.Options, fmt.Sprint(opt))
		}
	case src.Type.Is(openapi3.TypeString):
		field.Kind = schema.KindText
		switch src.Format {
		case "date":
			field.Kind = schema.KindDate
		case "email":
			field.Validations = append(field.Validations, schema.Email())
		case "password":
			field.Validations = append(field.Validations, schema.Password(src.Description))
		}
		if widget == string(schema.KindTextarea) {
			field.Kind = schema.KindTextarea
		}
	case src.Type.Is(openapi3.TypeInteger), src.Type.Is(openapi3.TypeNumber):
		field.Kind = schema.KindNumber
	case src.Type.Is(openapi3.TypeBoolean):
		field.Kind = schema.KindCheckbox
	default:
		return schema.Field{}, false
	}

	var lengths []schema.ValidationRule
	if src.MinLength != 0 {
		lengths = append(lengths, schema.MinLength(int(src.MinLength)))
	}
	if src.MaxLength != nil {
		lengths = append(lengths, schema.MaxLength(int(*src.MaxLength)))
	}
	field.Validations = append(lengths, field.Validations...)
	if len(field.Validations) == 0 {
		field.Validations = nil
	}

	field.Derived = derivation(src.Extensions[extensionDerived])
	return field, true
}

func derivation(raw any) *schema.Derivation {
	mapped, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	d := &schema.Derivation{}
	d.Formula, _ = mapped["formula"].(string)
	if parents, ok := mapped["parentIds"].([]any); ok {
		for _, p := range parents {
			if id, ok := p.(string); ok {
				d.ParentIDs = append(d.ParentIDs, id)
			}
		}
	}
	return d
}

func humanize(name string) string {
	replaced := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	if replaced == "" {
		return replaced
	}
	return strings.ToUpper(replaced[:1]) + replaced[1:]
}

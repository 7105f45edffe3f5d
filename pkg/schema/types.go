package schema

import "encoding/json"

// FieldKind is the enum of form input kinds. The string values match the wire
// names used by stored form definitions.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindNumber   FieldKind = "number"
	KindTextarea FieldKind = "textarea"
	KindSelect   FieldKind = "select"
	KindRadio    FieldKind = "radio"
	KindCheckbox FieldKind = "checkbox"
	KindDate     FieldKind = "date"
)

// Kinds lists every supported kind in display order.
func Kinds() []FieldKind {
	return []FieldKind{KindText, KindNumber, KindTextarea, KindSelect, KindRadio, KindCheckbox, KindDate}
}

// Valid reports whether k is one of the supported kinds.
func (k FieldKind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// HasOptions reports whether fields of this kind carry an options list.
func (k FieldKind) HasOptions() bool {
	return k == KindSelect || k == KindRadio
}

// RuleType identifies a validation rule variant.
type RuleType string

const (
	RuleRequired  RuleType = "required"
	RuleMinLength RuleType = "minLength"
	RuleMaxLength RuleType = "maxLength"
	RuleEmail     RuleType = "email"
	RulePassword  RuleType = "password"
)

// ValidationRule is a tagged variant keyed by Type. MinLength/MaxLength carry
// their threshold in Value; Password carries a human-readable description in
// Rule that is never checked. Types this package does not know are kept
// verbatim so newer definitions survive a round trip.
type ValidationRule struct {
	Type  RuleType `json:"type" yaml:"type" validate:"required"`
	Value int      `json:"value,omitempty" yaml:"value,omitempty" validate:"gte=0"`
	Rule  string   `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// Required builds a required rule.
func Required() ValidationRule { return ValidationRule{Type: RuleRequired} }

// MinLength builds a minimum length rule.
func MinLength(n int) ValidationRule { return ValidationRule{Type: RuleMinLength, Value: n} }

// MaxLength builds a maximum length rule.
func MaxLength(n int) ValidationRule { return ValidationRule{Type: RuleMaxLength, Value: n} }

// Email builds an email format rule.
func Email() ValidationRule { return ValidationRule{Type: RuleEmail} }

// Password builds a password rule with an informational description.
func Password(description string) ValidationRule {
	return ValidationRule{Type: RulePassword, Rule: description}
}

// Known reports whether the rule type is one the validator understands.
func (r ValidationRule) Known() bool {
	switch r.Type {
	case RuleRequired, RuleMinLength, RuleMaxLength, RuleEmail, RulePassword:
		return true
	default:
		return false
	}
}

// Derivation marks a field as computed from its parents through a formula.
type Derivation struct {
	ParentIDs []string `json:"parentIds" yaml:"parentIds"`
	Formula   string   `json:"formula" yaml:"formula"`
}

// Field describes one form input.
type Field struct {
	ID           string           `json:"id" yaml:"id" validate:"fieldid"`
	Label        string           `json:"label" yaml:"label"`
	Kind         FieldKind        `json:"type" yaml:"type" validate:"required,oneof=text number textarea select radio checkbox date"`
	Required     bool             `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue any              `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Options      []string         `json:"options,omitempty" yaml:"options,omitempty"`
	Validations  []ValidationRule `json:"validations,omitempty" yaml:"validations,omitempty" validate:"dive"`
	Derived      *Derivation      `json:"derived,omitempty" yaml:"derived,omitempty"`
}

type fieldWire Field

// MarshalJSON writes the default as a plain scalar so typed defaults decode to
// the same initial value.
func (f Field) MarshalJSON() ([]byte, error) {
	wire := fieldWire(f)
	wire.DefaultValue = plainDefault(f.DefaultValue)
	return json.Marshal(wire)
}

// MarshalYAML mirrors MarshalJSON.
func (f Field) MarshalYAML() (any, error) {
	wire := fieldWire(f)
	wire.DefaultValue = plainDefault(f.DefaultValue)
	return wire, nil
}

// IsDerived reports whether the field's value is computed.
func (f Field) IsDerived() bool { return f.Derived != nil }

// FieldSet is the ordered collection of fields a session operates on.
type FieldSet []Field

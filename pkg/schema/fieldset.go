package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formcalc/pkg/value"
)

// Index maps field ids to their position. Duplicate ids keep the first
// position.
func (fs FieldSet) Index() map[string]int {
	out := make(map[string]int, len(fs))
	for i, f := range fs {
		if _, exists := out[f.ID]; exists {
			continue
		}
		out[f.ID] = i
	}
	return out
}

// Lookup returns the field with the given id.
func (fs FieldSet) Lookup(id string) (Field, bool) {
	for _, f := range fs {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// IDs returns field ids in declaration order.
func (fs FieldSet) IDs() []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.ID)
	}
	return out
}

// Clone returns a deep copy so callers can hand a FieldSet to a session and
// keep editing their own.
func (fs FieldSet) Clone() FieldSet {
	if fs == nil {
		return nil
	}
	out := make(FieldSet, len(fs))
	for i, f := range fs {
		out[i] = f.Clone()
	}
	return out
}

// Clone deep-copies a field.
func (f Field) Clone() Field {
	cloned := f
	if f.Options != nil {
		cloned.Options = append([]string(nil), f.Options...)
	}
	if f.Validations != nil {
		cloned.Validations = append([]ValidationRule(nil), f.Validations...)
	}
	if f.Derived != nil {
		d := *f.Derived
		d.ParentIDs = append([]string(nil), f.Derived.ParentIDs...)
		cloned.Derived = &d
	}
	cloned.DefaultValue = cloneAny(f.DefaultValue)
	return cloned
}

func cloneAny(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = cloneAny(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return typed
	}
}

// InitialValue converts the field's default into a typed value for its kind.
func (f Field) InitialValue() value.Value {
	return f.Coerce(f.DefaultValue)
}

// Coerce converts raw input (a default value, a decoded JSON scalar or text
// typed by a user) into a value for this field's kind. Input that does not fit
// the kind is kept as text so validation can report on it instead of losing
// it. Typed inputs (value.Value, time.Time) follow the same rules as the plain
// scalars they encode to.
func (f Field) Coerce(raw any) value.Value {
	raw = plainDefault(raw)
	switch f.Kind {
	case KindNumber:
		return coerceNumber(raw)
	case KindCheckbox:
		return coerceBool(raw)
	case KindDate:
		return coerceDate(raw)
	default:
		return coerceText(raw)
	}
}

// plainDefault reduces typed defaults to the scalars a decoded document
// carries: dates become YYYY-MM-DD text and {"date": ...} objects unwrap.
func plainDefault(raw any) any {
	switch typed := raw.(type) {
	case value.Value:
		return typed.Interface()
	case time.Time:
		return value.Date(typed).String()
	case map[string]any:
		if date, ok := dateObject(typed); ok {
			return date
		}
	}
	return raw
}

func dateObject(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	date, ok := m["date"].(string)
	return date, ok
}

func coerceText(raw any) value.Value {
	if raw == nil {
		return value.Text("")
	}
	v := value.FromAny(raw)
	if v.Kind() == value.KindText {
		return v
	}
	return value.Text(v.String())
}

func coerceNumber(raw any) value.Value {
	if raw == nil {
		return value.Absent()
	}
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return value.Absent()
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return value.Text(s)
		}
		return value.Number(n)
	}
	v := value.FromAny(raw)
	if v.Kind() == value.KindNumber {
		return v
	}
	return value.Text(v.String())
}

func coerceBool(raw any) value.Value {
	switch typed := raw.(type) {
	case nil:
		return value.Bool(false)
	case bool:
		return value.Bool(typed)
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return value.Bool(false)
		}
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return value.Text(typed)
		}
		return value.Bool(b)
	default:
		v := value.FromAny(raw)
		if n, ok := v.AsNumber(); ok {
			return value.Bool(n != 0)
		}
		return v
	}
}

func coerceDate(raw any) value.Value {
	if raw == nil {
		return value.Absent()
	}
	v := value.FromAny(raw)
	if v.Kind() == value.KindDate {
		return v
	}
	s := v.String()
	if strings.TrimSpace(s) == "" {
		return value.Absent()
	}
	parsed, err := value.ParseDate(s)
	if err == nil {
		return parsed
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
		return value.Date(t)
	}
	return value.Text(s)
}

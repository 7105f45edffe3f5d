// Package value defines the tagged value type stored for every field in a
// session. Conversions between kinds are explicit: the formula evaluator and
// the rule validator never coerce implicitly.
package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind enumerates the variants a Value can hold.
type Kind int

const (
	KindAbsent Kind = iota
	KindText
	KindNumber
	KindBool
	KindDate
)

// DateLayout is the calendar date format used for date values.
const DateLayout = "2006-01-02"

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged variant. The zero Value is Absent.
type Value struct {
	kind Kind
	text string
	num  float64
	b    bool
	date time.Time
}

// Absent returns the absent value (no value, or an undefined derived result).
func Absent() Value { return Value{} }

// Text wraps a string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date wraps a calendar date; the time of day and location are discarded.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string into a date value.
func ParseDate(raw string) (Value, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Value{}, fmt.Errorf("value: invalid date %q", raw)
	}
	return Date(t), nil
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v holds no value.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsText returns the string payload when v is Text.
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsNumber returns the numeric payload when v is Number.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload when v is Bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsDate returns the date payload when v is Date.
func (v Value) AsDate() (time.Time, bool) { return v.date, v.kind == KindDate }

// String renders v for display. Absent renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return FormatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return ""
	}
}

// Equal reports whether a and b hold the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindAbsent:
		return true
	case KindText:
		return v.text == other.text
	case KindNumber:
		return v.num == other.num || (math.IsNaN(v.num) && math.IsNaN(other.num))
	case KindBool:
		return v.b == other.b
	case KindDate:
		return v.date.Equal(other.date)
	default:
		return false
	}
}

// Interface converts v into a plain Go value suitable for JSON payloads:
// nil, string, float64 or bool. Dates become YYYY-MM-DD strings.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return nil
	}
}

// FormatNumber renders n without trailing zeros ("5", "2.5").
func FormatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "Infinity"
	}
	if math.IsInf(n, -1) {
		return "-Infinity"
	}
	if math.IsNaN(n) {
		return "NaN"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

type dateJSON struct {
	Date string `json:"date" yaml:"date"`
}

// MarshalJSON keeps the variant recoverable: dates are wrapped in an object so
// they do not collapse into text.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindAbsent:
		return []byte("null"), nil
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("value: cannot encode %s", FormatNumber(v.num))
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindDate:
		return json.Marshal(dateJSON{Date: v.date.Format(DateLayout)})
	default:
		return nil, errors.New("value: unknown kind")
	}
}

// UnmarshalJSON decodes the encoding produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*v = Absent()
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var d dateJSON
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("value: decode date: %w", err)
		}
		parsed, err := ParseDate(d.Date)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("value: decode: %w", err)
	}
	parsed, ok := fromScalar(raw)
	if !ok {
		return fmt.Errorf("value: unsupported JSON value %s", trimmed)
	}
	*v = parsed
	return nil
}

// MarshalYAML uses the same shapes as MarshalJSON.
func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("value: cannot encode %s", FormatNumber(v.num))
		}
		return v.num, nil
	case KindDate:
		return dateJSON{Date: v.date.Format(DateLayout)}, nil
	default:
		return v.Interface(), nil
	}
}

// UnmarshalYAML decodes the encoding produced by MarshalYAML.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		var d dateJSON
		if err := node.Decode(&d); err != nil {
			return fmt.Errorf("value: decode date: %w", err)
		}
		parsed, err := ParseDate(d.Date)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("value: unsupported YAML node at line %d", node.Line)
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("value: decode: %w", err)
	}
	parsed, ok := fromScalar(raw)
	if !ok {
		return fmt.Errorf("value: unsupported YAML value %q", node.Value)
	}
	*v = parsed
	return nil
}

func fromScalar(raw any) (Value, bool) {
	switch typed := raw.(type) {
	case nil:
		return Absent(), true
	case string:
		return Text(typed), true
	case bool:
		return Bool(typed), true
	case float64:
		return Number(typed), true
	case float32:
		return Number(float64(typed)), true
	case int:
		return Number(float64(typed)), true
	case int64:
		return Number(float64(typed)), true
	case int32:
		return Number(float64(typed)), true
	case uint:
		return Number(float64(typed)), true
	case uint64:
		return Number(float64(typed)), true
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return Value{}, false
		}
		return Number(f), true
	case time.Time:
		return Date(typed), true
	case Value:
		return typed, true
	default:
		return Value{}, false
	}
}

// FromAny converts an arbitrary scalar into a Value without regard for a
// field kind. Unsupported shapes (maps, slices) are rendered with fmt.
func FromAny(raw any) Value {
	if v, ok := fromScalar(raw); ok {
		return v
	}
	return Text(fmt.Sprint(raw))
}

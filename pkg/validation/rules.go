package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/value"
)

// Messages emitted by ValidateField. Length messages append the threshold.
const (
	MessageRequired  = "Required"
	MessageMinLength = "Min length"
	MessageMaxLength = "Max length"
	MessageEmail     = "Invalid email"
	MessagePassword  = "Password must be >=8 chars and include a number"
)

const passwordMinLength = 8

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateField checks v against the field's rules and returns the violated
// rule messages in a stable order: required, minLength, maxLength, email,
// password. Length, email and password checks only apply to text values.
// Unknown rule types are skipped.
func ValidateField(field schema.Field, v value.Value) []string {
	var out []string

	if isRequired(field) && IsEmpty(v) {
		out = append(out, MessageRequired)
	}

	text, isText := v.AsText()
	if !isText {
		return out
	}
	length := utf8.RuneCountInString(text)

	for _, rule := range rulesOf(field, schema.RuleMinLength) {
		if length < rule.Value {
			out = append(out, fmt.Sprintf("%s %d", MessageMinLength, rule.Value))
		}
	}
	for _, rule := range rulesOf(field, schema.RuleMaxLength) {
		if length > rule.Value {
			out = append(out, fmt.Sprintf("%s %d", MessageMaxLength, rule.Value))
		}
	}
	for range rulesOf(field, schema.RuleEmail) {
		if !emailPattern.MatchString(text) {
			out = append(out, MessageEmail)
		}
	}
	for range rulesOf(field, schema.RulePassword) {
		if !validPassword(text) {
			out = append(out, MessagePassword)
		}
	}
	return out
}

// IsEmpty reports whether v counts as missing for the required check: absent,
// or text that is blank after trimming. false is a value, not an empty one.
func IsEmpty(v value.Value) bool {
	if v.IsAbsent() {
		return true
	}
	if text, ok := v.AsText(); ok {
		return strings.TrimSpace(text) == ""
	}
	return false
}

func isRequired(field schema.Field) bool {
	return field.Required || len(rulesOf(field, schema.RuleRequired)) > 0
}

func rulesOf(field schema.Field, kind schema.RuleType) []schema.ValidationRule {
	var out []schema.ValidationRule
	for _, rule := range field.Validations {
		if rule.Type == kind {
			out = append(out, rule)
		}
	}
	return out
}

func validPassword(text string) bool {
	if utf8.RuneCountInString(text) < passwordMinLength {
		return false
	}
	return strings.IndexFunc(text, isASCIIDigit) >= 0
}

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

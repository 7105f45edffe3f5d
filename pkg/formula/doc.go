// Package formula evaluates the expressions that compute derived field
// values. Formulas are single expressions over the current field values; the
// package never generates or runs host code.
//
// Grammar, loosest binding first:
//
//	cond ? a : b
//	a || b          a && b            (truthiness: absent, blank text, 0 and false are false)
//	a == b          a != b            (=== and !== are accepted as aliases)
//	a < b  a <= b  a > b  a >= b      (numbers, text or dates of the same kind)
//	a + b  a - b                      (numbers; text + text concatenates; date ± days)
//	a * b  a / b  a % b
//	!a  -a
//	fn(args...)  fields['id']  fields.id  identifier  literal
//
// Identifiers name fields directly when the field id is a valid identifier;
// f_<id> is accepted as an alias. Any id can be reached through the fields
// mapping. Literals are numbers, 'text' or "text", true, false and null.
//
// There are no implicit conversions between kinds: number("2") + 3 is 5,
// "2" + 3 is a type error. Every failure (syntax, unknown field, type error,
// division by zero, size limits) is returned as an *EvaluationError that
// matches ErrEvaluation through errors.Is.
package formula

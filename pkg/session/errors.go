package session

import "errors"

var (
	// ErrUnknownField is returned when a command names a field that is not in
	// the session's field set.
	ErrUnknownField = errors.New("session: unknown field")
	// ErrDerivedField is returned when a caller tries to set a computed field.
	ErrDerivedField = errors.New("session: field is derived")
	// ErrInvalidFieldSet is returned by New when field ids are empty or
	// duplicated.
	ErrInvalidFieldSet = errors.New("session: invalid field set")
)

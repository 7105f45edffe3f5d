package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("prompt: aborted")
	// ErrIncomplete is returned by Fill when the user stops revising a form
	// that still has violations.
	ErrIncomplete = errors.New("prompt: form has violations")
)

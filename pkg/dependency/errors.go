package dependency

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycle         = errors.New("cyclic derivation")
	ErrUnknownParent = errors.New("unknown parent")
)

// GraphError describes one structural problem in a field set's derivation
// graph. Kind is ErrCycle or ErrUnknownParent.
type GraphError struct {
	Kind   error
	Fields []string
	Msg    string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return "dependency: " + e.Kind.Error()
	}
	return fmt.Sprintf("dependency: %s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func cycleError(members []string) error {
	path := append(append([]string(nil), members...), members[0])
	return &GraphError{
		Kind:   ErrCycle,
		Fields: append([]string(nil), members...),
		Msg:    strings.Join(path, " -> "),
	}
}

func unknownParentError(field string, parents []string) error {
	return &GraphError{
		Kind:   ErrUnknownParent,
		Fields: []string{field},
		Msg:    fmt.Sprintf("%s references %s", field, strings.Join(parents, ", ")),
	}
}

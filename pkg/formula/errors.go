package formula

import (
	"errors"
	"fmt"
)

var (
	// ErrEvaluation matches every failure returned by this package.
	ErrEvaluation = errors.New("formula evaluation failed")

	ErrSyntax         = errors.New("syntax error")
	ErrUnknownField   = errors.New("unknown field")
	ErrType           = errors.New("type error")
	ErrDivisionByZero = errors.New("division by zero")
	ErrLimit          = errors.New("limit exceeded")
)

// EvaluationError describes why a formula could not produce a value. Kind is
// one of the Err* sentinels above.
type EvaluationError struct {
	Kind    error
	Formula string
	Msg     string
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return "formula: " + e.Kind.Error()
	}
	return fmt.Sprintf("formula: %s: %s", e.Kind.Error(), e.Msg)
}

func (e *EvaluationError) Unwrap() error { return e.Kind }

// Is lets callers test any failure against ErrEvaluation.
func (e *EvaluationError) Is(target error) bool {
	return target == ErrEvaluation
}

func syntaxf(format string, args ...any) error {
	return &EvaluationError{Kind: ErrSyntax, Msg: fmt.Sprintf(format, args...)}
}

func typef(format string, args ...any) error {
	return &EvaluationError{Kind: ErrType, Msg: fmt.Sprintf(format, args...)}
}

func unknownField(id string) error {
	return &EvaluationError{Kind: ErrUnknownField, Msg: fmt.Sprintf("%q", id)}
}

func limitf(format string, args ...any) error {
	return &EvaluationError{Kind: ErrLimit, Msg: fmt.Sprintf(format, args...)}
}

func withFormula(err error, formula string) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Formula == "" {
			clone := *evalErr
			clone.Formula = formula
			return &clone
		}
		return evalErr
	}
	return &EvaluationError{Kind: ErrType, Formula: formula, Msg: err.Error()}
}

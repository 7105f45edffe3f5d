package session

import (
	"log/slog"

	"github.com/goliatone/go-formcalc/pkg/formula"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for evaluation diagnostics. Passing nil
// keeps the default, which discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEvaluator overrides the formula evaluator, e.g. to tighten limits.
func WithEvaluator(evaluator *formula.Evaluator) Option {
	return func(s *Session) {
		if evaluator != nil {
			s.evaluator = evaluator
		}
	}
}

// WithID sets the session identifier instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithObserver registers fn before the initial pass so it also receives the
// first settled snapshot.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, observer{id: s.nextObserver(), fn: fn})
		}
	}
}

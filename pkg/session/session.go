// Package session holds the live values of one field set. Every edit runs a
// single synchronous pass: resolve the derivation graph, evaluate derived
// fields parents-first, validate every field, publish a settled snapshot.
package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-formcalc/pkg/dependency"
	"github.com/goliatone/go-formcalc/pkg/formula"
	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/validation"
	"github.com/goliatone/go-formcalc/pkg/value"
)

type observer struct {
	id int
	fn func(Snapshot)
}

// Session owns the values of one field set across a sequence of edits. It is
// safe for concurrent use; passes are serialised.
type Session struct {
	id        string
	fields    schema.FieldSet
	index     map[string]int
	graph     *dependency.Graph
	evaluator *formula.Evaluator
	logger    *slog.Logger

	mu        sync.Mutex
	base      map[string]value.Value
	current   Snapshot
	observers []observer
	observerN int
}

// New copies fields, seeds values from their defaults and runs the first pass
// so the session is settled before it is returned. Empty or duplicate field
// ids are rejected; derivation problems are reported per field instead.
func New(fields schema.FieldSet, opts ...Option) (*Session, error) {
	s := &Session{
		id:        uuid.NewString(),
		fields:    fields.Clone(),
		evaluator: formula.New(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}

	s.index = make(map[string]int, len(s.fields))
	for i, f := range s.fields {
		if f.ID == "" {
			return nil, fmt.Errorf("%w: field %d has no id", ErrInvalidFieldSet, i)
		}
		if prev, dup := s.index[f.ID]; dup {
			return nil, fmt.Errorf("%w: id %q declared at %d and %d", ErrInvalidFieldSet, f.ID, prev, i)
		}
		s.index[f.ID] = i
	}

	s.logger = s.logger.With(slog.String("session", s.id))
	s.graph = dependency.Resolve(s.fields)
	if err := s.graph.Err(); err != nil {
		s.logger.Debug("derivation graph has structural problems", slog.Any("error", err))
	}

	s.base = make(map[string]value.Value, len(s.fields))
	for _, f := range s.fields {
		s.base[f.ID] = f.InitialValue()
	}

	s.mu.Lock()
	snap, notify := s.settle()
	s.mu.Unlock()
	s.publish(snap, notify)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Fields returns a copy of the session's field set.
func (s *Session) Fields() schema.FieldSet { return s.fields.Clone() }

// Graph returns the resolved derivation graph.
func (s *Session) Graph() *dependency.Graph { return s.graph }

// SetValue replaces the value of a non-derived field and runs one pass.
// Unknown ids fail with ErrUnknownField and derived ids with ErrDerivedField;
// in both cases the session is left untouched.
func (s *Session) SetValue(id string, v value.Value) (Snapshot, error) {
	pos, ok := s.index[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	if s.fields[pos].IsDerived() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrDerivedField, id)
	}

	s.mu.Lock()
	s.base[id] = v
	snap, notify := s.settle()
	s.mu.Unlock()

	s.publish(snap, notify)
	return snap.Clone(), nil
}

// SetInput converts raw input for the field's kind (see schema.Field.Coerce)
// and applies it with SetValue.
func (s *Session) SetInput(id string, raw any) (Snapshot, error) {
	pos, ok := s.index[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	return s.SetValue(id, s.fields[pos].Coerce(raw))
}

// Snapshot returns a copy of the settled state without recomputing.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Recompute runs a pass over the current base values. SetValue already does
// this; callers only need it after changing evaluator state externally.
func (s *Session) Recompute() Snapshot {
	s.mu.Lock()
	snap, notify := s.settle()
	s.mu.Unlock()
	s.publish(snap, notify)
	return snap.Clone()
}

// Values returns the settled values as plain Go values keyed by field id.
func (s *Session) Values() map[string]any {
	return s.Snapshot().Values()
}

// Valid reports whether the settled state has no violations or failures.
func (s *Session) Valid() bool {
	return s.Snapshot().Valid()
}

// Subscribe registers fn to receive a copy of every settled snapshot, in
// registration order, on the goroutine that triggered the pass. The returned
// func removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextObserver()
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) nextObserver() int {
	s.observerN++
	return s.observerN
}

func (s *Session) publish(snap Snapshot, observers []observer) {
	for _, o := range observers {
		o.fn(snap.Clone())
	}
}

// settle runs one pass and stores the result. The caller holds s.mu.
func (s *Session) settle() (Snapshot, []observer) {
	fields := s.pass()

	revision := s.current.Revision
	if s.current.Fields == nil || !sameFields(s.current.Fields, fields) {
		revision++
	}
	s.current = Snapshot{
		Session:  s.id,
		Revision: revision,
		Order:    s.fields.IDs(),
		Fields:   fields,
	}
	return s.current.Clone(), append([]observer(nil), s.observers...)
}

func (s *Session) pass() map[string]FieldState {
	states := make(map[string]FieldState, len(s.fields))
	working := make(map[string]value.Value, len(s.fields))
	for id, v := range s.base {
		working[id] = v
	}

	for _, f := range s.fields {
		if !f.IsDerived() {
			continue
		}
		state := FieldState{Value: s.base[f.ID], Derived: true}
		switch {
		case s.graph.IsCyclic(f.ID):
			state.Failed = true
			state.Cyclic = true
			state.Diagnostic = s.cycleDiagnostic(f.ID)
		case len(s.graph.UnknownParents(f.ID)) > 0:
			state.Value = value.Absent()
			state.Failed = true
			state.Diagnostic = "unknown parent ids: " + strings.Join(s.graph.UnknownParents(f.ID), ", ")
		}
		states[f.ID] = state
		working[f.ID] = state.Value
	}

	for _, id := range s.graph.Order() {
		f := s.fields[s.index[id]]
		state := states[id]

		result, err := s.evaluator.Evaluate(f.Derived.Formula, s.scope(id, working))
		if err != nil {
			s.logger.Debug("formula evaluation failed",
				slog.String("field", id),
				slog.String("formula", f.Derived.Formula),
				slog.Any("error", err),
			)
			result = value.Absent()
			state.Failed = true
			state.Diagnostic = err.Error()
		}
		state.Value = result
		working[id] = result
		states[id] = state
	}

	for _, f := range s.fields {
		state, ok := states[f.ID]
		if !ok {
			state = FieldState{Value: working[f.ID]}
		}
		state.Violations = validation.ValidateField(f, state.Value)
		if state.Violations == nil {
			state.Violations = []string{}
		}
		states[f.ID] = state
	}
	return states
}

// scope exposes every non-derived field plus the declared parents of id.
func (s *Session) scope(id string, working map[string]value.Value) map[string]value.Value {
	parents := s.graph.Parents(id)
	out := make(map[string]value.Value, len(s.fields))
	for _, f := range s.fields {
		if !f.IsDerived() {
			out[f.ID] = working[f.ID]
		}
	}
	for _, parent := range parents {
		out[parent] = working[parent]
	}
	return out
}

func (s *Session) cycleDiagnostic(id string) string {
	for _, cycle := range s.graph.Cycles() {
		for _, member := range cycle {
			if member == id {
				return "cyclic derivation: " + strings.Join(append(cycle, cycle[0]), " -> ")
			}
		}
	}
	return "cyclic derivation"
}

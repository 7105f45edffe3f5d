// Package prompt walks a session's editable fields on a terminal. Every answer
// is applied to the session straight away so derived values and violations
// can be shown before the next question.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/session"
	"github.com/goliatone/go-formcalc/pkg/value"
)

// Filler drives a session through a Driver.
type Filler struct {
	driver Driver
	logger *slog.Logger
	retry  bool
}

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the prompt driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRevise controls whether Fill offers another round when the settled form
// still has violations. Enabled by default.
func WithRevise(enabled bool) Option {
	return func(f *Filler) { f.retry = enabled }
}

// New returns a Filler that uses the survey driver unless overridden.
func New(opts ...Option) *Filler {
	f := &Filler{logger: slog.New(slog.DiscardHandler), retry: true}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver()
	}
	return f
}

// Fill prompts for every non-derived field in order and returns the settled
// snapshot. When violations remain the user may go round again; declining
// returns the snapshot together with ErrIncomplete.
func (f *Filler) Fill(ctx context.Context, sess *session.Session) (session.Snapshot, error) {
	fields := sess.Fields()
	for round := 1; ; round++ {
		f.logger.Debug("fill round", slog.Int("round", round))
		for _, field := range fields {
			if field.IsDerived() {
				continue
			}
			if err := f.ask(ctx, sess, field); err != nil {
				return sess.Snapshot(), err
			}
		}

		snap := sess.Snapshot()
		if snap.Valid() {
			return snap, nil
		}
		if !f.retry {
			return snap, ErrIncomplete
		}
		again, err := f.driver.Confirm(ctx, ConfirmConfig{
			Message: "The form has errors. Revise?",
			Default: true,
		})
		if err != nil {
			return snap, err
		}
		if !again {
			return snap, ErrIncomplete
		}
	}
}

func (f *Filler) ask(ctx context.Context, sess *session.Session, field schema.Field) error {
	current := sess.Snapshot().Value(field.ID)
	message := label(field)

	var raw any
	switch field.Kind {
	case schema.KindCheckbox:
		def, _ := current.AsBool()
		answer, err := f.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: def})
		if err != nil {
			return err
		}
		raw = answer
	case schema.KindSelect, schema.KindRadio:
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      field.Options,
			DefaultIndex: indexOf(field.Options, current.String()),
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(field.Options) {
			raw = ""
		} else {
			raw = field.Options[idx]
		}
	case schema.KindTextarea:
		answer, err := f.driver.TextArea(ctx, TextAreaConfig{Message: message, Default: current.String()})
		if err != nil {
			return err
		}
		raw = answer
	default:
		cfg := InputConfig{Message: message, Default: current.String(), Validator: kindValidator(field)}
		var (
			answer string
			err    error
		)
		if hasRule(field, schema.RulePassword) {
			answer, err = f.driver.Password(ctx, cfg)
		} else {
			answer, err = f.driver.Input(ctx, cfg)
		}
		if err != nil {
			return err
		}
		raw = answer
	}

	snap, err := sess.SetInput(field.ID, raw)
	if err != nil {
		return fmt.Errorf("prompt: apply %q: %w", field.ID, err)
	}
	return f.report(ctx, sess.Fields(), field.ID, snap)
}

// report prints the answered field's violations and every derived value.
func (f *Filler) report(ctx context.Context, fields schema.FieldSet, answered string, snap session.Snapshot) error {
	for _, msg := range snap.Violations(answered) {
		if err := f.driver.Info(ctx, "  ! "+msg); err != nil {
			return err
		}
	}
	for _, field := range fields {
		if !field.IsDerived() {
			continue
		}
		state := snap.Fields[field.ID]
		line := fmt.Sprintf("  = %s: %s", label(field), display(state.Value))
		if state.Failed && state.Diagnostic != "" {
			line += " (" + state.Diagnostic + ")"
		}
		if err := f.driver.Info(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// kindValidator rejects text a number or date field could not hold. Rule
// violations are not checked here; they are reported after the answer lands.
func kindValidator(field schema.Field) func(string) error {
	switch field.Kind {
	case schema.KindNumber:
		return func(s string) error {
			if field.Coerce(s).Kind() == value.KindText {
				return fmt.Errorf("%q is not a number", s)
			}
			return nil
		}
	case schema.KindDate:
		return func(s string) error {
			if field.Coerce(s).Kind() == value.KindText {
				return fmt.Errorf("%q is not a date (%s)", s, value.DateLayout)
			}
			return nil
		}
	default:
		return nil
	}
}

func hasRule(field schema.Field, rule schema.RuleType) bool {
	for _, r := range field.Validations {
		if r.Type == rule {
			return true
		}
	}
	return false
}

func label(field schema.Field) string {
	text := strings.TrimSpace(field.Label)
	if text == "" {
		text = field.ID
	}
	if field.Required {
		text += " *"
	}
	return text
}

func display(v value.Value) string {
	if v.IsAbsent() {
		return "(empty)"
	}
	return v.String()
}

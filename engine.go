package formcalc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-formcalc/internal/loader"
	"github.com/goliatone/go-formcalc/internal/openapi/importer"
	"github.com/goliatone/go-formcalc/pkg/catalog"
	"github.com/goliatone/go-formcalc/pkg/formula"
	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/session"
	"github.com/goliatone/go-formcalc/pkg/validation"
)

// ErrNoCatalog is returned when a request names a catalog form but the engine
// has no catalog configured.
var ErrNoCatalog = errors.New("formcalc: no catalog configured")

// Option configures an Engine.
type Option func(*Engine)

// WithLoader overrides the loader used for Source requests.
func WithLoader(l *loader.Loader) Option {
	return func(e *Engine) {
		if l != nil {
			e.loader = l
		}
	}
}

// WithImporter overrides the OpenAPI importer.
func WithImporter(i *importer.Importer) Option {
	return func(e *Engine) {
		if i != nil {
			e.importer = i
		}
	}
}

// WithCatalog lets requests name stored forms by id.
func WithCatalog(store catalog.Store) Option {
	return func(e *Engine) { e.catalog = store }
}

// WithEvaluator shares one evaluator, and its expression cache, across every
// session the engine starts.
func WithEvaluator(ev *formula.Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithLogger sets the logger handed to sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStrict makes Start reject field sets with structural issues instead of
// flagging the affected fields at runtime.
func WithStrict(enabled bool) Option {
	return func(e *Engine) { e.strict = enabled }
}

// Engine resolves a form from wherever it lives and starts sessions over it.
type Engine struct {
	loader    *loader.Loader
	importer  *importer.Importer
	catalog   catalog.Store
	evaluator *formula.Evaluator
	logger    *slog.Logger
	strict    bool
}

// NewEngine constructs an Engine with default loader, importer and evaluator.
func NewEngine(options ...Option) *Engine {
	e := &Engine{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	if e.loader == nil {
		e.loader = loader.New()
	}
	if e.importer == nil {
		e.importer = importer.New()
	}
	if e.evaluator == nil {
		e.evaluator = formula.New()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Request names one form. Exactly one of Fields, Source, FormID or OpenAPI
// must be set.
type Request struct {
	// Fields is used as is.
	Fields schema.FieldSet
	// Source is read with the engine's loader.
	Source schema.Source
	// FormID is looked up in the catalog.
	FormID string
	// OpenAPI is a raw OpenAPI document; OperationID picks the operation.
	OpenAPI     []byte
	OperationID string
}

// Resolve returns the form a request names.
func (e *Engine) Resolve(ctx context.Context, req Request) (schema.Form, error) {
	set := 0
	for _, ok := range []bool{req.Fields != nil, req.Source != nil, req.FormID != "", len(req.OpenAPI) > 0} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return schema.Form{}, fmt.Errorf("formcalc: request must name exactly one form source, got %d", set)
	}

	switch {
	case req.Fields != nil:
		return schema.Form{Fields: req.Fields.Clone()}, nil
	case req.Source != nil:
		return e.loader.LoadForm(ctx, req.Source)
	case req.FormID != "":
		if e.catalog == nil {
			return schema.Form{}, ErrNoCatalog
		}
		return e.catalog.Get(ctx, req.FormID)
	default:
		if strings.TrimSpace(req.OperationID) == "" {
			return schema.Form{}, errors.New("formcalc: operation id is required for OpenAPI requests")
		}
		return e.importer.Form(ctx, req.OpenAPI, req.OperationID)
	}
}

// Start resolves the request and opens a session over the form's fields.
func (e *Engine) Start(ctx context.Context, req Request, opts ...session.Option) (*session.Session, error) {
	form, err := e.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.Open(form, opts...)
}

// Open starts a session over an already resolved form.
func (e *Engine) Open(form schema.Form, opts ...session.Option) (*session.Session, error) {
	if e.strict {
		if err := validation.ValidateFieldSet(form.Fields).Err(); err != nil {
			return nil, err
		}
	}

	logger := e.logger
	if form.ID != "" {
		logger = logger.With(slog.String("form", form.ID))
	}
	base := []session.Option{session.WithEvaluator(e.evaluator), session.WithLogger(logger)}
	return session.New(form.Fields, append(base, opts...)...)
}

// Save stores a form in the catalog.
func (e *Engine) Save(ctx context.Context, form schema.Form) (schema.Form, error) {
	if e.catalog == nil {
		return schema.Form{}, ErrNoCatalog
	}
	return e.catalog.Add(ctx, form)
}

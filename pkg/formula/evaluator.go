package formula

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formcalc/pkg/value"
)

const (
	defaultMaxLength = 4096
	defaultMaxDepth  = 64
	defaultCacheSize = 256
)

// Expression is a compiled formula. It is immutable and safe to evaluate from
// several goroutines.
type Expression struct {
	source string
	root   node
}

// Source returns the formula text the expression was compiled from.
func (x *Expression) Source() string { return x.source }

// Eval runs the expression against values. An empty formula yields empty
// text. Failures are returned as *EvaluationError, never as panics.
func (x *Expression) Eval(values map[string]value.Value) (result value.Value, err error) {
	if x == nil || x.root == nil {
		return value.Text(""), nil
	}
	defer func() {
		if r := recover(); r != nil {
			result = value.Value{}
			err = &EvaluationError{Kind: ErrType, Formula: x.source, Msg: fmt.Sprint(r)}
		}
	}()

	out, err := x.root.eval(&scope{values: values})
	if err != nil {
		return value.Value{}, withFormula(err, x.source)
	}
	return out, nil
}

// References lists the field ids the formula names statically: bare
// identifiers, fields.id and fields['id'] with literal keys. Computed keys
// such as fields[a + b] are not included. The result is sorted.
func (x *Expression) References() []string {
	if x == nil || x.root == nil {
		return nil
	}
	seen := make(map[string]struct{})
	collectRefs(x.root, seen)
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func collectRefs(n node, seen map[string]struct{}) {
	switch typed := n.(type) {
	case identNode:
		seen[typed.name] = struct{}{}
	case fieldNode:
		if typed.static != "" {
			seen[typed.static] = struct{}{}
			return
		}
		collectRefs(typed.key, seen)
	case unaryNode:
		collectRefs(typed.inner, seen)
	case binaryNode:
		collectRefs(typed.left, seen)
		collectRefs(typed.right, seen)
	case andNode:
		collectRefs(typed.left, seen)
		collectRefs(typed.right, seen)
	case orNode:
		collectRefs(typed.left, seen)
		collectRefs(typed.right, seen)
	case conditionalNode:
		collectRefs(typed.cond, seen)
		collectRefs(typed.then, seen)
		collectRefs(typed.otherwise, seen)
	case callNode:
		for _, arg := range typed.args {
			collectRefs(arg, seen)
		}
	}
}

// Evaluator compiles and evaluates formulas, caching compiled expressions by
// source text. The cache only holds immutable ASTs so results depend on the
// formula and the supplied values alone.
type Evaluator struct {
	maxLength int
	maxDepth  int
	cacheSize int

	mu    sync.Mutex
	cache map[string]*Expression
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxLength bounds the formula length in bytes.
func WithMaxLength(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxLength = n
		}
	}
}

// WithMaxDepth bounds expression nesting.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithCacheSize sets how many compiled formulas are kept. Zero disables the
// cache.
func WithCacheSize(n int) Option {
	return func(e *Evaluator) {
		if n >= 0 {
			e.cacheSize = n
		}
	}
}

// New constructs an Evaluator with the default limits.
func New(options ...Option) *Evaluator {
	e := &Evaluator{
		maxLength: defaultMaxLength,
		maxDepth:  defaultMaxDepth,
		cacheSize: defaultCacheSize,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	e.cache = make(map[string]*Expression)
	return e
}

var defaultEvaluator = New()

// Evaluate runs formula against values using a shared default Evaluator.
func Evaluate(formula string, values map[string]value.Value) (value.Value, error) {
	return defaultEvaluator.Evaluate(formula, values)
}

// Compile parses formula with the default Evaluator's limits.
func Compile(formula string) (*Expression, error) {
	return defaultEvaluator.Compile(formula)
}

// Evaluate compiles (or reuses) formula and evaluates it against values.
func (e *Evaluator) Evaluate(formula string, values map[string]value.Value) (value.Value, error) {
	expr, err := e.Compile(formula)
	if err != nil {
		return value.Value{}, err
	}
	return expr.Eval(values)
}

// Compile parses formula into an Expression. Whitespace-only formulas compile
// to an expression that yields empty text.
func (e *Evaluator) Compile(formula string) (*Expression, error) {
	trimmed := strings.TrimSpace(formula)
	if trimmed == "" {
		return &Expression{source: formula}, nil
	}
	if len(formula) > e.maxLength {
		return nil, withFormula(limitf("formula is longer than %d bytes", e.maxLength), formula)
	}

	if expr, ok := e.cached(formula); ok {
		return expr, nil
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, withFormula(err, formula)
	}
	root, err := parse(tokens, e.maxDepth)
	if err != nil {
		return nil, withFormula(err, formula)
	}

	expr := &Expression{source: formula, root: root}
	e.store(formula, expr)
	return expr, nil
}

func (e *Evaluator) cached(formula string) (*Expression, bool) {
	if e.cacheSize == 0 {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	expr, ok := e.cache[formula]
	return expr, ok
}

func (e *Evaluator) store(formula string, expr *Expression) {
	if e.cacheSize == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cache) >= e.cacheSize {
		clear(e.cache)
	}
	e.cache[formula] = expr
}

package formula

import (
	"math"
	"strings"

	"github.com/goliatone/go-formcalc/pkg/value"
)

type scope struct {
	values map[string]value.Value
}

func (sc *scope) lookup(id string) (value.Value, bool) {
	v, ok := sc.values[id]
	return v, ok
}

type literalNode struct {
	value value.Value
}

func (n literalNode) eval(*scope) (value.Value, error) { return n.value, nil }

type identNode struct {
	name string
}

// Bare identifiers resolve to the field with that id; the f_<id> alias is
// accepted for definitions written against the prefixed parameter names.
func (n identNode) eval(sc *scope) (value.Value, error) {
	if v, ok := sc.lookup(n.name); ok {
		return v, nil
	}
	if alias, ok := strings.CutPrefix(n.name, "f_"); ok && alias != "" {
		if v, ok := sc.lookup(alias); ok {
			return v, nil
		}
	}
	return value.Value{}, unknownField(n.name)
}

type fieldNode struct {
	key    node
	static string
}

func (n fieldNode) eval(sc *scope) (value.Value, error) {
	key, err := n.key.eval(sc)
	if err != nil {
		return value.Value{}, err
	}
	var id string
	switch key.Kind() {
	case value.KindText, value.KindNumber:
		id = key.String()
	default:
		return value.Value{}, typef("field key must be text, got %s", key.Kind())
	}
	v, ok := sc.lookup(id)
	if !ok {
		return value.Value{}, unknownField(id)
	}
	return v, nil
}

type unaryNode struct {
	op    tokenKind
	inner node
}

func (n unaryNode) eval(sc *scope) (value.Value, error) {
	v, err := n.inner.eval(sc)
	if err != nil {
		return value.Value{}, err
	}
	switch n.op {
	case tokenNot:
		return value.Bool(!truthy(v)), nil
	case tokenMinus:
		num, ok := v.AsNumber()
		if !ok {
			return value.Value{}, typef("cannot negate %s", v.Kind())
		}
		return value.Number(-num), nil
	default:
		num, ok := v.AsNumber()
		if !ok {
			return value.Value{}, typef("unary '+' expects a number, got %s", v.Kind())
		}
		return value.Number(num), nil
	}
}

type andNode struct {
	left, right node
}

func (n andNode) eval(sc *scope) (value.Value, error) {
	left, err := n.left.eval(sc)
	if err != nil {
		return value.Value{}, err
	}
	if !truthy(left) {
		return value.Bool(false), nil
	}
	right, err := n.right.eval(sc)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(truthy(right)), nil
}

type orNode struct {
	left, right node
}

func (n orNode) eval(sc *scope) (value.Value, error) {
	left, err := n.left.eval(sc)
	if err != nil {
		return value.Value{}, err
	}
	if truthy(left) {
		return value.Bool(true), nil
	}
	right, err := n.right.eval(sc)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(truthy(right)), nil
}

type conditionalNode struct {
	cond, then, otherwise node
}

func (n conditionalNode) eval(sc *scope) (value.Value, error) {
	cond, err := n.cond.eval(sc)
	if err != nil {
		return value.Value{}, err
	}
	if truthy(cond) {
		return n.then.eval(sc)
	}
	return n.otherwise.eval(sc)
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

func (n binaryNode) eval(sc *scope) (value.Value, error) {
	left, err := n.left.eval(sc)
	if err != nil {
		return value.Value{}, err
	}
	right, err := n.right.eval(sc)
	if err != nil {
		return value.Value{}, err
	}

	switch n.op {
	case tokenEq:
		return value.Bool(left.Equal(right)), nil
	case tokenNeq:
		return value.Bool(!left.Equal(right)), nil
	case tokenLt, tokenLte, tokenGt, tokenGte:
		return compare(n.op, left, right)
	case tokenPlus:
		return add(left, right)
	case tokenMinus:
		return subtract(left, right)
	default:
		return arithmetic(n.op, left, right)
	}
}

type callNode struct {
	name string
	fn   builtin
	args []node
}

func (n callNode) eval(sc *scope) (value.Value, error) {
	args := make([]value.Value, 0, len(n.args))
	for _, arg := range n.args {
		v, err := arg.eval(sc)
		if err != nil {
			return value.Value{}, err
		}
		args = append(args, v)
	}
	return n.fn.call(n.name, args)
}

const day = 24 * 60 * 60

func add(left, right value.Value) (value.Value, error) {
	switch {
	case left.Kind() == value.KindNumber && right.Kind() == value.KindNumber:
		a, _ := left.AsNumber()
		b, _ := right.AsNumber()
		return finite(a + b)
	case left.Kind() == value.KindText && right.Kind() == value.KindText:
		a, _ := left.AsText()
		b, _ := right.AsText()
		return value.Text(a + b), nil
	case left.Kind() == value.KindDate && right.Kind() == value.KindNumber:
		d, _ := left.AsDate()
		days, _ := right.AsNumber()
		return addDays(d.Unix(), days)
	case left.Kind() == value.KindNumber && right.Kind() == value.KindDate:
		d, _ := right.AsDate()
		days, _ := left.AsNumber()
		return addDays(d.Unix(), days)
	default:
		return value.Value{}, typef("cannot add %s and %s", left.Kind(), right.Kind())
	}
}

func subtract(left, right value.Value) (value.Value, error) {
	switch {
	case left.Kind() == value.KindNumber && right.Kind() == value.KindNumber:
		a, _ := left.AsNumber()
		b, _ := right.AsNumber()
		return finite(a - b)
	case left.Kind() == value.KindDate && right.Kind() == value.KindDate:
		a, _ := left.AsDate()
		b, _ := right.AsDate()
		return value.Number(float64(a.Unix()-b.Unix()) / day), nil
	case left.Kind() == value.KindDate && right.Kind() == value.KindNumber:
		d, _ := left.AsDate()
		days, _ := right.AsNumber()
		return addDays(d.Unix(), -days)
	default:
		return value.Value{}, typef("cannot subtract %s from %s", right.Kind(), left.Kind())
	}
}

// maxDateOffset bounds day arithmetic well inside the range of time.Time.
const maxDateOffset = 1e8

func addDays(unix int64, days float64) (value.Value, error) {
	if days != math.Trunc(days) || math.IsNaN(days) || math.IsInf(days, 0) {
		return value.Value{}, typef("date offset must be a whole number of days")
	}
	if math.Abs(days) > maxDateOffset {
		return value.Value{}, typef("date offset %s is out of range", value.FormatNumber(days))
	}
	return value.Date(unixDate(unix + int64(days)*day)), nil
}

func arithmetic(op tokenKind, left, right value.Value) (value.Value, error) {
	a, okA := left.AsNumber()
	b, okB := right.AsNumber()
	if !okA || !okB {
		return value.Value{}, typef("arithmetic needs numbers, got %s and %s", left.Kind(), right.Kind())
	}
	switch op {
	case tokenStar:
		return finite(a * b)
	case tokenSlash:
		if b == 0 {
			return value.Value{}, &EvaluationError{Kind: ErrDivisionByZero}
		}
		return finite(a / b)
	default:
		if b == 0 {
			return value.Value{}, &EvaluationError{Kind: ErrDivisionByZero, Msg: "modulo"}
		}
		return finite(math.Mod(a, b))
	}
}

func compare(op tokenKind, left, right value.Value) (value.Value, error) {
	if left.Kind() != right.Kind() {
		return value.Value{}, typef("cannot compare %s with %s", left.Kind(), right.Kind())
	}
	var cmp int
	switch left.Kind() {
	case value.KindNumber:
		a, _ := left.AsNumber()
		b, _ := right.AsNumber()
		cmp = compareOrdered(a, b)
	case value.KindText:
		a, _ := left.AsText()
		b, _ := right.AsText()
		cmp = strings.Compare(a, b)
	case value.KindDate:
		a, _ := left.AsDate()
		b, _ := right.AsDate()
		cmp = a.Compare(b)
	default:
		return value.Value{}, typef("%s values are not ordered", left.Kind())
	}

	switch op {
	case tokenLt:
		return value.Bool(cmp < 0), nil
	case tokenLte:
		return value.Bool(cmp <= 0), nil
	case tokenGt:
		return value.Bool(cmp > 0), nil
	default:
		return value.Bool(cmp >= 0), nil
	}
}

func compareOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func finite(n float64) (value.Value, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return value.Value{}, typef("result is not a finite number")
	}
	return value.Number(n), nil
}

func truthy(v value.Value) bool {
	switch v.Kind() {
	case value.KindText:
		s, _ := v.AsText()
		return strings.TrimSpace(s) != ""
	case value.KindNumber:
		n, _ := v.AsNumber()
		return n != 0 && !math.IsNaN(n)
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindDate:
		return true
	default:
		return false
	}
}

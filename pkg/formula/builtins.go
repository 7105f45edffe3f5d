package formula

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-formcalc/pkg/value"
)

type builtin struct {
	minArgs int
	maxArgs int // -1 for variadic
	call    func(name string, args []value.Value) (value.Value, error)
}

// builtins are pure conversions and string helpers; none of them reach
// outside their arguments.
var builtins = map[string]builtin{
	"number": {minArgs: 1, maxArgs: 1, call: toNumber},
	"text":   {minArgs: 1, maxArgs: 1, call: toText},
	"date":   {minArgs: 1, maxArgs: 1, call: toDate},
	"len":    {minArgs: 1, maxArgs: 1, call: length},
	"upper":  {minArgs: 1, maxArgs: 1, call: textFunc(strings.ToUpper)},
	"lower":  {minArgs: 1, maxArgs: 1, call: textFunc(strings.ToLower)},
	"trim":   {minArgs: 1, maxArgs: 1, call: textFunc(strings.TrimSpace)},
	"round":  {minArgs: 1, maxArgs: 2, call: round},
	"concat": {minArgs: 0, maxArgs: -1, call: concat},
	"empty":  {minArgs: 1, maxArgs: 1, call: empty},
}

// Functions lists the builtin names available inside formulas, sorted.
func Functions() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toNumber(name string, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNumber:
		return v, nil
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return value.Number(1), nil
		}
		return value.Number(0), nil
	case value.KindText:
		s, _ := v.AsText()
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return value.Value{}, typef("%s: %q is not a number", name, s)
		}
		return finite(n)
	default:
		return value.Value{}, typef("%s: cannot convert %s", name, v.Kind())
	}
}

func toText(_ string, args []value.Value) (value.Value, error) {
	return value.Text(args[0].String()), nil
}

func toDate(name string, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindDate:
		return v, nil
	case value.KindText:
		s, _ := v.AsText()
		parsed, err := value.ParseDate(s)
		if err != nil {
			return value.Value{}, typef("%s: %q is not a YYYY-MM-DD date", name, s)
		}
		return parsed, nil
	default:
		return value.Value{}, typef("%s: cannot convert %s", name, v.Kind())
	}
}

func length(name string, args []value.Value) (value.Value, error) {
	s, ok := args[0].AsText()
	if !ok {
		return value.Value{}, typef("%s expects text, got %s", name, args[0].Kind())
	}
	return value.Number(float64(utf8.RuneCountInString(s))), nil
}

func textFunc(fn func(string) string) func(string, []value.Value) (value.Value, error) {
	return func(name string, args []value.Value) (value.Value, error) {
		s, ok := args[0].AsText()
		if !ok {
			return value.Value{}, typef("%s expects text, got %s", name, args[0].Kind())
		}
		return value.Text(fn(s)), nil
	}
}

func round(name string, args []value.Value) (value.Value, error) {
	n, ok := args[0].AsNumber()
	if !ok {
		return value.Value{}, typef("%s expects a number, got %s", name, args[0].Kind())
	}
	places := 0.0
	if len(args) == 2 {
		p, ok := args[1].AsNumber()
		if !ok || p != math.Trunc(p) || p < 0 || p > 15 {
			return value.Value{}, typef("%s: places must be a whole number between 0 and 15", name)
		}
		places = p
	}
	scale := math.Pow(10, places)
	return finite(math.Round(n*scale) / scale)
}

func concat(_ string, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(arg.String())
	}
	return value.Text(b.String()), nil
}

func empty(_ string, args []value.Value) (value.Value, error) {
	v := args[0]
	if v.IsAbsent() {
		return value.Bool(true), nil
	}
	if s, ok := v.AsText(); ok {
		return value.Bool(strings.TrimSpace(s) == ""), nil
	}
	return value.Bool(false), nil
}

func unixDate(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

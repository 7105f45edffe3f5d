package formula

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenPercent
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenQuestion
	tokenColon
	tokenComma
	tokenDot
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
)

type token struct {
	kind tokenKind
	raw  string
	pos  int
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// IsIdentifier reports whether id can be referenced by name inside a formula.
// Other ids are reachable through fields['id'].
func IsIdentifier(id string) bool {
	if id == "" || !isIdentStart(id[0]) {
		return false
	}
	for i := 1; i < len(id); i++ {
		if !isIdentPart(id[i]) {
			return false
		}
	}
	switch id {
	case "true", "false", "null", "undefined", "fields":
		return false
	}
	return true
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func(offset int) byte {
		if i+offset >= len(input) {
			return 0
		}
		return input[i+offset]
	}

	emit := func(kind tokenKind, raw string) {
		tokens = append(tokens, token{kind: kind, raw: raw, pos: i})
		i += len(raw)
	}

	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
			continue
		case ch == '(':
			emit(tokenLParen, "(")
		case ch == ')':
			emit(tokenRParen, ")")
		case ch == '[':
			emit(tokenLBracket, "[")
		case ch == ']':
			emit(tokenRBracket, "]")
		case ch == ',':
			emit(tokenComma, ",")
		case ch == '?':
			emit(tokenQuestion, "?")
		case ch == ':':
			emit(tokenColon, ":")
		case ch == '+':
			emit(tokenPlus, "+")
		case ch == '-':
			emit(tokenMinus, "-")
		case ch == '*':
			emit(tokenStar, "*")
		case ch == '/':
			emit(tokenSlash, "/")
		case ch == '%':
			emit(tokenPercent, "%")
		case ch == '!':
			if peek(1) == '=' {
				if peek(2) == '=' {
					emit(tokenNeq, "!==")
				} else {
					emit(tokenNeq, "!=")
				}
			} else {
				emit(tokenNot, "!")
			}
		case ch == '=':
			if peek(1) != '=' {
				return nil, syntaxf("unexpected '=' at %d; use '=='", i)
			}
			if peek(2) == '=' {
				emit(tokenEq, "===")
			} else {
				emit(tokenEq, "==")
			}
		case ch == '<':
			if peek(1) == '=' {
				emit(tokenLte, "<=")
			} else {
				emit(tokenLt, "<")
			}
		case ch == '>':
			if peek(1) == '=' {
				emit(tokenGte, ">=")
			} else {
				emit(tokenGt, ">")
			}
		case ch == '&':
			if peek(1) != '&' {
				return nil, syntaxf("unexpected '&' at %d; use '&&'", i)
			}
			emit(tokenAnd, "&&")
		case ch == '|':
			if peek(1) != '|' {
				return nil, syntaxf("unexpected '|' at %d; use '||'", i)
			}
			emit(tokenOr, "||")
		case ch == '"' || ch == '\'':
			tok, next, err := scanString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case isDigit(ch) || (ch == '.' && isDigit(peek(1))):
			tok, next, err := scanNumber(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case ch == '.':
			emit(tokenDot, ".")
		case isIdentStart(ch):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			raw := input[start:i]
			switch raw {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: raw, pos: start})
			case "null", "undefined":
				tokens = append(tokens, token{kind: tokenNull, raw: "null", pos: start})
			default:
				tokens = append(tokens, token{kind: tokenIdentifier, raw: raw, pos: start})
			}
		default:
			return nil, syntaxf("unexpected character %q at %d", ch, i)
		}
	}
	return tokens, nil
}

func scanString(input string, start int) (token, int, error) {
	quote := input[start]
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		if c == quote {
			return token{kind: tokenString, raw: b.String(), pos: start}, i + 1, nil
		}
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(input) {
			break
		}
		esc := input[i+1]
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '\'', '"':
			b.WriteByte(esc)
		default:
			return token{}, 0, syntaxf("invalid escape \\%c at %d", esc, i)
		}
		i += 2
	}
	return token{}, 0, syntaxf("unterminated string literal at %d", start)
}

func scanNumber(input string, start int) (token, int, error) {
	i := start
	for i < len(input) && isDigit(input[i]) {
		i++
	}
	if i < len(input) && input[i] == '.' {
		i++
		for i < len(input) && isDigit(input[i]) {
			i++
		}
	}
	if i < len(input) && (input[i] == 'e' || input[i] == 'E') {
		j := i + 1
		if j < len(input) && (input[j] == '+' || input[j] == '-') {
			j++
		}
		if j < len(input) && isDigit(input[j]) {
			for j < len(input) && isDigit(input[j]) {
				j++
			}
			i = j
		}
	}
	raw := input[start:i]
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return token{}, 0, syntaxf("invalid number literal %q", raw)
	}
	if i < len(input) && isIdentStart(input[i]) {
		return token{}, 0, syntaxf("invalid number literal %q", input[start:i+1])
	}
	return token{kind: tokenNumber, raw: raw, pos: start}, i, nil
}

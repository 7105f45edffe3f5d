package formula

import (
	"strconv"

	"github.com/goliatone/go-formcalc/pkg/value"
)

type node interface {
	eval(sc *scope) (value.Value, error)
}

type tokenStream struct {
	tokens   []token
	pos      int
	depth    int
	maxDepth int
}

func parse(tokens []token, maxDepth int) (node, error) {
	stream := &tokenStream{tokens: tokens, maxDepth: maxDepth}
	n, err := stream.parseConditional()
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		tok := stream.tokens[stream.pos]
		return nil, syntaxf("unexpected token %q at %d", tok.raw, tok.pos)
	}
	return n, nil
}

func (s *tokenStream) enter() error {
	s.depth++
	if s.maxDepth > 0 && s.depth > s.maxDepth {
		return limitf("expression nests deeper than %d", s.maxDepth)
	}
	return nil
}

func (s *tokenStream) leave() { s.depth-- }

func (s *tokenStream) parseConditional() (node, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()

	cond, err := s.parseOr()
	if err != nil {
		return nil, err
	}
	if !s.match(tokenQuestion) {
		return cond, nil
	}
	then, err := s.parseConditional()
	if err != nil {
		return nil, err
	}
	if !s.match(tokenColon) {
		return nil, s.expected("':'")
	}
	otherwise, err := s.parseConditional()
	if err != nil {
		return nil, err
	}
	return conditionalNode{cond: cond, then: then, otherwise: otherwise}, nil
}

func (s *tokenStream) parseOr() (node, error) {
	left, err := s.parseAnd()
	if err != nil {
		return nil, err
	}
	for s.match(tokenOr) {
		right, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (s *tokenStream) parseAnd() (node, error) {
	left, err := s.parseEquality()
	if err != nil {
		return nil, err
	}
	for s.match(tokenAnd) {
		right, err := s.parseEquality()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (s *tokenStream) parseEquality() (node, error) {
	left, err := s.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := s.matchAny(tokenEq, tokenNeq)
		if !ok {
			return left, nil
		}
		right, err := s.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (s *tokenStream) parseComparison() (node, error) {
	left, err := s.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := s.matchAny(tokenLt, tokenLte, tokenGt, tokenGte)
		if !ok {
			return left, nil
		}
		right, err := s.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (s *tokenStream) parseAdditive() (node, error) {
	left, err := s.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := s.matchAny(tokenPlus, tokenMinus)
		if !ok {
			return left, nil
		}
		right, err := s.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (s *tokenStream) parseMultiplicative() (node, error) {
	left, err := s.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := s.matchAny(tokenStar, tokenSlash, tokenPercent)
		if !ok {
			return left, nil
		}
		right, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (s *tokenStream) parseUnary() (node, error) {
	if op, ok := s.matchAny(tokenNot, tokenMinus, tokenPlus); ok {
		if err := s.enter(); err != nil {
			return nil, err
		}
		defer s.leave()
		inner, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, inner: inner}, nil
	}
	return s.parsePostfix()
}

func (s *tokenStream) parsePostfix() (node, error) {
	tok, ok := s.peek()
	if !ok {
		return nil, syntaxf("unexpected end of formula")
	}

	if tok.kind == tokenIdentifier && tok.raw == "fields" {
		s.pos++
		return s.parseFieldsAccess(tok)
	}

	if tok.kind == tokenIdentifier {
		if next, ok := s.peekAt(1); ok && next.kind == tokenLParen {
			s.pos += 2
			return s.parseCall(tok)
		}
	}

	n, err := s.parsePrimary()
	if err != nil {
		return nil, err
	}
	if next, ok := s.peek(); ok && (next.kind == tokenLBracket || next.kind == tokenDot) {
		return nil, syntaxf("indexing is only supported on fields (at %d)", next.pos)
	}
	return n, nil
}

// parseFieldsAccess handles the bulk mapping view: fields['id'], fields["id"],
// fields.id and fields[expr].
func (s *tokenStream) parseFieldsAccess(at token) (node, error) {
	if s.match(tokenDot) {
		name, ok := s.consume(tokenIdentifier)
		if !ok {
			return nil, s.expected("field name after 'fields.'")
		}
		return fieldNode{key: literalNode{value: value.Text(name.raw)}, static: name.raw}, nil
	}
	if s.match(tokenLBracket) {
		key, err := s.parseConditional()
		if err != nil {
			return nil, err
		}
		if !s.match(tokenRBracket) {
			return nil, s.expected("']'")
		}
		static := ""
		if lit, ok := key.(literalNode); ok {
			if text, ok := lit.value.AsText(); ok {
				static = text
			}
		}
		return fieldNode{key: key, static: static}, nil
	}
	return nil, syntaxf("fields must be indexed (at %d)", at.pos)
}

func (s *tokenStream) parseCall(name token) (node, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()

	fn, ok := builtins[name.raw]
	if !ok {
		return nil, syntaxf("unknown function %q at %d", name.raw, name.pos)
	}
	var args []node
	if !s.match(tokenRParen) {
		for {
			arg, err := s.parseConditional()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if s.match(tokenComma) {
				continue
			}
			if s.match(tokenRParen) {
				break
			}
			return nil, s.expected("',' or ')'")
		}
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, syntaxf("%s: wrong number of arguments (%d)", name.raw, len(args))
	}
	return callNode{name: name.raw, fn: fn, args: args}, nil
}

func (s *tokenStream) parsePrimary() (node, error) {
	tok, ok := s.peek()
	if !ok {
		return nil, syntaxf("unexpected end of formula")
	}
	s.pos++

	switch tok.kind {
	case tokenLParen:
		inner, err := s.parseConditional()
		if err != nil {
			return nil, err
		}
		if !s.match(tokenRParen) {
			return nil, s.expected("')'")
		}
		return inner, nil
	case tokenNumber:
		n, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, syntaxf("invalid number literal %q", tok.raw)
		}
		return literalNode{value: value.Number(n)}, nil
	case tokenString:
		return literalNode{value: value.Text(tok.raw)}, nil
	case tokenBool:
		return literalNode{value: value.Bool(tok.raw == "true")}, nil
	case tokenNull:
		return literalNode{value: value.Absent()}, nil
	case tokenIdentifier:
		return identNode{name: tok.raw}, nil
	default:
		return nil, syntaxf("unexpected token %q at %d", tok.raw, tok.pos)
	}
}

func (s *tokenStream) peek() (token, bool) {
	return s.peekAt(0)
}

func (s *tokenStream) peekAt(offset int) (token, bool) {
	if s.pos+offset >= len(s.tokens) {
		return token{}, false
	}
	return s.tokens[s.pos+offset], true
}

func (s *tokenStream) match(kind tokenKind) bool {
	_, ok := s.consume(kind)
	return ok
}

func (s *tokenStream) matchAny(kinds ...tokenKind) (tokenKind, bool) {
	tok, ok := s.peek()
	if !ok {
		return 0, false
	}
	for _, kind := range kinds {
		if tok.kind == kind {
			s.pos++
			return kind, true
		}
	}
	return 0, false
}

func (s *tokenStream) consume(kind tokenKind) (token, bool) {
	tok, ok := s.peek()
	if !ok || tok.kind != kind {
		return token{}, false
	}
	s.pos++
	return tok, true
}

func (s *tokenStream) expected(what string) error {
	tok, ok := s.peek()
	if !ok {
		return syntaxf("expected %s, got end of formula", what)
	}
	return syntaxf("expected %s, got %q at %d", what, tok.raw, tok.pos)
}

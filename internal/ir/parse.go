package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a syntax error in textual IR.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Parse reads a module from its textual form. The accepted grammar is
// exactly what Print emits, plus flexible whitespace and // comments.
// Unrecognized op mnemonics parse as OpUnknown so later stages can
// produce a diagnostic naming them.
func Parse(src string) (*Module, error) {
	p := &parser{lex: newLexer(src)}
	m, err := p.parseModule()
	if err != nil {
		return nil, err
	}
	if err := m.Verify(); err != nil {
		return nil, &ParseError{Line: p.lex.line, Message: err.Error()}
	}
	return m, nil
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokAtIdent  // @name
	tokPctIdent // %name
	tokNumber
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokLBrack
	tokRBrack
	tokColon
	tokComma
	tokEquals
	tokArrow
)

type token struct {
	kind tokenKind
	text string
	line int
}

type lexer struct {
	src    string
	pos    int
	line   int
	peeked *token
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) errf(format string, args ...any) error {
	return &ParseError{Line: l.line, Message: fmt.Sprintf(format, args...)}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\n' {
			l.line++
			l.pos++
		} else if c == ' ' || c == '\t' || c == '\r' {
			l.pos++
		} else if c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		} else {
			return
		}
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *lexer) peek() (token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	t, err := l.scan()
	if err != nil {
		return token{}, err
	}
	l.peeked = &t
	return t, nil
}

func (l *lexer) next() (token, error) {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t, nil
	}
	return l.scan()
}

func (l *lexer) scan() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}
	start := l.line
	c := l.src[l.pos]
	switch {
	case c == '{':
		l.pos++
		return token{tokLBrace, "{", start}, nil
	case c == '}':
		l.pos++
		return token{tokRBrace, "}", start}, nil
	case c == '(':
		l.pos++
		return token{tokLParen, "(", start}, nil
	case c == ')':
		l.pos++
		return token{tokRParen, ")", start}, nil
	case c == '[':
		l.pos++
		return token{tokLBrack, "[", start}, nil
	case c == ']':
		l.pos++
		return token{tokRBrack, "]", start}, nil
	case c == ':':
		l.pos++
		return token{tokColon, ":", start}, nil
	case c == ',':
		l.pos++
		return token{tokComma, ",", start}, nil
	case c == '=':
		l.pos++
		return token{tokEquals, "=", start}, nil
	case c == '-':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '>' {
			l.pos += 2
			return token{tokArrow, "->", start}, nil
		}
		return l.scanNumber()
	case c == '@':
		l.pos++
		return l.scanIdentAs(tokAtIdent)
	case c == '%':
		l.pos++
		return l.scanIdentAs(tokPctIdent)
	case isDigit(c):
		return l.scanNumber()
	case isIdentByte(c):
		return l.scanIdentAs(tokIdent)
	}
	return token{}, l.errf("unexpected character %q", string(c))
}

func (l *lexer) scanIdentAs(kind tokenKind) (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		return token{}, l.errf("expected identifier")
	}
	return token{kind, l.src[start:l.pos], l.line}, nil
}

func (l *lexer) scanNumber() (token, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isDigit(c) || c == '.' || c == 'e' || c == 'E' ||
			((c == '+' || c == '-') && (l.src[l.pos-1] == 'e' || l.src[l.pos-1] == 'E')) {
			l.pos++
			continue
		}
		break
	}
	text := l.src[start:l.pos]
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return token{}, l.errf("malformed number %q", text)
	}
	return token{tokNumber, text, l.line}, nil
}

// captureAngle consumes a '<...>' region verbatim, assuming the lexer
// is positioned at '<'. Used for tensor type suffixes, whose dimension
// syntax (2x2xf32) does not tokenize cleanly.
func (l *lexer) captureAngle() (string, error) {
	l.skipSpace()
	if l.pos >= len(l.src) || l.src[l.pos] != '<' {
		return "", l.errf("expected '<' after tensor")
	}
	l.pos++
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		if l.src[l.pos] == '\n' {
			return "", l.errf("unterminated tensor type")
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		return "", l.errf("unterminated tensor type")
	}
	body := l.src[start:l.pos]
	l.pos++
	return body, nil
}

type parser struct {
	lex *lexer
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t, err := p.lex.next()
	if err != nil {
		return token{}, err
	}
	if t.kind != kind {
		return token{}, &ParseError{Line: t.line, Message: fmt.Sprintf("expected %s, found %q", what, t.text)}
	}
	return t, nil
}

func (p *parser) expectKeyword(kw string) error {
	t, err := p.expect(tokIdent, fmt.Sprintf("%q", kw))
	if err != nil {
		return err
	}
	if t.text != kw {
		return &ParseError{Line: t.line, Message: fmt.Sprintf("expected %q, found %q", kw, t.text)}
	}
	return nil
}

func (p *parser) parseModule() (*Module, error) {
	if err := p.expectKeyword("module"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokAtIdent, "module name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	m := NewModule(name.text)
	for {
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			p.lex.next()
			break
		}
		f, err := p.parseFunc()
		if err != nil {
			return nil, err
		}
		m.Funcs = append(m.Funcs, f)
	}
	return m, nil
}

func (p *parser) parseFunc() (*Function, error) {
	if err := p.expectKeyword("func"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokAtIdent, "function name")
	if err != nil {
		return nil, err
	}
	f := &Function{Name: name.text}
	values := map[string]int{}

	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	for {
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRParen {
			p.lex.next()
			break
		}
		if len(f.Params) > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
		pname, err := p.expect(tokPctIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		shape, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, dup := values[pname.text]; dup {
			return nil, &ParseError{Line: pname.line, Message: fmt.Sprintf("duplicate value name %%%s", pname.text)}
		}
		values[pname.text] = len(f.Params)
		f.Params = append(f.Params, Param{Name: pname.text, Shape: shape})
	}

	if _, err := p.expect(tokArrow, "'->'"); err != nil {
		return nil, err
	}
	f.Results, err = p.parseTypeList()
	if err != nil {
		return nil, err
	}

	// Optional linkage attribute, present once lower-linkage has run.
	t, err := p.lex.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tokIdent && t.text == "link" {
		p.lex.next()
		link, err := p.expect(tokAtIdent, "link symbol")
		if err != nil {
			return nil, err
		}
		f.LinkName = link.text
	}

	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	if err := p.parseBody(f, values); err != nil {
		return nil, err
	}
	return f, nil
}

// parseTypeList parses "()" | type | "(" type, type... ")".
func (p *parser) parseTypeList() ([]Shape, error) {
	t, err := p.lex.peek()
	if err != nil {
		return nil, err
	}
	if t.kind != tokLParen {
		s, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return []Shape{s}, nil
	}
	p.lex.next()
	var shapes []Shape
	for {
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRParen {
			p.lex.next()
			return shapes, nil
		}
		if len(shapes) > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
		s, err := p.parseType()
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
}

func (p *parser) parseType() (Shape, error) {
	t, err := p.expect(tokIdent, "type")
	if err != nil {
		return Shape{}, err
	}
	if t.text != "tensor" {
		d, err := ParseDType(t.text)
		if err != nil {
			return Shape{}, &ParseError{Line: t.line, Message: err.Error()}
		}
		return Scalar(d), nil
	}
	body, err := p.lex.captureAngle()
	if err != nil {
		return Shape{}, err
	}
	return parseTensorBody(body, t.line)
}

// parseTensorBody parses the inside of tensor<...>: "2x2xf32" or a
// bare dtype for rank zero.
func parseTensorBody(body string, line int) (Shape, error) {
	parts := strings.Split(strings.TrimSpace(body), "x")
	dtype, err := ParseDType(parts[len(parts)-1])
	if err != nil {
		return Shape{}, &ParseError{Line: line, Message: fmt.Sprintf("tensor<%s>: %v", body, err)}
	}
	dims := make([]int, 0, len(parts)-1)
	for _, d := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 {
			return Shape{}, &ParseError{Line: line, Message: fmt.Sprintf("tensor<%s>: bad dimension %q", body, d)}
		}
		dims = append(dims, n)
	}
	return Shape{DType: dtype, Dims: dims}, nil
}

func (p *parser) parseBody(f *Function, values map[string]int) error {
	nextID := len(f.Params)
	for {
		t, err := p.lex.next()
		if err != nil {
			return err
		}
		switch t.kind {
		case tokIdent:
			if t.text != "return" {
				return &ParseError{Line: t.line, Message: fmt.Sprintf("expected statement, found %q", t.text)}
			}
			if err := p.parseReturn(f, values); err != nil {
				return err
			}
			if _, err := p.expect(tokRBrace, "'}'"); err != nil {
				return err
			}
			return nil
		case tokPctIdent:
			op, err := p.parseOp(t, values, nextID)
			if err != nil {
				return err
			}
			f.Ops = append(f.Ops, op)
			nextID++
		default:
			return &ParseError{Line: t.line, Message: fmt.Sprintf("expected statement, found %q", t.text)}
		}
	}
}

func (p *parser) parseOp(result token, values map[string]int, id int) (Op, error) {
	if _, dup := values[result.text]; dup {
		return Op{}, &ParseError{Line: result.line, Message: fmt.Sprintf("duplicate value name %%%s", result.text)}
	}
	if _, err := p.expect(tokEquals, "'='"); err != nil {
		return Op{}, err
	}
	mnemonic, err := p.expect(tokIdent, "op mnemonic")
	if err != nil {
		return Op{}, err
	}
	op := Op{Kind: OpKindFromMnemonic(mnemonic.text), Result: id}
	if op.Kind == OpUnknown {
		op.Raw = mnemonic.text
	}

	if op.Kind == OpConst {
		op.Const, err = p.parseLiteral()
		if err != nil {
			return Op{}, err
		}
	} else {
		op.Operands, err = p.parseOperands(values)
		if err != nil {
			return Op{}, err
		}
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return Op{}, err
	}
	op.Shape, err = p.parseType()
	if err != nil {
		return Op{}, err
	}
	values[result.text] = id
	return op, nil
}

func (p *parser) parseOperands(values map[string]int) ([]int, error) {
	var out []int
	for {
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		if t.kind != tokPctIdent {
			return out, nil
		}
		p.lex.next()
		id, ok := values[t.text]
		if !ok {
			return nil, &ParseError{Line: t.line, Message: fmt.Sprintf("use of undefined value %%%s", t.text)}
		}
		out = append(out, id)
		t, err = p.lex.peek()
		if err != nil {
			return nil, err
		}
		if t.kind != tokComma {
			return out, nil
		}
		p.lex.next()
	}
}

func (p *parser) parseLiteral() ([]float64, error) {
	t, err := p.lex.next()
	if err != nil {
		return nil, err
	}
	if t.kind == tokNumber {
		v, _ := strconv.ParseFloat(t.text, 64)
		return []float64{v}, nil
	}
	if t.kind != tokLBrack {
		return nil, &ParseError{Line: t.line, Message: fmt.Sprintf("expected literal, found %q", t.text)}
	}
	var vals []float64
	for {
		t, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrack {
			return vals, nil
		}
		if len(vals) > 0 {
			if t.kind != tokComma {
				return nil, &ParseError{Line: t.line, Message: fmt.Sprintf("expected ',' in literal, found %q", t.text)}
			}
			t, err = p.lex.next()
			if err != nil {
				return nil, err
			}
		}
		if t.kind != tokNumber {
			return nil, &ParseError{Line: t.line, Message: fmt.Sprintf("expected number in literal, found %q", t.text)}
		}
		v, _ := strconv.ParseFloat(t.text, 64)
		vals = append(vals, v)
	}
}

func (p *parser) parseReturn(f *Function, values map[string]int) error {
	t, err := p.lex.peek()
	if err != nil {
		return err
	}
	if t.kind != tokPctIdent {
		return nil // bare return, zero results
	}
	f.Returns, err = p.parseOperands(values)
	if err != nil {
		return err
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return err
	}
	// Trailing type list restates the function results; parsed and
	// discarded after an arity check.
	shapes, err := p.parseTypeList()
	if err != nil {
		return err
	}
	if len(shapes) != len(f.Returns) {
		return &ParseError{Line: t.line, Message: "return type list does not match returned values"}
	}
	return nil
}

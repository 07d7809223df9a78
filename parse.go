// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen

import (
	"strings"
	"unicode"

	"github.com/db47h/rtlgen/internal/lex"
	"github.com/pkg/errors"
)

// Tokens
const (
	tEOF   lex.Type = lex.EOF
	tRaw   lex.Type = iota
	tIdent          // signal or constant name
	tInt            // unsized literal
	tSized          // sized literal, e.g. 24'd0
	tLParen
	tRParen
	tLBracket
	tRBracket
	tComma
	tQuestion
	tColon
	tNot
	tInv
	tAdd
	tSub
	tMul
	tAnd
	tOr
	tXor
	tLAnd
	tLOr
	tEq
	tNe
	tLt
	tLe
	tGt
	tGe
	tShl
	tShr
)

// sized is the value of a tSized item.
//
type sized struct {
	size int
	val  uint64
}

// newLexer returns a lexer for expressions and port specs.
//
func newLexer(input string) lex.Interface {
	return lex.New(strings.NewReader(input), lexInit)
}

func lexInit(l *lex.Lexer) lex.StateFn {
	r := l.Next()
	switch {
	case r == lex.EOF:
		return lexEOF
	case unicode.IsSpace(r):
		l.AcceptWhile(unicode.IsSpace)
	case unicode.IsLetter(r) || r == '_':
		return lexIdent
	case '0' <= r && r <= '9':
		return lexNumber
	case r == '(':
		l.Emit(tLParen, "(")
	case r == ')':
		l.Emit(tRParen, ")")
	case r == '[':
		l.Emit(tLBracket, "[")
	case r == ']':
		l.Emit(tRBracket, "]")
	case r == ',':
		l.Emit(tComma, ",")
	case r == '?':
		l.Emit(tQuestion, "?")
	case r == ':':
		l.Emit(tColon, ":")
	case r == '~':
		l.Emit(tInv, "~")
	case r == '+':
		l.Emit(tAdd, "+")
	case r == '-':
		l.Emit(tSub, "-")
	case r == '*':
		l.Emit(tMul, "*")
	case r == '^':
		l.Emit(tXor, "^")
	case r == '!':
		if l.Next() == '=' {
			l.Emit(tNe, "!=")
			break
		}
		l.Backup()
		l.Emit(tNot, "!")
	case r == '&':
		if l.Next() == '&' {
			l.Emit(tLAnd, "&&")
			break
		}
		l.Backup()
		l.Emit(tAnd, "&")
	case r == '|':
		if l.Next() == '|' {
			l.Emit(tLOr, "||")
			break
		}
		l.Backup()
		l.Emit(tOr, "|")
	case r == '=':
		if l.Next() == '=' {
			l.Emit(tEq, "==")
			break
		}
		l.Backup()
		l.Emit(tRaw, "=")
		return lexEOF
	case r == '<':
		switch l.Next() {
		case '=':
			l.Emit(tLe, "<=")
		case '<':
			l.Emit(tShl, "<<")
		default:
			l.Backup()
			l.Emit(tLt, "<")
		}
	case r == '>':
		switch l.Next() {
		case '=':
			l.Emit(tGe, ">=")
		case '>':
			l.Emit(tShr, ">>")
		default:
			l.Backup()
			l.Emit(tGt, ">")
		}
	default:
		l.Emit(tRaw, string(r))
		return lexEOF
	}
	return nil
}

func lexNumber(l *lex.Lexer) lex.StateFn {
	i := uint64(l.Current() - '0')
	r := l.Next()
	for '0' <= r && r <= '9' {
		i = i*10 + uint64(r-'0')
		r = l.Next()
	}
	if r != '\'' {
		l.Backup()
		l.Emit(tInt, i)
		return nil
	}
	// sized literal: size'dNNN, size'bNNN or size'hNNN
	base := l.Next()
	var b uint64
	switch base {
	case 'd':
		b = 10
	case 'b':
		b = 2
	case 'h':
		b = 16
	default:
		l.Emit(tRaw, "bad literal base")
		return lexEOF
	}
	var v uint64
	n := 0
	for {
		r = l.Next()
		var d uint64
		switch {
		case '0' <= r && r <= '9':
			d = uint64(r - '0')
		case b == 16 && 'a' <= r && r <= 'f':
			d = uint64(r-'a') + 10
		case b == 16 && 'A' <= r && r <= 'F':
			d = uint64(r-'A') + 10
		default:
			l.Backup()
			if n == 0 {
				l.Emit(tRaw, "missing literal digits")
				return lexEOF
			}
			l.Emit(tSized, sized{size: int(i), val: v})
			return nil
		}
		if d >= b {
			l.Emit(tRaw, "bad literal digit")
			return lexEOF
		}
		v = v*b + d
		n++
	}
}

func lexIdent(l *lex.Lexer) lex.StateFn {
	var buf strings.Builder
	buf.Grow(8)
	buf.WriteRune(l.Current())
	r := l.Next()
	for unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
		buf.WriteRune(r)
		r = l.Next()
	}
	l.Backup()
	l.Emit(tIdent, buf.String())
	return nil
}

// lexEOF places the lexer in End-Of-File state.
// Once in this state, the lexer will only emit EOF.
//
func lexEOF(l *lex.Lexer) lex.StateFn {
	l.Emit(lex.EOF, "end of input")
	return lexEOF
}

func parseError(in string, pos lex.Pos, msg string) error {
	return errors.Errorf("in %q at pos %d: %s", in, pos+1, msg)
}

// binary operator precedence, higher binds tighter. The ternary
// conditional sits below all of these.
//
var binOps = map[lex.Type]struct {
	op   Op
	prec int
}{
	tLOr:  {OpLOr, 1},
	tLAnd: {OpLAnd, 2},
	tOr:   {OpOr, 3},
	tXor:  {OpXor, 4},
	tAnd:  {OpAnd, 5},
	tEq:   {OpEq, 6},
	tNe:   {OpNe, 6},
	tLt:   {OpLt, 7},
	tLe:   {OpLe, 7},
	tGt:   {OpGt, 7},
	tGe:   {OpGe, 7},
	tShl:  {OpShl, 8},
	tShr:  {OpShr, 8},
	tAdd:  {OpAdd, 9},
	tSub:  {OpSub, 9},
	tMul:  {OpMul, 10},
}

type exprParser struct {
	in    string
	items []lex.Item
	pos   int
}

// ParseExpr parses an expression in the shared Verilog expression subset:
// literals (decimal or sized), signal references, unary ! ~ -, the usual
// binary operators and the ternary conditional. The returned expression
// is unbound; Build resolves its references.
//
func ParseExpr(input string) (Expr, error) {
	l := newLexer(input)
	p := &exprParser{in: input}
	for {
		i := l.Lex()
		if i.Type == tRaw {
			return nil, parseError(input, i.Pos, "unexpected "+i.String())
		}
		p.items = append(p.items, i)
		if i.Type == tEOF {
			break
		}
	}
	e, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if i := p.next(); i.Type != tEOF {
		return nil, parseError(input, i.Pos, "unexpected "+i.String())
	}
	return e, nil
}

func (p *exprParser) next() lex.Item {
	i := p.items[p.pos]
	if i.Type != tEOF {
		p.pos++
	}
	return i
}

func (p *exprParser) peek() lex.Item {
	return p.items[p.pos]
}

func (p *exprParser) ternary() (Expr, error) {
	c, err := p.binary(1)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != tQuestion {
		return c, nil
	}
	p.next()
	t, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if i := p.next(); i.Type != tColon {
		return nil, parseError(p.in, i.Pos, "expected ':' in conditional")
	}
	e, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &Cond{If: c, Then: t, Else: e}, nil
}

func (p *exprParser) binary(minPrec int) (Expr, error) {
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		o, ok := binOps[p.peek().Type]
		if !ok || o.prec < minPrec {
			return x, nil
		}
		p.next()
		y, err := p.binary(o.prec + 1)
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: o.op, X: x, Y: y}
	}
}

func (p *exprParser) unary() (Expr, error) {
	var op Op
	switch p.peek().Type {
	case tNot:
		op = OpNot
	case tInv:
		op = OpInv
	case tSub:
		op = OpNeg
	default:
		return p.primary()
	}
	p.next()
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &Unary{Op: op, X: x}, nil
}

func (p *exprParser) primary() (Expr, error) {
	i := p.next()
	switch i.Type {
	case tIdent:
		return &Ref{Name: i.Value.(string)}, nil
	case tInt:
		return &Const{Val: i.Value.(uint64)}, nil
	case tSized:
		s := i.Value.(sized)
		return &Const{Val: s.val, Size: s.size}, nil
	case tLParen:
		e, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if i := p.next(); i.Type != tRParen {
			return nil, parseError(p.in, i.Pos, "missing close parenthesis")
		}
		return e, nil
	}
	return nil, parseError(p.in, i.Pos, "unexpected "+i.String())
}

// portDecl is a single parsed port declaration.
//
type portDecl struct {
	name  string
	width int
}

// parsePortList parses a port specification string and returns the
// declared ports. A bracketed size declares a multi-bit port, for
// example:
//
//	parsePortList("en, clear, a[8]")
//
// declares two 1 bit ports and one 8 bit port.
//
func parsePortList(names string) ([]portDecl, error) {
	var out []portDecl

	l := newLexer(names)

	i := l.Lex()
	if i.Type == tEOF {
		return nil, nil
	}
F:
	for {
		if i.Type != tIdent {
			return nil, parseError(names, i.Pos, "expected port name")
		}
		name := i.Value.(string)
		// after ident, expect comma, [ or EOF
		i = l.Lex()
		switch i.Type {
		case tEOF:
			out = append(out, portDecl{name, 1})
			break F
		case tComma:
			out = append(out, portDecl{name, 1})
			i = l.Lex()
			continue
		case tLBracket:
		default:
			return nil, parseError(names, i.Pos, "expected port width or comma")
		}
		// expect port width
		i = l.Lex()
		if i.Type != tInt {
			return nil, parseError(names, i.Pos, "missing port width")
		}
		out = append(out, portDecl{name, int(i.Value.(uint64))})
		i = l.Lex()
		if i.Type != tRBracket {
			return nil, parseError(names, i.Pos, "missing close bracket")
		}
		i = l.Lex()
		if i.Type == tEOF {
			break
		}
		if i.Type != tComma {
			return nil, parseError(names, i.Pos, "expected comma or end of input")
		}
		i = l.Lex()
	}

	return out, nil
}

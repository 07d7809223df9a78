// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package verilog

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/db47h/rtlgen"
	"github.com/db47h/rtlgen/internal/lex"
	"github.com/pkg/errors"
)

// Tokens. The tokenizer only structures the text: expression content is
// captured as raw source spans and handed to rtlgen.ParseExpr, so
// operators inside expressions pass through as vOther.
const (
	vEOF   lex.Type = lex.EOF
	vOther lex.Type = iota
	vIdent
	vInt
	vLParen
	vRParen
	vLBracket
	vRBracket
	vSemi
	vColon
	vComma
	vAt
	vEq  // =
	vNBA // <=
)

func vLexInit(l *lex.Lexer) lex.StateFn {
	r := l.Next()
	switch {
	case r == lex.EOF:
		return vLexEOF
	case unicode.IsSpace(r):
		l.AcceptWhile(unicode.IsSpace)
	case unicode.IsLetter(r) || r == '_':
		return vLexIdent
	case '0' <= r && r <= '9':
		return vLexNumber
	case r == '(':
		l.Emit(vLParen, "(")
	case r == ')':
		l.Emit(vRParen, ")")
	case r == '[':
		l.Emit(vLBracket, "[")
	case r == ']':
		l.Emit(vRBracket, "]")
	case r == ';':
		l.Emit(vSemi, ";")
	case r == ':':
		l.Emit(vColon, ":")
	case r == ',':
		l.Emit(vComma, ",")
	case r == '@':
		l.Emit(vAt, "@")
	case r == '=':
		if l.Next() == '=' {
			l.Emit(vOther, "==")
			break
		}
		l.Backup()
		l.Emit(vEq, "=")
	case r == '<':
		if l.Next() == '=' {
			l.Emit(vNBA, "<=")
			break
		}
		l.Backup()
		l.Emit(vOther, "<")
	case r == '/':
		if l.Next() == '/' {
			l.AcceptWhile(func(r rune) bool { return r != '\n' })
			break
		}
		l.Backup()
		l.Emit(vOther, "/")
	default:
		l.Emit(vOther, string(r))
	}
	return nil
}

func vLexNumber(l *lex.Lexer) lex.StateFn {
	i := uint64(l.Current() - '0')
	r := l.Next()
	for '0' <= r && r <= '9' {
		i = i*10 + uint64(r-'0')
		r = l.Next()
	}
	if r == '\'' {
		// sized literal: opaque here, rtlgen.ParseExpr decodes it
		l.Next()
		l.AcceptWhile(func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		})
		l.Emit(vOther, "literal")
		return nil
	}
	l.Backup()
	l.Emit(vInt, i)
	return nil
}

func vLexIdent(l *lex.Lexer) lex.StateFn {
	var buf strings.Builder
	buf.WriteRune(l.Current())
	r := l.Next()
	for unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
		buf.WriteRune(r)
		r = l.Next()
	}
	l.Backup()
	l.Emit(vIdent, buf.String())
	return nil
}

func vLexEOF(l *lex.Lexer) lex.StateFn {
	l.Emit(lex.EOF, "end of input")
	return vLexEOF
}

// parser state for the emitted Verilog subset.
//
type parser struct {
	in    string
	items []lex.Item
	pos   int

	clock  string
	reset  string
	params []param          // localparams, i.e. FSM state encodings
	wireW  map[string]int   // wire decl widths
	regW   map[string]int   // reg decl widths
	portW  map[string]int   // port widths
	rules  map[string][]rtlgen.RuleSpec
	resets []resetAssign
	trans  []rtlgen.TransitionSpec
	caseOn string // case subject, the FSM state signal
}

type param struct {
	name string
	val  uint64
}

type resetAssign struct {
	target string
	value  string
}

// Parse parses Verilog text in the subset produced by Emit back into a
// ModuleSpec. The first two input ports are taken as clock and reset,
// which is how Emit lays them out.
//
func Parse(input string) (*rtlgen.ModuleSpec, error) {
	l := lex.New(strings.NewReader(input), vLexInit)
	p := &parser{
		in:    input,
		wireW: make(map[string]int),
		regW:  make(map[string]int),
		portW: make(map[string]int),
		rules: make(map[string][]rtlgen.RuleSpec),
	}
	for {
		i := l.Lex()
		p.items = append(p.items, i)
		if i.Type == vEOF {
			break
		}
	}
	return p.parse()
}

// ParseModule parses and builds in one step.
//
func ParseModule(input string) (*rtlgen.Module, error) {
	spec, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return spec.Build()
}

func (p *parser) next() lex.Item {
	i := p.items[p.pos]
	if i.Type != vEOF {
		p.pos++
	}
	return i
}

func (p *parser) peek() lex.Item { return p.items[p.pos] }

func (p *parser) errorf(i lex.Item, format string, args ...interface{}) error {
	return errors.Errorf("verilog: at offset %d: "+format, append([]interface{}{int(i.Pos)}, args...)...)
}

func (p *parser) expect(t lex.Type, what string) (lex.Item, error) {
	i := p.next()
	if i.Type != t {
		return i, p.errorf(i, "expected %s, got %q", what, i.String())
	}
	return i, nil
}

func (p *parser) expectIdent() (string, error) {
	i, err := p.expect(vIdent, "identifier")
	if err != nil {
		return "", err
	}
	return i.Value.(string), nil
}

func (p *parser) expectKw(kw string) error {
	i := p.next()
	if i.Type != vIdent || i.Value.(string) != kw {
		return p.errorf(i, "expected %q, got %q", kw, i.String())
	}
	return nil
}

// span returns the raw source text from the current position up to (and
// not including) the first token of type t at parenthesis depth 0,
// consuming the delimiter.
//
func (p *parser) span(t lex.Type) (string, error) {
	start := p.peek().Pos
	depth := 0
	for {
		i := p.next()
		switch {
		case i.Type == vEOF:
			return "", p.errorf(i, "unexpected end of input")
		case i.Type == vLParen:
			depth++
		case i.Type == vRParen:
			depth--
		}
		if i.Type == t && depth <= 0 {
			return strings.TrimSpace(p.in[start:i.Pos]), nil
		}
	}
}

// parenSpan consumes "( ... )" and returns the inner source text.
//
func (p *parser) parenSpan() (string, error) {
	if _, err := p.expect(vLParen, "'('"); err != nil {
		return "", err
	}
	start := p.peek().Pos
	depth := 1
	for {
		i := p.next()
		switch i.Type {
		case vEOF:
			return "", p.errorf(i, "unexpected end of input")
		case vLParen:
			depth++
		case vRParen:
			depth--
			if depth == 0 {
				return strings.TrimSpace(p.in[start:i.Pos]), nil
			}
		}
	}
}

// optRange parses an optional "[hi:0]" and returns the width.
//
func (p *parser) optRange() (int, error) {
	if p.peek().Type != vLBracket {
		return 1, nil
	}
	p.next()
	hi, err := p.expect(vInt, "msb index")
	if err != nil {
		return 0, err
	}
	if _, err = p.expect(vColon, "':'"); err != nil {
		return 0, err
	}
	if _, err = p.expect(vInt, "lsb index"); err != nil {
		return 0, err
	}
	if _, err = p.expect(vRBracket, "']'"); err != nil {
		return 0, err
	}
	return int(hi.Value.(uint64)) + 1, nil
}

func (p *parser) parse() (*rtlgen.ModuleSpec, error) {
	if err := p.expectKw("module"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	spec := &rtlgen.ModuleSpec{Name: name}

	var ins, outs []string
	if _, err = p.expect(vLParen, "'('"); err != nil {
		return nil, err
	}
	for {
		dir, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if dir != "input" && dir != "output" {
			return nil, errors.Errorf("verilog: bad port direction %q", dir)
		}
		kind, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if kind != "wire" && kind != "reg" {
			return nil, errors.Errorf("verilog: bad port kind %q", kind)
		}
		w, err := p.optRange()
		if err != nil {
			return nil, err
		}
		pname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		p.portW[pname] = w
		decl := pname
		if w > 1 {
			decl += "[" + strconv.Itoa(w) + "]"
		}
		if dir == "input" {
			switch {
			case p.clock == "":
				p.clock = pname
			case p.reset == "":
				p.reset = pname
			default:
				ins = append(ins, decl)
			}
		} else {
			outs = append(outs, decl)
		}
		i := p.next()
		if i.Type == vRParen {
			break
		}
		if i.Type != vComma {
			return nil, p.errorf(i, "expected ',' or ')' in port list")
		}
	}
	if _, err = p.expect(vSemi, "';'"); err != nil {
		return nil, err
	}
	if p.clock == "" || p.reset == "" {
		return nil, errors.New("verilog: module must declare clock and reset inputs")
	}
	spec.Clock, spec.Reset = p.clock, p.reset
	spec.In = strings.Join(ins, ", ")
	spec.Out = strings.Join(outs, ", ")

	var wires []rtlgen.WireSpec
	for {
		i := p.next()
		if i.Type == vEOF {
			return nil, p.errorf(i, "missing endmodule")
		}
		if i.Type != vIdent {
			return nil, p.errorf(i, "unexpected %q", i.String())
		}
		kw := i.Value.(string)
		switch kw {
		case "endmodule":
			return p.assemble(spec, wires)
		case "localparam":
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err = p.expect(vEq, "'='"); err != nil {
				return nil, err
			}
			s, err := p.span(vSemi)
			if err != nil {
				return nil, err
			}
			v, err := constVal(s)
			if err != nil {
				return nil, err
			}
			p.params = append(p.params, param{name: name, val: v})
		case "reg", "wire":
			w, err := p.optRange()
			if err != nil {
				return nil, err
			}
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err = p.expect(vSemi, "';'"); err != nil {
				return nil, err
			}
			if kw == "reg" {
				p.regW[name] = w
			} else {
				p.wireW[name] = w
			}
		case "assign":
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err = p.expect(vEq, "'='"); err != nil {
				return nil, err
			}
			s, err := p.span(vSemi)
			if err != nil {
				return nil, err
			}
			w := p.wireW[name]
			if w == 0 {
				w = p.portW[name]
			}
			if w == 0 {
				return nil, errors.Errorf("verilog: assign to undeclared signal %q", name)
			}
			wires = append(wires, rtlgen.WireSpec{Name: name, Width: w, Expr: s})
		case "always":
			if err := p.parseAlways(spec); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf(i, "unexpected %q", kw)
		}
	}
}

func constVal(s string) (uint64, error) {
	e, err := rtlgen.ParseExpr(s)
	if err != nil {
		return 0, err
	}
	c, ok := e.(*rtlgen.Const)
	if !ok {
		return 0, errors.Errorf("verilog: %q is not a constant", s)
	}
	return c.Val, nil
}

func (p *parser) parseAlways(spec *rtlgen.ModuleSpec) error {
	if _, err := p.expect(vAt, "'@'"); err != nil {
		return err
	}
	if _, err := p.expect(vLParen, "'('"); err != nil {
		return err
	}
	if err := p.expectKw("posedge"); err != nil {
		return err
	}
	if err := p.expectKw(p.clock); err != nil {
		return err
	}
	if p.peek().Type == vIdent && p.peek().Value.(string) == "or" {
		p.next()
		if err := p.expectKw("posedge"); err != nil {
			return err
		}
		if err := p.expectKw(p.reset); err != nil {
			return err
		}
		spec.AsyncReset = true
	}
	if _, err := p.expect(vRParen, "')'"); err != nil {
		return err
	}
	if err := p.expectKw("begin"); err != nil {
		return err
	}

	// reset branch: the outermost conditional is always reset dominance
	if err := p.expectKw("if"); err != nil {
		return err
	}
	cond, err := p.parenSpan()
	if err != nil {
		return err
	}
	if cond != p.reset {
		return errors.Errorf("verilog: outermost conditional tests %q, not the reset", cond)
	}
	if err = p.expectKw("begin"); err != nil {
		return err
	}
	for {
		if p.peek().Type == vIdent && p.peek().Value.(string) == "end" {
			p.next()
			break
		}
		target, value, err := p.parseNBA()
		if err != nil {
			return err
		}
		p.resets = append(p.resets, resetAssign{target: target, value: value})
	}
	if err = p.expectKw("else"); err != nil {
		return err
	}
	if err = p.expectKw("begin"); err != nil {
		return err
	}
	if err = p.parseUpdates(); err != nil {
		return err
	}
	// closing "end" of the always block
	return p.expectKw("end")
}

// parseNBA parses "target <= value;".
//
func (p *parser) parseNBA() (target, value string, err error) {
	if target, err = p.expectIdent(); err != nil {
		return "", "", err
	}
	if _, err = p.expect(vNBA, "'<='"); err != nil {
		return "", "", err
	}
	if value, err = p.span(vSemi); err != nil {
		return "", "", err
	}
	return target, value, nil
}

// parseUpdates parses the else branch of the reset conditional: per
// register if/else-if chains, bare assignments, and the FSM case block,
// up to the closing "end".
//
func (p *parser) parseUpdates() error {
	for {
		i := p.peek()
		if i.Type != vIdent {
			return p.errorf(i, "unexpected %q in always block", i.String())
		}
		switch i.Value.(string) {
		case "end":
			p.next()
			return nil
		case "if":
			if err := p.parseChain(); err != nil {
				return err
			}
		case "case":
			if err := p.parseCase(); err != nil {
				return err
			}
		default:
			target, value, err := p.parseNBA()
			if err != nil {
				return err
			}
			p.rules[target] = append(p.rules[target], rtlgen.RuleSpec{Value: value})
		}
	}
}

// branch is one arm of an if/else-if chain.
//
type branch struct {
	guard  string // "" for the final unconditional else
	target string
	value  string
}

// parseChainBranches parses an if/else-if chain where every branch holds
// exactly one non-blocking assignment.
//
func (p *parser) parseChainBranches() ([]branch, error) {
	var out []branch
	for {
		if err := p.expectKw("if"); err != nil {
			return nil, err
		}
		guard, err := p.parenSpan()
		if err != nil {
			return nil, err
		}
		if err = p.expectKw("begin"); err != nil {
			return nil, err
		}
		target, value, err := p.parseNBA()
		if err != nil {
			return nil, err
		}
		if err = p.expectKw("end"); err != nil {
			return nil, err
		}
		out = append(out, branch{guard: guard, target: target, value: value})

		if p.peek().Type != vIdent || p.peek().Value.(string) != "else" {
			return out, nil
		}
		p.next()
		if p.peek().Type == vIdent && p.peek().Value.(string) == "if" {
			continue
		}
		// unconditional else
		if err = p.expectKw("begin"); err != nil {
			return nil, err
		}
		target, value, err = p.parseNBA()
		if err != nil {
			return nil, err
		}
		if err = p.expectKw("end"); err != nil {
			return nil, err
		}
		out = append(out, branch{target: target, value: value})
		return out, nil
	}
}

func (p *parser) parseChain() error {
	bs, err := p.parseChainBranches()
	if err != nil {
		return err
	}
	owner := bs[0].target
	for _, b := range bs {
		if b.target != owner {
			return errors.Errorf("verilog: mixed targets %q and %q in one conditional chain", owner, b.target)
		}
		p.rules[owner] = append(p.rules[owner], rtlgen.RuleSpec{Guard: b.guard, Value: b.value})
	}
	return nil
}

func (p *parser) parseCase() error {
	if err := p.expectKw("case"); err != nil {
		return err
	}
	subj, err := p.parenSpan()
	if err != nil {
		return err
	}
	p.caseOn = subj
	for {
		i := p.next()
		if i.Type != vIdent {
			return p.errorf(i, "expected case label or endcase")
		}
		label := i.Value.(string)
		if label == "endcase" {
			return nil
		}
		if _, err = p.expect(vColon, "':'"); err != nil {
			return err
		}
		if err = p.expectKw("begin"); err != nil {
			return err
		}
		if p.peek().Type == vIdent && p.peek().Value.(string) == "if" {
			bs, err := p.parseChainBranches()
			if err != nil {
				return err
			}
			for _, b := range bs {
				if b.target != subj {
					return errors.Errorf("verilog: case arm assigns %q, expected the state register", b.target)
				}
				p.trans = append(p.trans, rtlgen.TransitionSpec{From: label, Guard: b.guard, To: b.value})
			}
		} else {
			target, value, err := p.parseNBA()
			if err != nil {
				return err
			}
			if target != subj {
				return errors.Errorf("verilog: case arm assigns %q, expected the state register", target)
			}
			p.trans = append(p.trans, rtlgen.TransitionSpec{From: label, To: value})
		}
		if err = p.expectKw("end"); err != nil {
			return err
		}
	}
}

// assemble turns the collected declarations into a ModuleSpec.
//
func (p *parser) assemble(spec *rtlgen.ModuleSpec, wires []rtlgen.WireSpec) (*rtlgen.ModuleSpec, error) {
	spec.Wires = wires

	// FSM state names come from the localparams, encoding order
	isState := make(map[string]bool, len(p.params))
	if len(p.params) > 0 {
		f := &rtlgen.FSMSpec{StateSignal: p.caseOn}
		states := append([]param(nil), p.params...)
		for i := 1; i < len(states); i++ {
			for j := i; j > 0 && states[j].val < states[j-1].val; j-- {
				states[j], states[j-1] = states[j-1], states[j]
			}
		}
		for _, st := range states {
			f.States = append(f.States, rtlgen.StateSpec{Name: st.name})
			isState[st.name] = true
		}
		f.Transitions = p.trans
		spec.FSM = f
	}

	// register order and reset values follow the reset branch, which
	// lists every storage element
	for _, r := range p.resets {
		if isState[r.value] && (p.caseOn == "" || r.target == p.caseOn) {
			// state register initialization
			if spec.FSM != nil {
				spec.FSM.Initial = r.value
				if spec.FSM.StateSignal == "" {
					spec.FSM.StateSignal = r.target
				}
			}
			continue
		}
		w := p.regW[r.target]
		if w == 0 {
			w = p.portW[r.target]
		}
		if w == 0 {
			return nil, errors.Errorf("verilog: register %q has no declaration", r.target)
		}
		v, err := constVal(r.value)
		if err != nil {
			return nil, errors.Wrapf(err, "reset value of %q", r.target)
		}
		spec.Regs = append(spec.Regs, rtlgen.RegSpec{
			Name:  r.target,
			Width: w,
			Reset: v,
			Rules: p.rules[r.target],
		})
	}
	return spec, nil
}

// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen

import (
	"math/bits"
	"strconv"
)

// An Op is an expression operator.
//
type Op int

// Operators, in no particular order. Comparison and logical operators
// yield 1 bit results; arithmetic results are widened so that no
// information is lost before assignment (an 8x8 product is 16 bits wide).
//
const (
	OpNot Op = iota // !x
	OpInv           // ~x
	OpNeg           // -x
	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpLAnd
	OpLOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opStrings = map[Op]string{
	OpNot: "!", OpInv: "~", OpNeg: "-",
	OpAdd: "+", OpSub: "-", OpMul: "*",
	OpAnd: "&", OpOr: "|", OpXor: "^",
	OpShl: "<<", OpShr: ">>",
	OpLAnd: "&&", OpLOr: "||",
	OpEq: "==", OpNe: "!=",
	OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
}

func (op Op) String() string { return opStrings[op] }

// An Expr is a pure expression over signals. Expressions are built by
// ParseExpr or the model builders, bound to a module's signal table at
// build time, and evaluated against a value frame by the simulator.
//
type Expr interface {
	// Width returns the inferred bit width of the expression. Only valid
	// after binding.
	Width() int
	// String renders the expression in Verilog syntax. Rendering is
	// stable: the same expression always produces the same text.
	String() string

	eval(f []uint64) uint64
	bind(b *binder) error
	refs(set map[string]bool)
}

// mask returns a bit mask for a width w value.
//
func mask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(w) - 1
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// A Const is an integer literal. Size > 0 makes it a sized literal
// (rendered as Size'dVal), otherwise the width is the minimal number of
// bits holding Val.
//
type Const struct {
	Val  uint64
	Size int
}

func (c *Const) Width() int {
	if c.Size > 0 {
		return c.Size
	}
	if w := bits.Len64(c.Val); w > 1 {
		return w
	}
	return 1
}

func (c *Const) String() string {
	if c.Size > 0 {
		return strconv.Itoa(c.Size) + "'d" + strconv.FormatUint(c.Val, 10)
	}
	return strconv.FormatUint(c.Val, 10)
}

func (c *Const) eval(f []uint64) uint64   { return c.Val & mask(c.Width()) }
func (c *Const) bind(b *binder) error     { return nil }
func (c *Const) refs(set map[string]bool) {}

// A Ref is a reference to a named signal, or to a named constant such as
// a state name used inside a guard.
//
type Ref struct {
	Name string

	sig     int
	w       int
	isConst bool
	cval    uint64
}

func (r *Ref) Width() int     { return r.w }
func (r *Ref) String() string { return r.Name }

func (r *Ref) eval(f []uint64) uint64 {
	if r.isConst {
		return r.cval
	}
	return f[r.sig]
}

func (r *Ref) bind(b *binder) error {
	if v, w, ok := b.constant(r.Name); ok {
		r.isConst, r.cval, r.w = true, v, w
		return nil
	}
	sig, w, ok := b.signal(r.Name)
	if !ok {
		return &UndefinedSignalError{Signal: r.Name, Context: b.ctx}
	}
	r.sig, r.w = sig, w
	return nil
}

func (r *Ref) refs(set map[string]bool) { set[r.Name] = true }

// A Unary is a unary operation.
//
type Unary struct {
	Op Op
	X  Expr
}

func (u *Unary) Width() int {
	if u.Op == OpNot {
		return 1
	}
	return u.X.Width()
}

func (u *Unary) String() string {
	if _, leaf := u.X.(*Ref); leaf {
		return u.Op.String() + u.X.String()
	}
	if _, leaf := u.X.(*Const); leaf {
		return u.Op.String() + u.X.String()
	}
	return u.Op.String() + "(" + u.X.String() + ")"
}

func (u *Unary) eval(f []uint64) uint64 {
	x := u.X.eval(f)
	switch u.Op {
	case OpNot:
		return b2u(x == 0)
	case OpInv:
		return ^x & mask(u.X.Width())
	case OpNeg:
		return -x & mask(u.X.Width())
	}
	panic("invalid unary op")
}

func (u *Unary) bind(b *binder) error     { return u.X.bind(b) }
func (u *Unary) refs(set map[string]bool) { u.X.refs(set) }

// A Binary is a binary operation.
//
type Binary struct {
	Op   Op
	X, Y Expr
}

func maxw(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func capw(w int) int {
	if w > 64 {
		return 64
	}
	return w
}

func (e *Binary) Width() int {
	switch e.Op {
	case OpAdd, OpSub:
		return capw(maxw(e.X.Width(), e.Y.Width()) + 1)
	case OpMul:
		return capw(e.X.Width() + e.Y.Width())
	case OpAnd, OpOr, OpXor:
		return maxw(e.X.Width(), e.Y.Width())
	case OpShl, OpShr:
		return e.X.Width()
	default: // comparisons, logical
		return 1
	}
}

func (e *Binary) String() string {
	return "(" + e.X.String() + " " + e.Op.String() + " " + e.Y.String() + ")"
}

func (e *Binary) eval(f []uint64) uint64 {
	x, y := e.X.eval(f), e.Y.eval(f)
	switch e.Op {
	case OpAdd:
		return (x + y) & mask(e.Width())
	case OpSub:
		return (x - y) & mask(e.Width())
	case OpMul:
		return (x * y) & mask(e.Width())
	case OpAnd:
		return x & y
	case OpOr:
		return x | y
	case OpXor:
		return x ^ y
	case OpShl:
		if y >= 64 {
			return 0
		}
		return (x << y) & mask(e.Width())
	case OpShr:
		if y >= 64 {
			return 0
		}
		return x >> y
	case OpLAnd:
		return b2u(x != 0 && y != 0)
	case OpLOr:
		return b2u(x != 0 || y != 0)
	case OpEq:
		return b2u(x == y)
	case OpNe:
		return b2u(x != y)
	case OpLt:
		return b2u(x < y)
	case OpLe:
		return b2u(x <= y)
	case OpGt:
		return b2u(x > y)
	case OpGe:
		return b2u(x >= y)
	}
	panic("invalid binary op")
}

func (e *Binary) bind(b *binder) error {
	if err := e.X.bind(b); err != nil {
		return err
	}
	return e.Y.bind(b)
}

func (e *Binary) refs(set map[string]bool) {
	e.X.refs(set)
	e.Y.refs(set)
}

// A Cond is a ternary conditional c ? t : e.
//
type Cond struct {
	If   Expr
	Then Expr
	Else Expr
}

func (c *Cond) Width() int {
	return maxw(c.Then.Width(), c.Else.Width())
}

func (c *Cond) String() string {
	return "(" + c.If.String() + " ? " + c.Then.String() + " : " + c.Else.String() + ")"
}

func (c *Cond) eval(f []uint64) uint64 {
	if c.If.eval(f) != 0 {
		return c.Then.eval(f)
	}
	return c.Else.eval(f)
}

func (c *Cond) bind(b *binder) error {
	if err := c.If.bind(b); err != nil {
		return err
	}
	if err := c.Then.bind(b); err != nil {
		return err
	}
	return c.Else.bind(b)
}

func (c *Cond) refs(set map[string]bool) {
	c.If.refs(set)
	c.Then.refs(set)
	c.Else.refs(set)
}

// Refs returns the set of signal and constant names referenced by e.
//
func Refs(e Expr) map[string]bool {
	set := make(map[string]bool)
	e.refs(set)
	return set
}

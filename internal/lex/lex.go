// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package lex implements a small state-function based lexer engine.
//
// Clients provide an initial StateFn; a state reads runes with Next,
// emits items with Emit and returns the next state (nil returns control
// to the initial state).
//
package lex

import (
	"fmt"
	"io"
)

// EOF is returned by Next at end of input. It doubles as the item Type
// emitted once the input is exhausted.
//
const EOF = -1

// Pos is a byte offset into the input.
//
type Pos int

// Type identifies the type of an Item. Values >= 0 are client-defined.
//
type Type int

// An Item is a token emitted by the lexer.
//
type Item struct {
	Type  Type
	Pos   Pos
	Value interface{}
}

func (i Item) String() string {
	return fmt.Sprintf("%v", i.Value)
}

// A StateFn reads runes from the lexer, emits items and returns the next
// state. Returning nil hands control back to the initial state.
//
type StateFn func(l *Lexer) StateFn

// Interface is the item stream consumed by parsers.
//
type Interface interface {
	Lex() Item
}

// A Lexer runs a state machine over an input stream and produces Items.
//
type Lexer struct {
	r     io.RuneReader
	init  StateFn
	state StateFn
	queue []Item

	cur     rune
	curPos  Pos
	nextPos Pos
	start   Pos
	backed  bool
	pending bool // next rune read starts a new token
}

// New returns a new lexer reading from r, starting in state init.
//
func New(r io.RuneReader, init StateFn) *Lexer {
	return &Lexer{r: r, init: init, cur: EOF, pending: true}
}

// Lex runs the state machine until an item is available and returns it.
//
func (l *Lexer) Lex() Item {
	for len(l.queue) == 0 {
		if l.state == nil {
			l.state = l.init
		}
		l.state = l.state(l)
	}
	i := l.queue[0]
	l.queue = l.queue[1:]
	return i
}

// Next returns the next rune in the input, or EOF.
//
func (l *Lexer) Next() rune {
	if l.backed {
		l.backed = false
		return l.cur
	}
	if l.pending {
		l.start = l.nextPos
		l.pending = false
	}
	r, sz, err := l.r.ReadRune()
	if err != nil {
		l.cur = EOF
		l.curPos = l.nextPos
		return EOF
	}
	l.cur = r
	l.curPos = l.nextPos
	l.nextPos += Pos(sz)
	return r
}

// Backup un-reads the last rune. Only one rune of look-ahead is supported.
//
func (l *Lexer) Backup() {
	l.backed = true
}

// Current returns the last rune returned by Next.
//
func (l *Lexer) Current() rune {
	return l.cur
}

// Pos returns the byte offset of the current rune.
//
func (l *Lexer) Pos() Pos {
	return l.curPos
}

// AcceptWhile consumes runes as long as f returns true. The first rune
// for which f returns false is left un-read.
//
func (l *Lexer) AcceptWhile(f func(r rune) bool) {
	for r := l.Next(); r != EOF && f(r); r = l.Next() {
	}
	l.Backup()
}

// Emit queues an item of the given type and value. The item position is
// that of the first rune consumed since the previous Emit.
//
func (l *Lexer) Emit(t Type, value interface{}) {
	l.queue = append(l.queue, Item{Type: t, Pos: l.start, Value: value})
	l.pending = true
}

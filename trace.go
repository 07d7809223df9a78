// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen

import (
	"sort"
	"strconv"
	"strings"
)

// A Trace is the cycle-by-cycle record of every signal value, produced
// by Simulate. Traces are immutable once produced; they are the unit
// compared by the round-trip validator. Cycles are numbered from 1.
//
type Trace struct {
	signals []string
	index   map[string]int
	rows    [][]uint64
}

func newTrace(m *Module, cycles int) *Trace {
	t := &Trace{
		signals: m.Signals(),
		index:   make(map[string]int, len(m.signals)),
		rows:    make([][]uint64, cycles),
	}
	for i, n := range t.signals {
		t.index[n] = i
	}
	for i := range t.rows {
		t.rows[i] = make([]uint64, len(t.signals))
	}
	return t
}

// Cycles returns the number of recorded cycles.
//
func (t *Trace) Cycles() int { return len(t.rows) }

// Signals returns the recorded signal names in frame order.
//
func (t *Trace) Signals() []string { return t.signals }

// Value returns the value of a signal at the given cycle (1-based).
//
func (t *Trace) Value(cycle int, signal string) (uint64, bool) {
	i, ok := t.index[signal]
	if !ok || cycle < 1 || cycle > len(t.rows) {
		return 0, false
	}
	return t.rows[cycle-1][i], true
}

// Diff compares t (the reference) against other, signal-by-signal and
// cycle-by-cycle, and returns every mismatch found, not just the first.
// Equality is exact: no tolerance. A signal present on one side only
// mismatches at every cycle. The result is sorted by cycle then signal.
//
func (t *Trace) Diff(other *Trace) []Mismatch {
	var ms []Mismatch
	for si, name := range t.signals {
		oi, ok := other.index[name]
		for c := range t.rows {
			exp := t.rows[c][si]
			// a signal or cycle absent from other mismatches regardless
			// of the expected value
			if ok && c < len(other.rows) {
				if act := other.rows[c][oi]; act != exp {
					ms = append(ms, Mismatch{Cycle: c + 1, Signal: name, Expected: exp, Actual: act})
				}
				continue
			}
			ms = append(ms, Mismatch{Cycle: c + 1, Signal: name, Expected: exp, Actual: 0})
		}
	}
	for name, oi := range other.index {
		if _, ok := t.index[name]; ok {
			continue
		}
		for c := range other.rows {
			ms = append(ms, Mismatch{Cycle: c + 1, Signal: name, Expected: 0, Actual: other.rows[c][oi]})
		}
	}
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Cycle != ms[j].Cycle {
			return ms[i].Cycle < ms[j].Cycle
		}
		return ms[i].Signal < ms[j].Signal
	})
	return ms
}

// String renders the trace as a table, one cycle per line. Intended for
// test failure output.
//
func (t *Trace) String() string {
	var b strings.Builder
	b.WriteString("cycle")
	for _, n := range t.signals {
		b.WriteRune(' ')
		b.WriteString(n)
	}
	b.WriteRune('\n')
	for c, row := range t.rows {
		b.WriteString(strconv.Itoa(c + 1))
		for _, v := range row {
			b.WriteRune(' ')
			b.WriteString(strconv.FormatUint(v, 10))
		}
		b.WriteRune('\n')
	}
	return b.String()
}

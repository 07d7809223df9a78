// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen

import "strconv"

// Edge-case stimulus synthesis. When the user supplies no timing
// diagram, the validator still needs vectors that reach the interesting
// corners of the model: reset behavior, each update rule and transition
// guard, and both sides of every dwell counter threshold. The heuristic
// here is deterministic: same model, same vectors, in the same order.

// A NamedStimulus pairs a synthesized stimulus with the corner it
// targets and the cycle count it needs.
//
type NamedStimulus struct {
	Name   string
	Stim   Stimulus
	Cycles int
}

// SynthesizeStimuli derives a deterministic set of edge-case vectors
// from the model:
//
//   - a reset vector (reset asserted two cycles, then released),
//   - one vector per storage update rule, driving the inputs named by
//     its guard to satisfying values,
//   - one vector per FSM transition, steering the machine along a
//     guard-solved walk into the transition's source state, parking it
//     there long enough to cross any dwell counter threshold in the
//     guard, then driving the guard-satisfying values,
//   - an all-ones hold vector.
//
// Guard satisfaction is analytic only for conjunctions of comparisons
// against constants; anything else falls back to driving the referenced
// inputs all-ones.
//
func (m *Module) SynthesizeStimuli() []NamedStimulus {
	reset := map[string]uint64{m.Reset: 1}
	release := map[string]uint64{m.Reset: 0}

	out := []NamedStimulus{{
		Name:   "reset",
		Stim:   Stimulus{reset, reset, release},
		Cycles: 8,
	}}

	for _, se := range m.Storage {
		for i := range se.Rules {
			r := &se.Rules[i]
			drive := map[string]uint64{m.Reset: 0}
			dwell := 0
			if r.Guard != nil {
				m.solveGuard(r.Guard, drive)
				dwell = m.guardDwell(r.Guard)
			}
			out = append(out, NamedStimulus{
				Name:   "reg/" + se.Name + "/" + strconv.Itoa(i),
				Stim:   Stimulus{reset, release, drive},
				Cycles: 6 + dwell,
			})
		}
	}
	if f := m.FSM; f != nil {
		for si := range f.States {
			st := &f.States[si]
			for ti := range st.Transitions {
				stim, cycles := m.transitionStimulus(si, &st.Transitions[ti])
				out = append(out, NamedStimulus{
					Name:   "fsm/" + st.Name + "/" + st.Transitions[ti].To + "/" + strconv.Itoa(ti),
					Stim:   stim,
					Cycles: cycles,
				})
			}
		}
	}

	ones := map[string]uint64{m.Reset: 0}
	for _, p := range m.InputPorts() {
		ones[p.Name] = mask(p.Width)
	}
	out = append(out, NamedStimulus{
		Name:   "ones",
		Stim:   Stimulus{reset, release, ones},
		Cycles: 12,
	})
	return out
}

// transitionStimulus builds a vector that actually takes the given
// transition out of state src: one reset cycle, a guard-solved walk from
// the initial state to src, a hold phase keeping the machine parked in
// src until any dwell counter threshold in the guard is crossed, then
// the guard-satisfying drive. Every post-reset entry carries input
// values, so the machine never strays off the walk on defaulted inputs.
//
func (m *Module) transitionStimulus(src int, tr *Transition) (Stimulus, int) {
	f := m.FSM
	stim := Stimulus{map[string]uint64{m.Reset: 1}}
	next := func() map[string]uint64 {
		d := map[string]uint64{}
		if len(stim) == 1 {
			d[m.Reset] = 0
		}
		stim = append(stim, d)
		return d
	}

	cur := f.initial
	for _, hop := range f.path(src) {
		d := next()
		m.parkDrive(cur, d)
		if hop.Guard != nil {
			m.solveGuard(hop.Guard, d)
		}
		cur = hop.to
	}
	dwell := 0
	if tr.Guard != nil {
		dwell = m.guardDwell(tr.Guard)
	}
	if dwell > 0 {
		hold := next()
		m.parkDrive(src, hold)
		for i := 1; i < dwell; i++ {
			stim = append(stim, hold)
		}
	}
	d := next()
	m.parkDrive(src, d)
	if tr.Guard != nil {
		m.solveGuard(tr.Guard, d)
	}
	return stim, len(stim) + 4
}

// parkDrive falsifies every transition guard of state si into d, so the
// machine holds si through its implicit self-loop. Solving the wanted
// guard afterwards overrides the inputs it names.
//
func (m *Module) parkDrive(si int, d map[string]uint64) {
	for ti := range m.FSM.States[si].Transitions {
		if g := m.FSM.States[si].Transitions[ti].Guard; g != nil {
			m.falsifyGuard(g, d)
		}
	}
}

// path returns a shortest transition walk from the initial state to
// state si, or nil when si is the initial state or unreachable.
//
func (f *FSM) path(si int) []*Transition {
	if si == f.initial {
		return nil
	}
	prev := make([]*Transition, len(f.States))
	from := make([]int, len(f.States))
	seen := make([]bool, len(f.States))
	seen[f.initial] = true
	queue := []int{f.initial}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for ti := range f.States[s].Transitions {
			tr := &f.States[s].Transitions[ti]
			if seen[tr.to] {
				continue
			}
			seen[tr.to] = true
			prev[tr.to] = tr
			from[tr.to] = s
			if tr.to == si {
				var hops []*Transition
				for s := si; s != f.initial; s = from[s] {
					hops = append(hops, prev[s])
				}
				for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
					hops[i], hops[j] = hops[j], hops[i]
				}
				return hops
			}
			queue = append(queue, tr.to)
		}
	}
	return nil
}

// isInput reports whether name is a drivable input port (not the reset).
//
func (m *Module) isInput(name string) bool {
	i, ok := m.index[name]
	return ok && m.signals[i].kind == sigInput && name != m.Reset
}

// solveGuard derives input assignments that satisfy e when e is a
// conjunction of simple comparisons; otherwise it drives every input
// referenced by e all-ones.
//
func (m *Module) solveGuard(e Expr, into map[string]uint64) {
	switch e := e.(type) {
	case *Ref:
		if m.isInput(e.Name) {
			into[e.Name] = 1
		}
		return
	case *Unary:
		if r, ok := e.X.(*Ref); ok && e.Op == OpNot && m.isInput(r.Name) {
			into[r.Name] = 0
			return
		}
	case *Binary:
		switch e.Op {
		case OpLAnd, OpAnd:
			m.solveGuard(e.X, into)
			m.solveGuard(e.Y, into)
			return
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			if r, ok := e.X.(*Ref); ok {
				if c, ok := e.Y.(*Const); ok && m.isInput(r.Name) {
					into[r.Name] = cmpBoundary(e.Op, c.Val, r.w)
					return
				}
			}
		}
	}
	// fallback: drive every referenced input all-ones
	for name := range Refs(e) {
		if m.isInput(name) {
			into[name] = mask(m.signals[m.index[name]].width)
		}
	}
}

// falsifyGuard derives input assignments that falsify e where it is
// analyzable, so a state parks on its implicit self-loop. Unanalyzable
// expressions fall back to driving the referenced inputs to zero.
//
func (m *Module) falsifyGuard(e Expr, into map[string]uint64) {
	switch e := e.(type) {
	case *Ref:
		if m.isInput(e.Name) {
			into[e.Name] = 0
		}
		return
	case *Unary:
		if r, ok := e.X.(*Ref); ok && e.Op == OpNot && m.isInput(r.Name) {
			into[r.Name] = 1
			return
		}
	case *Binary:
		switch e.Op {
		case OpLAnd, OpAnd:
			// falsifying either conjunct suffices; prefer one that
			// actually drives an input
			n := len(into)
			m.falsifyGuard(e.X, into)
			if len(into) == n {
				m.falsifyGuard(e.Y, into)
			}
			return
		case OpLOr, OpOr:
			m.falsifyGuard(e.X, into)
			m.falsifyGuard(e.Y, into)
			return
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			if r, ok := e.X.(*Ref); ok {
				if c, ok := e.Y.(*Const); ok && m.isInput(r.Name) {
					into[r.Name] = cmpFail(e.Op, c.Val, r.w)
					return
				}
			}
		}
	}
	for name := range Refs(e) {
		if m.isInput(name) {
			into[name] = 0
		}
	}
}

// cmpBoundary returns the boundary value making "x op k" hold for a
// width w input.
//
func cmpBoundary(op Op, k uint64, w int) uint64 {
	switch op {
	case OpEq, OpGe, OpLe:
		return k & mask(w)
	case OpNe, OpGt:
		return (k + 1) & mask(w)
	case OpLt:
		if k > 0 {
			return k - 1
		}
	}
	return 0
}

// cmpFail returns a value making "x op k" fail for a width w input,
// where one exists.
//
func cmpFail(op Op, k uint64, w int) uint64 {
	switch op {
	case OpEq, OpLe:
		return (k + 1) & mask(w)
	case OpNe, OpLt:
		return k & mask(w)
	case OpGe:
		if k > 0 {
			return k - 1
		}
	}
	return 0
}

// guardDwell returns the extra cycles needed for any dwell counter
// threshold referenced by the guard to be crossed: the largest constant
// compared against a storage element, plus a margin covering both sides
// of the boundary.
//
func (m *Module) guardDwell(e Expr) int {
	switch e := e.(type) {
	case *Unary:
		return m.guardDwell(e.X)
	case *Cond:
		d := m.guardDwell(e.If)
		if t := m.guardDwell(e.Then); t > d {
			d = t
		}
		if t := m.guardDwell(e.Else); t > d {
			d = t
		}
		return d
	case *Binary:
		switch e.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			r, rok := e.X.(*Ref)
			c, cok := e.Y.(*Const)
			if rok && cok && !r.isConst {
				if i, ok := m.index[r.Name]; ok && m.signals[i].kind == sigReg && c.Val < 1<<20 {
					return int(c.Val) + 4
				}
			}
			return 0
		default:
			d := m.guardDwell(e.X)
			if t := m.guardDwell(e.Y); t > d {
				d = t
			}
			return d
		}
	}
	return 0
}

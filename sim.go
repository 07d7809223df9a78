// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen

// A Stimulus is an ordered sequence of input port assignments, one entry
// per cycle. Ports absent from an entry keep their previous value; when
// the simulation runs past the last entry, that entry is held.
//
type Stimulus []map[string]uint64

// Simulate replays the model against stim for the given number of cycles
// and returns the trace. Simulation is purely deterministic: the same
// model and stimulus always produce the same trace.
//
// Each cycle: the stimulus entry is applied to the input ports, the
// combinational bindings are evaluated in their fixed topological order,
// then every storage update rule and transition guard is evaluated
// against that same pre-commit frame, and all new values are committed
// at once by swapping frames. There is no intra-cycle read-after-write:
// an update computed in cycle k never observes a value committed in
// cycle k.
//
// Reset asserted forces every storage element to its reset value and the
// FSM to its initial state, overriding all other guards that cycle.
//
// The recorded snapshot for cycle k holds the inputs as driven during k,
// the combinational values visible during k, and the storage and state
// values committed at the end of k.
//
func (m *Module) Simulate(stim Stimulus, cycles int) (*Trace, error) {
	for _, entry := range stim {
		for name := range entry {
			i, ok := m.index[name]
			if !ok || m.signals[i].kind != sigInput {
				return nil, &UndefinedSignalError{Signal: name, Context: "stimulus"}
			}
		}
	}

	cur := make([]uint64, len(m.signals))
	nxt := make([]uint64, len(m.signals))
	for _, se := range m.Storage {
		cur[se.sig] = se.Reset
	}
	if f := m.FSM; f != nil {
		cur[f.sig] = uint64(f.initial)
	}

	t := newTrace(m, cycles)
	for c := 0; c < cycles; c++ {
		if len(stim) > 0 {
			entry := stim[len(stim)-1]
			if c < len(stim) {
				entry = stim[c]
			}
			for name, v := range entry {
				i := m.index[name]
				cur[i] = v & mask(m.signals[i].width)
			}
		}

		for _, w := range m.Wires {
			cur[w.sig] = w.Expr.eval(cur) & mask(w.Width)
		}

		copy(nxt, cur)
		if cur[m.resetSig] != 0 {
			// reset dominates every other guard this cycle
			for _, se := range m.Storage {
				nxt[se.sig] = se.Reset
			}
			if f := m.FSM; f != nil {
				nxt[f.sig] = uint64(f.initial)
			}
		} else {
			for _, se := range m.Storage {
				for i := range se.Rules {
					r := &se.Rules[i]
					if r.Guard == nil || r.Guard.eval(cur) != 0 {
						nxt[se.sig] = r.Value.eval(cur) & mask(se.Width)
						break
					}
				}
			}
			if f := m.FSM; f != nil {
				st := &f.States[cur[f.sig]]
				for i := range st.Transitions {
					tr := &st.Transitions[i]
					if tr.Guard == nil || tr.Guard.eval(cur) != 0 {
						nxt[f.sig] = uint64(tr.to)
						break
					}
				}
			}
		}

		row := t.rows[c]
		for i, sg := range m.signals {
			if sg.kind == sigReg || sg.kind == sigState {
				row[i] = nxt[i]
			} else {
				row[i] = cur[i]
			}
		}
		cur, nxt = nxt, cur
	}
	return t, nil
}

// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen

// Direction of a port.
//
type Direction int

// Port directions.
//
const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// PortKind tells how a port is driven in the emitted code: wire ports are
// driven by a continuous assignment, reg ports are storage elements
// updated at the clock edge.
//
type PortKind int

// Port kinds.
//
const (
	KindWire PortKind = iota
	KindReg
)

func (k PortKind) String() string {
	if k == KindReg {
		return "reg"
	}
	return "wire"
}

// ResetKind selects synchronous or asynchronous reset. Both collapse to
// "reset wins this cycle" in a cycle-stepped simulation; the declaration
// is preserved because it changes the emitted sensitivity list.
//
type ResetKind int

// Reset kinds.
//
const (
	ResetSync ResetKind = iota
	ResetAsync
)

// A Port is a single named port of a module.
//
type Port struct {
	Name  string
	Dir   Direction
	Width int
	Kind  PortKind
}

// An UpdateRule is one guarded assignment of a storage element. Rules are
// kept sorted by ascending rank; the first rule whose guard holds wins
// the cycle. A nil guard always holds.
//
type UpdateRule struct {
	Guard Expr
	Value Expr
	Rank  int
}

// A StorageElement is a clocked register. It is mutated only at
// clock-edge evaluation: the simulator computes its next value from the
// pre-commit frame and commits all elements simultaneously.
//
type StorageElement struct {
	Name  string
	Width int
	Reset uint64
	Rules []UpdateRule

	sig int
}

// A CombBinding is a pure function of other signals, re-evaluated every
// cycle in topological order.
//
type CombBinding struct {
	Name  string
	Width int
	Expr  Expr

	sig int
}

// A State is one FSM state. Outputs is the Moore-style output map: the
// constant each mapped output port takes while in this state.
//
type State struct {
	Name    string
	Outputs map[string]uint64
	// Transitions out of this state, sorted by ascending rank. If no
	// guard holds the state holds itself (implicit self-loop).
	Transitions []Transition
}

// A Transition is a guarded FSM transition.
//
type Transition struct {
	Guard Expr
	To    string
	Rank  int

	to int
}

// An FSM is the control-form sub-model: a finite state machine with
// Moore outputs and priority-ordered transitions.
//
type FSM struct {
	StateSignal string
	Initial     string
	States      []State

	Width   int // state register width
	initial int
	sig     int
	byName  map[string]int
}

// StateIndex returns the encoding of the named state, or -1.
//
func (f *FSM) StateIndex(name string) int {
	if i, ok := f.byName[name]; ok {
		return i
	}
	return -1
}

// signal kinds in the value frame.
//
type sigKind int

const (
	sigInput sigKind = iota // input port, incl. reset
	sigWire                 // combinational binding
	sigReg                  // storage element
	sigState                // FSM state register
)

type signal struct {
	name  string
	width int
	kind  sigKind
}

// A Module is a complete, immutable synthesis model: interface, storage,
// and control/data-flow. Modules are built once by ModuleSpec.Build and
// never mutated afterwards; simulation runs against a module concurrently
// from any number of goroutines.
//
type Module struct {
	Name      string
	Clock     string
	Reset     string
	ResetKind ResetKind
	Ports     []Port
	Storage   []*StorageElement
	// Wires holds the combinational bindings in topological evaluation
	// order, computed once at build time.
	Wires []*CombBinding
	FSM   *FSM
	// Warnings collects the non-fatal width mismatches found at build
	// time (silent truncation hazards).
	Warnings []*WidthMismatchError

	signals  []signal
	index    map[string]int
	resetSig int
}

// Signals returns the names of all value-carrying signals, in frame
// order: inputs (reset first), storage, state, then wires.
//
func (m *Module) Signals() []string {
	names := make([]string, len(m.signals))
	for i, s := range m.signals {
		names[i] = s.name
	}
	return names
}

// SignalWidth returns the declared width of a signal, or 0 if the signal
// does not exist. The clock is not a value signal.
//
func (m *Module) SignalWidth(name string) int {
	if i, ok := m.index[name]; ok {
		return m.signals[i].width
	}
	return 0
}

// InputPorts returns the input ports other than clock and reset.
//
func (m *Module) InputPorts() []Port {
	var in []Port
	for _, p := range m.Ports {
		if p.Dir == DirIn && p.Name != m.Clock && p.Name != m.Reset {
			in = append(in, p)
		}
	}
	return in
}

// binder resolves expression references against a module under
// construction. State names resolve to constants of the state register
// width.
//
type binder struct {
	m   *Module
	ctx string
}

func (b *binder) signal(name string) (sig, width int, ok bool) {
	i, ok := b.m.index[name]
	if !ok {
		return 0, 0, false
	}
	return i, b.m.signals[i].width, true
}

func (b *binder) constant(name string) (val uint64, width int, ok bool) {
	if f := b.m.FSM; f != nil {
		if i, ok := f.byName[name]; ok {
			return uint64(i), f.Width, true
		}
	}
	return 0, 0, false
}

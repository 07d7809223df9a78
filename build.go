// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen

import (
	"math/bits"
	"sort"

	"github.com/pkg/errors"
)

// A WireSpec declares a combinational binding.
//
type WireSpec struct {
	Name  string
	Width int
	Expr  string
}

// A RuleSpec is one guarded update of a register. An empty guard always
// holds. Rank 0 on every rule of a register means "declared order"; as
// soon as one rule carries an explicit rank, all ranks must be distinct.
//
type RuleSpec struct {
	Guard string
	Value string
	Rank  int
}

// A RegSpec declares a storage element. Reset defaults to zero.
//
type RegSpec struct {
	Name  string
	Width int
	Reset uint64
	Rules []RuleSpec
}

// A StateSpec declares one FSM state and its Moore output map. Output
// ports absent from the map are deasserted in that state.
//
type StateSpec struct {
	Name    string
	Outputs map[string]uint64
}

// A TransitionSpec declares a guarded transition. Rank semantics are the
// same as for RuleSpec, per source state.
//
type TransitionSpec struct {
	From  string
	Guard string
	To    string
	Rank  int
}

// A CounterSpec declares a dwell counter: a register that counts
// consecutive cycles spent in a state and clears on leaving it.
//
type CounterSpec struct {
	Name    string
	Width   int
	InState string
}

// An FSMSpec declares the control-form sub-model.
//
type FSMSpec struct {
	StateSignal string // default "state"
	Initial     string
	States      []StateSpec
	Transitions []TransitionSpec
	Counters    []CounterSpec
}

// A ModuleSpec is the normalized design intent handed to the builders.
// Build derives the complete immutable model from it; building is pure
// and idempotent.
//
type ModuleSpec struct {
	Name       string
	In         string // input port spec, e.g. "en, clear, a[8], b[8]"
	Out        string // output port spec
	Clock      string // default "clk"
	Reset      string // default "rst"
	AsyncReset bool
	Wires      []WireSpec
	Regs       []RegSpec
	FSM        *FSMSpec
}

const maxWidth = 64

func clog2(n int) int {
	if w := bits.Len(uint(n - 1)); w > 1 {
		return w
	}
	return 1
}

func (m *Module) addSignal(name string, width int, kind sigKind) (int, error) {
	if name == m.Clock {
		return 0, &AmbiguousInterfaceError{Port: name, Reason: "collides with the clock"}
	}
	if _, ok := m.index[name]; ok {
		return 0, &AmbiguousInterfaceError{Port: name, Reason: "declared more than once"}
	}
	if width < 1 || width > maxWidth {
		return 0, &AmbiguousInterfaceError{Port: name, Reason: "width out of range [1, 64]"}
	}
	n := len(m.signals)
	m.signals = append(m.signals, signal{name: name, width: width, kind: kind})
	m.index[name] = n
	return n, nil
}

// ruleOrder returns the evaluation order for n ranked items. If every
// rank is zero, declared order is used; otherwise ranks must be distinct
// and the order is ascending rank. A tie is an AmbiguousPriorityError:
// it must be resolved in the spec, never at run time.
//
func ruleOrder(owner string, n int, rank func(int) int) ([]int, error) {
	ord := make([]int, n)
	all0 := true
	for i := range ord {
		ord[i] = i
		if rank(i) != 0 {
			all0 = false
		}
	}
	if all0 {
		return ord, nil
	}
	sort.SliceStable(ord, func(i, j int) bool { return rank(ord[i]) < rank(ord[j]) })
	for i := 1; i < n; i++ {
		if rank(ord[i]) == rank(ord[i-1]) {
			return nil, &AmbiguousPriorityError{Element: owner, Rank: rank(ord[i])}
		}
	}
	return ord, nil
}

// Build derives the model from the spec: ports, storage, combinational
// DAG and FSM, with every expression parsed, bound and checked. Build
// errors are fatal: no partial model is ever returned. Width mismatches
// are collected as warnings on the returned module instead.
//
func (s *ModuleSpec) Build() (*Module, error) {
	name := s.Name
	if name == "" {
		name = "top"
	}
	m := &Module{
		Name:  name,
		Clock: s.Clock,
		Reset: s.Reset,
		index: make(map[string]int),
	}
	if m.Clock == "" {
		m.Clock = "clk"
	}
	if m.Reset == "" {
		m.Reset = "rst"
	}
	if s.AsyncReset {
		m.ResetKind = ResetAsync
	}

	// interface
	ins, err := parsePortList(s.In)
	if err != nil {
		return nil, errors.Wrap(err, "input ports")
	}
	outs, err := parsePortList(s.Out)
	if err != nil {
		return nil, errors.Wrap(err, "output ports")
	}
	m.Ports = append(m.Ports,
		Port{Name: m.Clock, Dir: DirIn, Width: 1},
		Port{Name: m.Reset, Dir: DirIn, Width: 1})
	if m.resetSig, err = m.addSignal(m.Reset, 1, sigInput); err != nil {
		return nil, err
	}
	for _, d := range ins {
		if _, err = m.addSignal(d.name, d.width, sigInput); err != nil {
			return nil, err
		}
		m.Ports = append(m.Ports, Port{Name: d.name, Dir: DirIn, Width: d.width})
	}

	// storage, including expanded dwell counters
	regs := append([]RegSpec(nil), s.Regs...)
	if s.FSM != nil {
		stateSig := s.FSM.StateSignal
		if stateSig == "" {
			stateSig = "state"
		}
		for _, c := range s.FSM.Counters {
			regs = append(regs, RegSpec{
				Name:  c.Name,
				Width: c.Width,
				Rules: []RuleSpec{
					{Guard: stateSig + " != " + c.InState, Value: "0"},
					{Value: c.Name + " + 1"},
				},
			})
		}
	}
	for _, r := range regs {
		sig, err := m.addSignal(r.Name, r.Width, sigReg)
		if err != nil {
			return nil, err
		}
		m.Storage = append(m.Storage, &StorageElement{
			Name:  r.Name,
			Width: r.Width,
			Reset: r.Reset & mask(r.Width),
			sig:   sig,
		})
	}

	// FSM states
	if s.FSM != nil {
		f := &FSM{
			StateSignal: s.FSM.StateSignal,
			Initial:     s.FSM.Initial,
			Width:       clog2(len(s.FSM.States)),
			byName:      make(map[string]int),
		}
		if f.StateSignal == "" {
			f.StateSignal = "state"
		}
		if len(s.FSM.States) == 0 {
			return nil, errors.New("fsm declares no states")
		}
		for i, st := range s.FSM.States {
			if _, ok := f.byName[st.Name]; ok {
				return nil, errors.Errorf("duplicate state %s", st.Name)
			}
			if _, ok := m.index[st.Name]; ok {
				return nil, errors.Errorf("state %s collides with a signal name", st.Name)
			}
			f.byName[st.Name] = i
			f.States = append(f.States, State{Name: st.Name, Outputs: st.Outputs})
		}
		f.initial = f.StateIndex(f.Initial)
		if f.initial < 0 {
			return nil, errors.Errorf("initial state %q is not a declared state", f.Initial)
		}
		if f.sig, err = m.addSignal(f.StateSignal, f.Width, sigState); err != nil {
			return nil, err
		}
		m.FSM = f
	}

	// combinational bindings
	for _, w := range s.Wires {
		sig, err := m.addSignal(w.Name, w.Width, sigWire)
		if err != nil {
			return nil, err
		}
		m.Wires = append(m.Wires, &CombBinding{Name: w.Name, Width: w.Width, sig: sig})
	}

	// output ports: each must be driven by a wire, a register, or the
	// FSM output map (which synthesizes a Moore wire).
	for _, d := range outs {
		i, ok := m.index[d.name]
		if ok {
			sg := m.signals[i]
			if sg.kind != sigWire && sg.kind != sigReg {
				return nil, &AmbiguousInterfaceError{Port: d.name, Reason: "driven by a non-wire, non-register signal"}
			}
			if sg.width != d.width {
				return nil, &AmbiguousInterfaceError{Port: d.name, Reason: "port and driver widths differ"}
			}
			k := KindWire
			if sg.kind == sigReg {
				k = KindReg
			}
			m.Ports = append(m.Ports, Port{Name: d.name, Dir: DirOut, Width: d.width, Kind: k})
			continue
		}
		e := m.mooreExpr(d.name, d.width)
		if e == nil {
			return nil, &UndefinedSignalError{Signal: d.name, Context: "output port (no wire, register or state output drives it)"}
		}
		sig, err := m.addSignal(d.name, d.width, sigWire)
		if err != nil {
			return nil, err
		}
		m.Wires = append(m.Wires, &CombBinding{Name: d.name, Width: d.width, Expr: e, sig: sig})
		m.Ports = append(m.Ports, Port{Name: d.name, Dir: DirOut, Width: d.width, Kind: KindWire})
	}

	// parse and bind expressions
	for i, w := range m.Wires {
		if w.Expr == nil {
			w.Expr, err = ParseExpr(s.Wires[i].Expr)
			if err != nil {
				return nil, errors.Wrapf(err, "wire %s", w.Name)
			}
		}
		if err = w.Expr.bind(&binder{m: m, ctx: "wire " + w.Name}); err != nil {
			return nil, err
		}
		if w.Expr.Width() > w.Width {
			m.Warnings = append(m.Warnings, &WidthMismatchError{Target: w.Name, TargetWidth: w.Width, ExprWidth: w.Expr.Width()})
		}
	}
	for ri, r := range regs {
		se := m.Storage[ri]
		ord, err := ruleOrder("register "+se.Name, len(r.Rules), func(i int) int { return r.Rules[i].Rank })
		if err != nil {
			return nil, err
		}
		for _, i := range ord {
			rule, err := m.bindRule(se.Name, r.Rules[i], se.Width)
			if err != nil {
				return nil, err
			}
			se.Rules = append(se.Rules, rule)
		}
	}
	if s.FSM != nil {
		if err = m.bindTransitions(s.FSM.Transitions); err != nil {
			return nil, err
		}
	}

	// fix the combinational evaluation order once; cycles are a build
	// error, never a run time concern.
	if err = m.sortWires(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) bindRule(owner string, r RuleSpec, width int) (UpdateRule, error) {
	var rule UpdateRule
	var err error
	rule.Rank = r.Rank
	if r.Guard != "" {
		if rule.Guard, err = ParseExpr(r.Guard); err != nil {
			return rule, errors.Wrapf(err, "register %s guard", owner)
		}
		if err = rule.Guard.bind(&binder{m: m, ctx: "register " + owner + " guard"}); err != nil {
			return rule, err
		}
	}
	if r.Value == "" {
		return rule, errors.Errorf("register %s: rule has no value", owner)
	}
	if rule.Value, err = ParseExpr(r.Value); err != nil {
		return rule, errors.Wrapf(err, "register %s value", owner)
	}
	if err = rule.Value.bind(&binder{m: m, ctx: "register " + owner + " value"}); err != nil {
		return rule, err
	}
	if rule.Value.Width() > width {
		m.Warnings = append(m.Warnings, &WidthMismatchError{Target: owner, TargetWidth: width, ExprWidth: rule.Value.Width()})
	}
	return rule, nil
}

func (m *Module) bindTransitions(specs []TransitionSpec) error {
	f := m.FSM
	byState := make([][]TransitionSpec, len(f.States))
	for _, t := range specs {
		from := f.StateIndex(t.From)
		if from < 0 {
			return &UndefinedSignalError{Signal: t.From, Context: "transition source state"}
		}
		byState[from] = append(byState[from], t)
	}
	for si, ts := range byState {
		ord, err := ruleOrder("state "+f.States[si].Name, len(ts), func(i int) int { return ts[i].Rank })
		if err != nil {
			return err
		}
		for _, i := range ord {
			t := ts[i]
			to := f.StateIndex(t.To)
			if to < 0 {
				return &UndefinedSignalError{Signal: t.To, Context: "transition target state"}
			}
			tr := Transition{To: t.To, Rank: t.Rank, to: to}
			if t.Guard != "" {
				if tr.Guard, err = ParseExpr(t.Guard); err != nil {
					return errors.Wrapf(err, "transition %s -> %s", t.From, t.To)
				}
				ctx := "transition " + t.From + " -> " + t.To
				if err = tr.Guard.bind(&binder{m: m, ctx: ctx}); err != nil {
					return err
				}
			}
			f.States[si].Transitions = append(f.States[si].Transitions, tr)
		}
	}
	return nil
}

// mooreExpr synthesizes the combinational expression for an output port
// driven by the FSM output map: a conditional chain over the states that
// assert it, deasserted everywhere else.
//
func (m *Module) mooreExpr(port string, width int) Expr {
	f := m.FSM
	if f == nil {
		return nil
	}
	found := false
	var e Expr = &Const{Val: 0, Size: width}
	for i := len(f.States) - 1; i >= 0; i-- {
		v, ok := f.States[i].Outputs[port]
		if !ok {
			continue
		}
		found = true
		if v > mask(width) {
			m.Warnings = append(m.Warnings, &WidthMismatchError{Target: port, TargetWidth: width, ExprWidth: bits.Len64(v)})
			v &= mask(width)
		}
		e = &Cond{
			If:   &Binary{Op: OpEq, X: &Ref{Name: f.StateSignal}, Y: &Const{Val: uint64(i), Size: f.Width}},
			Then: &Const{Val: v, Size: width},
			Else: e,
		}
	}
	if !found {
		return nil
	}
	return e
}

// sortWires fixes the combinational evaluation order by topological
// sort, rejecting cycles.
//
func (m *Module) sortWires() error {
	byName := make(map[string]*CombBinding, len(m.Wires))
	for _, w := range m.Wires {
		byName[w.Name] = w
	}
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(m.Wires))
	var order []*CombBinding
	var path []string

	var visit func(w *CombBinding) error
	visit = func(w *CombBinding) error {
		color[w.Name] = grey
		path = append(path, w.Name)
		for name := range Refs(w.Expr) {
			dep, ok := byName[name]
			if !ok {
				continue // port, register or constant
			}
			switch color[name] {
			case grey:
				// close the loop for the error report
				i := 0
				for path[i] != name {
					i++
				}
				return &CombinationalCycleError{Cycle: append(append([]string{}, path[i:]...), name)}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[w.Name] = black
		order = append(order, w)
		return nil
	}
	for _, w := range m.Wires {
		if color[w.Name] == white {
			if err := visit(w); err != nil {
				return err
			}
		}
	}
	m.Wires = order
	return nil
}

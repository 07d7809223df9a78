// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen_test

import (
	"testing"

	rtl "github.com/db47h/rtlgen"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func Test_build_interface_errors(t *testing.T) {
	td := []struct {
		name string
		spec rtl.ModuleSpec
		port string
	}{
		{"dup input", rtl.ModuleSpec{In: "a, a"}, "a"},
		{"input collides with reg", rtl.ModuleSpec{
			In:   "a",
			Regs: []rtl.RegSpec{{Name: "a", Width: 1, Rules: []rtl.RuleSpec{{Value: "0"}}}},
		}, "a"},
		{"input collides with clock", rtl.ModuleSpec{In: "clk"}, "clk"},
		{"zero width", rtl.ModuleSpec{In: "a[0]"}, "a"},
		{"width over 64", rtl.ModuleSpec{In: "a[65]"}, "a"},
		{"port driver width", rtl.ModuleSpec{
			In:    "a[8]",
			Out:   "x[8]",
			Wires: []rtl.WireSpec{{Name: "x", Width: 4, Expr: "a"}},
		}, "x"},
	}
	for _, tc := range td {
		_, err := tc.spec.Build()
		require.Error(t, err, tc.name)
		var ie *rtl.AmbiguousInterfaceError
		require.True(t, errors.As(err, &ie), "%s: %v", tc.name, err)
		require.Equal(t, tc.port, ie.Port, tc.name)
	}
}

func Test_build_ambiguous_priority(t *testing.T) {
	// two rules with the same explicit rank: a build error, never a
	// run time coin toss
	spec := &rtl.ModuleSpec{
		In: "en, clear",
		Regs: []rtl.RegSpec{{Name: "acc", Width: 8, Rules: []rtl.RuleSpec{
			{Guard: "clear", Value: "0", Rank: 1},
			{Guard: "en", Value: "acc + 1", Rank: 1},
		}}},
	}
	_, err := spec.Build()
	var pe *rtl.AmbiguousPriorityError
	require.True(t, errors.As(err, &pe), "%v", err)
	require.Equal(t, "register acc", pe.Element)
	require.Equal(t, 1, pe.Rank)

	// explicit distinct ranks reorder evaluation
	spec.Regs[0].Rules[1].Rank = 2
	m, err := spec.Build()
	require.NoError(t, err)
	require.Len(t, m.Storage[0].Rules, 2)

	// same tie on FSM transitions of one state
	fspec := &rtl.ModuleSpec{
		In: "go",
		FSM: &rtl.FSMSpec{
			Initial: "IDLE",
			States:  []rtl.StateSpec{{Name: "IDLE"}, {Name: "RUN"}, {Name: "DONE"}},
			Transitions: []rtl.TransitionSpec{
				{From: "IDLE", Guard: "go", To: "RUN", Rank: 3},
				{From: "IDLE", Guard: "!go", To: "DONE", Rank: 3},
			},
		},
	}
	_, err = fspec.Build()
	require.True(t, errors.As(err, &pe), "%v", err)
	require.Equal(t, "state IDLE", pe.Element)
}

func Test_build_combinational_cycle(t *testing.T) {
	spec := &rtl.ModuleSpec{
		In: "a",
		Wires: []rtl.WireSpec{
			{Name: "w0", Width: 1, Expr: "a & w1"},
			{Name: "w1", Width: 1, Expr: "w2 | a"},
			{Name: "w2", Width: 1, Expr: "!w0"},
		},
	}
	_, err := spec.Build()
	var ce *rtl.CombinationalCycleError
	require.True(t, errors.As(err, &ce), "%v", err)
	require.GreaterOrEqual(t, len(ce.Cycle), 4)
	require.Equal(t, ce.Cycle[0], ce.Cycle[len(ce.Cycle)-1], "the reported path closes the loop")
}

func Test_build_undefined_signal(t *testing.T) {
	td := []struct {
		name string
		spec rtl.ModuleSpec
		sig  string
	}{
		{"wire expr", rtl.ModuleSpec{
			Wires: []rtl.WireSpec{{Name: "x", Width: 1, Expr: "nope"}},
		}, "nope"},
		{"rule guard", rtl.ModuleSpec{
			Regs: []rtl.RegSpec{{Name: "r", Width: 1, Rules: []rtl.RuleSpec{{Guard: "nope", Value: "0"}}}},
		}, "nope"},
		{"undriven output", rtl.ModuleSpec{Out: "nope"}, "nope"},
		{"transition target", rtl.ModuleSpec{
			FSM: &rtl.FSMSpec{
				Initial:     "A",
				States:      []rtl.StateSpec{{Name: "A"}},
				Transitions: []rtl.TransitionSpec{{From: "A", To: "nope"}},
			},
		}, "nope"},
	}
	for _, tc := range td {
		_, err := tc.spec.Build()
		var ue *rtl.UndefinedSignalError
		require.True(t, errors.As(err, &ue), "%s: %v", tc.name, err)
		require.Equal(t, tc.sig, ue.Signal, tc.name)
	}
}

func Test_build_width_warnings(t *testing.T) {
	// truncating assignments are collected, not fatal
	spec := &rtl.ModuleSpec{
		In:    "a[8], b[8]",
		Wires: []rtl.WireSpec{{Name: "p", Width: 8, Expr: "a * b"}},
		Regs: []rtl.RegSpec{{Name: "r", Width: 4, Rules: []rtl.RuleSpec{
			{Value: "a + b"},
		}}},
	}
	m, err := spec.Build()
	require.NoError(t, err)
	require.Len(t, m.Warnings, 2)
	require.Equal(t, "p", m.Warnings[0].Target)
	require.Equal(t, 16, m.Warnings[0].ExprWidth)
	require.Equal(t, "r", m.Warnings[1].Target)
	require.Equal(t, 9, m.Warnings[1].ExprWidth)
}

func Test_build_fsm(t *testing.T) {
	spec := &rtl.ModuleSpec{
		In:  "go",
		Out: "busy",
		FSM: &rtl.FSMSpec{
			Initial: "IDLE",
			States: []rtl.StateSpec{
				{Name: "IDLE"},
				{Name: "RUN", Outputs: map[string]uint64{"busy": 1}},
				{Name: "DONE"},
			},
			Transitions: []rtl.TransitionSpec{
				{From: "IDLE", Guard: "go", To: "RUN"},
				{From: "RUN", Guard: "!go", To: "DONE"},
			},
		},
	}
	m, err := spec.Build()
	require.NoError(t, err)
	require.Equal(t, 2, m.FSM.Width, "3 states need 2 bits")
	require.Equal(t, 0, m.FSM.StateIndex("IDLE"))
	require.Equal(t, 2, m.FSM.StateIndex("DONE"))
	require.Equal(t, -1, m.FSM.StateIndex("nope"))

	// the Moore output map synthesized a wire driving busy
	tr, err := m.Simulate(rtl.Stimulus{{"go": 1}}, 2)
	require.NoError(t, err)
	v, _ := tr.Value(1, "busy")
	require.EqualValues(t, 0, v, "IDLE during cycle 1")
	v, _ = tr.Value(2, "busy")
	require.EqualValues(t, 1, v, "RUN during cycle 2")

	// degenerate specs
	spec.FSM.Initial = "nope"
	_, err = spec.Build()
	require.Error(t, err)
	spec.FSM.Initial = "IDLE"
	spec.FSM.States = append(spec.FSM.States, rtl.StateSpec{Name: "IDLE"})
	_, err = spec.Build()
	require.Error(t, err, "duplicate state name")
	spec.FSM.States = nil
	_, err = spec.Build()
	require.Error(t, err, "no states")
}

func Test_build_counter_expansion(t *testing.T) {
	// a dwell counter is a register clearing outside its state and
	// incrementing inside it
	spec := &rtl.ModuleSpec{
		In: "go",
		FSM: &rtl.FSMSpec{
			Initial: "IDLE",
			States:  []rtl.StateSpec{{Name: "IDLE"}, {Name: "RUN"}},
			Transitions: []rtl.TransitionSpec{
				{From: "IDLE", Guard: "go", To: "RUN"},
				{From: "RUN", Guard: "cnt >= 3", To: "IDLE"},
			},
			Counters: []rtl.CounterSpec{{Name: "cnt", Width: 4, InState: "RUN"}},
		},
	}
	m, err := spec.Build()
	require.NoError(t, err)
	require.Len(t, m.Storage, 1)
	require.Len(t, m.Storage[0].Rules, 2)

	tr, err := m.Simulate(rtl.Stimulus{{"go": 1}}, 8)
	require.NoError(t, err)
	run := uint64(m.FSM.StateIndex("RUN"))
	idle := uint64(m.FSM.StateIndex("IDLE"))
	// cycle 1 commits IDLE->RUN; cnt counts 1..4 while in RUN, the
	// threshold fires at cnt >= 3, then go re-enters RUN
	for c, want := range []struct{ st, cnt uint64 }{
		{run, 0}, {run, 1}, {run, 2}, {run, 3}, {idle, 4}, {run, 0}, {run, 1}, {run, 2},
	} {
		st, _ := tr.Value(c+1, "state")
		cnt, _ := tr.Value(c+1, "cnt")
		require.Equal(t, want.st, st, "state, cycle %d", c+1)
		require.Equal(t, want.cnt, cnt, "cnt, cycle %d", c+1)
	}
}

func Test_build_idempotent(t *testing.T) {
	spec := &rtl.ModuleSpec{
		In: "go",
		FSM: &rtl.FSMSpec{
			Initial:  "IDLE",
			States:   []rtl.StateSpec{{Name: "IDLE"}, {Name: "RUN"}},
			Counters: []rtl.CounterSpec{{Name: "cnt", Width: 4, InState: "RUN"}},
		},
	}
	m1, err := spec.Build()
	require.NoError(t, err)
	m2, err := spec.Build()
	require.NoError(t, err)
	require.Len(t, spec.Regs, 0, "counter expansion must not mutate the spec")

	t1, err := m1.Simulate(nil, 4)
	require.NoError(t, err)
	t2, err := m2.Simulate(nil, 4)
	require.NoError(t, err)
	require.Empty(t, t1.Diff(t2))
}

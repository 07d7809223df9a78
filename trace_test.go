// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen_test

import (
	"sort"
	"strings"
	"testing"

	rtl "github.com/db47h/rtlgen"
	"github.com/stretchr/testify/require"
)

func Test_trace_value(t *testing.T) {
	m, err := mac8Spec().Build()
	require.NoError(t, err)
	tr, err := m.Simulate(rtl.Stimulus{{"en": 1, "a": 2, "b": 3}}, 2)
	require.NoError(t, err)

	require.Equal(t, 2, tr.Cycles())
	require.Contains(t, tr.Signals(), "acc")
	require.Contains(t, tr.Signals(), "rst")

	_, ok := tr.Value(0, "acc")
	require.False(t, ok, "cycles are numbered from 1")
	_, ok = tr.Value(3, "acc")
	require.False(t, ok)
	_, ok = tr.Value(1, "nope")
	require.False(t, ok)
}

func Test_trace_diff(t *testing.T) {
	m, err := mac8Spec().Build()
	require.NoError(t, err)
	stim := rtl.Stimulus{{"en": 1, "a": 2, "b": 3}}
	t1, err := m.Simulate(stim, 3)
	require.NoError(t, err)
	t2, err := m.Simulate(rtl.Stimulus{{"en": 1, "a": 2, "b": 4}}, 3)
	require.NoError(t, err)

	require.Empty(t, t1.Diff(t1), "a trace never diverges from itself")

	ms := t1.Diff(t2)
	require.NotEmpty(t, ms)
	// every mismatch is collected, not just the first, and the list is
	// sorted by cycle then signal
	require.True(t, sort.SliceIsSorted(ms, func(i, j int) bool {
		if ms[i].Cycle != ms[j].Cycle {
			return ms[i].Cycle < ms[j].Cycle
		}
		return ms[i].Signal < ms[j].Signal
	}))
	names := make(map[string]bool)
	for _, mm := range ms {
		names[mm.Signal] = true
	}
	for _, n := range []string{"b", "prod", "acc", "result"} {
		require.True(t, names[n], "expected %s to diverge", n)
	}
}

func Test_trace_diff_missing_signal(t *testing.T) {
	// a signal present on one side only mismatches at every cycle
	m1, err := mac8Spec().Build()
	require.NoError(t, err)
	spec := mac8Spec()
	spec.Wires = append(spec.Wires, rtl.WireSpec{Name: "dbg", Width: 8, Expr: "a"})
	m2, err := spec.Build()
	require.NoError(t, err)

	stim := rtl.Stimulus{{"a": 7}}
	t1, err := m1.Simulate(stim, 3)
	require.NoError(t, err)
	t2, err := m2.Simulate(stim, 3)
	require.NoError(t, err)

	count := 0
	for _, mm := range t2.Diff(t1) {
		require.Equal(t, "dbg", mm.Signal)
		require.EqualValues(t, 7, mm.Expected)
		count++
	}
	require.Equal(t, 3, count)

	// and symmetrically when only the other side has it
	count = 0
	for _, mm := range t1.Diff(t2) {
		require.Equal(t, "dbg", mm.Signal)
		require.EqualValues(t, 7, mm.Actual)
		count++
	}
	require.Equal(t, 3, count)
}

func Test_trace_diff_missing_cycles(t *testing.T) {
	// a cycle absent from the shorter trace mismatches for every signal,
	// zero-valued expectations included
	m, err := mac8Spec().Build()
	require.NoError(t, err)
	t1, err := m.Simulate(nil, 3)
	require.NoError(t, err)
	t2, err := m.Simulate(nil, 2)
	require.NoError(t, err)

	ms := t1.Diff(t2)
	require.Len(t, ms, len(t1.Signals()))
	for _, mm := range ms {
		require.Equal(t, 3, mm.Cycle)
		require.EqualValues(t, 0, mm.Expected)
		require.EqualValues(t, 0, mm.Actual)
	}
}

func Test_trace_string(t *testing.T) {
	m, err := mac8Spec().Build()
	require.NoError(t, err)
	tr, err := m.Simulate(rtl.Stimulus{{"en": 1, "a": 2, "b": 3}}, 1)
	require.NoError(t, err)
	s := tr.String()
	require.True(t, strings.HasPrefix(s, "cycle "))
	require.Contains(t, s, "acc")
	require.Contains(t, s, "\n1 ")
}

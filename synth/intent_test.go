// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package synth_test

import (
	"context"
	"testing"

	rtl "github.com/db47h/rtlgen"
	"github.com/db47h/rtlgen/synth"
	"github.com/stretchr/testify/require"
)

const mac8Intent = `
module: mac8
inputs: "en, clear, a[8], b[8]"
outputs: "result[24]"
wires:
  - {name: prod, width: 16, expr: "a * b"}
  - {name: result, width: 24, expr: "acc"}
regs:
  - name: acc
    width: 24
    rules:
      - {guard: clear, value: "0"}
      - {guard: en, value: "acc + prod"}
`

const lemmingIntent = `
module: lemming
inputs: "ground, bump, dig"
outputs: "walking, falling, digging"
fsm:
  initial: WALK_LEFT
  states:
    - name: WALK_LEFT
      outputs: {walking: 1}
    - name: WALK_RIGHT
      outputs: {walking: 1}
    - name: FALL
      outputs: {falling: 1}
    - name: DIG
      outputs: {digging: 1}
    - name: SPLAT
  transitions:
    - {from: WALK_LEFT, guard: "!ground", to: FALL}
    - {from: WALK_LEFT, guard: bump, to: WALK_RIGHT}
    - {from: WALK_LEFT, guard: dig, to: DIG}
    - {from: WALK_RIGHT, guard: "!ground", to: FALL}
    - {from: WALK_RIGHT, guard: bump, to: WALK_LEFT}
    - {from: WALK_RIGHT, guard: dig, to: DIG}
    - {from: FALL, guard: "ground && fall_cnt > 20", to: SPLAT}
    - {from: FALL, guard: ground, to: WALK_LEFT}
    - {from: DIG, guard: "!ground", to: FALL}
  counters:
    - {name: fall_cnt, width: 8, in_state: FALL}
`

func Test_load_intent(t *testing.T) {
	spec, err := synth.LoadIntent([]byte(mac8Intent))
	require.NoError(t, err)
	require.Equal(t, mac8Spec(), spec, "the document maps 1:1 onto the spec")

	spec, err = synth.LoadIntent([]byte(lemmingIntent))
	require.NoError(t, err)
	require.NotNil(t, spec.FSM)
	require.Len(t, spec.FSM.States, 5)
	require.Len(t, spec.FSM.Transitions, 9)
	require.Equal(t, []rtl.CounterSpec{{Name: "fall_cnt", Width: 8, InState: "FALL"}}, spec.FSM.Counters)

	// the loaded intent runs through the whole pipeline
	_, rep, err := synth.Synthesize(context.Background(), spec, nil, nil)
	require.NoError(t, err)
	require.Equal(t, synth.StatusPassed, rep.Validation.Status)
}

func Test_load_intent_unknown_field(t *testing.T) {
	_, err := synth.LoadIntent([]byte("module: t\nbogus: 1\n"))
	require.Error(t, err)
}

func Test_load_stimulus(t *testing.T) {
	stim, err := synth.LoadStimulus([]byte(`
- {rst: 1}
- {rst: 0, en: 1, a: 3, b: 4}
- {a: 2, b: 15}
`))
	require.NoError(t, err)
	require.Equal(t, rtl.Stimulus{
		{"rst": 1},
		{"rst": 0, "en": 1, "a": 3, "b": 4},
		{"a": 2, "b": 15},
	}, stim)

	_, err = synth.LoadStimulus([]byte("not: a: sequence"))
	require.Error(t, err)
}

func Test_expectation_check(t *testing.T) {
	exp, err := synth.LoadExpectation([]byte(`
- cycle: 2
  signals: {result: 12}
- cycle: 3
  signals: {result: 42, acc: 72}
`))
	require.NoError(t, err)

	m, err := mac8Spec().Build()
	require.NoError(t, err)
	tr, err := m.Simulate(rtl.Stimulus{
		{"en": 1, "a": 3, "b": 4},
		{"a": 2, "b": 15},
	}, 3)
	require.NoError(t, err)
	require.Empty(t, exp.Check(tr))

	// a wrong expectation reports exactly its divergence
	exp[0].Signals["result"] = 13
	ms := exp.Check(tr)
	require.Len(t, ms, 1)
	require.Equal(t, rtl.Mismatch{Cycle: 2, Signal: "result", Expected: 13, Actual: 12}, ms[0])
}

func Test_validate_expectation(t *testing.T) {
	stim := rtl.Stimulus{
		{"en": 1, "a": 3, "b": 4},
		{"a": 2, "b": 15},
	}
	text, _, err := synth.Synthesize(context.Background(), mac8Spec(), stim, nil)
	require.NoError(t, err)

	exp, err := synth.LoadExpectation([]byte(`
- cycle: 2
  signals: {result: 12}
- cycle: 3
  signals: {result: 42, acc: 72}
`))
	require.NoError(t, err)

	// the expectation is checked against the generated code directly,
	// without a reference trace
	require.NoError(t, synth.ValidateExpectation(text, stim, exp))

	exp[1].Signals["result"] = 41
	err = synth.ValidateExpectation(text, stim, exp)
	var me *rtl.MismatchError
	require.ErrorAs(t, err, &me)
	require.Equal(t, []rtl.Mismatch{{Cycle: 3, Signal: "result", Expected: 41, Actual: 42}}, me.Mismatches)

	require.Error(t, synth.ValidateExpectation("garbage", stim, exp))
}

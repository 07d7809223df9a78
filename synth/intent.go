// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package synth

import (
	"bytes"
	"sort"

	"github.com/db47h/rtlgen"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// YAML document forms of design intent, stimulus and expectations. The
// intent document is the normalized output of whatever front end sits
// upstream; the stimulus and expectation documents are user-authored
// timing diagrams.

type intentDoc struct {
	Module     string    `yaml:"module"`
	Clock      string    `yaml:"clock"`
	Reset      string    `yaml:"reset"`
	AsyncReset bool      `yaml:"async_reset"`
	Inputs     string    `yaml:"inputs"`
	Outputs    string    `yaml:"outputs"`
	Wires      []wireDoc `yaml:"wires"`
	Regs       []regDoc  `yaml:"regs"`
	FSM        *fsmDoc   `yaml:"fsm"`
}

type wireDoc struct {
	Name  string `yaml:"name"`
	Width int    `yaml:"width"`
	Expr  string `yaml:"expr"`
}

type regDoc struct {
	Name  string    `yaml:"name"`
	Width int       `yaml:"width"`
	Reset uint64    `yaml:"reset"`
	Rules []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	Guard string `yaml:"guard"`
	Value string `yaml:"value"`
	Rank  int    `yaml:"rank"`
}

type fsmDoc struct {
	StateSignal string          `yaml:"state_signal"`
	Initial     string          `yaml:"initial"`
	States      []stateDoc      `yaml:"states"`
	Transitions []transitionDoc `yaml:"transitions"`
	Counters    []counterDoc    `yaml:"counters"`
}

type stateDoc struct {
	Name    string            `yaml:"name"`
	Outputs map[string]uint64 `yaml:"outputs"`
}

type transitionDoc struct {
	From  string `yaml:"from"`
	Guard string `yaml:"guard"`
	To    string `yaml:"to"`
	Rank  int    `yaml:"rank"`
}

type counterDoc struct {
	Name    string `yaml:"name"`
	Width   int    `yaml:"width"`
	InState string `yaml:"in_state"`
}

func decodeStrict(data []byte, v interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// LoadIntent decodes a YAML intent document into a ModuleSpec. Unknown
// fields are rejected.
//
func LoadIntent(data []byte) (*rtlgen.ModuleSpec, error) {
	var d intentDoc
	if err := decodeStrict(data, &d); err != nil {
		return nil, errors.Wrap(err, "intent document")
	}
	spec := &rtlgen.ModuleSpec{
		Name:       d.Module,
		Clock:      d.Clock,
		Reset:      d.Reset,
		AsyncReset: d.AsyncReset,
		In:         d.Inputs,
		Out:        d.Outputs,
	}
	for _, w := range d.Wires {
		spec.Wires = append(spec.Wires, rtlgen.WireSpec{Name: w.Name, Width: w.Width, Expr: w.Expr})
	}
	for _, r := range d.Regs {
		reg := rtlgen.RegSpec{Name: r.Name, Width: r.Width, Reset: r.Reset}
		for _, u := range r.Rules {
			reg.Rules = append(reg.Rules, rtlgen.RuleSpec{Guard: u.Guard, Value: u.Value, Rank: u.Rank})
		}
		spec.Regs = append(spec.Regs, reg)
	}
	if d.FSM != nil {
		f := &rtlgen.FSMSpec{StateSignal: d.FSM.StateSignal, Initial: d.FSM.Initial}
		for _, st := range d.FSM.States {
			f.States = append(f.States, rtlgen.StateSpec{Name: st.Name, Outputs: st.Outputs})
		}
		for _, t := range d.FSM.Transitions {
			f.Transitions = append(f.Transitions, rtlgen.TransitionSpec{From: t.From, Guard: t.Guard, To: t.To, Rank: t.Rank})
		}
		for _, c := range d.FSM.Counters {
			f.Counters = append(f.Counters, rtlgen.CounterSpec{Name: c.Name, Width: c.Width, InState: c.InState})
		}
		spec.FSM = f
	}
	return spec, nil
}

// LoadStimulus decodes a YAML stimulus document: a sequence of per-cycle
// input assignments.
//
func LoadStimulus(data []byte) (rtlgen.Stimulus, error) {
	var s rtlgen.Stimulus
	if err := decodeStrict(data, &s); err != nil {
		return nil, errors.Wrap(err, "stimulus document")
	}
	return s, nil
}

// An Expectation is a user-authored partial trace: expected signal
// values at given cycles.
//
type Expectation []ExpectedCycle

// An ExpectedCycle names the signal values expected at one cycle
// (1-based).
//
type ExpectedCycle struct {
	Cycle   int               `yaml:"cycle"`
	Signals map[string]uint64 `yaml:"signals"`
}

// LoadExpectation decodes a YAML expectation document.
//
func LoadExpectation(data []byte) (Expectation, error) {
	var e Expectation
	if err := decodeStrict(data, &e); err != nil {
		return nil, errors.Wrap(err, "expectation document")
	}
	return e, nil
}

// Check compares a trace against the expectation and returns every
// mismatch found.
//
func (e Expectation) Check(t *rtlgen.Trace) []rtlgen.Mismatch {
	var ms []rtlgen.Mismatch
	for _, ec := range e {
		for name, want := range ec.Signals {
			got, ok := t.Value(ec.Cycle, name)
			if !ok || got != want {
				ms = append(ms, rtlgen.Mismatch{Cycle: ec.Cycle, Signal: name, Expected: want, Actual: got})
			}
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

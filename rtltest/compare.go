// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package rtltest provides utility functions for testing synthesis
// models.
//
package rtltest

import (
	"testing"

	"github.com/db47h/rtlgen"
	"github.com/db47h/rtlgen/verilog"
)

// MustBuild builds a spec and fails the test fatally on error.
//
func MustBuild(t *testing.T, spec *rtlgen.ModuleSpec) *rtlgen.Module {
	t.Helper()
	m, err := spec.Build()
	if err != nil {
		t.Fatalf("build %s: %v", spec.Name, err)
	}
	return m
}

// MustSimulate simulates a module and fails the test fatally on error.
//
func MustSimulate(t *testing.T, m *rtlgen.Module, stim rtlgen.Stimulus, cycles int) *rtlgen.Trace {
	t.Helper()
	tr, err := m.Simulate(stim, cycles)
	if err != nil {
		t.Fatalf("simulate %s: %v", m.Name, err)
	}
	return tr
}

// RoundTrip builds the spec, emits it, re-parses the emitted text and
// compares the two models cycle by cycle over every synthesized
// edge-case vector plus any extra vectors given. Any divergence fails
// the test with the offending vector and the full mismatch list.
//
// It returns the reference model for further checks.
//
func RoundTrip(t *testing.T, spec *rtlgen.ModuleSpec, extra ...rtlgen.NamedStimulus) *rtlgen.Module {
	t.Helper()
	m := MustBuild(t, spec)
	text := verilog.Emit(m)
	pm, err := verilog.ParseModule(text)
	if err != nil {
		t.Fatalf("re-parse %s: %v\n%s", m.Name, err, text)
	}
	vectors := append(m.SynthesizeStimuli(), extra...)
	for _, v := range vectors {
		want := MustSimulate(t, m, v.Stim, v.Cycles)
		got, err := pm.Simulate(v.Stim, v.Cycles)
		if err != nil {
			t.Errorf("vector %s: round-trip simulation: %v", v.Name, err)
			continue
		}
		if ms := want.Diff(got); len(ms) > 0 {
			t.Errorf("vector %s: %d mismatches, first: %s", v.Name, len(ms), ms[0].String())
		}
	}
	return m
}

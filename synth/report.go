// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package synth

import (
	"github.com/db47h/rtlgen"
	"github.com/google/uuid"
)

// Validation status values.
//
const (
	StatusSkipped = "skipped"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// A Report summarizes one synthesis run: the derived models and the
// round-trip validation outcome.
//
type Report struct {
	ID              uuid.UUID     `yaml:"id"`
	Module          string        `yaml:"module"`
	Interface       []PortInfo    `yaml:"interface"`
	StorageElements []StorageInfo `yaml:"storage"`
	ControlSummary  *ControlInfo  `yaml:"control,omitempty"`
	Warnings        []string      `yaml:"warnings,omitempty"`
	Validation      Validation    `yaml:"validation"`
}

// PortInfo describes one port of the interface model.
//
type PortInfo struct {
	Name  string `yaml:"name"`
	Dir   string `yaml:"dir"`
	Width int    `yaml:"width"`
}

// StorageInfo describes one storage element.
//
type StorageInfo struct {
	Name  string `yaml:"name"`
	Width int    `yaml:"width"`
	Rules int    `yaml:"rules"`
}

// ControlInfo summarizes the FSM sub-model.
//
type ControlInfo struct {
	StateSignal string   `yaml:"state_signal"`
	Initial     string   `yaml:"initial"`
	States      []string `yaml:"states"`
	Transitions int      `yaml:"transitions"`
}

// Validation is the round-trip outcome.
//
type Validation struct {
	Status     string            `yaml:"status"`
	Attempts   int               `yaml:"attempts"`
	Mismatches []rtlgen.Mismatch `yaml:"mismatches,omitempty"`
}

func newReport(m *rtlgen.Module) *Report {
	r := &Report{
		ID:         uuid.New(),
		Module:     m.Name,
		Validation: Validation{Status: StatusSkipped},
	}
	for _, p := range m.Ports {
		r.Interface = append(r.Interface, PortInfo{Name: p.Name, Dir: p.Dir.String(), Width: p.Width})
	}
	for _, se := range m.Storage {
		r.StorageElements = append(r.StorageElements, StorageInfo{Name: se.Name, Width: se.Width, Rules: len(se.Rules)})
	}
	if f := m.FSM; f != nil {
		ci := &ControlInfo{StateSignal: f.StateSignal, Initial: f.Initial}
		for i := range f.States {
			ci.States = append(ci.States, f.States[i].Name)
			ci.Transitions += len(f.States[i].Transitions)
		}
		r.ControlSummary = ci
	}
	for _, w := range m.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	return r
}

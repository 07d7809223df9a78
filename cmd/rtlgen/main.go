// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command rtlgen synthesizes Verilog from a YAML intent document and
// validates the result by round trip. Without arguments it runs a
// canned multiply-accumulate demo.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/db47h/rtlgen"
	"github.com/db47h/rtlgen/synth"
	"gopkg.in/yaml.v3"
)

var (
	intentFile = flag.String("intent", "", "YAML intent document")
	stimFile   = flag.String("stim", "", "YAML stimulus document")
	expectFile = flag.String("expect", "", "YAML expectation document, checked against the generated code")
	cycles     = flag.Int("cycles", 0, "cycles to simulate the stimulus for")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	spec := demoSpec()
	var stim rtlgen.Stimulus

	if *intentFile != "" {
		data, err := os.ReadFile(*intentFile)
		if err != nil {
			log.Fatal(err)
		}
		if spec, err = synth.LoadIntent(data); err != nil {
			log.Fatal(err)
		}
	}
	if *stimFile != "" {
		data, err := os.ReadFile(*stimFile)
		if err != nil {
			log.Fatal(err)
		}
		if stim, err = synth.LoadStimulus(data); err != nil {
			log.Fatal(err)
		}
	}

	text, rep, err := synth.Synthesize(context.Background(), spec, stim, &synth.Options{Cycles: *cycles})
	if rep != nil {
		out, merr := yaml.Marshal(rep)
		if merr == nil {
			os.Stderr.Write(out)
		}
	}
	if err != nil {
		log.Fatal(err)
	}
	if *expectFile != "" {
		data, err := os.ReadFile(*expectFile)
		if err != nil {
			log.Fatal(err)
		}
		exp, err := synth.LoadExpectation(data)
		if err != nil {
			log.Fatal(err)
		}
		if err := synth.ValidateExpectation(text, stim, exp); err != nil {
			log.Fatal(err)
		}
	}
	os.Stdout.WriteString(text)
}

// demoSpec is an 8x8 multiply-accumulate unit with enable and clear.
//
func demoSpec() *rtlgen.ModuleSpec {
	return &rtlgen.ModuleSpec{
		Name: "mac8",
		In:   "en, clear, a[8], b[8]",
		Out:  "result[24]",
		Wires: []rtlgen.WireSpec{
			{Name: "prod", Width: 16, Expr: "a * b"},
			{Name: "result", Width: 24, Expr: "acc"},
		},
		Regs: []rtlgen.RegSpec{
			{Name: "acc", Width: 24, Rules: []rtlgen.RuleSpec{
				{Guard: "clear", Value: "0"},
				{Guard: "en", Value: "acc + prod"},
			}},
		},
	}
}

// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package synth drives the staged pipeline: design intent is built into
// a reference model, code is generated for it, and the generated text is
// validated by round trip (re-parse, re-simulate, trace diff) before it
// is accepted. Validation failures trigger bounded regeneration.
//
package synth

import (
	"context"
	"strconv"
	"time"

	"github.com/db47h/rtlgen"
	"github.com/db47h/rtlgen/verilog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// A Generator produces code for a model. The default generator is the
// deterministic built-in emitter; an external generation service plugs
// in through Options and is subject to the per-attempt timeout.
//
type Generator interface {
	Generate(ctx context.Context, m *rtlgen.Module) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
//
type GeneratorFunc func(ctx context.Context, m *rtlgen.Module) (string, error)

// Generate implements Generator.
//
func (f GeneratorFunc) Generate(ctx context.Context, m *rtlgen.Module) (string, error) {
	return f(ctx, m)
}

var emitter = GeneratorFunc(func(_ context.Context, m *rtlgen.Module) (string, error) {
	return verilog.Emit(m), nil
})

// A GenerationTimeoutError reports that every generation attempt ran
// into the per-attempt timeout.
//
type GenerationTimeoutError struct {
	Attempts int
	Timeout  time.Duration
}

func (e *GenerationTimeoutError) Error() string {
	return "generation timed out after " + strconv.Itoa(e.Attempts) +
		" attempts of " + e.Timeout.String()
}

// Options tunes a Synthesize run. The zero value selects the built-in
// emitter, the default retry budget and synthesized stimulus cycle
// counts.
//
type Options struct {
	// Cycles to simulate a user-supplied stimulus for. Zero means the
	// stimulus length.
	Cycles int
	// Retries is the regeneration budget on validation failure. Zero
	// means the default of 2; negative means no retries.
	Retries int
	// Timeout bounds each generation attempt. Zero means no bound.
	Timeout time.Duration
	// Generator overrides the built-in emitter.
	Generator Generator
}

const defaultRetries = 2

func (o *Options) retries() int {
	switch {
	case o == nil, o.Retries == 0:
		return defaultRetries
	case o.Retries < 0:
		return 0
	}
	return o.Retries
}

func (o *Options) generator() Generator {
	if o == nil || o.Generator == nil {
		return emitter
	}
	return o.Generator
}

// Synthesize runs the full pipeline for the given design intent: build,
// stimulus selection (the user stimulus if non-nil, synthesized edge
// cases otherwise), reference simulation, generation, and round-trip
// validation with bounded regeneration.
//
// The returned report is non-nil whenever the model builds, including on
// validation failure; the text is the last generated attempt.
//
func Synthesize(ctx context.Context, spec *rtlgen.ModuleSpec, stim rtlgen.Stimulus, opts *Options) (string, *Report, error) {
	m, err := spec.Build()
	if err != nil {
		return "", nil, errors.Wrap(err, "build")
	}
	rep := newReport(m)

	var vectors []rtlgen.NamedStimulus
	if stim != nil {
		cycles := 0
		if opts != nil {
			cycles = opts.Cycles
		}
		if cycles == 0 {
			cycles = len(stim)
		}
		vectors = []rtlgen.NamedStimulus{{Name: "user", Stim: stim, Cycles: cycles}}
	} else {
		vectors = m.SynthesizeStimuli()
	}

	golden, err := simulateAll(ctx, m, vectors)
	if err != nil {
		return "", rep, errors.Wrap(err, "reference simulation")
	}

	gen := opts.generator()
	retries := opts.retries()
	var timeout time.Duration
	if opts != nil {
		timeout = opts.Timeout
	}

	var text string
	var timedOut int
	for attempt := 1; ; attempt++ {
		rep.Validation.Attempts = attempt
		if err = ctx.Err(); err != nil {
			return text, rep, err
		}

		text, err = generate(ctx, gen, m, timeout)
		if err != nil {
			if errors.Cause(err) == context.DeadlineExceeded {
				timedOut++
				if attempt <= retries {
					continue
				}
				return "", rep, &GenerationTimeoutError{Attempts: timedOut, Timeout: timeout}
			}
			return "", rep, errors.Wrap(err, "generation")
		}

		ms, err := validate(ctx, text, vectors, golden)
		if err != nil {
			// unparseable or unbuildable text is a generation defect,
			// retried like a mismatch
			if attempt <= retries {
				continue
			}
			rep.Validation.Status = StatusFailed
			return text, rep, errors.Wrap(err, "round trip")
		}
		if len(ms) > 0 {
			if attempt <= retries {
				continue
			}
			rep.Validation.Status = StatusFailed
			rep.Validation.Mismatches = ms
			return text, rep, &rtlgen.MismatchError{Mismatches: ms}
		}
		rep.Validation.Status = StatusPassed
		return text, rep, nil
	}
}

func generate(ctx context.Context, gen Generator, m *rtlgen.Module, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return gen.Generate(ctx, m)
}

// simulateAll runs the reference model over every vector concurrently.
//
func simulateAll(ctx context.Context, m *rtlgen.Module, vectors []rtlgen.NamedStimulus) ([]*rtlgen.Trace, error) {
	traces := make([]*rtlgen.Trace, len(vectors))
	g, _ := errgroup.WithContext(ctx)
	for i := range vectors {
		i := i
		g.Go(func() error {
			t, err := m.Simulate(vectors[i].Stim, vectors[i].Cycles)
			if err != nil {
				return errors.Wrap(err, vectors[i].Name)
			}
			traces[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return traces, nil
}

// validate re-parses the generated text and diffs its traces against the
// golden ones, over every vector, collecting all mismatches.
//
func validate(ctx context.Context, text string, vectors []rtlgen.NamedStimulus, golden []*rtlgen.Trace) ([]rtlgen.Mismatch, error) {
	pm, err := verilog.ParseModule(text)
	if err != nil {
		return nil, err
	}
	diffs := make([][]rtlgen.Mismatch, len(vectors))
	g, _ := errgroup.WithContext(ctx)
	for i := range vectors {
		i := i
		g.Go(func() error {
			t, err := pm.Simulate(vectors[i].Stim, vectors[i].Cycles)
			if err != nil {
				return errors.Wrap(err, vectors[i].Name)
			}
			diffs[i] = golden[i].Diff(t)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	var ms []rtlgen.Mismatch
	for _, d := range diffs {
		ms = append(ms, d...)
	}
	return ms, nil
}

// Validate checks generated text against a reference model over a single
// stimulus: the text is re-parsed, both models are simulated, and the
// traces are compared for exact equality. All mismatches are collected
// into the returned MismatchError, not just the first.
//
func Validate(m *rtlgen.Module, text string, stim rtlgen.Stimulus, cycles int) error {
	pm, err := verilog.ParseModule(text)
	if err != nil {
		return errors.Wrap(err, "re-parse")
	}
	want, err := m.Simulate(stim, cycles)
	if err != nil {
		return errors.Wrap(err, "reference simulation")
	}
	got, err := pm.Simulate(stim, cycles)
	if err != nil {
		return errors.Wrap(err, "round-trip simulation")
	}
	if ms := want.Diff(got); len(ms) > 0 {
		return &rtlgen.MismatchError{Mismatches: ms}
	}
	return nil
}

// ValidateExpectation checks generated text against a user-authored
// expectation trace: the text is re-parsed and simulated over the
// stimulus, and every expected signal value is compared against the
// resulting trace. The reference simulation is bypassed entirely, so an
// expectation can pin behavior the reference model does not share.
//
func ValidateExpectation(text string, stim rtlgen.Stimulus, exp Expectation) error {
	pm, err := verilog.ParseModule(text)
	if err != nil {
		return errors.Wrap(err, "re-parse")
	}
	cycles := len(stim)
	for _, ec := range exp {
		if ec.Cycle > cycles {
			cycles = ec.Cycle
		}
	}
	tr, err := pm.Simulate(stim, cycles)
	if err != nil {
		return errors.Wrap(err, "expectation simulation")
	}
	if ms := exp.Check(tr); len(ms) > 0 {
		return &rtlgen.MismatchError{Mismatches: ms}
	}
	return nil
}

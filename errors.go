// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package rtlgen

import (
	"fmt"
	"strings"
)

// AmbiguousInterfaceError reports a port declaration that cannot be
// resolved: duplicate names, missing direction or an invalid width.
//
type AmbiguousInterfaceError struct {
	Port   string
	Reason string
}

func (e *AmbiguousInterfaceError) Error() string {
	return fmt.Sprintf("rtlgen: ambiguous interface: port %q: %s", e.Port, e.Reason)
}

// AmbiguousPriorityError reports two update rules or transitions declared
// with the same priority rank. Ties are a build error, never resolved at
// run time.
//
type AmbiguousPriorityError struct {
	Element string // owning register or state
	Rank    int
}

func (e *AmbiguousPriorityError) Error() string {
	return fmt.Sprintf("rtlgen: ambiguous priority: %s has two rules ranked %d", e.Element, e.Rank)
}

// CombinationalCycleError reports a dependency cycle between
// combinational bindings.
//
type CombinationalCycleError struct {
	Cycle []string
}

func (e *CombinationalCycleError) Error() string {
	return "rtlgen: combinational cycle: " + strings.Join(e.Cycle, " -> ")
}

// WidthMismatchError is a warning-class condition: an expression whose
// inferred width exceeds its assignment target, so high bits would be
// truncated. Builds collect these on the module instead of failing.
//
type WidthMismatchError struct {
	Target      string
	TargetWidth int
	ExprWidth   int
}

func (e *WidthMismatchError) Error() string {
	return fmt.Sprintf("rtlgen: width mismatch: %d bit expression truncated into %s[%d]",
		e.ExprWidth, e.Target, e.TargetWidth)
}

// UndefinedSignalError reports a reference to a signal that is not bound
// to any port, storage element or combinational binding.
//
type UndefinedSignalError struct {
	Signal  string
	Context string
}

func (e *UndefinedSignalError) Error() string {
	return fmt.Sprintf("rtlgen: undefined signal %q in %s", e.Signal, e.Context)
}

// A Mismatch is a single trace divergence: one signal, one cycle.
//
type Mismatch struct {
	Cycle    int
	Signal   string
	Expected uint64
	Actual   uint64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("cycle %d: %s: expected %d, got %d", m.Cycle, m.Signal, m.Expected, m.Actual)
}

// MismatchError carries every divergence found between two traces, not
// just the first.
//
type MismatchError struct {
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	if len(e.Mismatches) == 1 {
		return "rtlgen: trace mismatch: " + e.Mismatches[0].String()
	}
	return fmt.Sprintf("rtlgen: %d trace mismatches, first: %s", len(e.Mismatches), e.Mismatches[0].String())
}

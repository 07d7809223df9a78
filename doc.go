/*
Package rtlgen provides the model layer of a staged RTL synthesis and
verification pipeline: a small, exact intermediate representation for
synchronous digital logic, a deterministic cycle-stepped simulator over
it, and a trace differencing oracle.

A ModuleSpec (the normalized design intent) is built once into an
immutable Module: typed ports, clocked storage elements with
priority-ordered guarded update rules, a DAG of combinational bindings,
and optionally a Moore-style finite state machine with priority-ordered
transitions. Simulate replays a Module against a Stimulus and produces a
Trace; two traces are compared with Diff.

Code emission and round-trip validation of the emitted text live in the
verilog and synth sub-packages.

*/
package rtlgen

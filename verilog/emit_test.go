// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package verilog_test

import (
	"strings"
	"testing"

	rtl "github.com/db47h/rtlgen"
	"github.com/db47h/rtlgen/verilog"
	"github.com/stretchr/testify/require"
)

func mac8Spec() *rtl.ModuleSpec {
	return &rtl.ModuleSpec{
		Name: "mac8",
		In:   "en, clear, a[8], b[8]",
		Out:  "result[24]",
		Wires: []rtl.WireSpec{
			{Name: "prod", Width: 16, Expr: "a * b"},
			{Name: "result", Width: 24, Expr: "acc"},
		},
		Regs: []rtl.RegSpec{
			{Name: "acc", Width: 24, Rules: []rtl.RuleSpec{
				{Guard: "clear", Value: "0"},
				{Guard: "en", Value: "acc + prod"},
			}},
		},
	}
}

func lemmingSpec() *rtl.ModuleSpec {
	return &rtl.ModuleSpec{
		Name: "lemming",
		In:   "ground, bump, dig",
		Out:  "walking, falling, digging",
		FSM: &rtl.FSMSpec{
			Initial: "WALK_LEFT",
			States: []rtl.StateSpec{
				{Name: "WALK_LEFT", Outputs: map[string]uint64{"walking": 1}},
				{Name: "WALK_RIGHT", Outputs: map[string]uint64{"walking": 1}},
				{Name: "FALL", Outputs: map[string]uint64{"falling": 1}},
				{Name: "DIG", Outputs: map[string]uint64{"digging": 1}},
				{Name: "SPLAT"},
			},
			Transitions: []rtl.TransitionSpec{
				{From: "WALK_LEFT", Guard: "!ground", To: "FALL"},
				{From: "WALK_LEFT", Guard: "bump", To: "WALK_RIGHT"},
				{From: "WALK_LEFT", Guard: "dig", To: "DIG"},
				{From: "WALK_RIGHT", Guard: "!ground", To: "FALL"},
				{From: "WALK_RIGHT", Guard: "bump", To: "WALK_LEFT"},
				{From: "WALK_RIGHT", Guard: "dig", To: "DIG"},
				{From: "FALL", Guard: "ground && fall_cnt > 20", To: "SPLAT"},
				{From: "FALL", Guard: "ground", To: "WALK_LEFT"},
				{From: "DIG", Guard: "!ground", To: "FALL"},
			},
			Counters: []rtl.CounterSpec{{Name: "fall_cnt", Width: 8, InState: "FALL"}},
		},
	}
}

func Test_emit_mac8(t *testing.T) {
	m, err := mac8Spec().Build()
	require.NoError(t, err)
	text := verilog.Emit(m)

	for _, want := range []string{
		"module mac8 (",
		"\tinput wire clk,",
		"\tinput wire [7:0] a,",
		"\toutput wire [23:0] result\n);",
		"\treg [23:0] acc;",
		"\twire [15:0] prod;",
		"\tassign prod = (a * b);",
		"\tassign result = acc;",
		"\talways @(posedge clk) begin",
		"\t\tif (rst) begin",
		"\t\t\tacc <= 24'd0;",
		"\t\t\tif (clear) begin",
		"\t\t\t\tacc <= 0;",
		"\t\t\tend else if (en) begin",
		"\t\t\t\tacc <= (acc + prod);",
		"endmodule",
	} {
		require.Contains(t, text, want)
	}
	require.NotContains(t, text, "reg [23:0] result", "wire outputs are not redeclared")
	require.NotContains(t, text, "or posedge rst", "sync reset sensitivity")
}

func Test_emit_fsm(t *testing.T) {
	m, err := lemmingSpec().Build()
	require.NoError(t, err)
	text := verilog.Emit(m)

	for _, want := range []string{
		"\tlocalparam WALK_LEFT = 3'd0;",
		"\tlocalparam SPLAT = 3'd4;",
		"\treg [7:0] fall_cnt;",
		"\treg [2:0] state;",
		"\tassign walking = ((state == 3'd0) ? 1'd1 : ((state == 3'd1) ? 1'd1 : 1'd0));",
		"\t\t\tstate <= WALK_LEFT;",
		"\t\t\tif (state != FALL) begin",
		"\t\t\t\tfall_cnt <= 0;",
		"\t\t\tend else begin",
		"\t\t\t\tfall_cnt <= (fall_cnt + 1);",
		"\t\t\tcase (state)",
		"\t\t\t\tWALK_LEFT: begin",
		"\t\t\t\t\tif (!ground) begin",
		"\t\t\t\t\t\tstate <= FALL;",
		"\t\t\t\t\tend else if (bump) begin",
		"\t\t\t\t\tif (ground && (fall_cnt > 20)) begin",
		"\t\t\t\t\t\tstate <= SPLAT;",
		"\t\t\tendcase",
	} {
		require.Contains(t, text, want)
	}
	require.NotContains(t, text, "SPLAT: begin", "states without transitions are skipped")
	require.NotContains(t, text, "wire walking", "port outputs are not redeclared")
}

func Test_emit_async_reset(t *testing.T) {
	spec := mac8Spec()
	spec.AsyncReset = true
	m, err := spec.Build()
	require.NoError(t, err)
	require.Contains(t, verilog.Emit(m), "always @(posedge clk or posedge rst) begin")
}

func Test_emit_stable(t *testing.T) {
	// emission is a pure function of the model
	m1, err := lemmingSpec().Build()
	require.NoError(t, err)
	m2, err := lemmingSpec().Build()
	require.NoError(t, err)
	require.Equal(t, verilog.Emit(m1), verilog.Emit(m1))
	require.Equal(t, verilog.Emit(m1), verilog.Emit(m2))
}

func Test_emit_unconditional_rule(t *testing.T) {
	// a rule with no guard ends the chain; later rules are unreachable
	// and not emitted
	spec := &rtl.ModuleSpec{
		Name: "cnt",
		Regs: []rtl.RegSpec{{Name: "c", Width: 8, Rules: []rtl.RuleSpec{
			{Value: "c + 1"},
			{Guard: "c > 3", Value: "0"},
		}}},
	}
	m, err := spec.Build()
	require.NoError(t, err)
	text := verilog.Emit(m)
	require.Contains(t, text, "\t\t\tc <= (c + 1);\n")
	require.NotContains(t, text, "c > 3")

	lines := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.Contains(l, "c <=") {
			lines++
		}
	}
	require.Equal(t, 2, lines, "one reset assign, one update assign")
}

// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package verilog renders a model into synthesizable Verilog text and
// parses that text back into a model for round-trip validation.
//
package verilog

import (
	"strconv"
	"strings"
	"text/template"

	"github.com/db47h/rtlgen"
)

const modTmpl = `module {{.Name}} (
{{.Ports}}
);

{{range .Sections}}{{.}}

{{end}}endmodule
`

var moduleTemplate = template.Must(template.New("module").Parse(modTmpl))

type tmplData struct {
	Name     string
	Ports    string
	Sections []string
}

// Emit renders the model as Verilog text. Emission is a pure function:
// the same model always produces the same text, with rule priority
// reflected as if/else-if nesting order and reset dominance as the
// outermost conditional. Guards are never reordered.
//
func Emit(m *rtlgen.Module) string {
	var d tmplData
	d.Name = m.Name
	d.Ports = portLines(m)

	if f := m.FSM; f != nil {
		var b strings.Builder
		for i, st := range f.States {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("\tlocalparam " + st.Name + " = " + sizedLit(f.Width, uint64(i)) + ";")
		}
		d.Sections = append(d.Sections, b.String())
	}

	if s := regDecls(m); s != "" {
		d.Sections = append(d.Sections, s)
	}
	if s := wireDecls(m); s != "" {
		d.Sections = append(d.Sections, s)
	}
	if s := assigns(m); s != "" {
		d.Sections = append(d.Sections, s)
	}
	if s := alwaysBlock(m); s != "" {
		d.Sections = append(d.Sections, s)
	}

	var b strings.Builder
	if err := moduleTemplate.Execute(&b, &d); err != nil {
		panic(err)
	}
	return b.String()
}

func rangeStr(w int) string {
	if w == 1 {
		return ""
	}
	return "[" + strconv.Itoa(w-1) + ":0] "
}

func sizedLit(w int, v uint64) string {
	return strconv.Itoa(w) + "'d" + strconv.FormatUint(v, 10)
}

func portLines(m *rtlgen.Module) string {
	var b strings.Builder
	for i, p := range m.Ports {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteByte('\t')
		if p.Dir == rtlgen.DirIn {
			b.WriteString("input wire ")
		} else if p.Kind == rtlgen.KindReg {
			b.WriteString("output reg ")
		} else {
			b.WriteString("output wire ")
		}
		b.WriteString(rangeStr(p.Width))
		b.WriteString(p.Name)
	}
	return b.String()
}

// isOutReg reports whether name is declared as an output reg port (and
// must not be redeclared in the body).
//
func isOutReg(m *rtlgen.Module, name string) bool {
	for _, p := range m.Ports {
		if p.Name == name {
			return p.Dir == rtlgen.DirOut && p.Kind == rtlgen.KindReg
		}
	}
	return false
}

func isOutPort(m *rtlgen.Module, name string) bool {
	for _, p := range m.Ports {
		if p.Name == name && p.Dir == rtlgen.DirOut {
			return true
		}
	}
	return false
}

func regDecls(m *rtlgen.Module) string {
	var lines []string
	for _, se := range m.Storage {
		if isOutReg(m, se.Name) {
			continue
		}
		lines = append(lines, "\treg "+rangeStr(se.Width)+se.Name+";")
	}
	if f := m.FSM; f != nil {
		lines = append(lines, "\treg "+rangeStr(f.Width)+f.StateSignal+";")
	}
	return strings.Join(lines, "\n")
}

func wireDecls(m *rtlgen.Module) string {
	var lines []string
	for _, w := range m.Wires {
		if isOutPort(m, w.Name) {
			continue
		}
		lines = append(lines, "\twire "+rangeStr(w.Width)+w.Name+";")
	}
	return strings.Join(lines, "\n")
}

func assigns(m *rtlgen.Module) string {
	var lines []string
	for _, w := range m.Wires {
		lines = append(lines, "\tassign "+w.Name+" = "+w.Expr.String()+";")
	}
	return strings.Join(lines, "\n")
}

// condStr wraps a rendered guard in parentheses unless it already is.
//
func condStr(e rtlgen.Expr) string {
	s := e.String()
	if strings.HasPrefix(s, "(") {
		return s
	}
	return "(" + s + ")"
}

// an arm is one branch of an if/else-if chain: guard "" ends the chain
// with an unconditional else (or a bare assignment when first).
//
type arm struct {
	guard  string
	target string
	value  string
}

func writeChain(b *strings.Builder, ind string, arms []arm) {
	for i, a := range arms {
		switch {
		case a.guard == "" && i == 0:
			b.WriteString(ind + a.target + " <= " + a.value + ";\n")
			return
		case a.guard == "":
			b.WriteString(" else begin\n")
		case i == 0:
			b.WriteString(ind + "if " + a.guard + " begin\n")
		default:
			b.WriteString(" else if " + a.guard + " begin\n")
		}
		b.WriteString(ind + "\t" + a.target + " <= " + a.value + ";\n")
		b.WriteString(ind + "end")
		if a.guard == "" {
			break
		}
	}
	b.WriteString("\n")
}

func regArms(se *rtlgen.StorageElement) []arm {
	var arms []arm
	for i := range se.Rules {
		r := &se.Rules[i]
		a := arm{target: se.Name, value: r.Value.String()}
		if r.Guard != nil {
			a.guard = condStr(r.Guard)
		}
		arms = append(arms, a)
		if r.Guard == nil {
			break // later rules are unreachable
		}
	}
	return arms
}

func alwaysBlock(m *rtlgen.Module) string {
	if len(m.Storage) == 0 && m.FSM == nil {
		return ""
	}
	var b strings.Builder
	if m.ResetKind == rtlgen.ResetAsync {
		b.WriteString("\talways @(posedge " + m.Clock + " or posedge " + m.Reset + ") begin\n")
	} else {
		b.WriteString("\talways @(posedge " + m.Clock + ") begin\n")
	}
	b.WriteString("\t\tif (" + m.Reset + ") begin\n")
	for _, se := range m.Storage {
		b.WriteString("\t\t\t" + se.Name + " <= " + sizedLit(se.Width, se.Reset) + ";\n")
	}
	if f := m.FSM; f != nil {
		b.WriteString("\t\t\t" + f.StateSignal + " <= " + f.Initial + ";\n")
	}
	b.WriteString("\t\tend else begin\n")
	for _, se := range m.Storage {
		if len(se.Rules) == 0 {
			continue
		}
		writeChain(&b, "\t\t\t", regArms(se))
	}
	if f := m.FSM; f != nil {
		b.WriteString("\t\t\tcase (" + f.StateSignal + ")\n")
		for i := range f.States {
			st := &f.States[i]
			if len(st.Transitions) == 0 {
				continue
			}
			b.WriteString("\t\t\t\t" + st.Name + ": begin\n")
			var arms []arm
			for ti := range st.Transitions {
				tr := &st.Transitions[ti]
				a := arm{target: f.StateSignal, value: tr.To}
				if tr.Guard != nil {
					a.guard = condStr(tr.Guard)
				}
				arms = append(arms, a)
				if tr.Guard == nil {
					break
				}
			}
			writeChain(&b, "\t\t\t\t\t", arms)
			b.WriteString("\t\t\t\tend\n")
		}
		b.WriteString("\t\t\tendcase\n")
	}
	b.WriteString("\t\tend\n\tend")
	return b.String()
}

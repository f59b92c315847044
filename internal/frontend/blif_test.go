package frontend

import (
	"strings"
	"testing"

	"gosynth/internal/rtlil"
)

func TestParseBlifAndGate(t *testing.T) {
	src := `# a small design
.model top
.inputs a b
.outputs y
.names a b y
11 1
.end
`
	design, err := ParseBlif(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	module, ok := design.Modules["\\top"]
	if !ok {
		t.Fatalf("module top missing")
	}
	if err := design.Check(); err != nil {
		t.Fatalf("parsed design inconsistent: %v", err)
	}

	a := module.Wires["\\a"]
	if a == nil || !a.PortInput || a.PortId != 1 {
		t.Fatalf("input a wrong: %+v", a)
	}
	y := module.Wires["\\y"]
	if y == nil || !y.PortOutput || y.PortId != 3 {
		t.Fatalf("output y wrong: %+v", y)
	}

	if len(module.Cells) != 1 {
		t.Fatalf("expected one $lut cell, got %d", len(module.Cells))
	}
	for _, cell := range module.Cells {
		if cell.Type != "$lut" {
			t.Fatalf("expected $lut, got %s", cell.Type)
		}
		if cell.Parameters["\\WIDTH"].AsInt() != 2 {
			t.Fatalf("lut width wrong")
		}
		lut := cell.Parameters["\\LUT"]
		// minterm 11 set, everything else defaults to the opposite of the
		// last cover output
		want := []rtlil.State{rtlil.S0, rtlil.S0, rtlil.S0, rtlil.S1}
		for i, bit := range lut.Bits {
			if bit != want[i] {
				t.Fatalf("lut bit %d = %v, want %v (%s)", i, bit, want[i], lut.AsString())
			}
		}
	}
}

func TestParseBlifDontCareCover(t *testing.T) {
	src := `.model m
.inputs a b
.outputs y
.names a b y
1- 1
.end
`
	design, err := ParseBlif(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	module := design.Modules["\\m"]
	for _, cell := range module.Cells {
		lut := cell.Parameters["\\LUT"]
		// a=1 rows are one regardless of b
		want := []rtlil.State{rtlil.S0, rtlil.S1, rtlil.S0, rtlil.S1}
		for i, bit := range lut.Bits {
			if bit != want[i] {
				t.Fatalf("lut bit %d wrong (%s)", i, lut.AsString())
			}
		}
	}
}

func TestParseBlifZeroCoverDefaultsToOne(t *testing.T) {
	src := `.model m
.inputs a
.outputs y
.names a y
0 0
.end
`
	design, err := ParseBlif(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	module := design.Modules["\\m"]
	for _, cell := range module.Cells {
		lut := cell.Parameters["\\LUT"]
		// the unspecified minterm a=1 defaults to the opposite polarity
		want := []rtlil.State{rtlil.S0, rtlil.S1}
		for i, bit := range lut.Bits {
			if bit != want[i] {
				t.Fatalf("lut bit %d wrong (%s)", i, lut.AsString())
			}
		}
	}
}

func TestParseBlifContinuationLines(t *testing.T) {
	src := ".model m\n.inputs a \\\nb\n.outputs y\n.names a b y\n11 1\n.end\n"
	design, err := ParseBlif(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	module := design.Modules["\\m"]
	if module.Wires["\\b"] == nil || !module.Wires["\\b"].PortInput {
		t.Fatalf("continuation line input lost")
	}
}

func TestParseBlifSyntaxError(t *testing.T) {
	if _, err := ParseBlif(strings.NewReader(".bogus\n")); err == nil {
		t.Fatalf("expected syntax error")
	}
	if _, err := ParseBlif(strings.NewReader("stray cover\n")); err == nil {
		t.Fatalf("expected stray cover error")
	}
}

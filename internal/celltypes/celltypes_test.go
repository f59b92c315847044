package celltypes

import (
	"testing"

	"gosynth/internal/rtlil"
)

func evalMust(t *testing.T, typ rtlil.Id, a, b rtlil.Const, s1, s2 bool, resultLen int) rtlil.Const {
	t.Helper()
	c, err := Eval(typ, a, b, s1, s2, resultLen)
	if err != nil {
		t.Fatalf("eval %s failed: %v", typ, err)
	}
	return c
}

func TestCatalogGroups(t *testing.T) {
	ct := NewFull(nil)
	for _, typ := range []rtlil.Id{"$and", "$dff", "$_MUX_", "$_DFF_NP1_", "$_DFFSR_PNP_", "$_SR_NP_", "$fsm", "$lut"} {
		if !ct.CellKnown(typ) {
			t.Fatalf("expected %s to be known", typ)
		}
	}
	if ct.CellKnown("$bogus") {
		t.Fatalf("unknown type reported as known")
	}
}

func TestPortDirections(t *testing.T) {
	ct := NewFull(nil)
	if !ct.CellOutput("$and", "\\Y") || ct.CellInput("$and", "\\Y") {
		t.Fatalf("Y must be an output")
	}
	if !ct.CellInput("$and", "\\A") || ct.CellOutput("$and", "\\A") {
		t.Fatalf("A must be an input")
	}
	if !ct.CellOutput("$dff", "\\Q") || !ct.CellOutput("$fsm", "\\CTRL_OUT") || !ct.CellOutput("$lut", "\\O") {
		t.Fatalf("special output ports not recognized")
	}
	if !ct.CellInput("$fsm", "\\CTRL_IN") {
		t.Fatalf("CTRL_IN must be an input")
	}
}

func TestUserModulePorts(t *testing.T) {
	design := rtlil.NewDesign()
	module := rtlil.NewModule("\\sub")
	in := module.NewWireInModule(1, "\\din")
	in.PortInput = true
	in.PortId = 1
	out := module.NewWireInModule(1, "\\dout")
	out.PortOutput = true
	out.PortId = 2
	design.AddModule(module)

	ct := NewFull(design)
	if !ct.CellKnown("\\sub") {
		t.Fatalf("attached design module must be known")
	}
	if !ct.CellInput("\\sub", "\\din") || ct.CellOutput("\\sub", "\\din") {
		t.Fatalf("din direction wrong")
	}
	if !ct.CellOutput("\\sub", "\\dout") || ct.CellInput("\\sub", "\\dout") {
		t.Fatalf("dout direction wrong")
	}
}

// reference check of the arithmetic evaluator against plain integers
func TestEvalArithAgainstReference(t *testing.T) {
	ops := map[rtlil.Id]func(a, b int) int{
		"$add": func(a, b int) int { return a + b },
		"$sub": func(a, b int) int { return a - b },
		"$mul": func(a, b int) int { return a * b },
		"$and": func(a, b int) int { return a & b },
		"$or":  func(a, b int) int { return a | b },
		"$xor": func(a, b int) int { return a ^ b },
	}
	for typ, ref := range ops {
		for a := 0; a < 16; a++ {
			for b := 0; b < 16; b++ {
				got := evalMust(t, typ, rtlil.NewConstInt(a, 4), rtlil.NewConstInt(b, 4), false, false, 8)
				want := ref(a, b) & 0xff
				if got.AsInt() != want {
					t.Fatalf("%s(%d, %d) = %d, want %d", typ, a, b, got.AsInt(), want)
				}
			}
		}
	}
}

func TestEvalDivMod(t *testing.T) {
	got := evalMust(t, "$div", rtlil.NewConstInt(14, 8), rtlil.NewConstInt(3, 8), false, false, 8)
	if got.AsInt() != 4 {
		t.Fatalf("14/3 = %d, want 4", got.AsInt())
	}
	got = evalMust(t, "$mod", rtlil.NewConstInt(14, 8), rtlil.NewConstInt(3, 8), false, false, 8)
	if got.AsInt() != 2 {
		t.Fatalf("14%%3 = %d, want 2", got.AsInt())
	}
	got = evalMust(t, "$div", rtlil.NewConstInt(1, 4), rtlil.NewConstInt(0, 4), false, false, 4)
	if !got.Equal(rtlil.NewConstState(rtlil.Sx, 4)) {
		t.Fatalf("division by zero must yield x, got %s", got.AsString())
	}
}

func TestEvalSignedComparison(t *testing.T) {
	// -1 < 1 signed, but 15 > 1 unsigned
	minusOne := rtlil.NewConstInt(15, 4)
	one := rtlil.NewConstInt(1, 4)

	got := evalMust(t, "$lt", minusOne, one, true, true, 1)
	if got.AsInt() != 1 {
		t.Fatalf("signed -1 < 1 must hold")
	}
	got = evalMust(t, "$lt", minusOne, one, false, false, 1)
	if got.AsInt() != 0 {
		t.Fatalf("unsigned 15 < 1 must not hold")
	}
	// a single unsigned operand makes the comparison unsigned
	got = evalMust(t, "$lt", minusOne, one, true, false, 1)
	if got.AsInt() != 0 {
		t.Fatalf("mixed signedness must degrade to unsigned")
	}
}

func TestEvalShifts(t *testing.T) {
	got := evalMust(t, "$shl", rtlil.NewConstInt(3, 4), rtlil.NewConstInt(2, 2), false, false, 6)
	if got.AsInt() != 12 {
		t.Fatalf("3 << 2 = %d, want 12", got.AsInt())
	}
	got = evalMust(t, "$shr", rtlil.NewConstInt(12, 4), rtlil.NewConstInt(2, 2), false, false, 4)
	if got.AsInt() != 3 {
		t.Fatalf("12 >> 2 = %d, want 3", got.AsInt())
	}
	// $sshr with unsigned A behaves as $shr
	got = evalMust(t, "$sshr", rtlil.NewConstInt(12, 4), rtlil.NewConstInt(2, 2), false, false, 4)
	if got.AsInt() != 3 {
		t.Fatalf("unsigned $sshr = %d, want 3", got.AsInt())
	}
	// signed $sshr replicates the sign bit
	got = evalMust(t, "$sshr", rtlil.NewConstInt(12, 4), rtlil.NewConstInt(1, 2), true, false, 4)
	if got.AsInt() != 14 {
		t.Fatalf("signed 1100 >>> 1 = %s, want 1110", got.AsString())
	}
}

func TestEvalReduceAndLogic(t *testing.T) {
	got := evalMust(t, "$reduce_and", rtlil.NewConstInt(15, 4), rtlil.Const{}, false, false, 1)
	if got.AsInt() != 1 {
		t.Fatalf("reduce_and of all ones must be 1")
	}
	got = evalMust(t, "$reduce_xor", rtlil.NewConstInt(7, 4), rtlil.Const{}, false, false, 1)
	if got.AsInt() != 1 {
		t.Fatalf("reduce_xor of three ones must be 1")
	}
	got = evalMust(t, "$logic_and", rtlil.NewConstInt(2, 4), rtlil.NewConstInt(0, 4), false, false, 1)
	if got.AsInt() != 0 {
		t.Fatalf("logic_and with zero operand must be 0")
	}
	got = evalMust(t, "$logic_or", rtlil.NewConstInt(0, 4), rtlil.NewConstInt(8, 4), false, false, 1)
	if got.AsInt() != 1 {
		t.Fatalf("logic_or with non-zero operand must be 1")
	}
}

func TestEvalUndefPropagation(t *testing.T) {
	undef := rtlil.NewConstState(rtlil.Sx, 4)
	got := evalMust(t, "$add", undef, rtlil.NewConstInt(1, 4), false, false, 4)
	if !got.Equal(rtlil.NewConstState(rtlil.Sx, 4)) {
		t.Fatalf("arithmetic on x must yield x, got %s", got.AsString())
	}
	got = evalMust(t, "$and", undef, rtlil.NewConstInt(0, 4), false, false, 4)
	if !got.Equal(rtlil.NewConstState(rtlil.S0, 4)) {
		t.Fatalf("x AND 0 must be 0, got %s", got.AsString())
	}
}

func TestEvalGates(t *testing.T) {
	one := rtlil.NewConstInt(1, 1)
	zero := rtlil.NewConstInt(0, 1)
	if evalMust(t, "$_INV_", one, rtlil.Const{}, false, false, 1).AsInt() != 0 {
		t.Fatalf("INV(1) must be 0")
	}
	if evalMust(t, "$_AND_", one, zero, false, false, 1).AsInt() != 0 {
		t.Fatalf("AND(1,0) must be 0")
	}
	if evalMust(t, "$_OR_", one, zero, false, false, 1).AsInt() != 1 {
		t.Fatalf("OR(1,0) must be 1")
	}
	if evalMust(t, "$_XOR_", one, one, false, false, 1).AsInt() != 0 {
		t.Fatalf("XOR(1,1) must be 0")
	}
}

func TestEvalMuxSelect(t *testing.T) {
	cell := rtlil.NewCell("\\m", "$pmux")
	a := rtlil.NewConstInt(1, 2)
	b := rtlil.Const{Bits: append(rtlil.NewConstInt(2, 2).Bits, rtlil.NewConstInt(3, 2).Bits...)}

	got, err := EvalCellSelect(cell, a, b, rtlil.NewConstInt(0, 2))
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if got.AsInt() != 1 {
		t.Fatalf("no select bit set must return A, got %d", got.AsInt())
	}

	got, _ = EvalCellSelect(cell, a, b, rtlil.NewConstInt(1, 2))
	if got.AsInt() != 2 {
		t.Fatalf("first select bit must pick first B slice, got %d", got.AsInt())
	}

	// multiple hot select bits: the last one wins
	got, _ = EvalCellSelect(cell, a, b, rtlil.NewConstInt(3, 2))
	if got.AsInt() != 3 {
		t.Fatalf("last hot select bit must win, got %d", got.AsInt())
	}
}

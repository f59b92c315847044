package sat

import (
	"gosynth/internal/rtlil"
	"gosynth/internal/sigtools"
)

// Gen imports RTLIL signals and cells into a solver. Signal bits map to
// solver variables through the provided SigMap so equivalent spellings share
// variables.
type Gen struct {
	Solver *Solver
	sigmap *sigtools.SigMap
	vars   map[sigtools.SigBit]int
}

// NewGen returns an importer bound to the solver and signal map.
func NewGen(solver *Solver, sigmap *sigtools.SigMap) *Gen {
	return &Gen{Solver: solver, sigmap: sigmap, vars: map[sigtools.SigBit]int{}}
}

// ImportSigSpec returns one literal per bit of sig. Defined constant bits map
// to the constant literals; undefined bits get free variables.
func (g *Gen) ImportSigSpec(sig rtlil.SigSpec) []int {
	sig = g.sigmap.Map(sig)
	lits := make([]int, 0, sig.Width)
	for _, bit := range sigtools.BitsOf(sig) {
		lits = append(lits, g.importBit(bit))
	}
	return lits
}

func (g *Gen) importBit(bit sigtools.SigBit) int {
	if bit.Wire == nil {
		switch bit.State {
		case rtlil.S0:
			return g.Solver.False()
		case rtlil.S1:
			return g.Solver.True()
		default:
			return g.Solver.NewVar()
		}
	}
	if v, ok := g.vars[bit]; ok {
		return v
	}
	v := g.Solver.NewVar()
	g.vars[bit] = v
	return v
}

// ImportCell encodes the cell's semantics as clauses. It reports whether the
// cell type is supported.
func (g *Gen) ImportCell(cell *rtlil.Cell) bool {
	switch cell.Type {
	case "$_INV_", "$not":
		a := g.portLits(cell, "\\A")
		y := g.portLits(cell, "\\Y")
		a = g.extendPort(cell, "\\A_SIGNED", a, len(y))
		for i := range y {
			g.equiv(y[i], g.Solver.Not(a[i]))
		}
		return true

	case "$_AND_", "$and", "$_OR_", "$or", "$_XOR_", "$xor", "$xnor":
		a := g.portLits(cell, "\\A")
		b := g.portLits(cell, "\\B")
		y := g.portLits(cell, "\\Y")
		a = g.extendPort(cell, "\\A_SIGNED", a, len(y))
		b = g.extendPort(cell, "\\B_SIGNED", b, len(y))
		for i := range y {
			var t int
			switch cell.Type {
			case "$_AND_", "$and":
				t = g.Solver.And(a[i], b[i])
			case "$_OR_", "$or":
				t = g.Solver.Or(a[i], b[i])
			case "$_XOR_", "$xor":
				t = g.Solver.Xor(a[i], b[i])
			default:
				t = g.Solver.Not(g.Solver.Xor(a[i], b[i]))
			}
			g.equiv(y[i], t)
		}
		return true

	case "$reduce_and", "$reduce_or", "$reduce_bool", "$reduce_xor", "$reduce_xnor", "$logic_not":
		a := g.portLits(cell, "\\A")
		y := g.portLits(cell, "\\Y")
		var t int
		switch cell.Type {
		case "$reduce_and":
			t = g.Solver.AndN(a)
		case "$reduce_or", "$reduce_bool":
			t = g.Solver.OrN(a)
		case "$logic_not":
			t = g.Solver.Not(g.Solver.OrN(a))
		default:
			t = g.Solver.False()
			for _, l := range a {
				t = g.Solver.Xor(t, l)
			}
			if cell.Type == "$reduce_xnor" {
				t = g.Solver.Not(t)
			}
		}
		g.boolOutput(y, t)
		return true

	case "$logic_and", "$logic_or":
		a := g.Solver.OrN(g.portLits(cell, "\\A"))
		b := g.Solver.OrN(g.portLits(cell, "\\B"))
		y := g.portLits(cell, "\\Y")
		var t int
		if cell.Type == "$logic_and" {
			t = g.Solver.And(a, b)
		} else {
			t = g.Solver.Or(a, b)
		}
		g.boolOutput(y, t)
		return true

	case "$eq", "$ne":
		a := g.portLits(cell, "\\A")
		b := g.portLits(cell, "\\B")
		y := g.portLits(cell, "\\Y")
		width := len(a)
		if len(b) > width {
			width = len(b)
		}
		a = g.extendPort(cell, "\\A_SIGNED", a, width)
		b = g.extendPort(cell, "\\B_SIGNED", b, width)
		t := g.Solver.VecNe(a, b)
		if cell.Type == "$eq" {
			t = g.Solver.Not(t)
		}
		g.boolOutput(y, t)
		return true

	case "$_MUX_", "$mux":
		a := g.portLits(cell, "\\A")
		b := g.portLits(cell, "\\B")
		s := g.portLits(cell, "\\S")
		y := g.portLits(cell, "\\Y")
		if len(s) != 1 || len(a) != len(y) || len(b) != len(y) {
			return false
		}
		for i := range y {
			g.equiv(y[i], g.Solver.Mux(a[i], b[i], s[0]))
		}
		return true

	case "$pmux", "$safe_pmux":
		a := g.portLits(cell, "\\A")
		b := g.portLits(cell, "\\B")
		s := g.portLits(cell, "\\S")
		y := g.portLits(cell, "\\Y")
		if len(b) != len(a)*len(s) || len(a) != len(y) {
			return false
		}
		cur := a
		for i, sel := range s {
			next := make([]int, len(y))
			for j := range y {
				next[j] = g.Solver.Mux(cur[j], b[i*len(a)+j], sel)
			}
			cur = next
		}
		for i := range y {
			g.equiv(y[i], cur[i])
		}
		return true
	}

	return false
}

func (g *Gen) portLits(cell *rtlil.Cell, port rtlil.Id) []int {
	sig, ok := cell.Connections[port]
	if !ok {
		return nil
	}
	return g.ImportSigSpec(sig)
}

// extendPort pads a port's literal vector to width, repeating the sign bit
// when the cell declares the operand signed.
func (g *Gen) extendPort(cell *rtlil.Cell, signedParam rtlil.Id, lits []int, width int) []int {
	if len(lits) >= width {
		return lits[:width]
	}
	pad := g.Solver.False()
	signed := rtlil.GetBoolAttribute(cell.Parameters, signedParam)
	if signed && len(lits) > 0 {
		pad = lits[len(lits)-1]
	}
	out := append([]int(nil), lits...)
	for len(out) < width {
		out = append(out, pad)
	}
	return out
}

// boolOutput ties a multi-bit output to a single-bit result, zeroing the
// upper bits.
func (g *Gen) boolOutput(y []int, t int) {
	if len(y) == 0 {
		return
	}
	g.equiv(y[0], t)
	for _, l := range y[1:] {
		g.equiv(l, g.Solver.False())
	}
}

func (g *Gen) equiv(a, b int) {
	g.Solver.AddClause(-a, b)
	g.Solver.AddClause(a, -b)
}

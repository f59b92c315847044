// Package celltypes knows which cell kinds exist, which ports are inputs or
// outputs, and how to constant-fold the combinational cells.
package celltypes

import (
	"github.com/pkg/errors"

	"gosynth/internal/rtlil"
)

// CellTypes is the catalog of known cell type names, optionally extended with
// the user modules of attached designs.
type CellTypes struct {
	Types   map[rtlil.Id]bool
	designs []*rtlil.Design
}

// New returns an empty catalog.
func New() *CellTypes {
	return &CellTypes{Types: map[rtlil.Id]bool{}}
}

// NewFull returns a catalog with all builtin groups and the given design
// attached (nil for none).
func NewFull(design *rtlil.Design) *CellTypes {
	ct := New()
	if design != nil {
		ct.SetupDesign(design)
	}
	ct.SetupInternals()
	ct.SetupInternalsMem()
	ct.SetupStdcells()
	ct.SetupStdcellsMem()
	return ct
}

// SetupDesign attaches a design so its modules count as known cell types.
func (ct *CellTypes) SetupDesign(design *rtlil.Design) {
	ct.designs = append(ct.designs, design)
}

// SetupInternals registers the combinational internal cells.
func (ct *CellTypes) SetupInternals() {
	for _, t := range []string{
		"$not", "$pos", "$neg", "$and", "$or", "$xor", "$xnor",
		"$reduce_and", "$reduce_or", "$reduce_xor", "$reduce_xnor", "$reduce_bool",
		"$shl", "$shr", "$sshl", "$sshr",
		"$lt", "$le", "$eq", "$ne", "$ge", "$gt",
		"$add", "$sub", "$mul", "$div", "$mod", "$pow",
		"$logic_not", "$logic_and", "$logic_or",
		"$mux", "$pmux", "$safe_pmux", "$lut",
	} {
		ct.Types[t] = true
	}
}

// SetupInternalsMem registers the stateful internal cells.
func (ct *CellTypes) SetupInternalsMem() {
	for _, t := range []string{
		"$sr", "$dff", "$dffsr", "$adff", "$dlatch",
		"$memrd", "$memwr", "$mem", "$fsm",
	} {
		ct.Types[t] = true
	}
}

// SetupStdcells registers the single-gate primitives.
func (ct *CellTypes) SetupStdcells() {
	for _, t := range []string{"$_INV_", "$_AND_", "$_OR_", "$_XOR_", "$_MUX_"} {
		ct.Types[t] = true
	}
}

// SetupStdcellsMem registers the gate-level storage primitives, named by
// their polarity pattern.
func (ct *CellTypes) SetupStdcellsMem() {
	for _, sr := range []string{"NN", "NP", "PN", "PP"} {
		ct.Types["$_SR_"+sr+"_"] = true
	}
	for _, c := range []string{"N", "P"} {
		ct.Types["$_DFF_"+c+"_"] = true
		ct.Types["$_DLATCH_"+c+"_"] = true
	}
	for _, c := range []string{"N", "P"} {
		for _, r := range []string{"N", "P"} {
			for _, v := range []string{"0", "1"} {
				ct.Types["$_DFF_"+c+r+v+"_"] = true
			}
		}
	}
	for _, c := range []string{"N", "P"} {
		for _, s := range []string{"N", "P"} {
			for _, r := range []string{"N", "P"} {
				ct.Types["$_DFFSR_"+c+s+r+"_"] = true
			}
		}
	}
}

// Clear drops all registered types and designs.
func (ct *CellTypes) Clear() {
	ct.Types = map[rtlil.Id]bool{}
	ct.designs = nil
}

// Erase removes a single type from the catalog.
func (ct *CellTypes) Erase(typ rtlil.Id) {
	delete(ct.Types, typ)
}

// CellKnown reports whether the type is in the catalog or names a module of
// an attached design.
func (ct *CellTypes) CellKnown(typ rtlil.Id) bool {
	if ct.Types[typ] {
		return true
	}
	for _, design := range ct.designs {
		if _, ok := design.Modules[typ]; ok {
			return true
		}
	}
	return false
}

// CellOutput reports whether the port drives out of the cell.
func (ct *CellTypes) CellOutput(typ, port rtlil.Id) bool {
	if !ct.Types[typ] {
		for _, design := range ct.designs {
			if mod, ok := design.Modules[typ]; ok {
				if w, ok := mod.Wires[port]; ok {
					return w.PortOutput
				}
				return false
			}
		}
		return false
	}

	if port == "\\Y" || port == "\\Q" || port == "\\RD_DATA" {
		return true
	}
	if typ == "$memrd" && port == "\\DATA" {
		return true
	}
	if typ == "$fsm" && port == "\\CTRL_OUT" {
		return true
	}
	if typ == "$lut" && port == "\\O" {
		return true
	}
	return false
}

// CellInput reports whether the port feeds into the cell.
func (ct *CellTypes) CellInput(typ, port rtlil.Id) bool {
	if !ct.Types[typ] {
		for _, design := range ct.designs {
			if mod, ok := design.Modules[typ]; ok {
				if w, ok := mod.Wires[port]; ok {
					return w.PortInput
				}
				return false
			}
		}
		return false
	}
	return !ct.CellOutput(typ, port)
}

// Eval constant-folds a combinational cell type. For $sshr/$sshl with an
// unsigned A operand the plain shift semantics apply; for the non-shift
// binary cells a single unsigned operand makes the whole operation unsigned.
func Eval(typ rtlil.Id, arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int) (rtlil.Const, error) {
	if typ == "$sshr" && !signed1 {
		typ = "$shr"
	}
	if typ == "$sshl" && !signed1 {
		typ = "$shl"
	}

	switch typ {
	case "$sshr", "$sshl", "$shr", "$shl", "$pos", "$neg", "$not":
	default:
		if !signed1 || !signed2 {
			signed1, signed2 = false, false
		}
	}

	if fn, ok := constOps[typ]; ok {
		return fn(arg1, arg2, signed1, signed2, resultLen), nil
	}

	switch typ {
	case "$_INV_":
		return constNot(arg1, arg2, false, false, 1), nil
	case "$_AND_":
		return constAnd(arg1, arg2, false, false, 1), nil
	case "$_OR_":
		return constOr(arg1, arg2, false, false, 1), nil
	case "$_XOR_":
		return constXor(arg1, arg2, false, false, 1), nil
	}

	return rtlil.Const{}, errors.Errorf("celltypes: cannot evaluate cell type %s", typ)
}

// EvalCell folds a cell instance using its sign and width parameters.
func EvalCell(cell *rtlil.Cell, arg1, arg2 rtlil.Const) (rtlil.Const, error) {
	signedA := rtlil.GetBoolAttribute(cell.Parameters, "\\A_SIGNED")
	signedB := rtlil.GetBoolAttribute(cell.Parameters, "\\B_SIGNED")
	resultLen := -1
	if c, ok := cell.Parameters["\\Y_WIDTH"]; ok {
		resultLen = c.AsInt()
	}
	return Eval(cell.Type, arg1, arg2, signedA, signedB, resultLen)
}

// EvalCellSelect folds a cell instance with a select operand. For the mux
// family, arg1 is the default input, arg2 the concatenated select inputs and
// sel the select bits: the last input whose select bit is S1 wins. $safe_pmux
// mirrors this last-wins behavior of the source even though its declared
// semantics would yield Sx on multiple hot bits; kept as observed, not fixed.
func EvalCellSelect(cell *rtlil.Cell, arg1, arg2, sel rtlil.Const) (rtlil.Const, error) {
	switch cell.Type {
	case "$mux", "$pmux", "$safe_pmux", "$_MUX_":
		ret := arg1
		for i := 0; i < len(sel.Bits); i++ {
			if sel.Bits[i] == rtlil.S1 {
				bits := append([]rtlil.State(nil), arg2.Bits[i*len(arg1.Bits):(i+1)*len(arg1.Bits)]...)
				ret = rtlil.NewConstBits(bits)
			}
		}
		return ret, nil
	}

	if len(sel.Bits) != 0 {
		return rtlil.Const{}, errors.Errorf("celltypes: select operand on non-mux cell %s", cell.Type)
	}
	return EvalCell(cell, arg1, arg2)
}

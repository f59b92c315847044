// Package consteval evaluates signals of a module under a partial input
// assignment by propagating constants through known cells.
package consteval

import (
	"sort"

	"github.com/pkg/errors"

	"gosynth/internal/celltypes"
	"gosynth/internal/rtlil"
	"gosynth/internal/sigtools"
)

// ConstEval resolves signal values by walking cell drivers backwards from
// the requested signal. Assignments made with Set persist until Clear.
type ConstEval struct {
	Module *rtlil.Module

	assignMap  *sigtools.SigMap
	valuesMap  *sigtools.SigMap
	ct         *celltypes.CellTypes
	sig2driver *sigtools.SigSet[*rtlil.Cell]
	busy       map[*rtlil.Cell]bool
}

// New builds an evaluator over the module's combinational cells.
func New(module *rtlil.Module) *ConstEval {
	ce := &ConstEval{
		Module:     module,
		assignMap:  sigtools.NewSigMap(module),
		valuesMap:  sigtools.NewSigMap(nil),
		ct:         celltypes.New(),
		sig2driver: sigtools.NewSigSet[*rtlil.Cell](),
		busy:       map[*rtlil.Cell]bool{},
	}
	ce.ct.SetupInternals()
	ce.ct.SetupStdcells()
	for _, name := range rtlil.SortedCellNames(module) {
		cell := module.Cells[name]
		if !ce.ct.CellKnown(cell.Type) {
			continue
		}
		ports := make([]rtlil.Id, 0, len(cell.Connections))
		for port := range cell.Connections {
			ports = append(ports, port)
		}
		sort.Strings(ports)
		for _, port := range ports {
			if ce.ct.CellOutput(cell.Type, port) {
				ce.sig2driver.Insert(ce.assignMap.Map(cell.Connections[port]), cell)
			}
		}
	}
	return ce
}

// Clear drops all assignments made with Set.
func (ce *ConstEval) Clear() {
	ce.valuesMap.Clear()
}

// Set assigns a constant value to a signal.
func (ce *ConstEval) Set(sig rtlil.SigSpec, value rtlil.Const) {
	sig = ce.assignMap.Map(sig)
	ce.valuesMap.Add(sig, rtlil.SigFromConst(value))
}

// Eval resolves sig to a constant if possible, rewriting it in place. It
// reports whether the signal became fully constant.
func (ce *ConstEval) Eval(sig *rtlil.SigSpec) bool {
	*sig = ce.valuesMap.Map(ce.assignMap.Map(*sig))
	if sig.IsFullyConst() {
		return true
	}

	for {
		progressed := false
		for _, bit := range sigtools.BitsOf(*sig) {
			if bit.Wire == nil {
				continue
			}
			drivers := ce.sig2driver.Find(bit.Sig())
			for _, cell := range drivers {
				if ce.evalCell(cell) {
					progressed = true
				}
			}
		}
		*sig = ce.valuesMap.Map(*sig)
		if sig.IsFullyConst() {
			return true
		}
		if !progressed {
			return false
		}
	}
}

func (ce *ConstEval) evalCell(cell *rtlil.Cell) bool {
	if ce.busy[cell] {
		return false
	}
	ce.busy[cell] = true
	defer delete(ce.busy, cell)

	outPort := rtlil.Id("\\Y")
	if cell.Type == "$lut" {
		outPort = "\\O"
	}
	outSig, ok := cell.Connections[outPort]
	if !ok {
		return false
	}
	out := ce.valuesMap.Map(ce.assignMap.Map(outSig))
	if out.IsFullyConst() {
		return false
	}

	result, err := ce.foldCell(cell)
	if err != nil {
		return false
	}
	fitted := fitWidth(result, outSig.Width)
	ce.valuesMap.Add(ce.assignMap.Map(outSig), rtlil.SigFromConst(fitted))
	return true
}

func (ce *ConstEval) foldCell(cell *rtlil.Cell) (rtlil.Const, error) {
	switch cell.Type {
	case "$mux", "$pmux", "$safe_pmux", "$_MUX_":
		selC, err := ce.evalPort(cell, "\\S")
		if err != nil {
			return rtlil.Const{}, err
		}
		argA, err := ce.evalPort(cell, "\\A")
		if err != nil {
			return rtlil.Const{}, err
		}
		argB, err := ce.evalPort(cell, "\\B")
		if err != nil {
			return rtlil.Const{}, err
		}
		for _, b := range selC.Bits {
			if b != rtlil.S0 && b != rtlil.S1 {
				return rtlil.NewConstState(rtlil.Sx, len(argA.Bits)), nil
			}
		}
		return celltypes.EvalCellSelect(cell, argA, argB, selC)
	case "$lut":
		input, err := ce.evalPort(cell, "\\I")
		if err != nil {
			return rtlil.Const{}, err
		}
		lut := cell.Parameters["\\LUT"]
		idx := 0
		for i, b := range input.Bits {
			switch b {
			case rtlil.S1:
				idx |= 1 << uint(i)
			case rtlil.S0:
			default:
				return rtlil.NewConstState(rtlil.Sx, 1), nil
			}
		}
		if idx >= len(lut.Bits) {
			return rtlil.NewConstState(rtlil.Sx, 1), nil
		}
		return rtlil.NewConstBits([]rtlil.State{lut.Bits[idx]}), nil
	}

	argA, err := ce.evalPort(cell, "\\A")
	if err != nil {
		return rtlil.Const{}, err
	}
	argB := rtlil.Const{}
	if _, ok := cell.Connections["\\B"]; ok {
		argB, err = ce.evalPort(cell, "\\B")
		if err != nil {
			return rtlil.Const{}, err
		}
	}
	return celltypes.EvalCell(cell, argA, argB)
}

func (ce *ConstEval) evalPort(cell *rtlil.Cell, port rtlil.Id) (rtlil.Const, error) {
	sig, ok := cell.Connections[port]
	if !ok {
		return rtlil.Const{}, errors.Errorf("consteval: cell %s has no port %s", cell.Name, port)
	}
	sig = sig.Copy()
	if !ce.Eval(&sig) {
		return rtlil.Const{}, errors.Errorf("consteval: cannot evaluate port %s of cell %s", port, cell.Name)
	}
	return sig.AsConst(), nil
}

func fitWidth(c rtlil.Const, width int) rtlil.Const {
	bits := append([]rtlil.State(nil), c.Bits...)
	if len(bits) > width {
		bits = bits[:width]
	}
	for len(bits) < width {
		bits = append(bits, rtlil.S0)
	}
	return rtlil.NewConstBits(bits)
}

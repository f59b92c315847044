package passes

import (
	"fmt"

	"gosynth/internal/rtlil"
)

// builtinStdcellsMap builds the default techmap library: width-parametric
// templates lowering the bitwise RTL cells to the internal gate library.
func builtinStdcellsMap() *rtlil.Design {
	design := rtlil.NewDesign()
	design.AddModule(stdcellTemplate("$not"))
	design.AddModule(stdcellTemplate("$and"))
	design.AddModule(stdcellTemplate("$or"))
	design.AddModule(stdcellTemplate("$xor"))
	design.AddModule(stdcellTemplate("$mux"))
	return design
}

// stdcellTemplate is a parametric stub: it carries the port skeleton and a
// DeriveFn that materializes the width-specialized gate network on demand.
func stdcellTemplate(typ rtlil.Id) *rtlil.Module {
	module := rtlil.NewModule(typ)
	addTemplatePorts(module, typ, 1)
	module.DeriveFn = func(design *rtlil.Design, parameters map[rtlil.Id]rtlil.Const) (rtlil.Id, error) {
		width := 1
		if c, ok := parameters["\\Y_WIDTH"]; ok {
			width = c.AsInt()
		} else if c, ok := parameters["\\WIDTH"]; ok {
			width = c.AsInt()
		}
		if width < 1 {
			width = 1
		}
		derivedName := rtlil.Id(fmt.Sprintf("%s$%d", typ, width))
		if _, ok := design.Modules[derivedName]; ok {
			return derivedName, nil
		}
		derived := deriveStdcell(typ, derivedName, width)
		design.AddModule(derived)
		return derivedName, nil
	}
	return module
}

func addTemplatePorts(module *rtlil.Module, typ rtlil.Id, width int) {
	portId := 0
	addPort := func(name rtlil.Id, w int, output bool) *rtlil.Wire {
		portId++
		wire := module.NewWireInModule(w, name)
		wire.PortId = portId
		wire.PortInput = !output
		wire.PortOutput = output
		return wire
	}
	addPort("\\A", width, false)
	if typ != "$not" {
		addPort("\\B", width, false)
	}
	if typ == "$mux" {
		addPort("\\S", 1, false)
	}
	addPort("\\Y", width, true)
}

func deriveStdcell(typ, derivedName rtlil.Id, width int) *rtlil.Module {
	module := rtlil.NewModule(derivedName)
	addTemplatePorts(module, typ, width)

	gateType := map[rtlil.Id]rtlil.Id{
		"$not": "$_INV_",
		"$and": "$_AND_",
		"$or":  "$_OR_",
		"$xor": "$_XOR_",
		"$mux": "$_MUX_",
	}[typ]

	a := module.Wires["\\A"]
	y := module.Wires["\\Y"]
	for i := 0; i < width; i++ {
		gate := rtlil.NewCell(rtlil.Id(fmt.Sprintf("$g%d", i)), gateType)
		gate.Connections["\\A"] = rtlil.SigFromWireRange(a, 1, i)
		if typ != "$not" {
			gate.Connections["\\B"] = rtlil.SigFromWireRange(module.Wires["\\B"], 1, i)
		}
		if typ == "$mux" {
			gate.Connections["\\S"] = rtlil.SigFromWire(module.Wires["\\S"])
		}
		gate.Connections["\\Y"] = rtlil.SigFromWireRange(y, 1, i)
		module.AddCell(gate)
	}
	return module
}

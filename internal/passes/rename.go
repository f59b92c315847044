// Package passes implements the design transformations: renaming, cell
// sharing, flip-flop removal, SAT-backed functional reduction, FSM recoding
// and template-based technology mapping.
package passes

import (
	"fmt"

	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
)

func init() {
	register.RegisterPass(&renamePass{})
}

type renamePass struct{}

func (*renamePass) Name() string { return "rename" }

func (*renamePass) Help(log *diag.Logger) {
	log.Logf("\n    rename old_name new_name\n\n")
	log.Logf("Rename the specified object. Note that selection patterns are not supported\n")
	log.Logf("by this command.\n\n")
	log.Logf("    rename -enumerate [selection]\n\n")
	log.Logf("Assign short auto-generated names to all selected wires and cells with\n")
	log.Logf("generated names.\n\n")
}

func (*renamePass) Execute(ctx *register.Context, args []string) error {
	flagEnumerate := false

	argidx := 1
	for ; argidx < len(args); argidx++ {
		if args[argidx] == "-enumerate" {
			flagEnumerate = true
			continue
		}
		break
	}

	if flagEnumerate {
		if err := register.ExtraArgs(ctx, args, argidx); err != nil {
			return err
		}
		design := ctx.Design
		for _, modName := range rtlil.SortedModuleNames(design) {
			module := design.Modules[modName]
			if !design.SelectedModule(modName) {
				continue
			}
			counter := 0
			for _, name := range rtlil.SortedWireNames(module) {
				wire := module.Wires[name]
				if name[0] != '$' || !design.SelectedMember(modName, name) {
					continue
				}
				delete(module.Wires, name)
				for {
					wire.Name = fmt.Sprintf("\\_%d_", counter)
					counter++
					if module.CountId(wire.Name) == 0 {
						break
					}
				}
				module.Wires[wire.Name] = wire
			}
			for _, name := range rtlil.SortedCellNames(module) {
				cell := module.Cells[name]
				if name[0] != '$' || !design.SelectedMember(modName, name) {
					continue
				}
				delete(module.Cells, name)
				for {
					cell.Name = fmt.Sprintf("\\_%d_", counter)
					counter++
					if module.CountId(cell.Name) == 0 {
						break
					}
				}
				module.Cells[cell.Name] = cell
			}
		}
		return nil
	}

	if argidx+2 != len(args) {
		return register.CmdErrorf("rename: invalid number of arguments")
	}
	fromName := args[argidx]
	toName := args[argidx+1]
	design := ctx.Design

	if design.SelectedActiveModule != "" {
		module, ok := design.Modules[design.SelectedActiveModule]
		if !ok {
			return nil
		}
		return renameInModule(ctx, module, fromName, toName)
	}

	for _, modName := range rtlil.SortedModuleNames(design) {
		if modName == fromName || rtlil.UnescapeId(modName) == fromName {
			module := design.Modules[modName]
			newName := rtlil.EscapeId(toName)
			ctx.Log.Logf("Renaming module %s to %s.\n", modName, newName)
			delete(design.Modules, modName)
			module.Name = newName
			design.Modules[newName] = module
			return nil
		}
	}
	return register.CmdErrorf("rename: object `%s' not found", fromName)
}

func renameInModule(ctx *register.Context, module *rtlil.Module, fromName, toName string) error {
	from := rtlil.EscapeId(fromName)
	to := rtlil.EscapeId(toName)

	if module.CountId(to) != 0 {
		return register.CmdErrorf("rename: there is already an object `%s' in module `%s'", to, module.Name)
	}

	if wire, ok := module.Wires[from]; ok {
		ctx.Log.Logf("Renaming wire %s to %s in module %s.\n", wire.Name, to, module.Name)
		delete(module.Wires, wire.Name)
		wire.Name = to
		module.AddWire(wire)
		return nil
	}

	if cell, ok := module.Cells[from]; ok {
		ctx.Log.Logf("Renaming cell %s to %s in module %s.\n", cell.Name, to, module.Name)
		delete(module.Cells, cell.Name)
		cell.Name = to
		module.AddCell(cell)
		return nil
	}

	return register.CmdErrorf("rename: object `%s' not found", from)
}

package rtlil

import (
	"fmt"
	"io"
)

// Dump writes a human-readable representation of the design.
func Dump(design *Design, w io.Writer) {
	if design == nil {
		fmt.Fprintln(w, "<nil design>")
		return
	}
	for _, name := range SortedModuleNames(design) {
		DumpModule(design.Modules[name], w)
		fmt.Fprintln(w)
	}
}

// DumpModule writes a human-readable representation of one module.
func DumpModule(module *Module, w io.Writer) {
	fmt.Fprintf(w, "module %s\n", UnescapeId(module.Name))
	dumpWires(module, w)
	dumpMemories(module, w)
	dumpCells(module, w)
	dumpProcesses(module, w)
	dumpConnections(module, w)
}

func dumpWires(module *Module, w io.Writer) {
	if len(module.Wires) == 0 {
		return
	}
	fmt.Fprintln(w, "  wires:")
	for _, name := range SortedWireNames(module) {
		wire := module.Wires[name]
		port := ""
		if wire.PortId > 0 {
			dir := "inout"
			if !wire.PortOutput {
				dir = "input"
			} else if !wire.PortInput {
				dir = "output"
			}
			port = fmt.Sprintf(" %s #%d", dir, wire.PortId)
		}
		fmt.Fprintf(w, "    %-16s %db%s\n", wire.Name, wire.Width, port)
	}
}

func dumpMemories(module *Module, w io.Writer) {
	if len(module.Memories) == 0 {
		return
	}
	fmt.Fprintln(w, "  memories:")
	for _, name := range SortedMemoryNames(module) {
		mem := module.Memories[name]
		fmt.Fprintf(w, "    %-16s width=%d size=%d\n", mem.Name, mem.Width, mem.Size)
	}
}

func dumpCells(module *Module, w io.Writer) {
	if len(module.Cells) == 0 {
		return
	}
	fmt.Fprintln(w, "  cells:")
	for _, name := range SortedCellNames(module) {
		cell := module.Cells[name]
		fmt.Fprintf(w, "    %s %s\n", cell.Type, cell.Name)
		for _, p := range sortedKeys(cell.Parameters) {
			fmt.Fprintf(w, "      param %s %s\n", p, cell.Parameters[p].AsString())
		}
		for _, p := range sortedKeys(cell.Connections) {
			fmt.Fprintf(w, "      port %s %s\n", p, cell.Connections[p].String())
		}
	}
}

func dumpProcesses(module *Module, w io.Writer) {
	for _, name := range SortedProcessNames(module) {
		proc := module.Processes[name]
		fmt.Fprintf(w, "  process %s\n", proc.Name)
		dumpCase(&proc.RootCase, w, "    ")
		for _, sync := range proc.Syncs {
			fmt.Fprintf(w, "    sync %s %s\n", syncTypeName(sync.Type), sync.Signal.String())
			for _, a := range sync.Actions {
				fmt.Fprintf(w, "      update %s %s\n", a.First.String(), a.Second.String())
			}
		}
	}
}

func dumpCase(c *CaseRule, w io.Writer, indent string) {
	for _, a := range c.Actions {
		fmt.Fprintf(w, "%sassign %s %s\n", indent, a.First.String(), a.Second.String())
	}
	for _, sw := range c.Switches {
		fmt.Fprintf(w, "%sswitch %s\n", indent, sw.Signal.String())
		for _, cs := range sw.Cases {
			label := "default"
			if len(cs.Compare) > 0 {
				label = ""
				for i, cmp := range cs.Compare {
					if i > 0 {
						label += ", "
					}
					label += cmp.String()
				}
			}
			fmt.Fprintf(w, "%s  case %s\n", indent, label)
			dumpCase(cs, w, indent+"    ")
		}
	}
}

func dumpConnections(module *Module, w io.Writer) {
	if len(module.Connections) == 0 {
		return
	}
	fmt.Fprintln(w, "  connections:")
	for _, conn := range module.Connections {
		fmt.Fprintf(w, "    %s = %s\n", conn.First.String(), conn.Second.String())
	}
}

func syncTypeName(t SyncType) string {
	switch t {
	case SyncAlways:
		return "always"
	case SyncInit:
		return "init"
	case SyncPosedge:
		return "posedge"
	case SyncNegedge:
		return "negedge"
	case SyncEdge:
		return "edge"
	}
	return "?"
}

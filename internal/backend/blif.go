// Package backend serializes designs to netlist formats.
package backend

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"gosynth/internal/celltypes"
	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
)

func init() {
	register.RegisterPass(&blifBackend{})
}

type blifConfig struct {
	subcktMode bool
	connMode   bool
	impltfMode bool

	bufType, bufIn, bufOut string
	trueType, trueOut      string
	falseType, falseOut    string
}

type blifDumper struct {
	w      io.Writer
	module *rtlil.Module
	design *rtlil.Design
	config *blifConfig
	ct     *celltypes.CellTypes
}

// blifId escapes an identifier for BLIF: '#' and '=' become '?'.
func blifId(id rtlil.Id) string {
	str := rtlil.UnescapeId(id)
	str = strings.ReplaceAll(str, "#", "?")
	return strings.ReplaceAll(str, "=", "?")
}

// blifSig names a one-bit signal; constants go through the reserved $true
// and $false nets.
func blifSig(sig rtlil.SigSpec) string {
	sig = sig.Copy()
	sig.Optimize()
	if sig.Width != 1 {
		panic("blif: multi-bit signal in single-bit context")
	}
	chunk := sig.Chunks[0]
	if chunk.Wire == nil {
		if chunk.Data.Bits[0] == rtlil.S1 {
			return "$true"
		}
		return "$false"
	}
	str := blifId(chunk.Wire.Name)
	if chunk.Wire.Width != 1 {
		str += fmt.Sprintf("[%d]", chunk.Offset)
	}
	return str
}

func (d *blifDumper) dump() {
	fmt.Fprintf(d.w, "\n")
	fmt.Fprintf(d.w, ".model %s\n", blifId(d.module.Name))

	inputs := map[int]*rtlil.Wire{}
	outputs := map[int]*rtlil.Wire{}
	maxPort := 0
	for _, name := range rtlil.SortedWireNames(d.module) {
		wire := d.module.Wires[name]
		if wire.PortInput {
			inputs[wire.PortId] = wire
		}
		if wire.PortOutput {
			outputs[wire.PortId] = wire
		}
		if wire.PortId > maxPort {
			maxPort = wire.PortId
		}
	}

	fmt.Fprintf(d.w, ".inputs")
	for id := 0; id <= maxPort; id++ {
		wire, ok := inputs[id]
		if !ok {
			continue
		}
		for i := 0; i < wire.Width; i++ {
			fmt.Fprintf(d.w, " %s", blifSig(rtlil.SigFromWireRange(wire, 1, i)))
		}
	}
	fmt.Fprintf(d.w, "\n")

	fmt.Fprintf(d.w, ".outputs")
	for id := 0; id <= maxPort; id++ {
		wire, ok := outputs[id]
		if !ok {
			continue
		}
		for i := 0; i < wire.Width; i++ {
			fmt.Fprintf(d.w, " %s", blifSig(rtlil.SigFromWireRange(wire, 1, i)))
		}
	}
	fmt.Fprintf(d.w, "\n")

	if !d.config.impltfMode {
		if d.config.falseType != "" {
			fmt.Fprintf(d.w, ".subckt %s %s=$false\n", d.config.falseType, d.config.falseOut)
		} else {
			fmt.Fprintf(d.w, ".names $false\n")
		}
		if d.config.trueType != "" {
			fmt.Fprintf(d.w, ".subckt %s %s=$true\n", d.config.trueType, d.config.trueOut)
		} else {
			fmt.Fprintf(d.w, ".names $true\n1\n")
		}
	}

	for _, name := range rtlil.SortedCellNames(d.module) {
		cell := d.module.Cells[name]
		if !d.config.subcktMode && d.dumpGate(cell) {
			continue
		}

		fmt.Fprintf(d.w, ".subckt %s", blifId(cell.Type))
		for _, port := range sortedPorts(cell) {
			conn := cell.Connections[port]
			for i := 0; i < conn.Width; i++ {
				if conn.Width == 1 {
					fmt.Fprintf(d.w, " %s", blifId(port))
				} else {
					fmt.Fprintf(d.w, " %s[%d]", blifId(port), i)
				}
				fmt.Fprintf(d.w, "=%s", blifSig(conn.Extract(i, 1)))
			}
		}
		fmt.Fprintf(d.w, "\n")
	}

	for _, conn := range d.module.Connections {
		for i := 0; i < conn.First.Width; i++ {
			lhs := blifSig(conn.First.Extract(i, 1))
			rhs := blifSig(conn.Second.Extract(i, 1))
			switch {
			case d.config.connMode:
				fmt.Fprintf(d.w, ".conn %s %s\n", rhs, lhs)
			case d.config.bufType != "":
				fmt.Fprintf(d.w, ".subckt %s %s=%s %s=%s\n", d.config.bufType,
					d.config.bufIn, rhs, d.config.bufOut, lhs)
			default:
				fmt.Fprintf(d.w, ".names %s %s\n1 1\n", rhs, lhs)
			}
		}
	}

	fmt.Fprintf(d.w, ".end\n")
}

// dumpGate translates the internal gates to generic BLIF logic functions.
// It reports whether the cell was handled.
func (d *blifDumper) dumpGate(cell *rtlil.Cell) bool {
	conn := func(port rtlil.Id) string { return blifSig(cell.Connections[port]) }
	switch cell.Type {
	case "$_INV_":
		fmt.Fprintf(d.w, ".names %s %s\n0 1\n", conn("\\A"), conn("\\Y"))
	case "$_AND_":
		fmt.Fprintf(d.w, ".names %s %s %s\n11 1\n", conn("\\A"), conn("\\B"), conn("\\Y"))
	case "$_OR_":
		fmt.Fprintf(d.w, ".names %s %s %s\n1- 1\n-1 1\n", conn("\\A"), conn("\\B"), conn("\\Y"))
	case "$_XOR_":
		fmt.Fprintf(d.w, ".names %s %s %s\n10 1\n01 1\n", conn("\\A"), conn("\\B"), conn("\\Y"))
	case "$_MUX_":
		fmt.Fprintf(d.w, ".names %s %s %s %s\n1-0 1\n-11 1\n",
			conn("\\A"), conn("\\B"), conn("\\S"), conn("\\Y"))
	case "$_DFF_N_":
		fmt.Fprintf(d.w, ".latch %s %s fe %s\n", conn("\\D"), conn("\\Q"), conn("\\C"))
	case "$_DFF_P_":
		fmt.Fprintf(d.w, ".latch %s %s re %s\n", conn("\\D"), conn("\\Q"), conn("\\C"))
	default:
		return false
	}
	return true
}

type blifBackend struct{}

func (*blifBackend) Name() string { return "write_blif" }

func (*blifBackend) Help(log *diag.Logger) {
	log.Logf("\n    write_blif [options] [filename]\n\n")
	log.Logf("Write the current design to a BLIF file.\n\n")
	log.Logf("    -top top_module\n")
	log.Logf("        set the specified module as design top module\n\n")
	log.Logf("    -buf <cell-type> <in-port> <out-port>\n")
	log.Logf("        use cells of type <cell-type> with the given ports for buffers\n\n")
	log.Logf("    -true <cell-type> <out-port>\n")
	log.Logf("    -false <cell-type> <out-port>\n")
	log.Logf("        use the specified cell types to drive nets that are constant 1 or 0\n\n")
	log.Logf("    -subckt\n")
	log.Logf("        do not translate internal gates to generic BLIF logic functions.\n")
	log.Logf("        Instead create .subckt lines for all cells.\n\n")
	log.Logf("    -conn\n")
	log.Logf("        do not generate buffers for connected wires. Instead use the\n")
	log.Logf("        non-standard .conn statement.\n\n")
	log.Logf("    -impltf\n")
	log.Logf("        do not write definitions for the $true and $false wires.\n\n")
}

func (*blifBackend) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing BLIF backend.\n")

	var config blifConfig
	topModuleName := ""
	filename := ""

	argidx := 1
	for ; argidx < len(args); argidx++ {
		switch {
		case args[argidx] == "-top" && argidx+1 < len(args):
			argidx++
			topModuleName = args[argidx]
		case args[argidx] == "-buf" && argidx+3 < len(args):
			config.bufType = args[argidx+1]
			config.bufIn = args[argidx+2]
			config.bufOut = args[argidx+3]
			argidx += 3
		case args[argidx] == "-true" && argidx+2 < len(args):
			config.trueType = args[argidx+1]
			config.trueOut = args[argidx+2]
			argidx += 2
		case args[argidx] == "-false" && argidx+2 < len(args):
			config.falseType = args[argidx+1]
			config.falseOut = args[argidx+2]
			argidx += 2
		case args[argidx] == "-subckt":
			config.subcktMode = true
		case args[argidx] == "-conn":
			config.connMode = true
		case args[argidx] == "-impltf":
			config.impltfMode = true
		case strings.HasPrefix(args[argidx], "-"):
			return register.CmdErrorf("write_blif: unknown option %s", args[argidx])
		default:
			if filename != "" {
				return register.CmdErrorf("write_blif: more than one output file")
			}
			filename = args[argidx]
		}
	}

	w, closeFn, err := openOutput(filename)
	if err != nil {
		return err
	}
	defer closeFn()

	design := ctx.Design
	var modList []*rtlil.Module

	for _, name := range rtlil.SortedModuleNames(design) {
		module := design.Modules[name]
		if rtlil.GetBoolAttribute(module.Attributes, "\\placeholder") {
			continue
		}
		if len(module.Processes) != 0 {
			return errors.Errorf("write_blif: found unmapped processes in module %s", module.Name)
		}
		if len(module.Memories) != 0 {
			return errors.Errorf("write_blif: found unmapped memories in module %s", module.Name)
		}
		if module.Name == rtlil.EscapeId(topModuleName) {
			dumper := blifDumper{w: w, module: module, design: design, config: &config,
				ct: celltypes.NewFull(design)}
			dumper.dump()
			topModuleName = ""
			continue
		}
		modList = append(modList, module)
	}

	if topModuleName != "" {
		return errors.Errorf("write_blif: can't find top module `%s'", topModuleName)
	}

	for _, module := range modList {
		dumper := blifDumper{w: w, module: module, design: design, config: &config,
			ct: celltypes.NewFull(design)}
		dumper.dump()
	}
	return nil
}

func sortedPorts(cell *rtlil.Cell) []rtlil.Id {
	ports := make([]rtlil.Id, 0, len(cell.Connections))
	for port := range cell.Connections {
		ports = append(ports, port)
	}
	sortIds(ports)
	return ports
}

func openOutput(filename string) (io.Writer, func() error, error) {
	if filename == "" || filename == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "backend: can't open output file %s", filename)
	}
	bw := bufio.NewWriter(f)
	return bw, func() error {
		if err := bw.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

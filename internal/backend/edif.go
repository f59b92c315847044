package backend

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"gosynth/internal/celltypes"
	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
	"gosynth/internal/sigtools"
)

func init() {
	register.RegisterPass(&edifBackend{})
}

// edifNames renames identifiers that are not plain EDIF names to fresh
// id<NNNNN> names, emitting a (rename ...) form once per identifier. The
// mapping is stable within one invocation.
type edifNames struct {
	counter        int
	generatedNames map[string]bool
	usedNames      map[string]bool
	nameMap        map[string]string
}

func newEdifNames() *edifNames {
	return &edifNames{
		counter:        1,
		generatedNames: map[string]bool{},
		usedNames:      map[string]bool{},
		nameMap:        map[string]string{},
	}
}

func (e *edifNames) name(id string) string {
	if mapped, ok := e.nameMap[id]; ok {
		return mapped
	}
	if !e.generatedNames[id] && id != "GND" && id != "VCC" && edifNameOk(id) {
		e.usedNames[id] = true
		return id
	}

	var genName string
	for {
		genName = fmt.Sprintf("id%05d", e.counter)
		e.counter++
		if !e.generatedNames[genName] && !e.usedNames[genName] {
			break
		}
	}
	e.generatedNames[genName] = true
	e.nameMap[id] = genName
	return fmt.Sprintf("(rename %s \"%s\")", genName, id)
}

func edifNameOk(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z':
		case '0' <= c && c <= '9':
			if i == 0 {
				return false
			}
		case c == '_':
			if i == 0 || i == len(id)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (e *edifNames) id(id rtlil.Id) string {
	return e.name(rtlil.UnescapeId(id))
}

type edifBackend struct{}

func (*edifBackend) Name() string { return "write_edif" }

func (*edifBackend) Help(log *diag.Logger) {
	log.Logf("\n    write_edif [options] [filename]\n\n")
	log.Logf("Write the current design to an EDIF netlist file.\n\n")
	log.Logf("    -top top_module\n")
	log.Logf("        set the specified module as design top module\n\n")
	log.Logf("There are different \"flavors\" of the EDIF file format. This command\n")
	log.Logf("generates EDIF files for place&route tools; it might be necessary to make\n")
	log.Logf("small modifications when a different tool is targeted.\n\n")
}

func (*edifBackend) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing EDIF backend.\n")

	topModuleName := ""
	filename := ""

	argidx := 1
	for ; argidx < len(args); argidx++ {
		switch {
		case args[argidx] == "-top" && argidx+1 < len(args):
			argidx++
			topModuleName = args[argidx]
		case strings.HasPrefix(args[argidx], "-"):
			return register.CmdErrorf("write_edif: unknown option %s", args[argidx])
		default:
			if filename != "" {
				return register.CmdErrorf("write_edif: more than one output file")
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
	ct := celltypes.NewFull(design)
	names := newEdifNames()
	libCellPorts := map[rtlil.Id]map[rtlil.Id]bool{}

	for _, modName := range rtlil.SortedModuleNames(design) {
		module := design.Modules[modName]
		if rtlil.GetBoolAttribute(module.Attributes, "\\placeholder") {
			continue
		}
		if topModuleName == "" {
			topModuleName = module.Name
		}
		if len(module.Processes) != 0 {
			return errors.Errorf("write_edif: found unmapped processes in module %s", module.Name)
		}
		if len(module.Memories) != 0 {
			return errors.Errorf("write_edif: found unmapped memories in module %s", module.Name)
		}
		for _, cellName := range rtlil.SortedCellNames(module) {
			cell := module.Cells[cellName]
			tplModule, isModule := design.Modules[cell.Type]
			if isModule && !rtlil.GetBoolAttribute(tplModule.Attributes, "\\placeholder") {
				continue
			}
			if libCellPorts[cell.Type] == nil {
				libCellPorts[cell.Type] = map[rtlil.Id]bool{}
			}
			for _, port := range sortedPorts(cell) {
				if cell.Connections[port].Width > 1 {
					return errors.Errorf("write_edif: found multi-bit port %s on library cell %s.%s (%s)",
						port, module.Name, cell.Name, cell.Type)
				}
				libCellPorts[cell.Type][port] = true
			}
		}
	}

	if topModuleName == "" {
		return errors.New("write_edif: no module found in design")
	}

	fmt.Fprintf(w, "(edif %s\n", names.name(rtlil.UnescapeId(topModuleName)))
	fmt.Fprintf(w, "  (edifVersion 2 0 0)\n")
	fmt.Fprintf(w, "  (edifLevel 0)\n")
	fmt.Fprintf(w, "  (keywordMap (keywordLevel 0))\n")

	fmt.Fprintf(w, "  (external LIB\n")
	fmt.Fprintf(w, "    (edifLevel 0)\n")
	fmt.Fprintf(w, "    (technology (numberDefinition))\n")

	fmt.Fprintf(w, "    (cell GND\n")
	fmt.Fprintf(w, "      (cellType GENERIC)\n")
	fmt.Fprintf(w, "      (view VIEW_NETLIST\n")
	fmt.Fprintf(w, "        (viewType NETLIST)\n")
	fmt.Fprintf(w, "        (interface (port G (direction OUTPUT)))\n")
	fmt.Fprintf(w, "      )\n")
	fmt.Fprintf(w, "    )\n")

	fmt.Fprintf(w, "    (cell VCC\n")
	fmt.Fprintf(w, "      (cellType GENERIC)\n")
	fmt.Fprintf(w, "      (view VIEW_NETLIST\n")
	fmt.Fprintf(w, "        (viewType NETLIST)\n")
	fmt.Fprintf(w, "        (interface (port P (direction OUTPUT)))\n")
	fmt.Fprintf(w, "      )\n")
	fmt.Fprintf(w, "    )\n")

	libTypes := make([]rtlil.Id, 0, len(libCellPorts))
	for typ := range libCellPorts {
		libTypes = append(libTypes, typ)
	}
	sortIds(libTypes)
	for _, typ := range libTypes {
		fmt.Fprintf(w, "    (cell %s\n", names.id(typ))
		fmt.Fprintf(w, "      (cellType GENERIC)\n")
		fmt.Fprintf(w, "      (view VIEW_NETLIST\n")
		fmt.Fprintf(w, "        (viewType NETLIST)\n")
		fmt.Fprintf(w, "        (interface\n")
		ports := make([]rtlil.Id, 0, len(libCellPorts[typ]))
		for port := range libCellPorts[typ] {
			ports = append(ports, port)
		}
		sortIds(ports)
		for _, port := range ports {
			dir := "INOUT"
			if ct.CellKnown(typ) {
				if !ct.CellOutput(typ, port) {
					dir = "INPUT"
				} else if !ct.CellInput(typ, port) {
					dir = "OUTPUT"
				}
			}
			fmt.Fprintf(w, "          (port %s (direction %s))\n", names.id(port), dir)
		}
		fmt.Fprintf(w, "        )\n")
		fmt.Fprintf(w, "      )\n")
		fmt.Fprintf(w, "    )\n")
	}
	fmt.Fprintf(w, "  )\n")

	fmt.Fprintf(w, "  (library DESIGN\n")
	fmt.Fprintf(w, "    (edifLevel 0)\n")
	fmt.Fprintf(w, "    (technology (numberDefinition))\n")
	for _, modName := range rtlil.SortedModuleNames(design) {
		module := design.Modules[modName]
		if rtlil.GetBoolAttribute(module.Attributes, "\\placeholder") {
			continue
		}
		if err := dumpEdifModule(w, design, module, names, libCellPorts); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "  )\n")

	fmt.Fprintf(w, "  (design %s\n", names.name(rtlil.UnescapeId(topModuleName)))
	fmt.Fprintf(w, "    (cellRef %s (libraryRef DESIGN))\n", names.name(rtlil.UnescapeId(topModuleName)))
	fmt.Fprintf(w, "  )\n")
	fmt.Fprintf(w, ")\n")
	return nil
}

func dumpEdifModule(w io.Writer, design *rtlil.Design, module *rtlil.Module,
	names *edifNames, libCellPorts map[rtlil.Id]map[rtlil.Id]bool) error {

	sigmap := sigtools.NewSigMap(module)
	netJoinDB := map[sigtools.SigBit][]string{}
	var netOrder []sigtools.SigBit
	joinNet := func(bit sigtools.SigBit, ref string) {
		if _, ok := netJoinDB[bit]; !ok {
			netOrder = append(netOrder, bit)
		}
		netJoinDB[bit] = append(netJoinDB[bit], ref)
	}

	fmt.Fprintf(w, "    (cell %s\n", names.id(module.Name))
	fmt.Fprintf(w, "      (cellType GENERIC)\n")
	fmt.Fprintf(w, "      (view VIEW_NETLIST\n")
	fmt.Fprintf(w, "        (viewType NETLIST)\n")
	fmt.Fprintf(w, "        (interface\n")
	for _, name := range rtlil.SortedWireNames(module) {
		wire := module.Wires[name]
		if wire.PortId == 0 {
			continue
		}
		dir := "INOUT"
		if !wire.PortOutput {
			dir = "INPUT"
		} else if !wire.PortInput {
			dir = "OUTPUT"
		}
		if wire.Width == 1 {
			fmt.Fprintf(w, "          (port %s (direction %s))\n", names.id(wire.Name), dir)
			bit := sigtools.BitsOf(sigmap.Map(rtlil.SigFromWire(wire)))[0]
			joinNet(bit, fmt.Sprintf("(portRef %s)", names.id(wire.Name)))
		} else {
			fmt.Fprintf(w, "          (port (array %s %d) (direction %s))\n", names.id(wire.Name), wire.Width, dir)
			for i := 0; i < wire.Width; i++ {
				bit := sigtools.BitsOf(sigmap.Map(rtlil.SigFromWireRange(wire, 1, i)))[0]
				joinNet(bit, fmt.Sprintf("(portRef (member %s %d))", names.id(wire.Name), i))
			}
		}
	}
	fmt.Fprintf(w, "        )\n")
	fmt.Fprintf(w, "        (contents\n")
	fmt.Fprintf(w, "          (instance GND (viewRef VIEW_NETLIST (cellRef GND (libraryRef LIB))))\n")
	fmt.Fprintf(w, "          (instance VCC (viewRef VIEW_NETLIST (cellRef VCC (libraryRef LIB))))\n")
	for _, cellName := range rtlil.SortedCellNames(module) {
		cell := module.Cells[cellName]
		fmt.Fprintf(w, "          (instance %s\n", names.id(cell.Name))
		libRef := ""
		if _, ok := libCellPorts[cell.Type]; ok {
			libRef = " (libraryRef LIB)"
		}
		fmt.Fprintf(w, "            (viewRef VIEW_NETLIST (cellRef %s%s))", names.id(cell.Type), libRef)
		paramNames := make([]rtlil.Id, 0, len(cell.Parameters))
		for p := range cell.Parameters {
			paramNames = append(paramNames, p)
		}
		sortIds(paramNames)
		for _, p := range paramNames {
			value := cell.Parameters[p]
			switch {
			case value.Str != "":
				fmt.Fprintf(w, "\n            (property %s (string \"%s\"))", names.id(p), value.Str)
			case len(value.Bits) <= 32 && rtlil.SigFromConst(value).IsFullyDef():
				fmt.Fprintf(w, "\n            (property %s (integer %d))", names.id(p), value.AsInt())
			default:
				fmt.Fprintf(w, "\n            (property %s (string \"%s\"))", names.id(p), edifHexString(value))
			}
		}
		fmt.Fprintf(w, ")\n")
		for _, port := range sortedPorts(cell) {
			sig := sigmap.Map(cell.Connections[port])
			bits := sigtools.BitsOf(sig)
			for i, bit := range bits {
				portname := rtlil.UnescapeId(port)
				if sig.Width > 1 {
					portname = fmt.Sprintf("%s[%d]", portname, i)
				}
				joinNet(bit, fmt.Sprintf("(portRef %s (instanceRef %s))",
					names.name(portname), names.id(cell.Name)))
			}
		}
	}
	sort.Slice(netOrder, func(i, j int) bool { return netOrder[i].Less(netOrder[j]) })
	for _, bit := range netOrder {
		if bit.Wire == nil && bit.State != rtlil.S0 && bit.State != rtlil.S1 {
			continue
		}
		netname := bit.Sig().String()
		netname = strings.ReplaceAll(netname, " ", "")
		netname = strings.ReplaceAll(netname, "\\", "")
		fmt.Fprintf(w, "          (net %s (joined\n", names.name(netname))
		refs := append([]string(nil), netJoinDB[bit]...)
		sort.Strings(refs)
		for _, ref := range refs {
			fmt.Fprintf(w, "            %s\n", ref)
		}
		if bit.Wire == nil {
			if bit.State == rtlil.S0 {
				fmt.Fprintf(w, "            (portRef G (instanceRef GND))\n")
			}
			if bit.State == rtlil.S1 {
				fmt.Fprintf(w, "            (portRef P (instanceRef VCC))\n")
			}
		}
		fmt.Fprintf(w, "          ))\n")
	}
	fmt.Fprintf(w, "        )\n")
	fmt.Fprintf(w, "      )\n")
	fmt.Fprintf(w, "    )\n")
	return nil
}

func edifHexString(value rtlil.Const) string {
	hex := ""
	for i := 0; i < len(value.Bits); i += 4 {
		digit := 0
		for j := 0; j < 4; j++ {
			if i+j < len(value.Bits) && value.Bits[i+j] == rtlil.S1 {
				digit |= 1 << uint(j)
			}
		}
		hex = string("0123456789abcdef"[digit]) + hex
	}
	return hex
}

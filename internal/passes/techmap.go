package passes

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gosynth/internal/diag"
	"gosynth/internal/frontend"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
	"gosynth/internal/sigtools"
)

func init() {
	register.RegisterPass(&techmapPass{})
	register.RegisterPass(&flattenPass{})
}

// The derivation caches are package-level; each techmap or flatten call
// clears them when it returns, so they do not carry over between calls.
var (
	techmapCache     = map[string]*rtlil.Module{}
	techmapFailCache = map[*rtlil.Module]bool{}
	techmapOptCache  = map[*rtlil.Module]bool{}
)

func clearTechmapCaches() {
	techmapCache = map[string]*rtlil.Module{}
	techmapFailCache = map[*rtlil.Module]bool{}
	techmapOptCache = map[*rtlil.Module]bool{}
}

func applyPrefix(prefix, id rtlil.Id) rtlil.Id {
	if id[0] == '\\' {
		return prefix + "." + id[1:]
	}
	return "$techmap" + prefix + "." + id
}

func applyPrefixSig(prefix rtlil.Id, sig *rtlil.SigSpec, module *rtlil.Module) {
	for i := range sig.Chunks {
		if sig.Chunks[i].Wire == nil {
			continue
		}
		wireName := applyPrefix(prefix, sig.Chunks[i].Wire.Name)
		wire, ok := module.Wires[wireName]
		if !ok {
			panic("techmap: missing prefixed wire " + wireName)
		}
		sig.Chunks[i].Wire = wire
	}
}

// techmapFailCheck reports whether the template vetoes its use with a fail
// marker wire.
func techmapFailCheck(module *rtlil.Module) bool {
	if module == nil {
		return false
	}
	if cached, ok := techmapFailCache[module]; ok {
		return cached
	}
	fail := false
	for name := range module.Wires {
		if name == "\\TECHMAP_FAIL" ||
			(len(name) > 13 && name[0] == '\\' && strings.HasSuffix(name, ".TECHMAP_FAIL")) {
			fail = true
			break
		}
	}
	techmapFailCache[module] = fail
	return fail
}

// techmapModuleWorker substitutes one cell with the body of a template.
func techmapModuleWorker(ctx *register.Context, module *rtlil.Module, cell *rtlil.Cell,
	tpl *rtlil.Module, newMembers *rtlil.Selection, flattenMode bool) error {

	ctx.Log.Logf("Mapping `%s.%s' using `%s'.\n",
		rtlil.UnescapeId(module.Name), rtlil.UnescapeId(cell.Name), rtlil.UnescapeId(tpl.Name))

	if len(tpl.Memories) != 0 {
		return fmt.Errorf("techmap: template %s yields memories, not supported", tpl.Name)
	}
	if len(tpl.Processes) != 0 {
		return fmt.Errorf("techmap: template %s yields processes, not supported", tpl.Name)
	}

	positionalPorts := map[rtlil.Id]rtlil.Id{}
	for _, name := range rtlil.SortedWireNames(tpl) {
		tplWire := tpl.Wires[name]
		if tplWire.PortId > 0 {
			positionalPorts[fmt.Sprintf("$%d", tplWire.PortId)] = name
		}
		w := tplWire.Copy()
		w.Name = applyPrefix(cell.Name, w.Name)
		w.PortInput = false
		w.PortOutput = false
		w.PortId = 0
		module.Wires[w.Name] = w
		ctx.Design.Select(module.Name, w.Name)
		newMembers.Select(module.Name, w.Name)
	}

	portSignalMap := sigtools.NewSigMap(nil)

	for _, portname := range sortedConnPorts(cell) {
		resolved := portname
		if mapped, ok := positionalPorts[portname]; ok {
			resolved = mapped
		}
		tplWire, ok := tpl.Wires[resolved]
		if !ok || tplWire.PortId == 0 {
			if strings.HasPrefix(resolved, "$") {
				return fmt.Errorf("techmap: can't map port `%s' of cell `%s' to template `%s'",
					resolved, cell.Name, tpl.Name)
			}
			continue
		}
		var c rtlil.SigSig
		if tplWire.PortOutput {
			c.First = cell.Connections[portname]
			c.Second = rtlil.SigFromWire(tplWire)
			applyPrefixSig(cell.Name, &c.Second, module)
		} else {
			c.First = rtlil.SigFromWire(tplWire)
			c.Second = cell.Connections[portname]
			applyPrefixSig(cell.Name, &c.First, module)
		}
		if c.Second.Width > c.First.Width {
			c.Second.RemoveAt(c.First.Width, c.Second.Width-c.First.Width)
		}
		if c.Second.Width < c.First.Width {
			c.Second.Append(rtlil.SigFromState(rtlil.S0, c.First.Width-c.Second.Width))
		}
		// replace internal wires with the external signals they connect to,
		// instead of adding redundant connections
		if tplWire.PortOutput {
			portSignalMap.Add(c.Second, c.First)
		} else {
			portSignalMap.Add(c.First, c.Second)
		}
	}

	for _, name := range rtlil.SortedCellNames(tpl) {
		c := tpl.Cells[name].Copy()
		if !flattenMode && strings.HasPrefix(c.Type, "\\$") {
			c.Type = c.Type[1:]
		}
		c.Name = applyPrefix(cell.Name, c.Name)
		for port, sig := range c.Connections {
			applyPrefixSig(cell.Name, &sig, module)
			portSignalMap.Apply(&sig)
			c.Connections[port] = sig
		}
		module.Cells[c.Name] = c
		ctx.Design.Select(module.Name, c.Name)
		newMembers.Select(module.Name, c.Name)
	}

	for _, conn := range tpl.Connections {
		c := rtlil.SigSig{First: conn.First.Copy(), Second: conn.Second.Copy()}
		applyPrefixSig(cell.Name, &c.First, module)
		applyPrefixSig(cell.Name, &c.Second, module)
		portSignalMap.Apply(&c.First)
		portSignalMap.Apply(&c.Second)
		module.Connections = append(module.Connections, c)
	}

	delete(module.Cells, cell.Name)
	return nil
}

func paramCacheKey(tplName rtlil.Id, parameters map[rtlil.Id]rtlil.Const) string {
	var b strings.Builder
	b.WriteString(tplName)
	names := make([]rtlil.Id, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	sortIds(names)
	for _, name := range names {
		fmt.Fprintf(&b, "|%s=%s", name, parameters[name].AsString())
	}
	return b.String()
}

// techmapModule runs one substitution round over the module's cells. It
// reports whether any cell was expanded.
func techmapModule(ctx *register.Context, module *rtlil.Module, mapDesign *rtlil.Design,
	handledCells map[*rtlil.Cell]bool, celltypeMap map[rtlil.Id][]rtlil.Id,
	flattenMode, optMode bool) (bool, error) {

	design := ctx.Design
	if !design.SelectedModule(module.Name) {
		return false, nil
	}

	didSomething := false
	newMembers := rtlil.NewSelection(false)

	cellNames := rtlil.SortedCellNames(module)

	for _, cellName := range cellNames {
		cell, ok := module.Cells[cellName]
		if !ok {
			continue
		}
		if !design.SelectedMember(module.Name, cellName) || handledCells[cell] {
			continue
		}
		templates, ok := celltypeMap[cell.Type]
		if !ok {
			continue
		}

		mapped := false
		for _, tplName := range templates {
			tpl := mapDesign.Modules[tplName]
			derivedName := tplName
			parameters := map[rtlil.Id]rtlil.Const{}
			for k, v := range cell.Parameters {
				parameters[k] = v
			}

			ok := true
			for _, port := range sortedConnPorts(cell) {
				if strings.HasPrefix(port, "$") {
					continue
				}
				if w, exists := tpl.Wires[port]; exists && w.PortId > 0 {
					continue
				}
				conn := cell.Connections[port]
				if !conn.IsFullyConst() {
					ok = false
					break
				}
				if _, exists := parameters[port]; exists {
					ok = false
					break
				}
				parameters[port] = conn.AsConst()
			}
			if !ok {
				continue
			}

			key := paramCacheKey(tplName, parameters)
			if cached, hit := techmapCache[key]; hit {
				tpl = cached
			} else {
				if len(cell.Parameters) != 0 {
					var err error
					derivedName, err = tpl.Derive(mapDesign, parameters)
					if err != nil {
						return didSomething, err
					}
					tpl = mapDesign.Modules[derivedName]
				}
				techmapCache[key] = tpl
			}

			if techmapFailCheck(tpl) {
				ctx.Log.Logf("Not using module `%s' from techmap as it contains a TECHMAP_FAIL marker wire.\n",
					rtlil.UnescapeId(derivedName))
				continue
			}

			if optMode && !techmapOptCache[tpl] {
				mapCtx := &register.Context{Design: mapDesign, Log: ctx.Log}
				if err := register.Call(mapCtx, "opt_share "+rtlil.UnescapeId(tpl.Name)); err != nil {
					return didSomething, err
				}
				if err := register.Call(mapCtx, "opt_rmdff "+rtlil.UnescapeId(tpl.Name)); err != nil {
					return didSomething, err
				}
				techmapOptCache[tpl] = true
			}

			if err := techmapModuleWorker(ctx, module, cell, tpl, &newMembers, flattenMode); err != nil {
				return didSomething, err
			}
			didSomething = true
			mapped = true
			break
		}

		if !mapped {
			handledCells[cell] = true
		}
	}

	if didSomething && optMode {
		design.SelectionStack = append(design.SelectionStack, newMembers)
		err := register.Call(ctx, "opt_share")
		if err == nil {
			err = register.Call(ctx, "opt_rmdff")
		}
		design.SelectionStack = design.SelectionStack[:len(design.SelectionStack)-1]
		if err != nil {
			return didSomething, err
		}
	}

	return didSomething, nil
}

// buildCelltypeMap indexes a map design's templates by the cell type they
// replace: the celltype attribute when present, the module name otherwise.
// Templates are tried in alphabetical order.
func buildCelltypeMap(mapDesign *rtlil.Design) map[rtlil.Id][]rtlil.Id {
	celltypeMap := map[rtlil.Id][]rtlil.Id{}
	for _, name := range rtlil.SortedModuleNames(mapDesign) {
		module := mapDesign.Modules[name]
		key := name
		if attr, ok := module.Attributes["\\celltype"]; ok && attr.Str != "" {
			key = rtlil.EscapeId(attr.Str)
		}
		celltypeMap[key] = append(celltypeMap[key], name)
	}
	for key := range celltypeMap {
		sort.Strings(celltypeMap[key])
	}
	return celltypeMap
}

type techmapPass struct{}

func (*techmapPass) Name() string { return "techmap" }

func (*techmapPass) Help(log *diag.Logger) {
	log.Logf("\n    techmap [-map filename] [-opt] [selection]\n\n")
	log.Logf("This pass implements a very simple technology mapper that replaces cells in\n")
	log.Logf("the design with implementations given in form of template modules.\n\n")
	log.Logf("    -map filename\n")
	log.Logf("        the library of cell implementations to be used, in BLIF format.\n")
	log.Logf("        Without this parameter a builtin library is used that transforms\n")
	log.Logf("        the internal RTL cells to the internal gate library.\n\n")
	log.Logf("    -opt\n")
	log.Logf("        optimize template modules before using them and optimize the\n")
	log.Logf("        replacement cells after each substitution round.\n\n")
	log.Logf("When a module in the map has the 'celltype' attribute set, it matches cells\n")
	log.Logf("of that type. A module containing a wire named 'TECHMAP_FAIL' (or matching\n")
	log.Logf("'*.TECHMAP_FAIL') is never substituted. Templates are tried in alphabetical\n")
	log.Logf("order.\n\n")
}

func (*techmapPass) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing TECHMAP pass (map to technology primitives).\n")
	ctx.Log.Push()
	defer ctx.Log.Pop()

	filename := ""
	optMode := false

	argidx := 1
	for ; argidx < len(args); argidx++ {
		if args[argidx] == "-map" && argidx+1 < len(args) {
			argidx++
			filename = args[argidx]
			continue
		}
		if args[argidx] == "-opt" {
			optMode = true
			continue
		}
		break
	}
	if err := register.ExtraArgs(ctx, args, argidx); err != nil {
		return err
	}

	var mapDesign *rtlil.Design
	if filename == "" {
		mapDesign = builtinStdcellsMap()
	} else {
		f, err := os.Open(filename)
		if err != nil {
			return register.CmdErrorf("techmap: can't open map file `%s'", filename)
		}
		mapDesign, err = frontend.ParseBlif(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	// map file modules named \$type stand for the internal cell $type
	for _, name := range rtlil.SortedModuleNames(mapDesign) {
		if strings.HasPrefix(name, "\\$") {
			module := mapDesign.Modules[name]
			delete(mapDesign.Modules, name)
			module.Name = name[1:]
			mapDesign.Modules[module.Name] = module
		}
	}

	celltypeMap := buildCelltypeMap(mapDesign)

	defer clearTechmapCaches()
	handledCells := map[*rtlil.Cell]bool{}
	design := ctx.Design
	didSomething := true
	for didSomething {
		didSomething = false
		for _, modName := range rtlil.SortedModuleNames(design) {
			done, err := techmapModule(ctx, design.Modules[modName], mapDesign, handledCells,
				celltypeMap, false, optMode)
			if err != nil {
				return err
			}
			if done {
				didSomething = true
			}
		}
	}

	ctx.Log.Logf("No more expansions possible.\n")
	return nil
}

type flattenPass struct{}

func (*flattenPass) Name() string { return "flatten" }

func (*flattenPass) Help(log *diag.Logger) {
	log.Logf("\n    flatten [selection]\n\n")
	log.Logf("This pass flattens the design by replacing cells by their implementation.\n")
	log.Logf("It is very similar to the 'techmap' pass, but using the design itself as\n")
	log.Logf("the mapping library.\n\n")
}

func (*flattenPass) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing FLATTEN pass (flatten design).\n")
	ctx.Log.Push()
	defer ctx.Log.Pop()

	if err := register.ExtraArgs(ctx, args, 1); err != nil {
		return err
	}

	design := ctx.Design
	celltypeMap := map[rtlil.Id][]rtlil.Id{}
	for _, name := range rtlil.SortedModuleNames(design) {
		celltypeMap[name] = append(celltypeMap[name], name)
	}

	defer clearTechmapCaches()
	handledCells := map[*rtlil.Cell]bool{}
	didSomething := true
	for didSomething {
		didSomething = false
		for _, modName := range rtlil.SortedModuleNames(design) {
			done, err := techmapModule(ctx, design.Modules[modName], design, handledCells,
				celltypeMap, true, false)
			if err != nil {
				return err
			}
			if done {
				didSomething = true
			}
		}
	}

	ctx.Log.Logf("No more expansions possible.\n")
	return nil
}

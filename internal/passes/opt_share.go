package passes

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"gosynth/internal/celltypes"
	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
	"gosynth/internal/sigtools"
)

func init() {
	register.RegisterPass(&optSharePass{})
}

type optSharePass struct{}

func (*optSharePass) Name() string { return "opt_share" }

func (*optSharePass) Help(log *diag.Logger) {
	log.Logf("\n    opt_share [-nomux] [selection]\n\n")
	log.Logf("This pass identifies cells with identical type and input signals. Such cells\n")
	log.Logf("are then merged to one cell.\n\n")
	log.Logf("    -nomux\n")
	log.Logf("        Do not merge MUX cells.\n\n")
}

func (*optSharePass) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing OPT_SHARE pass (detect identical cells).\n")

	modeNomux := false
	argidx := 1
	for ; argidx < len(args); argidx++ {
		if args[argidx] == "-nomux" {
			modeNomux = true
			continue
		}
		break
	}
	if err := register.ExtraArgs(ctx, args, argidx); err != nil {
		return err
	}

	totalCount := 0
	design := ctx.Design
	for _, modName := range rtlil.SortedModuleNames(design) {
		if !design.SelectedModule(modName) {
			continue
		}
		worker := newOptShareWorker(ctx, design.Modules[modName], modeNomux)
		worker.run()
		totalCount += worker.totalCount
	}

	ctx.Log.Logf("Removed a total of %d cells.\n", totalCount)
	return nil
}

// commutativeTypes lists the cells whose A/B inputs may be swapped into a
// canonical order for fingerprinting. The list is explicit on purpose.
var commutativeTypes = map[rtlil.Id]bool{
	"$and": true, "$or": true, "$xor": true, "$xnor": true,
	"$add": true, "$mul": true, "$logic_and": true, "$logic_or": true,
	"$_AND_": true, "$_OR_": true, "$_XOR_": true,
}

type optShareWorker struct {
	ctx        *register.Context
	module     *rtlil.Module
	assignMap  *sigtools.SigMap
	ct         *celltypes.CellTypes
	totalCount int

	hashCache map[*rtlil.Cell]string
}

func newOptShareWorker(ctx *register.Context, module *rtlil.Module, modeNomux bool) *optShareWorker {
	ct := celltypes.New()
	ct.SetupInternals()
	ct.SetupInternalsMem()
	ct.SetupStdcells()
	ct.SetupStdcellsMem()
	if modeNomux {
		ct.Erase("$mux")
		ct.Erase("$pmux")
		ct.Erase("$safe_pmux")
	}
	return &optShareWorker{
		ctx:       ctx,
		module:    module,
		assignMap: sigtools.NewSigMap(module),
		ct:        ct,
	}
}

func (w *optShareWorker) run() {
	w.ctx.Log.Logf("Finding identical cells in module `%s'.\n", w.module.Name)

	design := w.ctx.Design
	didSomething := true
	for didSomething {
		w.hashCache = map[*rtlil.Cell]string{}

		var cells []*rtlil.Cell
		for _, name := range rtlil.SortedCellNames(w.module) {
			cell := w.module.Cells[name]
			if w.ct.CellKnown(cell.Type) && design.SelectedMember(w.module.Name, name) {
				cells = append(cells, cell)
			}
		}

		didSomething = false
		sharemap := map[string]*rtlil.Cell{}
		for _, cell := range cells {
			hash := w.fingerprint(cell)
			if original, ok := sharemap[hash]; ok {
				didSomething = true
				w.ctx.Log.Logf("  Cell `%s' is identical to cell `%s'.\n", cell.Name, original.Name)
				for _, port := range sortedConnPorts(cell) {
					if !w.ct.CellOutput(cell.Type, port) {
						continue
					}
					sig := cell.Connections[port]
					otherSig := original.Connections[port]
					w.ctx.Log.Logf("    Redirecting output %s: %s = %s\n",
						port, sig.String(), otherSig.String())
					w.module.Connections = append(w.module.Connections,
						rtlil.SigSig{First: sig, Second: otherSig})
					w.assignMap.Add(sig, otherSig)
				}
				w.ctx.Log.Logf("    Removing %s cell `%s' from module `%s'.\n",
					cell.Type, cell.Name, w.module.Name)
				delete(w.module.Cells, cell.Name)
				w.totalCount++
			} else {
				sharemap[hash] = cell
			}
		}
	}
}

// fingerprint canonicalizes a cell to a hash of its type, parameters and
// SigMap-normalized input connections. Outputs are excluded; commutative
// inputs are swapped into lexicographic order.
func (w *optShareWorker) fingerprint(cell *rtlil.Cell) string {
	if h, ok := w.hashCache[cell]; ok {
		return h
	}

	var b strings.Builder
	b.WriteString(cell.Type)
	b.WriteByte('\n')

	for _, name := range sortedParamNames(cell) {
		fmt.Fprintf(&b, "P %s=%s\n", name, cell.Parameters[name].AsString())
	}

	conn := map[rtlil.Id]rtlil.SigSpec{}
	for port, sig := range cell.Connections {
		conn[port] = sig
	}

	switch {
	case commutativeTypes[cell.Type]:
		a := w.assignMap.Map(conn["\\A"])
		bSig := w.assignMap.Map(conn["\\B"])
		if a.Less(bSig) {
			conn["\\A"], conn["\\B"] = conn["\\B"], conn["\\A"]
		}
	case cell.Type == "$reduce_xor" || cell.Type == "$reduce_xnor":
		a := w.assignMap.Map(conn["\\A"])
		a.Sort()
		conn["\\A"] = a
	case cell.Type == "$reduce_and" || cell.Type == "$reduce_or" || cell.Type == "$reduce_bool":
		a := w.assignMap.Map(conn["\\A"])
		a.SortAndUnify()
		conn["\\A"] = a
	}

	ports := make([]rtlil.Id, 0, len(conn))
	for port := range conn {
		ports = append(ports, port)
	}
	sortIds(ports)
	for _, port := range ports {
		if w.ct.CellOutput(cell.Type, port) {
			continue
		}
		sig := w.assignMap.Map(conn[port])
		fmt.Fprintf(&b, "C %s=", port)
		for _, chunk := range sig.Chunks {
			if chunk.Wire != nil {
				fmt.Fprintf(&b, "{%s %d %d}", chunk.Wire.Name, chunk.Offset, chunk.Width)
			} else {
				b.WriteString(chunk.Data.AsString())
			}
		}
		b.WriteByte('\n')
	}

	sum := sha1.Sum([]byte(b.String()))
	hash := hex.EncodeToString(sum[:])
	w.hashCache[cell] = hash
	return hash
}

func sortedConnPorts(cell *rtlil.Cell) []rtlil.Id {
	ports := make([]rtlil.Id, 0, len(cell.Connections))
	for port := range cell.Connections {
		ports = append(ports, port)
	}
	sortIds(ports)
	return ports
}

func sortedParamNames(cell *rtlil.Cell) []rtlil.Id {
	names := make([]rtlil.Id, 0, len(cell.Parameters))
	for name := range cell.Parameters {
		names = append(names, name)
	}
	sortIds(names)
	return names
}

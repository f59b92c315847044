package passes

import (
	"sort"

	"github.com/pkg/errors"

	"gosynth/internal/celltypes"
	"gosynth/internal/consteval"
	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
	"gosynth/internal/sat"
	"gosynth/internal/sigtools"
)

const numInitialRandomTestVectors = 10

func init() {
	register.RegisterPass(&freducePass{})
}

type freducePass struct{}

func (*freducePass) Name() string { return "freduce" }

func (*freducePass) Help(log *diag.Logger) {
	log.Logf("\n    freduce [options] [selection]\n\n")
	log.Logf("This pass performs functional reduction in the circuit. I.e. if two nodes are\n")
	log.Logf("equivalent, they are merged to one node and one of the redundant drivers is\n")
	log.Logf("removed.\n\n")
	log.Logf("    -try\n")
	log.Logf("        do not issue an error when the analysis fails.\n")
	log.Logf("        (usually because of logic loops in the design)\n\n")
}

func (*freducePass) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing FREDUCE pass (perform functional reduction).\n")

	tryMode := false
	argidx := 1
	for ; argidx < len(args); argidx++ {
		if args[argidx] == "-try" {
			tryMode = true
			continue
		}
		break
	}
	if err := register.ExtraArgs(ctx, args, argidx); err != nil {
		return err
	}

	design := ctx.Design
	for _, modName := range rtlil.SortedModuleNames(design) {
		if !design.SelectedModule(modName) {
			continue
		}
		helper := newFreduceHelper(ctx, design.Modules[modName], tryMode)
		if err := helper.run(); err != nil {
			return err
		}
	}
	return nil
}

type freduceHelper struct {
	ctx     *register.Context
	module  *rtlil.Module
	tryMode bool

	solver *sat.Solver
	sigmap *sigtools.SigMap
	ct     *celltypes.CellTypes
	satgen *sat.Gen
	ce     *consteval.ConstEval

	inputs    *sigtools.SigPool
	nodes     *sigtools.SigPool
	inputSigs rtlil.SigSpec

	sourceSignals *sigtools.SigSet[sigtools.SigBit]
	testVectors   []rtlil.Const
	nodeToData    map[sigtools.SigBit]*rtlil.Const
	nodeResult    map[sigtools.SigBit]*rtlil.SigSpec

	xorshift32State uint32
}

func newFreduceHelper(ctx *register.Context, module *rtlil.Module, tryMode bool) *freduceHelper {
	h := &freduceHelper{
		ctx:           ctx,
		module:        module,
		tryMode:       tryMode,
		solver:        sat.NewSolver(),
		sigmap:        sigtools.NewSigMap(module),
		ct:            celltypes.New(),
		ce:            consteval.New(module),
		inputs:        sigtools.NewSigPool(),
		nodes:         sigtools.NewSigPool(),
		sourceSignals: sigtools.NewSigSet[sigtools.SigBit](),
		nodeToData:    map[sigtools.SigBit]*rtlil.Const{},
		nodeResult:    map[sigtools.SigBit]*rtlil.SigSpec{},
	}
	h.ct.SetupInternals()
	h.ct.SetupStdcells()
	h.satgen = sat.NewGen(h.solver, h.sigmap)

	h.xorshift32State = 123456789
	h.xorshift32()
	h.xorshift32()
	h.xorshift32()
	return h
}

func (h *freduceHelper) xorshift32() uint32 {
	h.xorshift32State ^= h.xorshift32State << 13
	h.xorshift32State ^= h.xorshift32State >> 17
	h.xorshift32State ^= h.xorshift32State << 5
	return h.xorshift32State
}

func (h *freduceHelper) run() error {
	h.ctx.Log.Logf("\nFunctionally reduce module %s:\n", rtlil.UnescapeId(h.module.Name))

	// classify nets into inputs and nodes, add all known cells to the solver
	for _, name := range rtlil.SortedCellNames(h.module) {
		cell := h.module.Cells[name]
		if !h.ct.CellKnown(cell.Type) {
			continue
		}
		var cellInputs, cellOutputs rtlil.SigSpec
		for _, port := range sortedConnPorts(cell) {
			sig := h.sigmap.Map(cell.Connections[port])
			if h.ct.CellOutput(cell.Type, port) {
				h.nodes.Add(sig)
				cellOutputs.Append(sig)
			} else {
				h.inputs.Add(sig)
				cellInputs.Append(sig)
			}
		}
		cellInputs.SortAndUnify()
		cellOutputs.SortAndUnify()
		for _, bit := range sigtools.BitsOf(cellInputs) {
			if bit.Wire != nil {
				h.sourceSignals.Insert(cellOutputs, bit)
			}
		}
		if !h.satgen.ImportCell(cell) {
			return errors.Errorf("freduce: failed to import cell to SAT solver: %s (%s)",
				rtlil.UnescapeId(cell.Name), cell.Type)
		}
	}
	h.inputs.DelPool(h.nodes)
	h.nodes.AddPool(h.inputs)
	h.ctx.Log.Logf("  found %d nodes (%d inputs).\n", h.nodes.Size(), h.inputs.Size())

	// seed the test-vector pool
	h.inputSigs = h.inputs.ExportAll()
	h.testVectors = append(h.testVectors,
		rtlil.NewConstState(rtlil.S0, h.inputSigs.Width),
		rtlil.NewConstState(rtlil.S1, h.inputSigs.Width))

	for i := 0; i < numInitialRandomTestVectors; i++ {
		bits := make([]rtlil.State, h.inputSigs.Width)
		for j := range bits {
			if h.xorshift32()%2 != 0 {
				bits[j] = rtlil.S1
			} else {
				bits[j] = rtlil.S0
			}
		}
		h.testVectors = append(h.testVectors, rtlil.NewConstBits(bits))
	}

	for _, vec := range h.testVectors {
		ok, err := h.runTest(vec)
		if err != nil || !ok {
			return err
		}
	}

	if ok, err := h.analyzeConst(); err != nil || !ok {
		return err
	}
	if ok, err := h.analyzeAlias(); err != nil || !ok {
		return err
	}

	h.ctx.Log.Logf("  input vector: %s\n", h.inputSigs.String())
	for _, vec := range h.testVectors {
		h.ctx.Log.Logf("  test vector: %s\n", vec.AsString())
	}

	return h.analyzeGroups()
}

// runTest evaluates every node under the test vector and appends the result
// bit to each node's fingerprint.
func (h *freduceHelper) runTest(testVec rtlil.Const) (bool, error) {
	h.ce.Clear()
	h.ce.Set(h.inputSigs, testVec)

	for _, bit := range h.nodes.Bits() {
		nodeSig := bit.Sig()
		nodeVal := nodeSig.Copy()
		if !h.ce.Eval(&nodeVal) {
			if !h.tryMode {
				return false, errors.Errorf("freduce: evaluation of node %s failed", nodeSig.String())
			}
			h.ctx.Log.Warningf("evaluation of node %s failed\n", nodeSig.String())
			return false, nil
		}
		data := h.nodeToData[bit]
		if data == nil {
			data = &rtlil.Const{}
			h.nodeToData[bit] = data
		}
		data.Bits = append(data.Bits, nodeVal.AsConst().Bits[0])
	}
	return true, nil
}

// check runs a SAT proof that sig1 equals sig2 for all inputs. A
// counterexample extends the test-vector pool and refreshes all fingerprints.
func (h *freduceHelper) check(sig1, sig2 rtlil.SigSpec) (bool, error) {
	h.ctx.Log.Logf("  performing SAT proof:  %s == %s\n", sig1.String(), sig2.String())

	vec1 := h.satgen.ImportSigSpec(sig1)
	vec2 := h.satgen.ImportSigSpec(sig2)
	model := h.satgen.ImportSigSpec(h.inputSigs)

	if satisfiable, values := h.solver.Solve(model, h.solver.VecNe(vec1, vec2)); satisfiable {
		bits := make([]rtlil.State, h.inputSigs.Width)
		for i := range bits {
			if values[i] {
				bits[i] = rtlil.S1
			} else {
				bits[i] = rtlil.S0
			}
		}
		counterexample := rtlil.NewConstBits(bits)
		h.ctx.Log.Logf("    failed: %s\n", counterexample.AsString())
		h.testVectors = append(h.testVectors, counterexample)
		return h.runTest(counterexample)
	}

	h.ctx.Log.Logf("    success.\n")
	if !sig1.IsFullyConst() {
		h.appendResult(sigtools.BitsOf(sig1)[0], sig2)
	}
	if !sig2.IsFullyConst() {
		h.appendResult(sigtools.BitsOf(sig2)[0], sig1)
	}
	return true, nil
}

func (h *freduceHelper) appendResult(bit sigtools.SigBit, sig rtlil.SigSpec) {
	res := h.nodeResult[bit]
	if res == nil {
		res = &rtlil.SigSpec{}
		h.nodeResult[bit] = res
	}
	res.Append(sig)
}

// analyzeConst proves nodes with constant fingerprints equal to S0/S1.
func (h *freduceHelper) analyzeConst() (bool, error) {
	for _, bit := range h.nodes.Bits() {
		data, ok := h.nodeToData[bit]
		if !ok {
			continue
		}
		if _, done := h.nodeResult[bit]; done {
			continue
		}
		if data.Equal(rtlil.NewConstState(rtlil.S0, len(data.Bits))) {
			if ok, err := h.check(bit.Sig(), rtlil.SigFromState(rtlil.S0, 1)); err != nil || !ok {
				return ok, err
			}
		}
		if data.Equal(rtlil.NewConstState(rtlil.S1, len(data.Bits))) {
			if ok, err := h.check(bit.Sig(), rtlil.SigFromState(rtlil.S1, 1)); err != nil || !ok {
				return ok, err
			}
		}
	}
	return true, nil
}

// analyzeAlias clusters nodes by equal fingerprints and proves pairwise
// equivalence within each cluster.
func (h *freduceHelper) analyzeAlias() (bool, error) {
restart:
	reverseMap := map[string][]sigtools.SigBit{}
	var keys []string

	for _, bit := range h.nodes.Bits() {
		data, ok := h.nodeToData[bit]
		if !ok {
			continue
		}
		if res, done := h.nodeResult[bit]; done && res.IsFullyConst() {
			continue
		}
		key := data.AsString()
		if _, ok := reverseMap[key]; !ok {
			keys = append(keys, key)
		}
		reverseMap[key] = append(reverseMap[key], bit)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := reverseMap[key]
		if len(group) <= 1 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if _, ok1 := h.nodeResult[group[i]]; ok1 {
					if _, ok2 := h.nodeResult[group[j]]; ok2 {
						continue
					}
				}
				if !h.nodeToData[group[i]].Equal(*h.nodeToData[group[j]]) {
					goto restart
				}
				if ok, err := h.check(group[i].Sig(), group[j].Sig()); err != nil || !ok {
					return ok, err
				}
			}
		}
	}
	return true, nil
}

// toprootHelper walks the fan-in of cursor; it fails when a stoplist bit is
// reachable.
func (h *freduceHelper) toprootHelper(cursor sigtools.SigBit, stoplist, donelist map[sigtools.SigBit]bool) bool {
	if stoplist[cursor] {
		return false
	}
	if donelist[cursor] {
		return true
	}
	stoplist[cursor] = true
	for _, next := range h.sourceSignals.Find(cursor.Sig()) {
		if !h.toprootHelper(next, stoplist, donelist) {
			return false
		}
	}
	delete(stoplist, cursor)
	donelist[cursor] = true
	return true
}

// toproot returns a member of bits with no fan-in path to any other member,
// or false when the group has none (non-DAG input).
func (h *freduceHelper) toproot(bits []sigtools.SigBit) (sigtools.SigBit, bool) {
	for _, candidate := range bits {
		stoplist := map[sigtools.SigBit]bool{}
		for _, b := range bits {
			if b != candidate {
				stoplist[b] = true
			}
		}
		donelist := map[sigtools.SigBit]bool{}
		if h.toprootHelper(candidate, stoplist, donelist) {
			return candidate, true
		}
	}
	return sigtools.SigBit{}, false
}

// analyzeGroups picks a driver per proved cluster and redirects the other
// drivers to fresh dangling wires.
func (h *freduceHelper) analyzeGroups() error {
	toGroupMajor := sigtools.NewSigMap(nil)
	for _, bit := range h.nodes.Bits() {
		res, ok := h.nodeResult[bit]
		if !ok {
			continue
		}
		for _, c := range sigtools.BitsOf(*res) {
			toGroupMajor.Add(bit.Sig(), c.Sig())
		}
	}

	majorToRest := map[sigtools.SigBit][]sigtools.SigBit{}
	var majors []sigtools.SigBit
	for _, bit := range h.nodes.Bits() {
		if _, ok := h.nodeResult[bit]; !ok {
			continue
		}
		major := sigtools.BitsOf(toGroupMajor.Map(bit.Sig()))[0]
		if _, ok := majorToRest[major]; !ok {
			majors = append(majors, major)
		}
		majorToRest[major] = append(majorToRest[major], bit)
	}
	sort.Slice(majors, func(i, j int) bool { return majors[i].Less(majors[j]) })

	for _, major := range majors {
		members := majorToRest[major]
		root := major
		rest := members

		if major.Wire != nil {
			found, ok := h.toproot(members)
			if !ok {
				msg := "operating on non-DAG input: failed to find topological root for `" +
					sigtools.SigFromBits(members).String() + "'"
				if !h.tryMode {
					return errors.New("freduce: " + msg)
				}
				h.ctx.Log.Warningf("%s\n", msg)
				return nil
			}
			root = found
			rest = nil
			for _, b := range members {
				if b != root {
					rest = append(rest, b)
				}
			}
		}

		restSig := sigtools.SigFromBits(rest)
		h.ctx.Log.Logf("  found group: %s -> %s\n", root.Sig().String(), restSig.String())
		h.updateDesignForGroup(root, rest)
	}
	return nil
}

// updateDesignForGroup rewires every driver of the rest bits onto fresh
// dangling wires and connects the root to each former member.
func (h *freduceHelper) updateDesignForGroup(root sigtools.SigBit, rest []sigtools.SigBit) {
	unlink := map[sigtools.SigBit]bool{}
	for _, b := range rest {
		unlink[b] = true
	}

	for _, name := range rtlil.SortedCellNames(h.module) {
		cell := h.module.Cells[name]
		if !h.ct.CellKnown(cell.Type) {
			continue
		}
		for _, port := range sortedConnPorts(cell) {
			if !h.ct.CellOutput(cell.Type, port) {
				continue
			}
			sig := h.sigmap.Map(cell.Connections[port])
			bits := sigtools.BitsOf(sig)
			didSomething := false
			for i, b := range bits {
				if b.Wire == nil || !unlink[b] {
					continue
				}
				wire := rtlil.NewWire(rtlil.NewId())
				h.module.AddWire(wire)
				bits[i] = sigtools.SigBit{Wire: wire}
				didSomething = true
			}
			if didSomething {
				cell.Connections[port] = sigtools.SigFromBits(bits)
			}
		}
	}

	rootConst := root.Wire == nil
	for _, b := range rest {
		if b.Wire != nil && !rootConst {
			h.sourceSignals.EraseSig(b.Sig())
			h.sourceSignals.Insert(b.Sig(), root)
		}
		h.module.Connections = append(h.module.Connections,
			rtlil.SigSig{First: b.Sig(), Second: root.Sig()})
	}
}

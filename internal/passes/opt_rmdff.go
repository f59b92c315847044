package passes

import (
	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
	"gosynth/internal/sigtools"
)

func init() {
	register.RegisterPass(&optRmdffPass{})
}

type optRmdffPass struct{}

func (*optRmdffPass) Name() string { return "opt_rmdff" }

func (*optRmdffPass) Help(log *diag.Logger) {
	log.Logf("\n    opt_rmdff [selection]\n\n")
	log.Logf("This pass identifies flip-flops with constant inputs and replaces them with\n")
	log.Logf("a constant driver.\n\n")
}

func (*optRmdffPass) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing OPT_RMDFF pass (remove dff with constant values).\n")

	if err := register.ExtraArgs(ctx, args, 1); err != nil {
		return err
	}

	totalCount := 0
	design := ctx.Design
	for _, modName := range rtlil.SortedModuleNames(design) {
		module := design.Modules[modName]
		if !design.SelectedModule(modName) {
			continue
		}

		assignMap := sigtools.NewSigMap(module)
		muxDrivers := sigtools.NewSigSet[*rtlil.Cell]()

		var dffList []rtlil.Id
		for _, name := range rtlil.SortedCellNames(module) {
			cell := module.Cells[name]
			if cell.Type == "$mux" || cell.Type == "$pmux" {
				if cell.Connections["\\A"].Width == cell.Connections["\\B"].Width {
					muxDrivers.Insert(assignMap.Map(cell.Connections["\\Y"]), cell)
				}
				continue
			}
			if !design.SelectedMember(modName, name) {
				continue
			}
			if isRemovableDff(cell.Type) {
				dffList = append(dffList, name)
			}
		}

		for _, name := range dffList {
			cell, ok := module.Cells[name]
			if !ok {
				continue
			}
			if handleDff(ctx, module, cell, assignMap, muxDrivers) {
				totalCount++
			}
		}
	}

	ctx.Log.Logf("Replaced %d DFF cells.\n", totalCount)
	return nil
}

func isRemovableDff(typ rtlil.Id) bool {
	switch typ {
	case "$_DFF_N_", "$_DFF_P_", "$dff", "$adff":
		return true
	}
	return isGateDffWithReset(typ)
}

func isGateDffWithReset(typ rtlil.Id) bool {
	if len(typ) != 10 || typ[:6] != "$_DFF_" || typ[9] != '_' {
		return false
	}
	c, r, v := typ[6], typ[7], typ[8]
	return (c == 'N' || c == 'P') && (r == 'N' || r == 'P') && (v == '0' || v == '1')
}

func handleDff(ctx *register.Context, module *rtlil.Module, dff *rtlil.Cell,
	assignMap *sigtools.SigMap, muxDrivers *sigtools.SigSet[*rtlil.Cell]) bool {

	var sigD, sigQ, sigC, sigR rtlil.SigSpec
	var valRV rtlil.Const

	switch {
	case dff.Type == "$_DFF_N_" || dff.Type == "$_DFF_P_":
		sigD = dff.Connections["\\D"]
		sigQ = dff.Connections["\\Q"]
		sigC = dff.Connections["\\C"]
	case isGateDffWithReset(dff.Type):
		sigD = dff.Connections["\\D"]
		sigQ = dff.Connections["\\Q"]
		sigC = dff.Connections["\\C"]
		sigR = dff.Connections["\\R"]
		valRV = rtlil.NewConstInt(boolToInt(dff.Type[8] == '1'), 1)
	case dff.Type == "$dff":
		sigD = dff.Connections["\\D"]
		sigQ = dff.Connections["\\Q"]
		sigC = dff.Connections["\\CLK"]
	case dff.Type == "$adff":
		sigD = dff.Connections["\\D"]
		sigQ = dff.Connections["\\Q"]
		sigC = dff.Connections["\\CLK"]
		sigR = dff.Connections["\\ARST"]
		valRV = dff.Parameters["\\ARST_VALUE"]
	default:
		return false
	}
	_ = sigC

	assignMap.Apply(&sigD)
	assignMap.Apply(&sigQ)
	assignMap.Apply(&sigR)

	deleteDff := func() bool {
		ctx.Log.Logf("Removing %s (%s) from module %s.\n", dff.Name, dff.Type, module.Name)
		delete(module.Cells, dff.Name)
		return true
	}

	if dff.Type == "$dff" && muxDrivers.Has(sigD) {
		for _, mux := range muxDrivers.Find(sigD) {
			sigA := assignMap.Map(mux.Connections["\\A"])
			sigB := assignMap.Map(mux.Connections["\\B"])
			if sigA.Equal(sigQ) && sigB.IsFullyConst() {
				module.Connections = append(module.Connections, rtlil.SigSig{First: sigQ, Second: sigB})
				return deleteDff()
			}
			if sigB.Equal(sigQ) && sigA.IsFullyConst() {
				module.Connections = append(module.Connections, rtlil.SigSig{First: sigQ, Second: sigA})
				return deleteDff()
			}
		}
	}

	if sigD.IsFullyConst() && sigR.Width == 0 {
		module.Connections = append(module.Connections, rtlil.SigSig{First: sigQ, Second: sigD})
		return deleteDff()
	}

	if sigD.Equal(sigQ) {
		if sigR.Width > 0 {
			module.Connections = append(module.Connections,
				rtlil.SigSig{First: sigQ, Second: rtlil.SigFromConst(valRV)})
		}
		return deleteDff()
	}

	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

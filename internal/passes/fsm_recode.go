package passes

import (
	"fmt"
	"io"
	"math"
	"os"

	"gosynth/internal/diag"
	"gosynth/internal/fsm"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
)

func init() {
	register.RegisterPass(&fsmRecodePass{})
}

type fsmRecodePass struct{}

func (*fsmRecodePass) Name() string { return "fsm_recode" }

func (*fsmRecodePass) Help(log *diag.Logger) {
	log.Logf("\n    fsm_recode [-encoding type] [-fm_set_fsm_file file] [selection]\n\n")
	log.Logf("This pass reassigns the state encodings for FSM cells. One-hot and binary\n")
	log.Logf("encoding is supported. The option -encoding sets the scheme used for FSMs\n")
	log.Logf("without the `fsm_encoding' attribute (or with the attribute set to `auto').\n\n")
	log.Logf("The option -fm_set_fsm_file generates a file with the mapping from old to\n")
	log.Logf("new FSM encoding in form of Synopsys Formality set_fsm_* commands.\n\n")
}

func (*fsmRecodePass) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing FSM_RECODE pass (re-assigning FSM state encoding).\n")

	var fmSetFsmFile io.WriteCloser
	defaultEncoding := "one-hot"

	argidx := 1
	for ; argidx < len(args); argidx++ {
		arg := args[argidx]
		if arg == "-fm_set_fsm_file" && argidx+1 < len(args) && fmSetFsmFile == nil {
			argidx++
			f, err := os.Create(args[argidx])
			if err != nil {
				return register.CmdErrorf("fsm_recode: can't open fm_set_fsm_file `%s' for writing: %v", args[argidx], err)
			}
			fmSetFsmFile = f
			continue
		}
		if arg == "-encoding" && argidx+1 < len(args) {
			argidx++
			defaultEncoding = args[argidx]
			continue
		}
		break
	}
	if err := register.ExtraArgs(ctx, args, argidx); err != nil {
		if fmSetFsmFile != nil {
			fmSetFsmFile.Close()
		}
		return err
	}

	design := ctx.Design
	for _, modName := range rtlil.SortedModuleNames(design) {
		if !design.SelectedModule(modName) {
			continue
		}
		module := design.Modules[modName]
		for _, cellName := range rtlil.SortedCellNames(module) {
			cell := module.Cells[cellName]
			if cell.Type != "$fsm" || !design.SelectedMember(modName, cellName) {
				continue
			}
			if err := fsmRecode(ctx, cell, module, fmSetFsmFile, defaultEncoding); err != nil {
				if fmSetFsmFile != nil {
					fmSetFsmFile.Close()
				}
				return err
			}
		}
	}

	if fmSetFsmFile != nil {
		return fmSetFsmFile.Close()
	}
	return nil
}

func fsmRecode(ctx *register.Context, cell *rtlil.Cell, module *rtlil.Module,
	fmSetFsmFile io.Writer, defaultEncoding string) error {

	encoding := "auto"
	if attr, ok := cell.Attributes["\\fsm_encoding"]; ok {
		encoding = attr.Str
	}

	ctx.Log.Logf("Recoding FSM `%s' from module `%s' using `%s' encoding:\n",
		cell.Name, module.Name, encoding)
	if encoding != "none" && encoding != "one-hot" && encoding != "binary" {
		if encoding != "auto" {
			ctx.Log.Logf("  unknown encoding `%s': using auto (%s) instead.\n", encoding, defaultEncoding)
		}
		encoding = defaultEncoding
	}

	if encoding == "none" {
		ctx.Log.Logf("  nothing to do for encoding `none'.\n")
		return nil
	}

	var data fsm.Data
	if err := data.CopyFromCell(cell); err != nil {
		return err
	}

	if fmSetFsmFile != nil {
		fmSetFsmPrint(cell, module, &data, "r", fmSetFsmFile)
	}

	switch encoding {
	case "one-hot":
		data.StateBits = len(data.StateTable)
	case "auto", "binary":
		data.StateBits = int(math.Ceil(math.Log2(float64(len(data.StateTable)))))
	default:
		return register.CmdErrorf("fsm_recode: FSM encoding `%s' is not supported", encoding)
	}

	stateIdxCounter := 0
	if data.ResetState >= 0 {
		stateIdxCounter = 1
	}
	for i := range data.StateTable {
		stateIdx := stateIdxCounter
		if data.ResetState == i {
			stateIdx = 0
		} else {
			stateIdxCounter++
		}

		var newCode rtlil.Const
		if encoding == "one-hot" {
			newCode = rtlil.NewConstState(rtlil.Sa, data.StateBits)
			newCode.Bits[stateIdx] = rtlil.S1
		} else {
			newCode = rtlil.NewConstInt(stateIdx, data.StateBits)
		}

		ctx.Log.Logf("  %s -> %s\n", data.StateTable[i].AsString(), newCode.AsString())
		data.StateTable[i] = newCode
	}

	if fmSetFsmFile != nil {
		fmSetFsmPrint(cell, module, &data, "i", fmSetFsmFile)
	}

	data.CopyToCell(cell)
	return nil
}

func fsmSetName(cell *rtlil.Cell) string {
	return rtlil.UnescapeId(cell.Parameters["\\NAME"].Str)
}

func fmSetFsmPrint(cell *rtlil.Cell, module *rtlil.Module, data *fsm.Data, prefix string, f io.Writer) {
	name := fsmSetName(cell)

	fmt.Fprintf(f, "set_fsm_state_vector {")
	for i := data.StateBits - 1; i >= 0; i-- {
		fmt.Fprintf(f, " %s_reg[%d]", name, i)
	}
	fmt.Fprintf(f, " } -name {%s_%s} {%s:/WORK/%s}\n",
		prefix, name, prefix, rtlil.UnescapeId(module.Name))

	fmt.Fprintf(f, "set_fsm_encoding {")
	for i, code := range data.StateTable {
		fmt.Fprintf(f, " s%d=2#", i)
		for j := len(code.Bits) - 1; j >= 0; j-- {
			if code.Bits[j] == rtlil.S1 {
				fmt.Fprintf(f, "1")
			} else {
				fmt.Fprintf(f, "0")
			}
		}
	}
	fmt.Fprintf(f, " } -name {%s_%s} {%s:/WORK/%s}\n",
		prefix, name, prefix, rtlil.UnescapeId(module.Name))
}

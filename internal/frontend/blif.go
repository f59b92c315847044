// Package frontend reads netlist sources into the in-memory representation.
package frontend

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
)

func init() {
	register.RegisterPass(&blifFrontend{})
}

// ParseBlif reads a BLIF description into a fresh design. Truth tables
// become $lut cells; a .names line opens the LUT-filling mode and any
// unspecified minterm defaults to the opposite polarity of the last cover's
// output bit, for ABC compatibility.
func ParseBlif(r io.Reader) (*rtlil.Design, error) {
	design := rtlil.NewDesign()
	var module *rtlil.Module

	var lutPtr *rtlil.Const
	lutDefaultState := rtlil.Sx
	portCount := 0

	finishLut := func() {
		if lutPtr == nil {
			return
		}
		for i, bit := range lutPtr.Bits {
			if bit == rtlil.Sx {
				lutPtr.Bits[i] = lutDefaultState
			}
		}
		lutPtr = nil
		lutDefaultState = rtlil.Sx
	}

	getWire := func(name string) *rtlil.Wire {
		id := rtlil.Id("\\" + name)
		if wire, ok := module.Wires[id]; ok {
			return wire
		}
		wire := rtlil.NewWire(id)
		module.AddWire(wire)
		return wire
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineCount := 0
	pending := ""

	for scanner.Scan() {
		lineCount++
		line := strings.TrimRight(scanner.Text(), " \t\r\n")
		if strings.HasSuffix(line, "\\") {
			pending += strings.TrimSuffix(line, "\\")
			continue
		}
		line = pending + line
		pending = ""
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)

		if strings.HasPrefix(line, ".") {
			finishLut()

			switch fields[0] {
			case ".model":
				name := rtlil.Id("\\logic")
				if len(fields) > 1 {
					name = rtlil.EscapeId(fields[1])
				}
				module = rtlil.NewModule(name)
				design.AddModule(module)
				portCount = 0
				continue

			case ".end":
				if module == nil {
					return nil, errors.Errorf("frontend: .end without .model in line %d", lineCount)
				}
				module = nil
				continue

			case ".inputs", ".outputs":
				if module == nil {
					module = rtlil.NewModule("\\logic")
					design.AddModule(module)
				}
				for _, name := range fields[1:] {
					wire := getWire(name)
					portCount++
					wire.PortId = portCount
					if fields[0] == ".inputs" {
						wire.PortInput = true
					} else {
						wire.PortOutput = true
					}
				}
				continue

			case ".names":
				if module == nil {
					module = rtlil.NewModule("\\logic")
					design.AddModule(module)
				}
				var inputSig, outputSig rtlil.SigSpec
				for _, name := range fields[1:] {
					inputSig.Append(rtlil.SigFromWire(getWire(name)))
				}
				if inputSig.Width == 0 {
					return nil, errors.Errorf("frontend: .names without nets in line %d", lineCount)
				}
				outputSig = inputSig.Extract(inputSig.Width-1, 1)
				inputSig = inputSig.Extract(0, inputSig.Width-1)
				inputSig.Optimize()
				outputSig.Optimize()

				cell := rtlil.NewCell(rtlil.NewId(), "$lut")
				cell.Parameters["\\WIDTH"] = rtlil.NewConstInt(inputSig.Width, 32)
				cell.Parameters["\\LUT"] = rtlil.NewConstState(rtlil.Sx, 1<<uint(inputSig.Width))
				cell.Connections["\\I"] = inputSig
				cell.Connections["\\O"] = outputSig
				module.AddCell(cell)
				lut := cell.Parameters["\\LUT"]
				lutPtr = &lut
				cell.Parameters["\\LUT"] = lut
				lutDefaultState = rtlil.Sx
				continue
			}

			return nil, errors.Errorf("frontend: unsupported BLIF command %s in line %d", fields[0], lineCount)
		}

		if lutPtr == nil {
			return nil, errors.Errorf("frontend: stray cover line in line %d", lineCount)
		}
		var input, output string
		switch {
		case len(fields) == 2 && (fields[1] == "0" || fields[1] == "1"):
			input, output = fields[0], fields[1]
		case len(fields) == 1 && (fields[0] == "0" || fields[0] == "1"):
			// constant cover for a zero-input table
			input, output = "", fields[0]
		default:
			return nil, errors.Errorf("frontend: bad cover line in line %d", lineCount)
		}
		if len(input) > 8 {
			return nil, errors.Errorf("frontend: too many LUT inputs in line %d", lineCount)
		}

		for i := 0; i < 1<<uint(len(input)); i++ {
			matches := true
			for j := 0; j < len(input); j++ {
				c1 := input[j]
				if c1 == '-' {
					continue
				}
				c2 := byte('0')
				if i&(1<<uint(j)) != 0 {
					c2 = '1'
				}
				if c1 != c2 {
					matches = false
					break
				}
			}
			if matches {
				if output == "0" {
					lutPtr.Bits[i] = rtlil.S0
				} else {
					lutPtr.Bits[i] = rtlil.S1
				}
			}
		}

		if output == "0" {
			lutDefaultState = rtlil.S1
		} else {
			lutDefaultState = rtlil.S0
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "frontend: reading BLIF input")
	}
	finishLut()

	return design, nil
}

type blifFrontend struct{}

func (*blifFrontend) Name() string { return "read_blif" }

func (*blifFrontend) Help(log *diag.Logger) {
	log.Logf("\n    read_blif filename\n\n")
	log.Logf("Load a BLIF file into the current design. Truth tables become $lut cells.\n\n")
}

func (*blifFrontend) Execute(ctx *register.Context, args []string) error {
	ctx.Log.Headerf("Executing BLIF frontend.\n")

	if len(args) != 2 {
		return register.CmdErrorf("read_blif: expected exactly one filename argument")
	}
	f, err := os.Open(args[1])
	if err != nil {
		return register.CmdErrorf("read_blif: can't open input file `%s'", args[1])
	}
	defer f.Close()

	parsed, err := ParseBlif(f)
	if err != nil {
		return err
	}
	for _, name := range rtlil.SortedModuleNames(parsed) {
		if _, exists := ctx.Design.Modules[name]; exists {
			return errors.Errorf("read_blif: design already contains a module %s", name)
		}
		ctx.Design.AddModule(parsed.Modules[name])
	}
	return nil
}

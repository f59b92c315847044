package backend

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gosynth/internal/register"
	"gosynth/internal/rtlil"
)

func writeEdifToString(t *testing.T, design *rtlil.Design, flags string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.edif")
	cmd := "write_edif "
	if flags != "" {
		cmd += flags + " "
	}
	cmd += path
	if err := register.Call(testContext(design), cmd); err != nil {
		t.Fatalf("write_edif failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func TestWriteEdifStructure(t *testing.T) {
	design, _ := andGateModule()
	out := writeEdifToString(t, design, "")

	for _, want := range []string{
		"(edifVersion 2 0 0)",
		"(edifLevel 0)",
		"(external LIB",
		"(cell GND",
		"(cell VCC",
		"(library DESIGN",
		"(cell top",
		"(port a (direction INPUT))",
		"(port y (direction OUTPUT))",
		"(design top",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestWriteEdifConstantNets(t *testing.T) {
	design := rtlil.NewDesign()
	module := rtlil.NewModule("\\top")
	design.AddModule(module)
	y := module.NewWireInModule(1, "\\y")
	y.PortOutput = true
	y.PortId = 1
	module.Connections = append(module.Connections,
		rtlil.SigSig{First: rtlil.SigFromWire(y), Second: rtlil.SigFromInt(1, 1)})

	out := writeEdifToString(t, design, "")
	if !strings.Contains(out, "(portRef P (instanceRef VCC))") {
		t.Fatalf("constant-one net must join VCC:\n%s", out)
	}
}

func TestWriteEdifRenamesBadIdentifiers(t *testing.T) {
	design := rtlil.NewDesign()
	module := rtlil.NewModule("\\top")
	design.AddModule(module)
	bad := module.NewWireInModule(1, "\\3bad")
	bad.PortInput = true
	bad.PortId = 1

	out := writeEdifToString(t, design, "")
	if !strings.Contains(out, "(rename id00001 \"3bad\")") {
		t.Fatalf("bad identifier must be renamed:\n%s", out)
	}
}

func TestWriteEdifRejectsMultiBitLibraryPorts(t *testing.T) {
	design := rtlil.NewDesign()
	module := rtlil.NewModule("\\top")
	design.AddModule(module)
	d := module.NewWireInModule(2, "\\d")

	cell := rtlil.NewCell("\\u0", "\\blackbox")
	cell.Connections["\\D"] = rtlil.SigFromWire(d)
	module.AddCell(cell)

	path := filepath.Join(t.TempDir(), "out.edif")
	err := register.Call(testContext(design), "write_edif "+path)
	if err == nil || !strings.Contains(err.Error(), "multi-bit port") {
		t.Fatalf("expected multi-bit port error, got %v", err)
	}
}

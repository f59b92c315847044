package passes

import (
	"testing"

	"gosynth/internal/register"
	"gosynth/internal/rtlil"
)

func TestRenameWire(t *testing.T) {
	design := rtlil.NewDesign()
	module := rtlil.NewModule("\\top")
	design.AddModule(module)
	module.NewWireInModule(1, "\\old")
	design.SelectedActiveModule = "\\top"

	mustCall(t, testContext(design), "rename old new")

	if _, ok := module.Wires["\\old"]; ok {
		t.Fatalf("old wire name must be gone")
	}
	wire, ok := module.Wires["\\new"]
	if !ok || wire.Name != "\\new" {
		t.Fatalf("wire not renamed")
	}
}

func TestRenameModule(t *testing.T) {
	design := rtlil.NewDesign()
	design.AddModule(rtlil.NewModule("\\top"))

	mustCall(t, testContext(design), "rename top better_top")

	if _, ok := design.Modules["\\top"]; ok {
		t.Fatalf("old module name must be gone")
	}
	if _, ok := design.Modules["\\better_top"]; !ok {
		t.Fatalf("module not renamed")
	}
}

func TestRenameCollision(t *testing.T) {
	design := rtlil.NewDesign()
	module := rtlil.NewModule("\\top")
	design.AddModule(module)
	module.NewWireInModule(1, "\\a")
	module.NewWireInModule(1, "\\b")
	design.SelectedActiveModule = "\\top"

	err := register.Call(testContext(design), "rename a b")
	if err == nil || !register.IsCmdError(err) {
		t.Fatalf("expected command error for name collision, got %v", err)
	}
	// the design must be untouched
	if _, ok := module.Wires["\\a"]; !ok {
		t.Fatalf("failed rename must not modify the design")
	}
}

func TestRenameUnknownObject(t *testing.T) {
	design := rtlil.NewDesign()
	design.AddModule(rtlil.NewModule("\\top"))
	design.SelectedActiveModule = "\\top"

	err := register.Call(testContext(design), "rename ghost spirit")
	if err == nil || !register.IsCmdError(err) {
		t.Fatalf("expected command error, got %v", err)
	}
}

func TestRenameEnumerate(t *testing.T) {
	design := rtlil.NewDesign()
	module := rtlil.NewModule("\\top")
	design.AddModule(module)
	module.NewWireInModule(1, "$17")
	module.NewWireInModule(1, "\\keep")
	cell := rtlil.NewCell("$42", "$_INV_")
	cell.Connections["\\A"] = rtlil.SigFromWire(module.Wires["$17"])
	cell.Connections["\\Y"] = rtlil.SigFromWire(module.Wires["\\keep"])
	module.AddCell(cell)

	mustCall(t, testContext(design), "rename -enumerate")

	if _, ok := module.Wires["$17"]; ok {
		t.Fatalf("generated wire name must be enumerated")
	}
	if _, ok := module.Wires["\\keep"]; !ok {
		t.Fatalf("public wire must keep its name")
	}
	if _, ok := module.Cells["$42"]; ok {
		t.Fatalf("generated cell name must be enumerated")
	}
	enumerated := 0
	for name := range module.Wires {
		if len(name) > 2 && name[0] == '\\' && name[1] == '_' {
			enumerated++
		}
	}
	for name := range module.Cells {
		if len(name) > 2 && name[0] == '\\' && name[1] == '_' {
			enumerated++
		}
	}
	if enumerated != 2 {
		t.Fatalf("expected two enumerated names, got %d", enumerated)
	}
}

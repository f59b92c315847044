package passes

import (
	"testing"

	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"
)

func testContext(design *rtlil.Design) *register.Context {
	return &register.Context{Design: design, Log: diag.NewLogger(nil)}
}

func mustCall(t *testing.T, ctx *register.Context, command string) {
	t.Helper()
	if err := register.Call(ctx, command); err != nil {
		t.Fatalf("command `%s' failed: %v", command, err)
	}
	if err := ctx.Design.Check(); err != nil {
		t.Fatalf("design inconsistent after `%s': %v", command, err)
	}
}

func addGate(module *rtlil.Module, name, typ rtlil.Id, conns map[rtlil.Id]rtlil.SigSpec) *rtlil.Cell {
	cell := rtlil.NewCell(name, typ)
	for port, sig := range conns {
		cell.Connections[port] = sig
	}
	module.AddCell(cell)
	return cell
}

func findConnection(module *rtlil.Module, lhs, rhs rtlil.SigSpec) bool {
	for _, conn := range module.Connections {
		if conn.First.Equal(lhs) && conn.Second.Equal(rhs) {
			return true
		}
		if conn.First.Equal(rhs) && conn.Second.Equal(lhs) {
			return true
		}
	}
	return false
}

package register

import (
	"testing"

	"gosynth/internal/diag"
	"gosynth/internal/rtlil"
)

type spyPass struct {
	name     string
	lastArgs []string
	calls    int
	fail     error
}

func (p *spyPass) Name() string          { return p.name }
func (p *spyPass) Help(log *diag.Logger) {}
func (p *spyPass) Execute(ctx *Context, args []string) error {
	p.calls++
	p.lastArgs = args
	return p.fail
}

func testContext() *Context {
	return &Context{Design: rtlil.NewDesign(), Log: diag.NewLogger(nil)}
}

func TestCallDispatch(t *testing.T) {
	p := &spyPass{name: "spy_dispatch"}
	RegisterPass(p)

	ctx := testContext()
	if err := Call(ctx, "spy_dispatch -x foo"); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected one call, got %d", p.calls)
	}
	if len(p.lastArgs) != 3 || p.lastArgs[0] != "spy_dispatch" || p.lastArgs[2] != "foo" {
		t.Fatalf("bad args: %v", p.lastArgs)
	}
}

func TestCallUnknownCommand(t *testing.T) {
	err := Call(testContext(), "no_such_pass")
	if err == nil || !IsCmdError(err) {
		t.Fatalf("expected command error, got %v", err)
	}
}

func TestCallRestoresSelectionStack(t *testing.T) {
	ctx := testContext()
	ctx.Design.AddModule(rtlil.NewModule("\\m1"))
	ctx.Design.AddModule(rtlil.NewModule("\\m2"))

	// a pass that pushes a selection through ExtraArgs
	selPass := &extraArgsPass{}
	RegisterPass(selPass)

	if err := Call(ctx, "spy_extra_args m1"); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if len(ctx.Design.SelectionStack) != 0 {
		t.Fatalf("selection stack must be restored after the call")
	}
	if !selPass.sawM1 || selPass.sawM2 {
		t.Fatalf("selection must scope to m1 only: m1=%v m2=%v", selPass.sawM1, selPass.sawM2)
	}
}

type extraArgsPass struct {
	sawM1, sawM2 bool
}

func (*extraArgsPass) Name() string          { return "spy_extra_args" }
func (*extraArgsPass) Help(log *diag.Logger) {}
func (p *extraArgsPass) Execute(ctx *Context, args []string) error {
	if err := ExtraArgs(ctx, args, 1); err != nil {
		return err
	}
	p.sawM1 = ctx.Design.SelectedModule("\\m1")
	p.sawM2 = ctx.Design.SelectedModule("\\m2")
	return nil
}

func TestExtraArgsRejectsUnknownFlags(t *testing.T) {
	ctx := testContext()
	err := ExtraArgs(ctx, []string{"some_pass", "-bogus"}, 1)
	if err == nil || !IsCmdError(err) {
		t.Fatalf("expected command error for unknown flag, got %v", err)
	}
}

func TestExtraArgsMemberPattern(t *testing.T) {
	ctx := testContext()
	m := rtlil.NewModule("\\m")
	m.NewWireInModule(1, "\\w")
	m.NewWireInModule(1, "\\other")
	ctx.Design.AddModule(m)

	if err := ExtraArgs(ctx, []string{"some_pass", "m/w"}, 1); err != nil {
		t.Fatalf("extra args failed: %v", err)
	}
	if !ctx.Design.SelectedMember("\\m", "\\w") {
		t.Fatalf("member pattern must select the member")
	}
	if ctx.Design.SelectedMember("\\m", "\\other") {
		t.Fatalf("member pattern must not select siblings")
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

// Package register holds the pass registry and the command driver that
// tokenizes, dispatches and scopes pass invocations.
package register

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gosynth/internal/diag"
	"gosynth/internal/rtlil"
)

// Context carries the design and logger through a pass invocation.
type Context struct {
	Design *rtlil.Design
	Log    *diag.Logger
}

// Pass is a named command operating on a design.
type Pass interface {
	Name() string
	Help(log *diag.Logger)
	Execute(ctx *Context, args []string) error
}

var passes = map[string]Pass{}

// RegisterPass adds a pass to the process-wide registry. Called from package
// init functions; duplicate names are a programming error.
func RegisterPass(p Pass) {
	if _, ok := passes[p.Name()]; ok {
		panic("register: duplicate pass " + p.Name())
	}
	passes[p.Name()] = p
}

// Lookup returns the registered pass with the given name.
func Lookup(name string) (Pass, bool) {
	p, ok := passes[name]
	return p, ok
}

// Names returns all registered pass names in order.
func Names() []string {
	names := make([]string, 0, len(passes))
	for name := range passes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CmdError is a command error: the pass rejected its invocation before
// mutating the design.
type CmdError struct {
	msg string
}

func (e *CmdError) Error() string { return e.msg }

// CmdErrorf builds a command error.
func CmdErrorf(format string, args ...interface{}) error {
	return &CmdError{msg: fmt.Sprintf(format, args...)}
}

// IsCmdError reports whether err is a command error.
func IsCmdError(err error) bool {
	var ce *CmdError
	return errors.As(err, &ce)
}

// Call tokenizes a command line, looks up the pass and invokes it. The
// selection stack is restored to its previous depth afterwards, and nested
// calls are indented in the log.
func Call(ctx *Context, command string) error {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil
	}
	p, ok := Lookup(args[0])
	if !ok {
		return CmdErrorf("register: no such command: %s", args[0])
	}

	depth := len(ctx.Design.SelectionStack)
	ctx.Log.Push()
	err := p.Execute(ctx, args)
	ctx.Log.Pop()
	if len(ctx.Design.SelectionStack) > depth {
		ctx.Design.SelectionStack = ctx.Design.SelectionStack[:depth]
	}
	return err
}

// ExtraArgs consumes the trailing arguments of a pass invocation as a
// selection expression and pushes the resulting selection. Flag-looking
// arguments are rejected as unknown options.
func ExtraArgs(ctx *Context, args []string, argidx int) error {
	if argidx >= len(args) {
		return nil
	}
	sel := rtlil.NewSelection(false)
	for ; argidx < len(args); argidx++ {
		arg := args[argidx]
		if strings.HasPrefix(arg, "-") {
			return CmdErrorf("register: unknown option %s for command %s", arg, args[0])
		}
		if i := strings.IndexByte(arg, '/'); i >= 0 {
			modName := rtlil.EscapeId(arg[:i])
			membName := rtlil.EscapeId(arg[i+1:])
			sel.Select(modName, membName)
		} else {
			sel.SelectModule(rtlil.EscapeId(arg))
		}
	}
	sel.Optimize(ctx.Design)
	ctx.Design.SelectionStack = append(ctx.Design.SelectionStack, sel)
	return nil
}

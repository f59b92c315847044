// Command gosynth drives the synthesis core: it loads netlists, runs the
// requested pass pipeline and writes the result through a backend.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gosynth/internal/diag"
	"gosynth/internal/register"
	"gosynth/internal/rtlil"

	_ "gosynth/internal/backend"
	_ "gosynth/internal/frontend"
	_ "gosynth/internal/passes"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printGlobalUsage()
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "run":
		return runPipeline(args[1:])
	case "passes":
		return runListPasses()
	case "help":
		return runHelp(args[1:])
	default:
		printGlobalUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printGlobalUsage() {
	fmt.Fprintf(os.Stderr, "gosynth synthesis core\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  gosynth <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run        Load inputs, run a pass pipeline and emit results\n")
	fmt.Fprintf(os.Stderr, "  passes     List all registered passes\n")
	fmt.Fprintf(os.Stderr, "  help       Show the help text of a pass\n")
}

func runPipeline(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	pipeline := fs.String("p", "", "semicolon-separated pass commands to run")
	script := fs.String("s", "", "script file with one pass command per line")
	dump := fs.String("dump", "", "write a text dump of the final design to this path ('-' for stdout)")
	quiet := fs.Bool("q", false, "suppress pass log output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var logW io.Writer = os.Stderr
	if *quiet {
		logW = nil
	}

	design := rtlil.NewDesign()
	ctx := &register.Context{Design: design, Log: diag.NewLogger(logW)}

	for _, input := range fs.Args() {
		if err := register.Call(ctx, "read_blif "+input); err != nil {
			return err
		}
	}

	var commands []string
	if *script != "" {
		data, err := os.ReadFile(*script)
		if err != nil {
			return err
		}
		commands = append(commands, strings.Split(string(data), "\n")...)
	}
	if *pipeline != "" {
		commands = append(commands, strings.Split(*pipeline, ";")...)
	}

	for _, command := range commands {
		command = strings.TrimSpace(command)
		if command == "" || strings.HasPrefix(command, "#") {
			continue
		}
		if err := register.Call(ctx, command); err != nil {
			if register.IsCmdError(err) {
				return fmt.Errorf("command failed: %s: %w", command, err)
			}
			return err
		}
		if err := design.Check(); err != nil {
			return fmt.Errorf("design inconsistent after `%s': %w", command, err)
		}
	}

	if *dump != "" {
		return withOutputWriter(*dump, func(w io.Writer) error {
			rtlil.Dump(design, w)
			return nil
		})
	}
	return nil
}

func runListPasses() error {
	for _, name := range register.Names() {
		fmt.Println(name)
	}
	return nil
}

func runHelp(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("help requires exactly one pass name")
	}
	p, ok := register.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no such pass: %s", args[0])
	}
	p.Help(diag.NewLogger(os.Stdout))
	return nil
}

func withOutputWriter(path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = fn(f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	return err
}

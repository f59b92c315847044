package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunRequiresCommand(t *testing.T) {
	if err := run(nil); err == nil {
		t.Fatalf("expected error for missing command")
	}
	if err := run([]string{"frobnicate"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestRunPipelineEndToEnd(t *testing.T) {
	tmp := t.TempDir()
	input := writeFile(t, tmp, "design.blif", `.model top
.inputs a b
.outputs y
.names a b y
11 1
.end
`)
	dump := filepath.Join(tmp, "design.txt")

	err := run([]string{"run", "-q", "-p", "rename top core", "-dump", dump, input})
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	data, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "module core") {
		t.Fatalf("rename did not reach the dump:\n%s", text)
	}
	if !strings.Contains(text, "$lut") {
		t.Fatalf("parsed cell missing from dump:\n%s", text)
	}
}

func TestRunScriptFile(t *testing.T) {
	tmp := t.TempDir()
	input := writeFile(t, tmp, "design.blif", `.model top
.inputs a
.outputs y
.names a y
1 1
.end
`)
	script := writeFile(t, tmp, "script.ys", "# comment\nrename top unit\n")
	dump := filepath.Join(tmp, "out.txt")

	if err := run([]string{"run", "-q", "-s", script, "-dump", dump, input}); err != nil {
		t.Fatalf("script pipeline failed: %v", err)
	}
	data, _ := os.ReadFile(dump)
	if !strings.Contains(string(data), "module unit") {
		t.Fatalf("script command not applied:\n%s", data)
	}
}

func TestRunBadCommandFails(t *testing.T) {
	if err := run([]string{"run", "-q", "-p", "no_such_pass"}); err == nil {
		t.Fatalf("expected failure for unknown pass")
	}
}

func TestHelpCommand(t *testing.T) {
	if err := run([]string{"help", "opt_share"}); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if err := run([]string{"help", "nope"}); err == nil {
		t.Fatalf("expected error for unknown pass")
	}
}

func TestPassesCommand(t *testing.T) {
	if err := run([]string{"passes"}); err != nil {
		t.Fatalf("passes failed: %v", err)
	}
}

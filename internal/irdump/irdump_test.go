package irdump

import (
	"strings"
	"testing"

	"bf/internal/codegen"
	"bf/internal/optimizer"
	"bf/internal/parser"
)

func renderSource(t *testing.T, src string) string {
	t.Helper()
	instrs, err := parser.New(src).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	module := codegen.Translate(optimizer.Optimize(instrs))
	return Render(module.Func)
}

func TestRenderIncludesFunctionSignature(t *testing.T) {
	text := renderSource(t, "+++")
	if !strings.Contains(text, "@bf(") {
		t.Errorf("expected rendered IR to declare @bf, got:\n%s", text)
	}
	if !strings.Contains(text, "ret i64") {
		t.Errorf("expected rendered IR to contain a ret i64, got:\n%s", text)
	}
}

func TestRenderLoopIncludesBranch(t *testing.T) {
	text := renderSource(t, "+[-]")
	if !strings.Contains(text, "br i1") {
		t.Errorf("expected a conditional branch for a loop, got:\n%s", text)
	}
	if !strings.Contains(text, "br label") {
		t.Errorf("expected at least one unconditional branch, got:\n%s", text)
	}
}

func TestRenderOmitsIOCallsButStillTerminates(t *testing.T) {
	text := renderSource(t, "+.,")
	if !strings.Contains(text, "ret i64") {
		t.Errorf("expected a ret i64 even with putchar/getchar elided, got:\n%s", text)
	}
}

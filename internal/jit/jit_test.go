package jit

import (
	goruntime "runtime"
	"testing"
	"unsafe"

	"bf/internal/backend/amd64"
	"bf/internal/codegen"
	"bf/internal/optimizer"
	"bf/internal/parser"
)

func assemble(t *testing.T, src string) ([]byte, int) {
	t.Helper()
	instrs, err := parser.New(src).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	module := codegen.Translate(optimizer.Optimize(instrs))
	return amd64.Assemble(module.Func)
}

func TestFinalizeAndInvoke(t *testing.T) {
	if goruntime.GOOS != "linux" || goruntime.GOARCH != "amd64" {
		t.Skip("JIT execution requires linux/amd64")
	}

	code, tapeImmAt := assemble(t, "++++")
	cell := int64(0)
	mod, err := Finalize(code, tapeImmAt, uintptr(unsafe.Pointer(&cell)))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if got := mod.Fn(); got != 4 {
		t.Errorf("Fn() = %d, want 4", got)
	}
	goruntime.KeepAlive(&cell)
}

func TestFinalizePatchesTapeAddressIntoCode(t *testing.T) {
	if goruntime.GOOS != "linux" || goruntime.GOARCH != "amd64" {
		t.Skip("JIT execution requires linux/amd64")
	}

	code, tapeImmAt := assemble(t, "+")
	cell := int64(0)
	addr := uintptr(unsafe.Pointer(&cell))

	if _, err := Finalize(code, tapeImmAt, addr); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	var got uint64
	for i := 0; i < 8; i++ {
		got |= uint64(code[tapeImmAt+i]) << (8 * i)
	}
	if uintptr(got) != addr {
		t.Errorf("patched immediate = %#x, want %#x", got, addr)
	}
	goruntime.KeepAlive(&cell)
}

// Package jit turns assembled machine code bytes into a callable Go
// function: it allocates anonymous RW memory, patches in the tape's
// base address, copies the code in, flips the mapping to RX, and casts
// a pointer at its first byte into func() int64. Grounded on the
// mmap+mprotect+function-pointer cast pattern used to JIT Scheme
// procedures to native code without cgo. The function takes no
// arguments on the Go side: internal/backend/amd64 bakes the data
// pointer into the prologue as an immediate rather than reading it from
// an argument register, the same way a Brainfuck-to-native compiler
// fixes its tape at a known address in the binary it emits, so nothing
// here depends on how Go's calling convention happens to assign
// argument registers.
package jit

import (
	"encoding/binary"
	"runtime"
	"syscall"
	"unsafe"

	"bf/internal/errors"
)

// Module owns one piece of executable memory. It must be kept alive
// (referenced) for as long as its Fn is callable: once the Module is
// collected, Munmap could in principle run underneath a live call, so
// runtime.SetFinalizer is used defensively and callers are expected to
// hold the Module itself rather than just the function value.
type Module struct {
	mem []byte
	Fn  func() int64
}

// Finalize allocates executable memory, patches tapeAddr into the
// 8-byte immediate at tapeImmOffset (as produced by
// internal/backend/amd64.Assemble), copies code in, and returns a
// Module exposing it as a callable Go function. Returns
// HostUnsupported when the process isn't running on linux/amd64, since
// the code bytes internal/backend/amd64 produces are ISA-specific.
func Finalize(code []byte, tapeImmOffset int, tapeAddr uintptr) (*Module, error) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		return nil, errors.NewHostUnsupported("jit: linux/amd64 is the only supported host, got " + runtime.GOOS + "/" + runtime.GOARCH)
	}

	binary.LittleEndian.PutUint64(code[tapeImmOffset:tapeImmOffset+8], uint64(tapeAddr))

	buf, err := allocExec(len(code))
	if err != nil {
		return nil, errors.NewCodegenError("jit: mmap failed: " + err.Error())
	}

	copy(buf, code)

	if err := makeExecutable(buf); err != nil {
		syscall.Munmap(buf)
		return nil, errors.NewCodegenError("jit: mprotect failed: " + err.Error())
	}

	m := &Module{mem: buf, Fn: castToFunc(buf)}
	runtime.SetFinalizer(m, func(m *Module) {
		syscall.Munmap(m.mem)
	})
	return m, nil
}

// allocExec reserves size bytes (rounded up to a whole page) of
// anonymous, private, read-write memory.
func allocExec(size int) ([]byte, error) {
	page := syscall.Getpagesize()
	n := (size + page - 1) &^ (page - 1)
	if n == 0 {
		n = page
	}
	return syscall.Mmap(-1, 0, n, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_PRIVATE|syscall.MAP_ANON)
}

// makeExecutable flips buf's protection from RW to RX. The code must
// already be fully written before this is called: the mapping is never
// RWX at once.
func makeExecutable(buf []byte) error {
	return syscall.Mprotect(buf, syscall.PROT_READ|syscall.PROT_EXEC)
}

// castToFunc reinterprets the first byte of buf as the entry point of a
// func() int64, the same unsafe.Pointer trick used to turn raw JIT'd
// bytes into a callable Go value. A Go func value points at a closure
// record whose first word is the code address, hence the two levels of
// indirection.
func castToFunc(buf []byte) func() int64 {
	code := unsafe.Pointer(&buf[0])
	closure := &code
	return *(*func() int64)(unsafe.Pointer(&closure))
}

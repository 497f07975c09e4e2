// Package amd64 lowers internal/ssa's block graph straight to x86-64
// machine code. The generated function takes no arguments and returns
// one int64 in RAX: the data pointer is baked into the prologue as an
// 8-byte immediate rather than received through a register, since the
// only caller is a cast Go func value and Go's own calling convention
// for an argument in that position isn't one this package pins down.
// internal/jit patches that immediate in after the tape's address is
// known, the same bake-the-address-into-the-prologue approach a
// Brainfuck-to-native compiler uses when it emits a standalone binary
// with its tape at a fixed address rather than passed in.
//
// Two registers carry the whole program's state while it runs: RBX
// permanently holds the data pointer (codegen never lets it leave a
// single SSA variable, so it never needs to spill), and RAX carries
// whatever transient value the instruction just before it produced —
// codegen always consumes a non-pointer value in the instruction
// immediately following its definition, so no general value/register
// table is needed.
//
// putchar/getchar are lowered to raw write(2)/read(2) syscalls against
// fd 1/0 rather than libc calls, so the generated code never touches
// the dynamic symbol table.
package amd64

import "bf/internal/ssa"

const (
	sysWrite = 1
	sysRead  = 0

	// cellBytes is the width of one tape cell: the tape is a []int64, so
	// each pointer move must step a full 8 bytes, not 1.
	cellBytes = 8
)

// fixup records a 4-byte rel32 slot that needs patching once every
// block's start offset is known.
type fixup struct {
	patchAt int
	target  ssa.Block
}

// asm accumulates machine code for one function.
type asm struct {
	code        []byte
	blockOffset map[ssa.Block]int
	fixups      []fixup
	tapeImmAt   int
}

// Assemble lowers f into a position-independent x86-64 function body
// implementing func() int64. tapeImmOffset is the byte offset of the
// 8-byte little-endian immediate the prologue loads into RBX; the
// caller (internal/jit) must patch it with the tape's base address
// before the code is made executable.
func Assemble(f *ssa.Func) (code []byte, tapeImmOffset int) {
	a := &asm{blockOffset: map[ssa.Block]int{}}

	a.prologue()

	blocks := f.Blocks()
	for id := range blocks {
		a.blockOffset[ssa.Block(id)] = len(a.code)
		a.lowerBlock(blocks[id])
	}

	a.patchFixups()
	return a.code, a.tapeImmAt
}

func (a *asm) emit(b ...byte) {
	a.code = append(a.code, b...)
}

func (a *asm) prologue() {
	a.emit(0x55)                   // push rbp
	a.emit(0x48, 0x89, 0xE5)       // mov rbp, rsp
	a.emit(0x48, 0x83, 0xEC, 0x10) // sub rsp, 0x10 (16-byte getchar scratch buffer, keeps alignment)
	a.emit(0x48, 0xBB)             // movabs rbx, imm64 (patched with the tape's base address)
	a.tapeImmAt = len(a.code)
	for i := 0; i < 8; i++ {
		a.emit(0)
	}
}

func (a *asm) epilogue(resultInRAX bool) {
	_ = resultInRAX // result is always in rax by the pipeline convention; kept for readability at call sites
	a.emit(0xC9) // leave
	a.emit(0xC3) // ret
}

func (a *asm) lowerBlock(b ssa.BlockView) {
	for _, in := range b.Instrs {
		a.lowerInstr(in)
	}
	a.lowerTerm(b.Term)
}

func (a *asm) lowerInstr(in ssa.Instr) {
	switch in.Op {
	case ssa.OpArg:
		// handled by the prologue's movabs rbx, <tape address>

	case ssa.OpConst:
		a.movRAXImm64(in.Imm)

	case ssa.OpLoad:
		a.emit(0x48, 0x8B, 0x03) // mov rax, [rbx]

	case ssa.OpStore:
		a.emit(0x48, 0x89, 0x03) // mov [rbx], rax

	case ssa.OpIAddImm:
		if in.DefinesVar != 0 {
			a.addRBXImm32(int32(in.Imm * cellBytes)) // add rbx, imm*8  (pointer move, one tape cell per step)
		} else {
			a.addRAXImm32(int32(in.Imm)) // add rax, imm  (cell arithmetic)
		}

	case ssa.OpPutchar:
		a.syscallWrite1Byte()

	case ssa.OpGetchar:
		a.syscallRead1ByteOrEOF()
	}
}

func (a *asm) lowerTerm(t ssa.Term) {
	switch t.Kind {
	case ssa.TermJump:
		a.jmpRel32(t.Target)

	case ssa.TermBrIfZero:
		a.emit(0x48, 0x85, 0xC0) // test rax, rax
		a.jzRel32(t.Target)
		a.jmpRel32(t.Else)

	case ssa.TermReturn:
		a.epilogue(true)
	}
}

// movRAXImm64 emits "mov rax, imm64".
func (a *asm) movRAXImm64(imm int64) {
	a.emit(0x48, 0xB8)
	u := uint64(imm)
	for i := 0; i < 8; i++ {
		a.emit(byte(u >> (8 * i)))
	}
}

// addRAXImm32 emits "add rax, imm32" (sign-extended).
func (a *asm) addRAXImm32(imm int32) {
	a.emit(0x48, 0x05) // add rax, imm32
	a.emit(le32(imm)...)
}

// addRBXImm32 emits "add rbx, imm32" (sign-extended).
func (a *asm) addRBXImm32(imm int32) {
	a.emit(0x48, 0x81, 0xC3) // add rbx (ModRM /0), imm32
	a.emit(le32(imm)...)
}

// jmpRel32 emits a near unconditional jump with a placeholder
// displacement, recording a fixup to patch once block offsets settle.
func (a *asm) jmpRel32(target ssa.Block) {
	a.emit(0xE9)
	a.fixups = append(a.fixups, fixup{patchAt: len(a.code), target: target})
	a.emit(0, 0, 0, 0)
}

// jzRel32 emits a near conditional jump-if-zero with a placeholder
// displacement.
func (a *asm) jzRel32(target ssa.Block) {
	a.emit(0x0F, 0x84)
	a.fixups = append(a.fixups, fixup{patchAt: len(a.code), target: target})
	a.emit(0, 0, 0, 0)
}

// syscallWrite1Byte emits write(1, rbx, 1): the cell at [rbx] is 8 bytes
// wide but a count of 1 only ever transmits its low (little-endian) byte.
func (a *asm) syscallWrite1Byte() {
	a.movRAXImm64(sysWrite)          // mov rax, 1 (SYS_write)
	a.emit(0x48, 0xC7, 0xC7, 1, 0, 0, 0) // mov rdi, 1  (fd)
	a.emit(0x48, 0x89, 0xDE)             // mov rsi, rbx (buffer)
	a.emit(0x48, 0xC7, 0xC2, 1, 0, 0, 0) // mov rdx, 1  (count)
	a.emit(0x0F, 0x05)                   // syscall
}

// syscallRead1ByteOrEOF emits read(0, [rsp scratch], 1), then widens the
// byte read into rax, or stores -1 in rax when the read returned 0 (EOF)
// or a negative errno.
func (a *asm) syscallRead1ByteOrEOF() {
	a.movRAXImm64(sysRead)               // mov rax, 0 (SYS_read)
	a.emit(0x48, 0xC7, 0xC7, 0, 0, 0, 0)  // mov rdi, 0  (fd)
	a.emit(0x48, 0x8D, 0x75, 0xF8)        // lea rsi, [rbp-8] (scratch buffer)
	a.emit(0x48, 0xC7, 0xC2, 1, 0, 0, 0)  // mov rdx, 1  (count)
	a.emit(0x0F, 0x05)                    // syscall

	a.emit(0x48, 0x83, 0xF8, 0x01) // cmp rax, 1
	a.emit(0x0F, 0x85, 6, 0, 0, 0) // jne +6 (skip the success path, land on mov rax,-1)
	a.emit(0x0F, 0xB6, 0x45, 0xF8) // movzx eax, byte [rbp-8]
	a.emit(0xEB, 10)               // jmp +10 (past the 10-byte mov rax,-1 below)
	a.movRAXImm64(-1)              // mov rax, -1  (EOF/error sentinel)
}

func (a *asm) patchFixups() {
	for _, fx := range a.fixups {
		target := a.blockOffset[fx.target]
		rel := int32(target - (fx.patchAt + 4))
		b := le32(rel)
		copy(a.code[fx.patchAt:fx.patchAt+4], b)
	}
}

func le32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

// Package irdump renders an internal/ssa function as LLVM IR text,
// purely for human diagnostics: llir/llvm is a pure-Go IR builder with
// no execution engine, so this package only ever produces a *.ll module
// to look at, the same role the Rust reference's `self.ctx.func.display()`
// call plays when a compile fails.
package irdump

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"bf/internal/ssa"
)

// Render lowers f into an LLVM IR module named "bf" and returns its
// textual form. putchar/getchar have no direct scalar-IR equivalent (they
// would need a syscall/libc declaration); they're elided from the
// rendering, since this output is only ever read by a person chasing a
// CodegenError, never compiled. Each block is rendered on its own: it
// starts from the function's pointer parameter, so pointer moves made in
// earlier blocks are not carried across block boundaries (no phi nodes
// are rendered).
func Render(f *ssa.Func) string {
	m := ir.NewModule()
	fn := m.NewFunc("bf", types.I64, ir.NewParam("ptr", types.NewPointer(types.I64)))

	blocks := f.Blocks()
	irBlocks := make([]*ir.Block, len(blocks))
	for i := range blocks {
		irBlocks[i] = fn.NewBlock(fmt.Sprintf("bb%d", i))
	}

	for i, b := range blocks {
		bb := irBlocks[i]
		var curPtr ir.Value = fn.Params[0]
		var curVal ir.Value = fn.Params[0]

		for _, in := range b.Instrs {
			switch in.Op {
			case ssa.OpArg:
				curPtr = fn.Params[0]
			case ssa.OpConst:
				curVal = constant.NewInt(types.I64, in.Imm)
			case ssa.OpLoad:
				curVal = bb.NewLoad(types.I64, curPtr)
			case ssa.OpStore:
				bb.NewStore(curVal, curPtr)
			case ssa.OpIAddImm:
				if in.DefinesVar != 0 {
					curPtr = bb.NewGetElementPtr(types.I64, curPtr, constant.NewInt(types.I64, in.Imm))
				} else {
					curVal = bb.NewAdd(curVal, constant.NewInt(types.I64, in.Imm))
				}
			case ssa.OpPutchar, ssa.OpGetchar:
				// elided: no libc/syscall declaration in this diagnostic module
			}
		}

		switch b.Term.Kind {
		case ssa.TermJump:
			bb.NewBr(irBlocks[b.Term.Target])
		case ssa.TermBrIfZero:
			cond := bb.NewICmp(enum.IPredEQ, curVal, constant.NewInt(types.I64, 0))
			bb.NewCondBr(cond, irBlocks[b.Term.Target], irBlocks[b.Term.Else])
		case ssa.TermReturn:
			bb.NewRet(curVal)
		}
	}

	return m.String()
}

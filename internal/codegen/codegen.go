// Package codegen translates an optimized instruction tree into the
// block/SSA form internal/ssa exposes, the way a Cranelift frontend
// lowers an AST into CLIF: one pass, one variable (the data pointer),
// loop headers sealed only after their back edge is emitted.
package codegen

import (
	"bf/internal/optimizer"
	"bf/internal/ssa"
)

// Module is a fully lowered function ready for internal/backend/amd64.
type Module struct {
	Func   *ssa.Func
	PtrVar ssa.Var
}

// Translate lowers an optimized instruction tree rooted at the top
// level of a program into one SSA function. At the SSA level the function
// has one *int64 argument (OpArg, the starting cell address) and returns
// the value of the cell under the pointer when the program halts. The
// machine code internal/backend/amd64 produces from it takes no argument
// (it is called as func() int64): the starting address is baked into
// its prologue as an immediate instead.
func Translate(ops []optimizer.OpInstr) *Module {
	f := ssa.NewFunc()
	ptrVar := f.DeclareVar()

	entry := ssa.Block(0)
	arg := f.EmitDef(ssa.OpArg, 0, ptrVar)
	f.DefVar(entry, ptrVar, arg)

	last := lowerSeq(f, ptrVar, entry, ops)

	finalPtr := f.UseVar(last, ptrVar)
	result := f.Emit(ssa.OpLoad, 0, finalPtr)
	f.Return(result)

	return &Module{Func: f, PtrVar: ptrVar}
}

// lowerSeq lowers a sibling sequence of OpInstr into cur, returning the
// block that control falls into once the sequence completes (it differs
// from cur only when the sequence contains a loop).
func lowerSeq(f *ssa.Func, ptrVar ssa.Var, cur ssa.Block, ops []optimizer.OpInstr) ssa.Block {
	for _, op := range ops {
		switch op.Kind {
		case optimizer.PtrAdd:
			v := f.UseVar(cur, ptrVar)
			nv := f.EmitDef(ssa.OpIAddImm, int64(op.Count), ptrVar, v)
			f.DefVar(cur, ptrVar, nv)

		case optimizer.ValAdd:
			v := f.UseVar(cur, ptrVar)
			loaded := f.Emit(ssa.OpLoad, 0, v)
			sum := f.Emit(ssa.OpIAddImm, int64(op.Count), loaded)
			f.Emit(ssa.OpStore, 0, v, sum)

		case optimizer.Output:
			v := f.UseVar(cur, ptrVar)
			for i := 0; i < op.Count; i++ {
				f.Emit(ssa.OpPutchar, 0, v)
			}

		case optimizer.Input:
			v := f.UseVar(cur, ptrVar)
			for i := 0; i < op.Count; i++ {
				b := f.Emit(ssa.OpGetchar, 0, v)
				f.Emit(ssa.OpStore, 0, v, b)
			}

		case optimizer.Loop:
			cur = lowerLoop(f, ptrVar, cur, op.Body)
		}
	}
	return cur
}

// lowerLoop lowers one Loop node into header/body/exit blocks. header is
// sealed last, once the back edge from the end of the body is known;
// body and exit each have exactly one predecessor, the header, and are
// sealed as soon as the header's branch to them is emitted.
func lowerLoop(f *ssa.Func, ptrVar ssa.Var, preheader ssa.Block, body []optimizer.OpInstr) ssa.Block {
	header := f.CreateBlock()
	bodyBlock := f.CreateBlock()
	exit := f.CreateBlock()

	f.SwitchToBlock(preheader)
	f.Jump(header)

	f.SwitchToBlock(header)
	hv := f.UseVar(header, ptrVar)
	cell := f.Emit(ssa.OpLoad, 0, hv)
	f.BrIfZero(cell, exit, bodyBlock)
	f.SealBlock(bodyBlock)
	f.SealBlock(exit)

	f.SwitchToBlock(bodyBlock)
	f.DefVar(bodyBlock, ptrVar, hv)
	bodyEnd := lowerSeq(f, ptrVar, bodyBlock, body)

	f.SwitchToBlock(bodyEnd)
	f.Jump(header)
	f.SealBlock(header)

	f.SwitchToBlock(exit)
	return exit
}

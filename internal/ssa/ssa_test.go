package ssa

import "testing"

// TestStraightLineNeedsNoPhi checks that a variable defined once in the
// entry block resolves to the same value with no block params involved.
func TestStraightLineNeedsNoPhi(t *testing.T) {
	f := NewFunc()
	v := f.DeclareVar()
	entry := Block(0)

	c := f.Emit(OpConst, 42)
	f.DefVar(entry, v, c)

	if got := f.UseVar(entry, v); got != c {
		t.Errorf("UseVar in defining block = %v, want %v", got, c)
	}
}

// TestLoopHeaderPhiMergesPreheaderAndBackEdge builds the same header/
// body/exit shape internal/codegen uses for a Brainfuck loop and checks
// that sealing the header after the back edge resolves without panicking
// and that the exit block can read the variable through the header.
func TestLoopHeaderPhiMergesPreheaderAndBackEdge(t *testing.T) {
	f := NewFunc()
	v := f.DeclareVar()
	entry := Block(0)

	initial := f.Emit(OpConst, 100)
	f.DefVar(entry, v, initial)

	header := f.CreateBlock()
	body := f.CreateBlock()
	exit := f.CreateBlock()

	f.SwitchToBlock(entry)
	f.Jump(header)

	f.SwitchToBlock(header)
	hv := f.UseVar(header, v)
	f.BrIfZero(hv, exit, body)
	f.SealBlock(body)
	f.SealBlock(exit)

	f.SwitchToBlock(body)
	f.DefVar(body, v, hv)
	updated := f.EmitDef(OpIAddImm, -1, v, hv)
	f.DefVar(body, v, updated)
	f.Jump(header)
	f.SealBlock(header)

	f.SwitchToBlock(exit)
	final := f.UseVar(exit, v)
	f.Return(final)

	blocks := f.Blocks()
	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(blocks))
	}
	if blocks[int(exit)].Term.Kind != TermReturn {
		t.Errorf("exit block should terminate in a return")
	}
}

func TestSequentialLoopsReuseExitAsNextPreheader(t *testing.T) {
	f := NewFunc()
	v := f.DeclareVar()
	entry := Block(0)
	init := f.Emit(OpConst, 1)
	f.DefVar(entry, v, init)

	// first loop
	h1 := f.CreateBlock()
	b1 := f.CreateBlock()
	e1 := f.CreateBlock()
	f.SwitchToBlock(entry)
	f.Jump(h1)
	f.SwitchToBlock(h1)
	hv1 := f.UseVar(h1, v)
	f.BrIfZero(hv1, e1, b1)
	f.SealBlock(b1)
	f.SealBlock(e1)
	f.SwitchToBlock(b1)
	f.DefVar(b1, v, hv1)
	f.Jump(h1)
	f.SealBlock(h1)

	// second loop, chained from e1
	f.SwitchToBlock(e1)
	h2 := f.CreateBlock()
	b2 := f.CreateBlock()
	e2 := f.CreateBlock()
	f.Jump(h2)
	f.SwitchToBlock(h2)
	hv2 := f.UseVar(h2, v)
	f.BrIfZero(hv2, e2, b2)
	f.SealBlock(b2)
	f.SealBlock(e2)
	f.SwitchToBlock(b2)
	f.DefVar(b2, v, hv2)
	f.Jump(h2)
	f.SealBlock(h2)

	f.SwitchToBlock(e2)
	f.Return(f.UseVar(e2, v))

	if len(f.Blocks()) != 7 {
		t.Fatalf("expected 7 blocks, got %d", len(f.Blocks()))
	}
}

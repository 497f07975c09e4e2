// Package formatter renders an optimized instruction tree back to
// canonical Brainfuck source: every run-length-coalesced node becomes a
// repeated operator, with no comment bytes surviving the round trip.
package formatter

import (
	"strings"

	"bf/internal/optimizer"
)

// Format renders ops as canonical Brainfuck source text.
func Format(ops []optimizer.OpInstr) string {
	var sb strings.Builder
	writeSeq(&sb, ops)
	return sb.String()
}

func writeSeq(sb *strings.Builder, ops []optimizer.OpInstr) {
	for _, op := range ops {
		switch op.Kind {
		case optimizer.PtrAdd:
			writeRun(sb, '>', '<', op.Count)
		case optimizer.ValAdd:
			writeRun(sb, '+', '-', op.Count)
		case optimizer.Output:
			writeRun(sb, '.', '.', op.Count)
		case optimizer.Input:
			writeRun(sb, ',', ',', op.Count)
		case optimizer.Loop:
			sb.WriteByte('[')
			writeSeq(sb, op.Body)
			sb.WriteByte(']')
		}
	}
}

// writeRun writes |count| copies of pos (count > 0) or neg (count < 0).
func writeRun(sb *strings.Builder, pos, neg byte, count int) {
	b := pos
	n := count
	if n < 0 {
		b = neg
		n = -n
	}
	for i := 0; i < n; i++ {
		sb.WriteByte(b)
	}
}

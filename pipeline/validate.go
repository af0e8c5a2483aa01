package pipeline

import (
	"fmt"

	"github.com/wavecc/shadercore/ir"
)

// checkInvariants enforces the cheap structural invariants that belong
// to InvariantViolation territory (§7) rather than to any one stage:
// every phi's operand count and PredBlocks length must match the
// predecessor list its opcode draws from -- logical for OpPhi, linear
// for OpLinearPhi -- and every operand's class must match its
// definition's class (property 3).
func checkInvariants(p *ir.Program) error {
	for _, b := range p.Blocks {
		for _, instr := range b.Instrs {
			if !instr.IsPhi() {
				continue
			}
			want := b.LogicalPreds
			if instr.Opcode == ir.OpLinearPhi {
				want = b.LinearPreds
			}
			if len(instr.Operands) != len(want) {
				return fmt.Errorf("block %s: phi has %d operands, want %d predecessors", b.ID, len(instr.Operands), len(want))
			}
			if len(instr.PredBlocks) != len(want) {
				return fmt.Errorf("block %s: phi PredBlocks has length %d, want %d", b.ID, len(instr.PredBlocks), len(want))
			}
			def, ok := instr.Def()
			if !ok {
				return fmt.Errorf("block %s: phi has no definition", b.ID)
			}
			for i, op := range instr.Operands {
				if op.RC() != def.Temp.RC {
					return fmt.Errorf("block %s: phi operand %d class %s does not match definition class %s", b.ID, i, op.RC(), def.Temp.RC)
				}
			}
		}
	}
	return nil
}

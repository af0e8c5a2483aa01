package pseudoelim

import "github.com/wavecc/shadercore/ir"

// resolveBranch narrows a branch pseudo into its architectural form.
// Block ids are layout order (invariant 3), so a branch whose only
// target -- or whose untaken target, for a conditional -- is the very
// next block needs no instruction at all; the encoder falls through by
// default. What remains after narrowing is already what the encoder
// wants: a conditional branch carries one target plus its condition
// operand, an unconditional one carries a single non-adjacent target.
// Filling in the actual immediate offset happens at encoding time (§6),
// once every block's start address is known.
func resolveBranch(b *ir.Block, br *ir.Instruction) *ir.Instruction {
	next := b.ID + 1
	switch len(br.Targets) {
	case 0:
		return br
	case 1:
		if br.Targets[0] == next {
			return nil
		}
		return br
	case 2:
		if br.Targets[1] == next {
			br.Targets = br.Targets[:1]
		}
		return br
	default:
		return br
	}
}

// Package pseudoelim implements stage F, the final pass of the
// pipeline: it walks the allocated program and removes every
// pipeline-internal pseudo opcode, leaving only instructions an encoder
// could turn into bits (§4.6, §6).
package pseudoelim

import "github.com/wavecc/shadercore/ir"

// Result reports what stage F found worth lowering, mostly useful for
// tests and pipeline logging.
type Result struct {
	CopiesEmitted   int
	CyclesBroken    int
	BracketsRemoved int
	BranchesElided  int
}

// Run eliminates parallelcopy, start_linear_vgpr/end_linear_vgpr and
// resolves branch pseudos into their architectural form, in place, over
// every block of p.
func Run(p *ir.Program) *Result {
	res := &Result{}
	for _, b := range p.Blocks {
		runBlock(p, b, res)
	}
	return res
}

func runBlock(p *ir.Program, b *ir.Block, res *Result) {
	out := make([]*ir.Instruction, 0, len(b.Instrs))
	for i, instr := range b.Instrs {
		switch instr.Opcode {
		case ir.OpStartLinearVGPR, ir.OpEndLinearVGPR:
			res.BracketsRemoved++
			continue

		case ir.OpParallelCopy:
			lowered, cycles := lowerParallelCopy(p, instr)
			res.CopiesEmitted += len(lowered)
			res.CyclesBroken += cycles
			out = append(out, lowered...)

		case ir.OpBranch:
			resolved := resolveBranch(b, instr)
			if resolved == nil {
				res.BranchesElided++
				continue
			}
			out = append(out, resolved)

		default:
			_ = i
			out = append(out, instr)
		}
	}
	b.Instrs = out
}

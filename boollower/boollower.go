// Package boollower implements stage B: rewriting per-lane boolean phi
// nodes into explicit execution-mask blends across predecessor blocks,
// per §4.2.
package boollower

import (
	"github.com/wavecc/shadercore/internal/ondemandssa"
	"github.com/wavecc/shadercore/ir"
)

// boolRC is the 64-bit lane-mask representation targeted by this pass:
// a scalar-2-dword value.
var boolRC = ir.RC{Bank: ir.BankScalar, Size: 2}

var allOnesConst = ir.InlineConstantOperand(0xFFFFFFFF)
var zeroConst = ir.InlineConstantOperand(0)

// Lower rewrites every scalar-2-dword phi in p into an AND-NOT/AND/OR
// EXEC blend chain, per §4.2. Non-boolean phis are left untouched.
func Lower(p *ir.Program) {
	for _, block := range p.Blocks {
		for _, instr := range block.Instrs {
			if instr.Opcode != ir.OpPhi {
				continue
			}
			def, ok := instr.Def()
			if !ok || def.Temp.RC != boolRC {
				continue
			}
			lowerOne(p, block, instr)
		}
	}
}

// accumulator carries the running "cur" on-demand SSA state for one
// phi's lowering.
type accumulator struct {
	p        *ir.Program
	resolver *ondemandssa.Resolver
	values   map[ondemandssa.ValueRef]ir.Operand
	phiInstr map[ondemandssa.ValueRef]*ir.Instruction
	phiOps   map[ondemandssa.ValueRef][]ondemandssa.ValueRef
	created  []*ir.Instruction
	nextRef  ondemandssa.ValueRef
}

func newAccumulator(p *ir.Program) *accumulator {
	a := &accumulator{
		p:        p,
		values:   make(map[ondemandssa.ValueRef]ir.Operand),
		phiInstr: make(map[ondemandssa.ValueRef]*ir.Instruction),
		phiOps:   make(map[ondemandssa.ValueRef][]ondemandssa.ValueRef),
	}
	a.resolver = ondemandssa.NewResolver(ondemandssa.Hooks{
		Preds: func(b ondemandssa.BlockID) []ondemandssa.BlockID {
			preds := p.Block(ir.BlockID(b)).LinearPreds
			out := make([]ondemandssa.BlockID, len(preds))
			for i, pr := range preds {
				out[i] = ondemandssa.BlockID(pr)
			}
			return out
		},
		Sealed: func(ondemandssa.BlockID) bool { return true },
		NewIncompletePhi: func(b ondemandssa.BlockID, numOperands int) ondemandssa.ValueRef {
			ref := a.alloc()
			block := p.Block(ir.BlockID(b))
			temp := p.NewTemp(boolRC)
			preds := block.LinearPreds
			instr := &ir.Instruction{
				Opcode:     ir.OpLinearPhi,
				Defs:       []ir.Definition{{Temp: temp}},
				Operands:   make([]ir.Operand, numOperands),
				PredBlocks: append([]ir.BlockID(nil), preds...),
			}
			insertAfterPhis(block, instr)
			a.phiInstr[ref] = instr
			a.phiOps[ref] = make([]ondemandssa.ValueRef, numOperands)
			a.values[ref] = ir.TempOperand(temp)
			a.created = append(a.created, instr)
			return ref
		},
		SetPhiOperand: func(phi ondemandssa.ValueRef, idx int, v ondemandssa.ValueRef) {
			a.phiInstr[phi].Operands[idx] = a.values[v]
			a.phiOps[phi][idx] = v
		},
	})
	return a
}

func (a *accumulator) alloc() ondemandssa.ValueRef {
	r := a.nextRef
	a.nextRef++
	return r
}

func (a *accumulator) constRef(op ir.Operand) ondemandssa.ValueRef {
	r := a.alloc()
	a.values[r] = op
	return r
}

// insertAfterPhis places instr right after the leading run of
// phi/linear_phi pseudo-instructions in block.
func insertAfterPhis(block *ir.Block, instr *ir.Instruction) {
	idx := len(block.Phis())
	block.InsertBefore(idx, instr)
}

// insertBeforeTerminator places instr immediately before block's
// terminating branch/logical_end, or at the end if there is none.
func insertBeforeTerminator(block *ir.Block, instr *ir.Instruction) {
	term := block.Terminator()
	if term == nil {
		block.AppendInstr(instr)
		return
	}
	switch term.Opcode {
	case ir.OpBranch, ir.OpLogicalEnd:
		block.InsertBefore(len(block.Instrs)-1, instr)
	default:
		block.AppendInstr(instr)
	}
}

func lowerOne(p *ir.Program, block *ir.Block, phi *ir.Instruction) {
	a := newAccumulator(p)

	for b := 0; b < len(p.Blocks); b++ {
		if len(p.Blocks[b].LinearPreds) == 0 {
			a.resolver.DefineAt(ondemandssa.BlockID(b), a.constRef(zeroConst))
		}
	}

	for idx, pred := range phi.PredBlocks {
		predBlock := p.Block(pred)
		src := phi.Operands[idx]

		materialized := src
		if rc := src.RC(); rc.Bank == ir.BankScalar && rc.Size == 1 {
			t := p.NewTemp(boolRC)
			sel := &ir.Instruction{
				Opcode:   ir.OpSelect,
				Defs:     []ir.Definition{{Temp: t}},
				Operands: []ir.Operand{src, allOnesConst, zeroConst},
			}
			insertBeforeTerminator(predBlock, sel)
			a.created = append(a.created, sel)
			materialized = ir.TempOperand(t)
		}

		execTemp := p.NewTemp(boolRC)
		readExec := &ir.Instruction{Opcode: ir.OpReadEXEC, Defs: []ir.Definition{{Temp: execTemp}}}
		insertBeforeTerminator(predBlock, readExec)
		a.created = append(a.created, readExec)
		exec := ir.TempOperand(execTemp)

		curOldRef := a.resolver.ReadAt(ondemandssa.BlockID(pred))
		curOld := a.values[curOldRef]

		andOldT := p.NewTemp(boolRC)
		andOld := &ir.Instruction{Opcode: ir.OpAndNot, Defs: []ir.Definition{{Temp: andOldT}}, Operands: []ir.Operand{curOld, exec}}
		insertBeforeTerminator(predBlock, andOld)
		a.created = append(a.created, andOld)

		andNewT := p.NewTemp(boolRC)
		andNew := &ir.Instruction{Opcode: ir.OpAnd, Defs: []ir.Definition{{Temp: andNewT}}, Operands: []ir.Operand{materialized, exec}}
		insertBeforeTerminator(predBlock, andNew)
		a.created = append(a.created, andNew)

		curNewT := p.NewTemp(boolRC)
		curNew := &ir.Instruction{Opcode: ir.OpOr, Defs: []ir.Definition{{Temp: curNewT}}, Operands: []ir.Operand{ir.TempOperand(andOldT), ir.TempOperand(andNewT)}}
		insertBeforeTerminator(predBlock, curNew)
		a.created = append(a.created, curNew)

		a.resolver.DefineAt(ondemandssa.BlockID(pred), a.constRef(ir.TempOperand(curNewT)))
	}

	collapseTrivialPhis(a)

	finalRef := a.resolver.ReadAt(ondemandssa.BlockID(block.ID))
	final := a.values[finalRef]

	def, _ := phi.Def()
	move := &ir.Instruction{Opcode: ir.OpParallelCopy, Defs: []ir.Definition{{Temp: def.Temp}}, Operands: []ir.Operand{final}}
	replaceInstr(block, phi, move)
}

// collapseTrivialPhis tests every inner phi this lowering created for
// triviality (all operands equal or equal the phi itself); trivial ones
// are removed and their uses among the instructions this lowering
// created are rewritten to the unique operand, per the on-demand SSA
// convention (§4.2, §9 Design Notes).
func collapseTrivialPhis(a *accumulator) {
	changed := true
	for changed {
		changed = false
		for ref, instr := range a.phiInstr {
			if instr == nil {
				continue
			}
			ops := a.phiOps[ref]
			unique, ok := ondemandssa.Trivial(ref, ops)
			if !ok {
				continue
			}
			var replacement ir.Operand
			if unique == ondemandssa.ValueRefInvalid {
				replacement = zeroConst
			} else {
				replacement = a.values[unique]
			}
			a.values[ref] = replacement
			removeInstr(a, instr)
			a.phiInstr[ref] = nil
			if def, ok := instr.Def(); ok {
				rewriteUses(a, def.Temp, replacement)
			}
			changed = true
		}
	}
}

func rewriteUses(a *accumulator, temp ir.Temp, replacement ir.Operand) {
	for _, instr := range a.created {
		if instr == nil {
			continue
		}
		for i, op := range instr.Operands {
			if t, ok := op.IsTemp(); ok && t.ID == temp.ID {
				instr.Operands[i] = replacement
			}
		}
	}
}

func removeInstr(a *accumulator, instr *ir.Instruction) {
	for _, block := range a.p.Blocks {
		if i := block.IndexOf(instr); i >= 0 {
			block.Instrs = append(block.Instrs[:i], block.Instrs[i+1:]...)
			return
		}
	}
}

func replaceInstr(block *ir.Block, old, replacement *ir.Instruction) {
	if i := block.IndexOf(old); i >= 0 {
		block.Instrs[i] = replacement
	}
}

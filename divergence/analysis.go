// Package divergence implements stage A: classifying every SSA value as
// uniform (identical across all active lanes) or divergent (may differ
// per lane), by forward fixed-point dataflow, per §4.1.
package divergence

import (
	"github.com/wavecc/shadercore/internal/worklist"
	"github.com/wavecc/shadercore/ir"
)

// Result is the output of Analyze: a map from Temp id to its divergence
// classification. Absent entries are uniform (the lattice's bottom, per
// property 4: divergence is monotone, so "not yet marked divergent"
// means "uniform so far").
type Result struct {
	divergent map[ir.TempID]bool
}

// IsDivergent reports whether t was classified divergent.
func (r *Result) IsDivergent(t ir.TempID) bool { return r.divergent[t] }

// IsUniform reports the negation of IsDivergent.
func (r *Result) IsUniform(t ir.TempID) bool { return !r.divergent[t] }

type phiKind int

const (
	gammaPhi phiKind = iota
	muPhi
	etaPhi
)

type analyzer struct {
	p     *ir.Program
	dom   *ir.DomTree
	loops *ir.LoopInfo

	divergent map[ir.TempID]bool
	defBlock  map[ir.TempID]ir.BlockID
	defInstr  map[ir.TempID]*ir.Instruction
	// condOf holds, for a block ending in a conditional branch, the Temp
	// id of the branch condition.
	condOf map[ir.BlockID]ir.TempID

	enclosingCache map[ir.BlockID]enclosingInfo
}

type enclosingInfo struct {
	cond  ir.TempID
	found bool
}

// Analyze runs stage A over p and returns the divergence classification.
func Analyze(p *ir.Program) *Result {
	if len(p.Blocks) == 0 {
		return &Result{divergent: map[ir.TempID]bool{}}
	}
	dom := ir.BuildDomTree(len(p.Blocks), 0, ir.LogicalView(p))
	loops := ir.BuildLoopInfo(len(p.Blocks), ir.LogicalView(p), dom)

	a := &analyzer{
		p:              p,
		dom:            dom,
		loops:          loops,
		divergent:      make(map[ir.TempID]bool),
		defBlock:       make(map[ir.TempID]ir.BlockID),
		defInstr:       make(map[ir.TempID]*ir.Instruction),
		condOf:         make(map[ir.BlockID]ir.TempID),
		enclosingCache: make(map[ir.BlockID]enclosingInfo),
	}
	a.index()
	a.run()
	return &Result{divergent: a.divergent}
}

func (a *analyzer) index() {
	for bi, blk := range a.p.Blocks {
		for _, instr := range blk.Instrs {
			for _, d := range instr.Defs {
				a.defBlock[d.Temp.ID] = ir.BlockID(bi)
				a.defInstr[d.Temp.ID] = instr
			}
			if instr.Opcode == ir.OpBranch && len(instr.Operands) >= 1 {
				if t, ok := instr.Operands[0].IsTemp(); ok {
					a.condOf[ir.BlockID(bi)] = t.ID
				}
			}
		}
	}
}

func (a *analyzer) run() {
	wl := worklist.SeedAll(len(a.p.Blocks))
	for !wl.Empty() {
		bi, _ := wl.Pop()
		blk := a.p.Blocks[bi]
		changed := false
		for _, instr := range blk.Instrs {
			if a.eval(instr, ir.BlockID(bi)) {
				changed = true
			}
		}
		if changed {
			for s := range a.p.Blocks {
				wl.Push(s)
			}
		}
	}
}

// eval recomputes the divergence of instr's definitions, and reports
// whether any of them flipped from uniform to divergent.
func (a *analyzer) eval(instr *ir.Instruction, block ir.BlockID) bool {
	if len(instr.Defs) == 0 {
		return false
	}
	div := a.classify(instr, block)
	changed := false
	for _, d := range instr.Defs {
		if div && !a.divergent[d.Temp.ID] {
			a.divergent[d.Temp.ID] = true
			changed = true
		}
	}
	return changed
}

func (a *analyzer) classify(instr *ir.Instruction, block ir.BlockID) bool {
	switch {
	case instr.Opcode == ir.OpLoadConst, instr.Opcode == ir.OpUndef:
		return false
	case instr.Opcode == ir.OpPhi, instr.Opcode == ir.OpLinearPhi:
		return a.classifyPhi(instr, block)
	case instr.Opcode == ir.OpParallelCopy:
		return a.anyOperandDivergent(instr)
	case instr.Opcode == ir.OpSwizzle:
		return a.classifySwizzle(instr)
	case instr.Opcode == ir.OpDeref:
		return a.classifyDeref(instr)
	case instr.Opcode == ir.OpTextureSample:
		return len(instr.Operands) > 0 && a.operandDivergent(instr.Operands[0])
	case instr.Opcode == ir.OpLoadUBO:
		return a.anyOperandDivergent(instr)
	case ir.IsAlwaysUniformIntrinsic(instr.Opcode):
		return false
	case ir.IsArithmetic(instr.Opcode):
		return a.anyOperandDivergent(instr)
	default:
		// Everything else (interpolated input, barycentric-pixel, and any
		// opcode instruction selection introduced that this core doesn't
		// specifically classify) is conservatively divergent.
		return true
	}
}

func (a *analyzer) anyOperandDivergent(instr *ir.Instruction) bool {
	for _, op := range instr.Operands {
		if a.operandDivergent(op) {
			return true
		}
	}
	return false
}

func (a *analyzer) operandDivergent(op ir.Operand) bool {
	t, ok := op.IsTemp()
	if !ok {
		return false
	}
	return a.divergent[t.ID]
}

func (a *analyzer) classifySwizzle(instr *ir.Instruction) bool {
	t, ok := instr.Operands[0].IsTemp()
	if !ok {
		return a.operandDivergent(instr.Operands[0])
	}
	def := a.defInstr[t.ID]
	if def == nil || def.Opcode != ir.OpVectorConstruct {
		return a.divergent[t.ID]
	}
	if instr.SwizzleLane < 0 || instr.SwizzleLane >= len(def.Operands) {
		return a.divergent[t.ID]
	}
	return a.operandDivergent(def.Operands[instr.SwizzleLane])
}

func (a *analyzer) classifyDeref(instr *ir.Instruction) bool {
	if len(instr.Defs) == 0 {
		return true
	}
	uses := a.usesOf(instr.Defs[0].Temp.ID)
	if len(uses) == 0 {
		return true
	}
	for _, u := range uses {
		if u.Opcode != ir.OpTextureSample {
			return true
		}
	}
	return false
}

func (a *analyzer) usesOf(id ir.TempID) []*ir.Instruction {
	var out []*ir.Instruction
	for _, blk := range a.p.Blocks {
		for _, instr := range blk.Instrs {
			for _, op := range instr.Operands {
				if t, ok := op.IsTemp(); ok && t.ID == id {
					out = append(out, instr)
					break
				}
			}
		}
	}
	return out
}

func (a *analyzer) classifyPhi(instr *ir.Instruction, block ir.BlockID) bool {
	switch a.phiKind(instr, block) {
	case muPhi:
		return a.classifyMu(instr, block)
	case etaPhi:
		return a.classifyEta(instr, block)
	default:
		return a.classifyGamma(instr, block)
	}
}

func (a *analyzer) phiKind(instr *ir.Instruction, block ir.BlockID) phiKind {
	if a.loops.Headers[block] {
		return muPhi
	}
	for _, p := range instr.PredBlocks {
		if h := a.loops.InnermostHeader(p); h != ir.BlockIDInvalid && !a.loops.Contains(h, block) {
			return etaPhi
		}
	}
	return gammaPhi
}

func (a *analyzer) classifyGamma(instr *ir.Instruction, block ir.BlockID) bool {
	if a.anyOperandDivergent(instr) {
		return true
	}
	cond, ok := a.enclosingCondition(block, ir.BlockIDInvalid)
	return ok && a.divergent[cond]
}

func (a *analyzer) classifyMu(instr *ir.Instruction, header ir.BlockID) bool {
	if a.anyOperandDivergent(instr) {
		return true
	}
	latches := make(map[ir.BlockID]bool, len(a.loops.Latches[header]))
	for _, l := range a.loops.Latches[header] {
		latches[l] = true
	}
	for _, p := range instr.PredBlocks {
		if latches[p] {
			continue
		}
		if !a.loops.Contains(header, p) {
			// preheader-style unconditional entry.
			continue
		}
		// Conditional, re-entering operand: check the enclosing condition
		// between p and the header.
		if cond, ok := a.enclosingCondition(p, header); ok && a.divergent[cond] {
			return true
		}
	}
	return false
}

func (a *analyzer) classifyEta(instr *ir.Instruction, block ir.BlockID) bool {
	if a.anyOperandDivergent(instr) {
		return true
	}
	for _, p := range instr.PredBlocks {
		h := a.loops.InnermostHeader(p)
		if h == ir.BlockIDInvalid || a.loops.Contains(h, block) {
			continue
		}
		if cond, ok := a.enclosingCondition(p, h); ok && a.divergent[cond] {
			return true
		}
	}
	return false
}

// enclosingCondition finds the nearest block dominating `block` (walking
// the logical idom chain, stopping at stopAt if valid) that ends in a
// conditional branch, and returns that branch's condition Temp.
// Memoized per block to resolve the "no memoization" caveat named in
// SPEC_FULL.md §0.
func (a *analyzer) enclosingCondition(block, stopAt ir.BlockID) (ir.TempID, bool) {
	if c, ok := a.enclosingCache[block]; ok {
		return c.cond, c.found
	}
	cur := a.dom.IDom(block)
	for cur != stopAt {
		if cond, ok := a.condOf[cur]; ok {
			a.enclosingCache[block] = enclosingInfo{cond: cond, found: true}
			return cond, true
		}
		next := a.dom.IDom(cur)
		if next == cur {
			break
		}
		cur = next
	}
	a.enclosingCache[block] = enclosingInfo{found: false}
	return 0, false
}

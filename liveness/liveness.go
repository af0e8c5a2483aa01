// Package liveness implements stage C: per-block live-out sets and
// register-demand curves over the two banks, per §4.3.
package liveness

import (
	"github.com/wavecc/shadercore/internal/worklist"
	"github.com/wavecc/shadercore/ir"
)

// Demand is a (scalar dwords, vector dwords) pair, the unit register
// demand is tracked in throughout this package.
type Demand struct {
	Scalar int
	Vector int
}

func (d Demand) max(o Demand) Demand {
	if o.Scalar > d.Scalar {
		d.Scalar = o.Scalar
	}
	if o.Vector > d.Vector {
		d.Vector = o.Vector
	}
	return d
}

func demandOf(rc ir.RC) Demand {
	switch rc.Bank {
	case ir.BankScalar:
		return Demand{Scalar: int(rc.Size)}
	case ir.BankVector, ir.BankLinearVGPR:
		return Demand{Vector: int(rc.Size)}
	default:
		return Demand{}
	}
}

// Result is the output of Analyze: per-block live-in/live-out sets and
// the program-wide demand maximum used to derive occupancy.
type Result struct {
	LiveIn, LiveOut map[ir.BlockID]*ir.TempSet
	maxDemand       Demand
}

// LiveOutOf returns the live-out set of block b (never nil).
func (r *Result) LiveOutOf(b ir.BlockID) *ir.TempSet {
	if s, ok := r.LiveOut[b]; ok {
		return s
	}
	return ir.NewTempSet()
}

// MaxDemand returns the program-wide peak (scalar, vector) demand, the
// input to occupancy derivation (chip.DeriveOccupancy).
func (r *Result) MaxDemand() Demand { return r.maxDemand }

// Analyze runs stage C over p: a backward iterative dataflow seeded with
// every block, propagating phi operands to the correct predecessor's
// live-out set (logical predecessors for OpPhi, linear for
// OpLinearPhi), and caches each block's peak (sgpr, vgpr) demand onto
// the ir.Block itself (§3.2's "cached vgpr_demand/sgpr_demand").
func Analyze(p *ir.Program) *Result {
	n := len(p.Blocks)
	res := &Result{
		LiveIn:  make(map[ir.BlockID]*ir.TempSet, n),
		LiveOut: make(map[ir.BlockID]*ir.TempSet, n),
	}
	for bi := 0; bi < n; bi++ {
		res.LiveIn[ir.BlockID(bi)] = ir.NewTempSet()
		res.LiveOut[ir.BlockID(bi)] = ir.NewTempSet()
	}

	rc := buildTempRC(p)

	wl := worklist.SeedAll(n)
	for !wl.Empty() {
		bi, _ := wl.Pop()
		block := p.Blocks[bi]
		blockID := ir.BlockID(bi)

		for _, s := range block.LogicalSuccs {
			res.LiveOut[blockID].UnionWith(res.LiveIn[s])
		}
		for _, s := range block.LinearSuccs {
			res.LiveOut[blockID].UnionWith(res.LiveIn[s])
		}
		live := res.LiveOut[blockID].Clone()
		blockDemand := rc.demandOfSet(live)

		for i := len(block.Instrs) - 1; i >= 0; i-- {
			instr := block.Instrs[i]

			if instr.IsPhi() {
				for _, d := range instr.Defs {
					live.Remove(d.Temp.ID)
				}
				preds := logicalOrLinear(block, instr)
				for opIdx, op := range instr.Operands {
					t, ok := op.IsTemp()
					if !ok || opIdx >= len(preds) {
						continue
					}
					pred := preds[opIdx]
					predOut := res.LiveOut[pred]
					if !predOut.Has(t.ID) {
						predOut.Add(t.ID)
						wl.Push(int(pred))
					}
				}
				continue
			}

			// Demand right after this instruction executes: every
			// definition counts for at least this instant, even one
			// that turns out to be otherwise unused (§4.3).
			atDef := live.Clone()
			for _, d := range instr.Defs {
				atDef.Add(d.Temp.ID)
			}
			blockDemand = blockDemand.max(rc.demandOfSet(atDef))

			for _, d := range instr.Defs {
				live.Remove(d.Temp.ID)
			}
			for _, op := range instr.Operands {
				if t, ok := op.IsTemp(); ok {
					live.Add(t.ID)
				}
			}
			blockDemand = blockDemand.max(rc.demandOfSet(live))
		}

		res.maxDemand = res.maxDemand.max(blockDemand)
		block.SGPRDemand = blockDemand.Scalar
		block.VGPRDemand = blockDemand.Vector

		if !live.Equal(res.LiveIn[blockID]) {
			res.LiveIn[blockID] = live
			for _, p := range block.LogicalPreds {
				wl.Push(int(p))
			}
			for _, p := range block.LinearPreds {
				wl.Push(int(p))
			}
		}
	}
	return res
}

// logicalOrLinear returns the predecessor list a phi instruction's
// operands correspond to: PredBlocks already records this per invariant
//2, but this helper documents which CFG a phi kind draws from.
func logicalOrLinear(block *ir.Block, instr *ir.Instruction) []ir.BlockID {
	return instr.PredBlocks
}

// tempRC maps every Temp id defined in a program to its register class,
// built once so per-instruction demand computation never has to walk
// the program to answer "how big is this Temp".
type tempRC map[ir.TempID]ir.RC

func buildTempRC(p *ir.Program) tempRC {
	m := make(tempRC, p.NumTemps())
	for _, blk := range p.Blocks {
		for _, instr := range blk.Instrs {
			for _, d := range instr.Defs {
				m[d.Temp.ID] = d.Temp.RC
			}
		}
	}
	return m
}

func (m tempRC) demandOfSet(s *ir.TempSet) Demand {
	var d Demand
	for _, id := range s.Items() {
		dm := demandOf(m[id])
		d.Scalar += dm.Scalar
		d.Vector += dm.Vector
	}
	return d
}

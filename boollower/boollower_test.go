package boollower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavecc/shadercore/boollower"
	"github.com/wavecc/shadercore/ir"
)

var bool64 = ir.RC{Bank: ir.BankScalar, Size: 2}
var scalar1 = ir.RC{Bank: ir.BankScalar, Size: 1}

func link(pred, succ *ir.Block) {
	pred.LogicalSuccs = append(pred.LogicalSuccs, succ.ID)
	pred.LinearSuccs = append(pred.LinearSuccs, succ.ID)
	succ.LogicalPreds = append(succ.LogicalPreds, pred.ID)
	succ.LinearPreds = append(succ.LinearPreds, pred.ID)
}

func countOpcode(p *ir.Program, op ir.Opcode) int {
	n := 0
	for _, b := range p.Blocks {
		for _, in := range b.Instrs {
			if in.Opcode == op {
				n++
			}
		}
	}
	return n
}

// scenario S5: `if (gl_FragCoord.x>0) b=true; else b=false;` lowers the
// merge phi of a 64-bit bool Temp into an AND-NOT/AND/OR EXEC blend
// across both predecessor blocks, with no surviving OpPhi.
func TestDivergentBoolPhiLoweredToExecBlend(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	thenB := p.NewBlock()
	elseB := p.NewBlock()
	merge := p.NewBlock()
	link(entry, thenB)
	link(entry, elseB)
	link(thenB, merge)
	link(elseB, merge)

	cond := p.NewTemp(scalar1)
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadInterpolated, Defs: []ir.Definition{{Temp: cond}}})
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch, Operands: []ir.Operand{ir.TempOperand(cond)}, Targets: []ir.BlockID{thenB.ID, elseB.ID}})

	trueVal := p.NewTemp(bool64)
	thenB.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: trueVal}}})
	thenB.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch, Targets: []ir.BlockID{merge.ID}})

	falseVal := p.NewTemp(bool64)
	elseB.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: falseVal}}})
	elseB.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch, Targets: []ir.BlockID{merge.ID}})

	phiDef := p.NewTemp(bool64)
	phi := &ir.Instruction{
		Opcode:     ir.OpPhi,
		Defs:       []ir.Definition{{Temp: phiDef}},
		Operands:   []ir.Operand{ir.TempOperand(trueVal), ir.TempOperand(falseVal)},
		PredBlocks: []ir.BlockID{thenB.ID, elseB.ID},
	}
	merge.AppendInstr(phi)

	boollower.Lower(p)

	assert.Equal(t, 0, countOpcode(p, ir.OpPhi))
	assert.Equal(t, 2, countOpcode(p, ir.OpReadEXEC))
	assert.Equal(t, 2, countOpcode(p, ir.OpAndNot))
	assert.Equal(t, 2, countOpcode(p, ir.OpOr))

	for _, in := range merge.Instrs {
		if in.Opcode == ir.OpParallelCopy {
			def, ok := in.Def()
			assert.True(t, ok)
			assert.Equal(t, phiDef.ID, def.Temp.ID)
			return
		}
	}
	t.Fatal("expected the phi to be replaced by a parallelcopy of the resolved blend")
}

// A phi with a single logical predecessor still runs the EXEC blend (the
// predecessor may itself hold a value merged from an enclosing divergent
// region), but never materializes a linear phi at the merge block, since
// the on-demand resolver's single-predecessor case reads straight
// through.
func TestSinglePredecessorPhiSkipsMergePhi(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	merge := p.NewBlock()
	link(entry, merge)

	v := p.NewTemp(bool64)
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: v}}})

	phiDef := p.NewTemp(bool64)
	merge.AppendInstr(&ir.Instruction{
		Opcode:     ir.OpPhi,
		Defs:       []ir.Definition{{Temp: phiDef}},
		Operands:   []ir.Operand{ir.TempOperand(v)},
		PredBlocks: []ir.BlockID{entry.ID},
	})

	boollower.Lower(p)

	assert.Equal(t, 0, countOpcode(p, ir.OpPhi))
	assert.Equal(t, 0, countOpcode(p, ir.OpLinearPhi))
	assert.Equal(t, 1, countOpcode(p, ir.OpReadEXEC))
}

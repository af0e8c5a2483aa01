package divergence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavecc/shadercore/divergence"
	"github.com/wavecc/shadercore/ir"
)

var scalar1 = ir.RC{Bank: ir.BankScalar, Size: 1}
var vector1 = ir.RC{Bank: ir.BankVector, Size: 1}

func link(pred, succ *ir.Block) {
	pred.LogicalSuccs = append(pred.LogicalSuccs, succ.ID)
	pred.LinearSuccs = append(pred.LinearSuccs, succ.ID)
	succ.LogicalPreds = append(succ.LogicalPreds, pred.ID)
	succ.LinearPreds = append(succ.LinearPreds, pred.ID)
}

// scenario S1: a diamond with a uniform branch condition (load_push_constant,
// an always-uniform intrinsic) and a phi merging two uniform values must
// classify the phi result as uniform.
func TestUniformBranchUniformPhi(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	thenB := p.NewBlock()
	elseB := p.NewBlock()
	merge := p.NewBlock()
	link(entry, thenB)
	link(entry, elseB)
	link(thenB, merge)
	link(elseB, merge)
	merge.LogicalIDom = entry.ID
	thenB.LogicalIDom = entry.ID
	elseB.LogicalIDom = entry.ID

	cond := p.NewTemp(scalar1)
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadPushConstant, Defs: []ir.Definition{{Temp: cond}}})
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch, Operands: []ir.Operand{ir.TempOperand(cond)}, Targets: []ir.BlockID{thenB.ID, elseB.ID}})

	a := p.NewTemp(scalar1)
	thenB.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: a}}})
	b := p.NewTemp(scalar1)
	elseB.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: b}}})

	phi := p.NewTemp(scalar1)
	merge.AppendInstr(&ir.Instruction{
		Opcode:     ir.OpPhi,
		Defs:       []ir.Definition{{Temp: phi}},
		Operands:   []ir.Operand{ir.TempOperand(a), ir.TempOperand(b)},
		PredBlocks: []ir.BlockID{thenB.ID, elseB.ID},
	})

	res := divergence.Analyze(p)
	assert.True(t, res.IsUniform(cond.ID))
	assert.True(t, res.IsUniform(phi.ID))
}

// scenario S2: a divergent branch condition forces the merge phi divergent
// even though both incoming values are themselves uniform constants.
func TestDivergentBranchDivergentPhi(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	thenB := p.NewBlock()
	elseB := p.NewBlock()
	merge := p.NewBlock()
	link(entry, thenB)
	link(entry, elseB)
	link(thenB, merge)
	link(elseB, merge)
	merge.LogicalIDom = entry.ID
	thenB.LogicalIDom = entry.ID
	elseB.LogicalIDom = entry.ID

	cond := p.NewTemp(scalar1)
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadInterpolated, Defs: []ir.Definition{{Temp: cond}}})
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch, Operands: []ir.Operand{ir.TempOperand(cond)}, Targets: []ir.BlockID{thenB.ID, elseB.ID}})

	a := p.NewTemp(scalar1)
	thenB.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: a}}})
	b := p.NewTemp(scalar1)
	elseB.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: b}}})

	phi := p.NewTemp(scalar1)
	merge.AppendInstr(&ir.Instruction{
		Opcode:     ir.OpPhi,
		Defs:       []ir.Definition{{Temp: phi}},
		Operands:   []ir.Operand{ir.TempOperand(a), ir.TempOperand(b)},
		PredBlocks: []ir.BlockID{thenB.ID, elseB.ID},
	})

	res := divergence.Analyze(p)
	assert.True(t, res.IsDivergent(cond.ID))
	assert.True(t, res.IsDivergent(phi.ID))
}

// a loop carried value (mu phi) whose body update folds in a divergent
// source must itself be divergent, and that divergence must propagate
// around the back edge into the header on the very same fixed-point run.
func TestDivergentLoopCarry(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	preheader := p.NewBlock()
	header := p.NewBlock()
	body := p.NewBlock()
	exit := p.NewBlock()
	link(preheader, header)
	link(header, body)
	link(body, header) // back edge
	link(header, exit)
	header.LogicalIDom = preheader.ID
	body.LogicalIDom = header.ID
	exit.LogicalIDom = header.ID

	init := p.NewTemp(scalar1)
	preheader.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: init}}})

	carried := p.NewTemp(scalar1)
	phi := &ir.Instruction{
		Opcode:     ir.OpPhi,
		Defs:       []ir.Definition{{Temp: carried}},
		Operands:   []ir.Operand{ir.TempOperand(init), {}},
		PredBlocks: []ir.BlockID{preheader.ID, body.ID},
	}
	header.AppendInstr(phi)

	bodyCond := p.NewTemp(scalar1)
	body.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadInterpolated, Defs: []ir.Definition{{Temp: bodyCond}}})

	updated := p.NewTemp(scalar1)
	body.AppendInstr(&ir.Instruction{Opcode: ir.OpAdd, Defs: []ir.Definition{{Temp: updated}}, Operands: []ir.Operand{ir.TempOperand(carried), ir.TempOperand(bodyCond)}})
	phi.Operands[1] = ir.TempOperand(updated)

	res := divergence.Analyze(p)
	assert.True(t, res.IsDivergent(bodyCond.ID))
	assert.True(t, res.IsDivergent(carried.ID))
	assert.True(t, res.IsDivergent(updated.ID))
}

// property 4: divergence is monotone -- once a Temp is classified
// divergent, re-running Analyze over the same program never reports it
// uniform, and uniform-only inputs never spuriously flip divergent.
func TestMonotoneClassification(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	a := p.NewTemp(vector1)
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: a}}})
	b := p.NewTemp(vector1)
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpAdd, Defs: []ir.Definition{{Temp: b}}, Operands: []ir.Operand{ir.TempOperand(a), ir.TempOperand(a)}})

	r1 := divergence.Analyze(p)
	r2 := divergence.Analyze(p)
	assert.Equal(t, r1.IsDivergent(b.ID), r2.IsDivergent(b.ID))
	assert.True(t, r1.IsUniform(b.ID))
}

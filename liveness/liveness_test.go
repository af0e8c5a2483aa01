package liveness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavecc/shadercore/ir"
	"github.com/wavecc/shadercore/liveness"
)

var scalar1 = ir.RC{Bank: ir.BankScalar, Size: 1}
var vector1 = ir.RC{Bank: ir.BankVector, Size: 1}

func link(pred, succ *ir.Block) {
	pred.LogicalSuccs = append(pred.LogicalSuccs, succ.ID)
	pred.LinearSuccs = append(pred.LinearSuccs, succ.ID)
	succ.LogicalPreds = append(succ.LogicalPreds, pred.ID)
	succ.LinearPreds = append(succ.LinearPreds, pred.ID)
}

func TestLiveOutAcrossStraightLine(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	a := p.NewBlock()
	b := p.NewBlock()
	link(a, b)

	x := p.NewTemp(scalar1)
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: x}}})

	y := p.NewTemp(scalar1)
	b.AppendInstr(&ir.Instruction{Opcode: ir.OpAdd, Defs: []ir.Definition{{Temp: y}}, Operands: []ir.Operand{ir.TempOperand(x), ir.TempOperand(x)}})

	res := liveness.Analyze(p)
	assert.True(t, res.LiveOutOf(a.ID).Has(x.ID))
	assert.False(t, res.LiveOutOf(b.ID).Has(x.ID))
	assert.False(t, res.LiveOutOf(b.ID).Has(y.ID))
}

func TestPhiOperandPropagatesToPredecessorLiveOut(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	thenB := p.NewBlock()
	elseB := p.NewBlock()
	merge := p.NewBlock()
	link(entry, thenB)
	link(entry, elseB)
	link(thenB, merge)
	link(elseB, merge)

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

	res := liveness.Analyze(p)
	assert.True(t, res.LiveOutOf(thenB.ID).Has(a.ID))
	assert.True(t, res.LiveOutOf(elseB.ID).Has(b.ID))
	assert.False(t, res.LiveOutOf(thenB.ID).Has(b.ID))
}

func TestBlockDemandCountsDefinitionEvenIfUnused(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	a := p.NewBlock()
	dead := p.NewTemp(vector1)
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: dead}}})

	liveness.Analyze(p)
	assert.Equal(t, 1, a.VGPRDemand)
	assert.Equal(t, 0, a.SGPRDemand)
}

func TestMaxDemandAggregatesAcrossBlocks(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	a := p.NewBlock()
	s := p.NewTemp(scalar1)
	v := p.NewTemp(vector1)
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: s}}})
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: v}}})
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpAdd, Defs: []ir.Definition{{Temp: p.NewTemp(scalar1)}}, Operands: []ir.Operand{ir.TempOperand(s), ir.TempOperand(v)}})

	res := liveness.Analyze(p)
	assert.GreaterOrEqual(t, res.MaxDemand().Scalar, 1)
	assert.GreaterOrEqual(t, res.MaxDemand().Vector, 1)
}

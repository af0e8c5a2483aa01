package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavecc/shadercore/ir"
	"github.com/wavecc/shadercore/pipeline"
)

var scalar1 = ir.RC{Bank: ir.BankScalar, Size: 1}
var vector1 = ir.RC{Bank: ir.BankVector, Size: 1}

func link(pred, succ *ir.Block) {
	pred.LogicalSuccs = append(pred.LogicalSuccs, succ.ID)
	pred.LinearSuccs = append(pred.LinearSuccs, succ.ID)
	succ.LogicalPreds = append(succ.LogicalPreds, pred.ID)
	succ.LinearPreds = append(succ.LinearPreds, pred.ID)
}

func countOpcode(p *ir.Program, op ir.Opcode) int {
	n := 0
	for _, b := range p.Blocks {
		for _, instr := range b.Instrs {
			if instr.Opcode == op {
				n++
			}
		}
	}
	return n
}

// buildLiveTogether appends n scalar and m vector loads to entry, then a
// single instruction in use that reads all of them at once, forcing
// peak demand to (n, m) simultaneously live.
func buildLiveTogether(p *ir.Program, entry, use *ir.Block, n, m int) {
	var ops []ir.Operand
	for i := 0; i < n; i++ {
		t := p.NewTemp(scalar1)
		entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: t}}})
		ops = append(ops, ir.TempOperand(t))
	}
	for i := 0; i < m; i++ {
		t := p.NewTemp(vector1)
		entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: t}}})
		ops = append(ops, ir.TempOperand(t))
	}
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch})
	sink := p.NewTemp(scalar1)
	use.AppendInstr(&ir.Instruction{Opcode: ir.OpAdd, Defs: []ir.Definition{{Temp: sink}}, Operands: ops})
}

// TestNoSpillFitsSmallestWaveTableRow is scenario S3: demand (30, 20)
// fits the first wave table row outright, so regalloc succeeds with no
// spilling and the config ends up with num_sgprs=48 (46 plus the VCC
// reservation) and num_vgprs=24.
func TestNoSpillFitsSmallestWaveTableRow(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	use := p.NewBlock()
	link(entry, use)
	buildLiveTogether(p, entry, use, 30, 20)

	res, err := pipeline.Compile(context.Background(), p)
	assert.NoError(t, err)
	assert.Nil(t, res.Spill)
	assert.Equal(t, 10, res.Target.NumWaves)
	assert.Equal(t, 48, p.Config.NumSGPRs)
	assert.Equal(t, 24, p.Config.NumVGPRs)
	assert.Equal(t, 10, p.NumWaves)
}

// TestScalarOverflowTriggersSpillAndLowersOccupancy is scenario S4:
// scalar demand (120) fits no row's MaxSGPR outright, but vector demand
// (10) is small enough that selectTarget falls back to a vector-only
// fit and spill brings scalar demand under that row's budget.
func TestScalarOverflowTriggersSpillAndLowersOccupancy(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	use := p.NewBlock()
	link(entry, use)
	buildLiveTogether(p, entry, use, 120, 10)

	res, err := pipeline.Compile(context.Background(), p)
	assert.NoError(t, err)
	assert.NotNil(t, res.Spill)
	assert.Greater(t, countOpcode(p, ir.OpSpill), 0)
	assert.Greater(t, countOpcode(p, ir.OpReload), 0)
	assert.LessOrEqual(t, p.Config.NumSGPRs, res.Target.TotalScalarFootprint())
	assert.Equal(t, res.Target.NumWaves, p.NumWaves)
}

// TestVectorOverflowIsResourceExhaustion: vector demand beyond the
// largest row's 256 slots has no spill path and must surface as
// ResourceExhaustion with num_waves reset to 0.
func TestVectorOverflowIsResourceExhaustion(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	use := p.NewBlock()
	link(entry, use)
	buildLiveTogether(p, entry, use, 1, 300)

	_, err := pipeline.Compile(context.Background(), p)
	assert.Error(t, err)
	var perr *pipeline.Error
	ok := false
	if e, isErr := err.(*pipeline.Error); isErr {
		perr, ok = e, true
	}
	assert.True(t, ok)
	assert.Equal(t, pipeline.ResourceExhaustion, perr.Kind)
	assert.Equal(t, 0, p.Config.NumWaves)
}

// TestMalformedPhiIsInvariantViolation: a phi with fewer operands than
// its block has logical predecessors must be rejected before stage A
// ever runs.
func TestMalformedPhiIsInvariantViolation(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	a := p.NewBlock()
	b := p.NewBlock()
	merge := p.NewBlock()
	link(a, merge)
	link(b, merge)

	x := p.NewTemp(scalar1)
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: x}}})
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch})
	b.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch})

	phi := p.NewTemp(scalar1)
	merge.AppendInstr(&ir.Instruction{
		Opcode:     ir.OpPhi,
		Defs:       []ir.Definition{{Temp: phi}},
		Operands:   []ir.Operand{ir.TempOperand(x)},
		PredBlocks: []ir.BlockID{a.ID},
	})

	_, err := pipeline.Compile(context.Background(), p)
	assert.Error(t, err)
	perr, ok := err.(*pipeline.Error)
	assert.True(t, ok)
	assert.Equal(t, pipeline.InvariantViolation, perr.Kind)
}

// TestNumWavesOverrideNamesRowDirectly checks that a non-zero
// Config.NumWaves set by the driver is honored as the occupancy target
// outright rather than derived from measured demand.
func TestNumWavesOverrideNamesRowDirectly(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA, NumWaves: 8})
	entry := p.NewBlock()
	use := p.NewBlock()
	link(entry, use)
	buildLiveTogether(p, entry, use, 10, 5)

	res, err := pipeline.Compile(context.Background(), p)
	assert.NoError(t, err)
	assert.Equal(t, 8, res.Target.NumWaves)
	assert.Equal(t, 32, res.Target.MaxVGPR)
}

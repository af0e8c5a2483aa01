package spill_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavecc/shadercore/chip"
	"github.com/wavecc/shadercore/ir"
	"github.com/wavecc/shadercore/liveness"
	"github.com/wavecc/shadercore/spill"
)

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
		for _, instr := range b.Instrs {
			if instr.Opcode == op {
				n++
			}
		}
	}
	return n
}

// TestScalarOverflowSpillsToLinearVGPR builds a block of 120 scalar
// definitions all read by its successor, whose scalar demand (120 live
// dwords) exceeds the target's MaxSGPR (102,
// chosen as scenario S4's example target), and checks that the spiller
// emits spill/reload pairs rather than leaving demand unaddressed.
func TestScalarOverflowSpillsToLinearVGPR(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	use := p.NewBlock()
	link(entry, use)

	const n = 120
	temps := make([]ir.Temp, n)
	for i := 0; i < n; i++ {
		temps[i] = p.NewTemp(scalar1)
		entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: temps[i]}}})
	}
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch})

	for _, tmp := range temps {
		sum := p.NewTemp(scalar1)
		use.AppendInstr(&ir.Instruction{Opcode: ir.OpAdd, Defs: []ir.Definition{{Temp: sum}}, Operands: []ir.Operand{ir.TempOperand(tmp), ir.TempOperand(tmp)}})
	}

	live := liveness.Analyze(p)
	target := chip.WaveTableEntry{NumWaves: 8, MaxSGPR: 102, MaxVGPR: 32}

	res := spill.Run(p, live, target)

	assert.Greater(t, res.SpillIDCount, 0)
	assert.Greater(t, countOpcode(p, ir.OpSpill), 0)
	assert.Greater(t, countOpcode(p, ir.OpReload), 0)
	assert.LessOrEqual(t, res.NumLinearVGPRsUsed, 2)
}

// TestStraightLineUnderBudgetSpillsNothing is the negative case: when
// demand never exceeds target, no spill/reload should be introduced.
func TestStraightLineUnderBudgetSpillsNothing(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	a := p.NewBlock()
	b := p.NewBlock()
	link(a, b)

	x := p.NewTemp(scalar1)
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: x}}})
	a.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch})

	y := p.NewTemp(scalar1)
	b.AppendInstr(&ir.Instruction{Opcode: ir.OpAdd, Defs: []ir.Definition{{Temp: y}}, Operands: []ir.Operand{ir.TempOperand(x), ir.TempOperand(x)}})

	live := liveness.Analyze(p)
	target := chip.WaveTableEntry{NumWaves: 10, MaxSGPR: 46, MaxVGPR: 24}

	res := spill.Run(p, live, target)

	assert.Equal(t, 0, res.SpillIDCount)
	assert.Equal(t, 0, countOpcode(p, ir.OpSpill))
	assert.Equal(t, 0, countOpcode(p, ir.OpReload))
	assert.Equal(t, 0, countOpcode(p, ir.OpStartLinearVGPR))
}

// TestSpilledSlotsDoNotOverlapAcrossInterferingIDs is property 6: two
// Temps simultaneously spilled (interfering) must land in disjoint slot
// ranges within the same linear-vgpr bank.
func TestSpilledSlotsDoNotOverlapAcrossInterferingIDs(t *testing.T) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()

	const n = 70
	temps := make([]ir.Temp, n)
	for i := 0; i < n; i++ {
		temps[i] = p.NewTemp(scalar1)
		entry.AppendInstr(&ir.Instruction{Opcode: ir.OpLoadConst, Defs: []ir.Definition{{Temp: temps[i]}}})
	}
	for _, tmp := range temps {
		sum := p.NewTemp(scalar1)
		entry.AppendInstr(&ir.Instruction{Opcode: ir.OpAdd, Defs: []ir.Definition{{Temp: sum}}, Operands: []ir.Operand{ir.TempOperand(tmp), ir.TempOperand(tmp)}})
	}

	live := liveness.Analyze(p)
	target := chip.WaveTableEntry{NumWaves: 8, MaxSGPR: 62, MaxVGPR: 32}

	res := spill.Run(p, live, target)
	assert.Greater(t, res.SpillIDCount, 0)

	type occupied struct {
		bank ir.PhysReg
		slot int
	}
	seen := map[occupied]ir.SpillID{}
	for _, instr := range entry.Instrs {
		if instr.Opcode != ir.OpSpill {
			continue
		}
		key := occupied{bank: instr.SlotBase, slot: instr.SlotIndex}
		if prev, ok := seen[key]; ok {
			assert.Equal(t, prev, instr.SpillID, "two distinct spill ids must not share a slot")
		} else {
			seen[key] = instr.SpillID
		}
	}
}

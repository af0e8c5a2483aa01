package spill_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wavecc/shadercore/chip"
	"github.com/wavecc/shadercore/internal/refinterp"
	"github.com/wavecc/shadercore/ir"
	"github.com/wavecc/shadercore/liveness"
	"github.com/wavecc/shadercore/spill"
)

// buildSpillCandidate builds n distinct scalar constants in one block
// followed by a block that sums each one with itself, overflowing a
// small target's MaxSGPR so spill.Run has real work to do. Called twice
// in TestSpillPreservesValues so the before/after runs start from
// identical, independently-built programs with the same Temp id
// sequence (fresh Program, identical build order).
func buildSpillCandidate(n int) (*ir.Program, []ir.Temp) {
	p := ir.NewProgram(&ir.Config{ChipClass: ir.ChipClassA})
	entry := p.NewBlock()
	use := p.NewBlock()
	link(entry, use)

	temps := make([]ir.Temp, n)
	for i := 0; i < n; i++ {
		temps[i] = p.NewTemp(scalar1)
		entry.AppendInstr(&ir.Instruction{
			Opcode:   ir.OpLoadConst,
			Defs:     []ir.Definition{{Temp: temps[i]}},
			Operands: []ir.Operand{ir.InlineConstantOperand(uint32(i + 1))},
		})
	}
	entry.AppendInstr(&ir.Instruction{Opcode: ir.OpBranch, Targets: []ir.BlockID{use.ID}})

	sums := make([]ir.Temp, n)
	for i, tmp := range temps {
		sums[i] = p.NewTemp(scalar1)
		use.AppendInstr(&ir.Instruction{
			Opcode:   ir.OpAdd,
			Defs:     []ir.Definition{{Temp: sums[i]}},
			Operands: []ir.Operand{ir.TempOperand(tmp), ir.TempOperand(tmp)},
		})
	}

	return p, append(temps, sums...)
}

// TestSpillPreservesValues is property 5: running the same program
// before and after spill.Run under the reference interpreter must
// produce identical values for every Temp, since spilling only changes
// where a value lives between its definition and its uses, never what
// it computes.
func TestSpillPreservesValues(t *testing.T) {
	const n = 120
	mask := []bool{true}

	before, beforeTemps := buildSpillCandidate(n)
	beforeVals, err := refinterp.New().Run(before, mask)
	assert.NoError(t, err)

	after, afterTemps := buildSpillCandidate(n)
	assert.Equal(t, beforeTemps, afterTemps, "both builds must allocate identical Temp ids")

	live := liveness.Analyze(after)
	target := chip.WaveTableEntry{NumWaves: 8, MaxSGPR: 102, MaxVGPR: 32}
	res := spill.Run(after, live, target)
	assert.Greater(t, res.SpillIDCount, 0, "this program must actually trigger spilling for the property to be exercised")

	afterVals, err := refinterp.New().Run(after, mask)
	assert.NoError(t, err)

	for _, temp := range beforeTemps {
		assert.Equal(t, beforeVals[temp.ID], afterVals[temp.ID], "temp %v changed value across spilling", temp)
	}
}

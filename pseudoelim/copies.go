package pseudoelim

import "github.com/wavecc/shadercore/ir"

type copyLeg struct {
	dst, src ir.PhysReg
	rc       ir.RC
	temp     ir.Temp
}

// lowerParallelCopy expands one parallelcopy into a straight-line
// sequence of single-register moves that implements the same
// simultaneous assignment (property 7). Legs are grouped by bank since
// a scalar/vector pair can never alias; within a bank, any src/dst
// cycle is broken with one scratch register per the classical
// algorithm (save the value a cycle edge is about to clobber, redirect
// its readers to the scratch copy, then the edge becomes safe to
// write) -- S6's r1<->r2 swap lowers to exactly three moves.
func lowerParallelCopy(p *ir.Program, pc *ir.Instruction) ([]*ir.Instruction, int) {
	byBank := map[ir.Bank][]copyLeg{}
	for i := range pc.Defs {
		def := pc.Defs[i]
		op := pc.Operands[i]
		rc := op.RC()
		byBank[rc.Bank] = append(byBank[rc.Bank], copyLeg{
			dst:  def.PhysReg(),
			src:  op.PhysReg(),
			rc:   rc,
			temp: def.Temp,
		})
	}

	var out []*ir.Instruction
	cycles := 0
	for _, bank := range sortedBanks(byBank) {
		legs := byBank[bank]
		emitted, brokenCycles := sequentialize(p, bank, legs)
		out = append(out, emitted...)
		cycles += brokenCycles
	}
	return out, cycles
}

func sortedBanks(byBank map[ir.Bank][]copyLeg) []ir.Bank {
	var banks []ir.Bank
	for b := range byBank {
		banks = append(banks, b)
	}
	for i := 1; i < len(banks); i++ {
		for j := i; j > 0 && banks[j-1] > banks[j]; j-- {
			banks[j-1], banks[j] = banks[j], banks[j-1]
		}
	}
	return banks
}

func sequentialize(p *ir.Program, bank ir.Bank, legs []copyLeg) ([]*ir.Instruction, int) {
	pending := map[ir.PhysReg]copyLeg{}
	for _, l := range legs {
		if l.dst == l.src {
			continue
		}
		pending[l.dst] = l
	}

	var out []*ir.Instruction
	move := func(dst, src ir.PhysReg, rc ir.RC, t ir.Temp) {
		instr := &ir.Instruction{
			Opcode:   ir.OpCopy,
			Operands: []ir.Operand{ir.PhysRegOperand(src, rc)},
			Defs:     []ir.Definition{{Temp: t, Fixed: dst}},
		}
		instr.Defs[0].AssignPhysReg(dst)
		out = append(out, instr)
	}

	cycles := 0
	for len(pending) > 0 {
		progressed := false
		usedAsSrc := map[ir.PhysReg]bool{}
		for _, l := range pending {
			usedAsSrc[l.src] = true
		}
		for dst, l := range pending {
			if usedAsSrc[dst] {
				continue
			}
			move(l.dst, l.src, l.rc, l.temp)
			delete(pending, dst)
			progressed = true
		}
		if progressed {
			continue
		}

		// Every remaining move feeds a cycle: pick the lowest
		// destination for determinism, save what it currently holds,
		// and redirect readers of that value onto the scratch copy so
		// the edge stops blocking.
		cycles++
		var pick copyLeg
		first := true
		for _, l := range pending {
			if first || l.dst < pick.dst {
				pick, first = l, false
			}
		}
		scratch := scratchReg(bank, p.Config.ChipClass)
		scratchTemp := p.NewTemp(pick.rc)
		move(scratch, pick.dst, pick.rc, scratchTemp)
		for dst, l := range pending {
			if l.src == pick.dst {
				l.src = scratch
				pending[dst] = l
			}
		}
	}
	return out, cycles
}

// scratchReg names a register the allocator never hands out: one past
// VCC's reserved pair in the scalar bank, the top of the vector bank
// otherwise. Safe because pseudo elimination runs after every get_reg
// placement has already been committed within the ceiling the wave
// table selected (§4.5), and regalloc never places a value at either
// of these addresses.
func scratchReg(bank ir.Bank, cc ir.ChipClass) ir.PhysReg {
	if bank == ir.BankScalar {
		return ir.NewPhysReg(ir.BankScalar, cc.MaxAddressableScalarIndex()+2)
	}
	return ir.NewPhysReg(ir.BankVector, 255)
}
